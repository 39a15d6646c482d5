package protocol

import "gamenet/pkg/buffer"

const minCumulation = 1024

// cumulation buffers stream bytes until whole length-prefixed frames are
// available. Frames handed out as retained slices keep the old backing
// buffer alive, so compaction always moves the remainder to a new buffer.
type cumulation struct {
    pool *buffer.Pool
    buf  *buffer.Buffer
}

func (c *cumulation) append(in []byte) {
    if c.buf == nil {
        c.buf = c.pool.Get(max(len(in), minCumulation))
    }
    c.buf.Write(in)
}

// run drains every complete frame. check sees each declared length before the
// frame is complete; frame decodes one complete frame at absolute offset start.
func (c *cumulation) run(in []byte, check func(length int) error, frame func(start, length int) (any, error), emit func(any)) error {
    c.append(in)
    for c.buf.ReadableBytes() >= LengthFieldSize {
        start := c.buf.ReaderIndex()
        length := int(c.buf.Uint32(start))
        if err := check(length); err != nil {
            c.Release()
            return err
        }
        if c.buf.ReadableBytes() < LengthFieldSize+length {
            break
        }
        v, err := frame(start, length)
        c.buf.Skip(LengthFieldSize + length)
        if err != nil {
            c.compact()
            return err
        }
        emit(v)
    }
    c.compact()
    return nil
}

func (c *cumulation) compact() {
    if c.buf == nil {
        return
    }
    n := c.buf.ReadableBytes()
    switch {
    case n == 0:
        c.Release()
    case c.buf.ReaderIndex() > 0:
        nb := c.pool.Get(max(2*n, minCumulation))
        nb.Write(c.buf.Readable())
        c.buf.Release()
        c.buf = nb
    }
}

// Pending returns the number of buffered bytes not yet decoded.
func (c *cumulation) Pending() int {
    if c.buf == nil {
        return 0
    }
    return c.buf.ReadableBytes()
}

func (c *cumulation) Release() {
    if c.buf != nil {
        c.buf.Release()
        c.buf = nil
    }
}
