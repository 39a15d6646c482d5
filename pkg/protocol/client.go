package protocol

import (
    "errors"
    "fmt"

    "gamenet/pkg/buffer"
    "gamenet/pkg/protocol/codec"
    "gamenet/pkg/transform"
)

type clientCodec struct {
    o   Options
    enc *clientEncoder
}

// NewClientCodec returns the codec for plain client frames.
func NewClientCodec(o Options) (Codec, error) {
    o, err := o.normalize()
    if err != nil { return nil, err }
    return &clientCodec{o: o, enc: &clientEncoder{o: o}}, nil
}

func (c *clientCodec) NewDecoder() Decoder {
    return &clientDecoder{o: &c.o, cum: cumulation{pool: c.o.Pool}}
}

func (c *clientCodec) Encoder() Encoder { return c.enc }

type clientDecoder struct {
    o   *Options
    cum cumulation
}

func (d *clientDecoder) Decode(in []byte, emit func(any)) error {
    return d.cum.run(in, d.check, d.frame, emit)
}

func (d *clientDecoder) Release() { d.cum.Release() }

func (d *clientDecoder) check(length int) error {
    return checkFrame(d.o, length)
}

func (d *clientDecoder) frame(start, length int) (any, error) {
    full := LengthFieldSize + length
    var fb *buffer.Buffer
    if d.o.copyFrames() {
        fb = d.cum.buf.Copy(start, full)
    } else {
        fb = d.cum.buf.Slice(start, full)
    }
    return decodeFrame(d.o, fb)
}

// checkFrame validates a declared client frame length.
func checkFrame(o *Options, length int) error {
    if length < o.HeadSize {
        return fmt.Errorf("%w: length %d below head size %d", ErrShortFrame, length, o.HeadSize)
    }
    if body := length - o.HeadSize; body > o.MaxBodySize {
        return fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, body, o.MaxBodySize)
    }
    return nil
}

// decodeFrame decodes the complete client frame in fb, whose reader index is
// at the length field. fb is consumed: kept on the message or released.
func decodeFrame(o *Options, fb *buffer.Buffer) (*Message, error) {
    base := fb.ReaderIndex()
    head := ReadHead(fb.Bytes()[base+LengthFieldSize:], o.HeadSize)
    if err := transform.Run(o.DecodeTransformers, fb, head, o.HeadSize); err != nil {
        fb.Release()
        if errors.Is(err, transform.ErrBodyTooLarge) {
            return nil, fmt.Errorf("%w: %w", ErrFrameTooLarge, err)
        }
        return nil, err
    }
    var body any
    if o.Body != nil {
        v, err := o.Body.DecodeBody(head, fb.Bytes()[base+LengthFieldSize+o.HeadSize:])
        if err != nil {
            fb.Release()
            return nil, fmt.Errorf("decode body (head %d): %w", head, err)
        }
        body = v
    }
    if o.KeepRaw {
        return NewRawMessage(head, fb, body), nil
    }
    fb.Release()
    return NewMessage(head, body), nil
}

type clientEncoder struct{ o Options }

func (e *clientEncoder) Encode(v any) (*buffer.Buffer, error) {
    switch m := v.(type) {
    case *Message:
        return encodeMessage(&e.o, m)
    case *buffer.Buffer:
        return m, nil
    }
    buffer.Release(v)
    return nil, &ErrUnsupportedMessage{Value: v}
}

// encodeMessage consumes m and returns its encoded frame. A raw frame is
// reused as is; with encode transformers it is copied first so that buffers
// shared between channels are never transformed twice.
func encodeMessage(o *Options, m *Message) (*buffer.Buffer, error) {
    defer m.Release()
    var fb *buffer.Buffer
    if raw := m.Raw(); raw != nil {
        if len(o.EncodeTransformers) == 0 {
            raw.Retain()
            return raw, nil
        }
        fb = raw.Copy(raw.ReaderIndex(), raw.ReadableBytes())
    } else {
        if o.Body == nil { return nil, ErrMissingBody }
        fb = o.Pool.Get(LengthFieldSize + o.HeadSize + bodySize(o, m.Head, m.Body))
        if err := writeFrame(o, fb, m.Head, m.Body); err != nil {
            fb.Release()
            return nil, err
        }
    }
    if err := transform.Run(o.EncodeTransformers, fb, m.Head, o.HeadSize); err != nil {
        fb.Release()
        return nil, err
    }
    return fb, nil
}

// writeFrame appends one untransformed client frame to fb.
func writeFrame(o *Options, fb *buffer.Buffer, head uint64, body any) error {
    start := fb.Len()
    fb.WriteUint32(0)
    PutHead(fb, o.HeadSize, head)
    err := fb.AppendWith(func(dst []byte) ([]byte, error) { return o.Body.AppendBody(dst, head, body) })
    if err != nil { return fmt.Errorf("encode body (head %d): %w", head, err) }
    fb.SetUint32(start, uint32(fb.Len()-start-LengthFieldSize))
    return nil
}

func bodySize(o *Options, head uint64, body any) int {
    if s, ok := o.Body.(codec.Sizer); ok {
        if n, err := s.BodySize(head, body); err == nil {
            return n
        }
    }
    return 256
}
