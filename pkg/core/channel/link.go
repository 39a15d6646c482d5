package channel

import (
    "bufio"
    "net"
    "time"

    "gamenet/pkg/buffer"
    "gamenet/pkg/protocol"
)

const readChunk = 4096

// EncodeError reports a message that could not be encoded. The link is
// still usable.
type EncodeError struct{ Err error }

func (e *EncodeError) Error() string { return "encode: " + e.Err.Error() }
func (e *EncodeError) Unwrap() error { return e.Err }

// Link is one framed connection. Read is called only from the channel's
// read goroutine; writes are serialized by the channel.
type Link interface {
    // Read reads once from the connection and emits every complete message.
    // It returns the number of bytes read.
    Read(emit func(any)) (int, error)
    SetReadDeadline(t time.Time) error
    // Write encodes v into the write buffer and returns the encoded size. It
    // consumes v.
    Write(v any) (int, error)
    Flush() error
    // Buffered is the number of bytes written but not flushed.
    Buffered() int
    // Close closes the connection. It may be called from any goroutine.
    Close() error
    // Release frees the decoder state and unflushed data after the read
    // goroutine has finished.
    Release()
    LocalAddr() net.Addr
    RemoteAddr() net.Addr
}

type streamLink struct {
    c    net.Conn
    dec  protocol.Decoder
    enc  protocol.Encoder
    bw   *bufio.Writer
    rbuf []byte
}

// NewStreamLink frames a byte stream with codec.
func NewStreamLink(c net.Conn, codec protocol.Codec) Link {
    return &streamLink{
        c:    c,
        dec:  codec.NewDecoder(),
        enc:  codec.Encoder(),
        bw:   bufio.NewWriter(c),
        rbuf: make([]byte, readChunk),
    }
}

func (l *streamLink) Read(emit func(any)) (int, error) {
    n, err := l.c.Read(l.rbuf)
    if n > 0 {
        if derr := l.dec.Decode(l.rbuf[:n], emit); derr != nil { return n, derr }
    }
    return n, err
}

func (l *streamLink) SetReadDeadline(t time.Time) error { return l.c.SetReadDeadline(t) }

func (l *streamLink) Write(v any) (int, error) {
    fb, err := l.enc.Encode(v)
    if err != nil { return 0, &EncodeError{Err: err} }
    defer fb.Release()
    return l.bw.Write(fb.Readable())
}

func (l *streamLink) Flush() error         { return l.bw.Flush() }
func (l *streamLink) Buffered() int        { return l.bw.Buffered() }
func (l *streamLink) Close() error         { return l.c.Close() }
func (l *streamLink) Release()             { l.dec.Release() }
func (l *streamLink) LocalAddr() net.Addr  { return l.c.LocalAddr() }
func (l *streamLink) RemoteAddr() net.Addr { return l.c.RemoteAddr() }

func release(v any) { buffer.Release(v) }
