package protocol

import (
    "encoding/binary"
    "fmt"

    "gamenet/pkg/buffer"
)

// WSOptions configures client frames carried in WebSocket messages.
//
// Binary messages carry [head][body], or the complete client frame when
// LengthField is set. Text messages carry only the body and decode with
// head 0. With TextMode the encoder sends text messages.
type WSOptions struct {
    Options
    TextMode    bool
    LengthField bool
}

// WSCodec maps WebSocket message payloads to client messages. It is
// stateless; each WebSocket message holds exactly one frame.
type WSCodec struct{ o WSOptions }

func NewWSCodec(o WSOptions) (*WSCodec, error) {
    inner, err := o.Options.normalize()
    if err != nil { return nil, fmt.Errorf("websocket codec: %w", err) }
    o.Options = inner
    return &WSCodec{o: o}, nil
}

func (c *WSCodec) TextMode() bool { return c.o.TextMode }

// MaxMessageSize is the largest WebSocket payload a valid frame can occupy.
func (c *WSCodec) MaxMessageSize() int { return LengthFieldSize + c.o.HeadSize + c.o.MaxBodySize }

// Decode decodes one WebSocket message payload. p must not be reused by the
// caller afterwards when LengthField is set, it may back the raw frame.
func (c *WSCodec) Decode(text bool, p []byte) (*Message, error) {
    o := &c.o.Options
    var fb *buffer.Buffer
    switch {
    case text:
        if len(p) > o.MaxBodySize {
            return nil, fmt.Errorf("%w: %d > %d", ErrFrameTooLarge, len(p), o.MaxBodySize)
        }
        fb = o.Pool.Get(LengthFieldSize + o.HeadSize + len(p))
        fb.WriteUint32(uint32(o.HeadSize + len(p)))
        PutHead(fb, o.HeadSize, 0)
        fb.Write(p)
    case c.o.LengthField:
        if len(p) < LengthFieldSize {
            return nil, fmt.Errorf("%w: %d byte message", ErrShortFrame, len(p))
        }
        if n := int(binary.BigEndian.Uint32(p)); n != len(p)-LengthFieldSize {
            return nil, fmt.Errorf("%w: length %d, payload %d", ErrLengthMismatch, n, len(p)-LengthFieldSize)
        }
        if err := checkFrame(o, len(p)-LengthFieldSize); err != nil { return nil, err }
        fb = buffer.Wrap(p)
    default:
        if err := checkFrame(o, len(p)); err != nil { return nil, err }
        fb = o.Pool.Get(LengthFieldSize + len(p))
        fb.WriteUint32(uint32(len(p)))
        fb.Write(p)
    }
    return decodeFrame(o, fb)
}

// Encode consumes v, a *Message or an encoded client frame, and returns the
// frame plus the offset at which the WebSocket payload starts. The caller
// sends fb.Readable()[skip:] and releases fb.
func (c *WSCodec) Encode(v any) (fb *buffer.Buffer, skip int, err error) {
    switch m := v.(type) {
    case *Message:
        fb, err = encodeMessage(&c.o.Options, m)
        if err != nil { return nil, 0, err }
    case *buffer.Buffer:
        fb = m
    default:
        buffer.Release(v)
        return nil, 0, &ErrUnsupportedMessage{Value: v}
    }
    switch {
    case c.o.TextMode:
        skip = LengthFieldSize + c.o.HeadSize
    case !c.o.LengthField:
        skip = LengthFieldSize
    }
    if fb.ReadableBytes() < skip {
        fb.Release()
        return nil, 0, fmt.Errorf("%w: %d byte frame", ErrShortFrame, fb.ReadableBytes())
    }
    return fb, skip, nil
}
