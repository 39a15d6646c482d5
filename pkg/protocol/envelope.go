package protocol

import (
    "encoding/binary"
    "fmt"

    "gamenet/pkg/buffer"
    "gamenet/pkg/transform"
)

// DefaultMaxHeaderSize bounds the routing header of a proxy envelope.
const DefaultMaxHeaderSize = 1024

// HeaderCodec encodes the routing header of a proxy envelope.
type HeaderCodec interface {
    // HeaderSize is an allocation hint for AppendHeader.
    HeaderSize(h any) int
    AppendHeader(dst []byte, h any) ([]byte, error)
    // DecodeHeader receives exactly the header bytes; it must copy what it keeps.
    DecodeHeader(p []byte) (any, error)
}

// ProxyOptions configures the proxy envelope codec. The embedded Options
// describe the inner client frame.
type ProxyOptions struct {
    Options
    Header        HeaderCodec
    MaxHeaderSize int
}

type proxyCodec struct {
    o   ProxyOptions
    enc *proxyEncoder
}

// NewProxyCodec returns the codec for proxy envelopes. A nil Header uses
// the default routing header codec.
func NewProxyCodec(o ProxyOptions) (Codec, error) {
    inner, err := o.Options.normalize()
    if err != nil { return nil, fmt.Errorf("proxy codec: %w", err) }
    o.Options = inner
    if o.Header == nil {
        o.Header = DefaultHeaderCodec()
    }
    if o.MaxHeaderSize <= 0 {
        o.MaxHeaderSize = DefaultMaxHeaderSize
    }
    return &proxyCodec{o: o, enc: &proxyEncoder{o: o}}, nil
}

func (c *proxyCodec) NewDecoder() Decoder {
    return &proxyDecoder{o: &c.o, cum: cumulation{pool: c.o.Pool}}
}

func (c *proxyCodec) Encoder() Encoder { return c.enc }

type proxyDecoder struct {
    o   *ProxyOptions
    cum cumulation
}

func (d *proxyDecoder) Decode(in []byte, emit func(any)) error {
    return d.cum.run(in, d.check, d.frame, emit)
}

func (d *proxyDecoder) Release() { d.cum.Release() }

// fixed is the envelope overhead after the envelope length field: header
// length, inner length and head.
func (d *proxyDecoder) fixed() int { return 2*LengthFieldSize + d.o.HeadSize }

func (d *proxyDecoder) check(length int) error {
    if length < d.fixed() {
        return fmt.Errorf("%w: envelope length %d", ErrShortFrame, length)
    }
    if limit := d.fixed() + d.o.MaxHeaderSize + d.o.MaxBodySize; length > limit {
        return fmt.Errorf("%w: envelope %d > %d", ErrFrameTooLarge, length, limit)
    }
    return nil
}

func (d *proxyDecoder) frame(start, length int) (any, error) {
    p := d.cum.buf.Bytes()[start+LengthFieldSize : start+LengthFieldSize+length]
    hdrLen := int(binary.BigEndian.Uint32(p))
    if hdrLen > d.o.MaxHeaderSize || hdrLen > length-d.fixed() {
        return nil, fmt.Errorf("%w: header length %d in envelope of %d", ErrShortFrame, hdrLen, length)
    }
    hdr, err := d.o.Header.DecodeHeader(p[LengthFieldSize : LengthFieldSize+hdrLen])
    if err != nil { return nil, fmt.Errorf("decode proxy head: %w", err) }

    inner := LengthFieldSize + hdrLen
    innerLen := int(binary.BigEndian.Uint32(p[inner:]))
    if LengthFieldSize+innerLen != length-inner {
        return nil, fmt.Errorf("%w: inner length %d in envelope of %d", ErrShortFrame, innerLen, length)
    }
    if err := checkFrame(&d.o.Options, innerLen); err != nil { return nil, err }

    off := start + LengthFieldSize + inner
    var fb *buffer.Buffer
    if d.o.copyFrames() {
        fb = d.cum.buf.Copy(off, LengthFieldSize+innerLen)
    } else {
        fb = d.cum.buf.Slice(off, LengthFieldSize+innerLen)
    }
    m, err := decodeFrame(&d.o.Options, fb)
    if err != nil { return nil, err }
    return NewProxyMessage(hdr, m), nil
}

type proxyEncoder struct{ o ProxyOptions }

func (e *proxyEncoder) Encode(v any) (*buffer.Buffer, error) {
    switch m := v.(type) {
    case *ProxyMessage:
        return e.encode(m)
    case *buffer.Buffer:
        return m, nil
    }
    buffer.Release(v)
    return nil, &ErrUnsupportedMessage{Value: v}
}

// encode consumes p. An inner message that still carries its raw frame is
// spliced in behind the header without re-encoding the body.
func (e *proxyEncoder) encode(p *ProxyMessage) (*buffer.Buffer, error) {
    defer p.Release()
    m := p.Msg
    if m == nil {
        return nil, ErrEmptyEnvelope
    }
    raw := m.Raw()
    if raw == nil && e.o.Body == nil {
        return nil, ErrMissingBody
    }
    size := 2*LengthFieldSize + e.o.Header.HeaderSize(p.Header)
    if raw != nil {
        size += raw.ReadableBytes()
    } else {
        size += LengthFieldSize + e.o.HeadSize + bodySize(&e.o.Options, m.Head, m.Body)
    }
    fb := e.o.Pool.Get(size)
    fb.WriteUint32(0)
    fb.WriteUint32(0)
    if err := fb.AppendWith(func(dst []byte) ([]byte, error) { return e.o.Header.AppendHeader(dst, p.Header) }); err != nil {
        fb.Release()
        return nil, fmt.Errorf("encode proxy head: %w", err)
    }
    inner := fb.Len()
    fb.SetUint32(LengthFieldSize, uint32(inner-2*LengthFieldSize))
    if raw != nil {
        fb.Write(raw.Readable())
    } else if err := writeFrame(&e.o.Options, fb, m.Head, m.Body); err != nil {
        fb.Release()
        return nil, err
    }
    fb.SetReaderIndex(inner)
    err := transform.Run(e.o.EncodeTransformers, fb, m.Head, e.o.HeadSize)
    fb.SetReaderIndex(0)
    if err != nil {
        fb.Release()
        return nil, err
    }
    fb.SetUint32(0, uint32(fb.Len()-LengthFieldSize))
    return fb, nil
}
