package protocol

import (
    "bytes"
    "errors"
    "strings"
    "testing"

    "gamenet/pkg/buffer"
    "gamenet/pkg/config"
    "gamenet/pkg/protocol/codec"
    "gamenet/pkg/transform"
)

func newCodec(t *testing.T, o Options) Codec {
    t.Helper()
    if o.Body == nil && !o.KeepRaw {
        o.Body = codec.String()
    }
    c, err := NewClientCodec(o)
    if err != nil { t.Fatalf("new codec: %v", err) }
    return c
}

func encode(t *testing.T, c Codec, v any) []byte {
    t.Helper()
    fb, err := c.Encoder().Encode(v)
    if err != nil { t.Fatalf("encode: %v", err) }
    out := append([]byte(nil), fb.Readable()...)
    fb.Release()
    return out
}

func decodeAll(t *testing.T, d Decoder, chunks ...[]byte) []*Message {
    t.Helper()
    var out []*Message
    for _, c := range chunks {
        if err := d.Decode(c, func(v any) { out = append(out, v.(*Message)) }); err != nil {
            t.Fatalf("decode: %v", err)
        }
    }
    return out
}

func TestPingFrame(t *testing.T) {
    c := newCodec(t, Options{})
    got := encode(t, c, NewMessage(0, "ping"))
    want := []byte{0x00, 0x00, 0x00, 0x04, 0x70, 0x69, 0x6E, 0x67}
    if !bytes.Equal(got, want) { t.Fatalf("encode: % x", got) }

    msgs := decodeAll(t, c.NewDecoder(), want)
    if len(msgs) != 1 { t.Fatalf("decoded %d messages", len(msgs)) }
    if msgs[0].Head != 0 || msgs[0].Body.(string) != "ping" {
        t.Fatalf("decoded %+v", msgs[0])
    }
    if msgs[0].Raw() != nil { t.Fatalf("raw kept without KeepRaw") }
}

func TestRoundTripHeadSizes(t *testing.T) {
    for _, hs := range []int{0, 1, 2, 4, 8} {
        c := newCodec(t, Options{HeadSize: hs})
        head := uint64(0xA5)
        if hs == 0 { head = 0 }
        if hs == 8 { head = 0x0102030405060708 }
        frame := encode(t, c, NewMessage(head, "hello"))
        if len(frame) != 4+hs+5 { t.Fatalf("head %d: frame size %d", hs, len(frame)) }
        msgs := decodeAll(t, c.NewDecoder(), frame)
        if len(msgs) != 1 || msgs[0].Head != head || msgs[0].Body != "hello" {
            t.Fatalf("head %d: decoded %+v", hs, msgs)
        }
    }
}

func TestInvalidHeadSize(t *testing.T) {
    _, err := NewClientCodec(Options{HeadSize: 3, Body: codec.String()})
    var hs ErrHeadSize
    if !errors.As(err, &hs) || int(hs) != 3 { t.Fatalf("want ErrHeadSize, got %v", err) }
}

func TestMissingBodyCodec(t *testing.T) {
    if _, err := NewClientCodec(Options{}); !errors.Is(err, ErrMissingBody) {
        t.Fatalf("want ErrMissingBody, got %v", err)
    }
}

func TestSplitFramesDecodeIdentically(t *testing.T) {
    c := newCodec(t, Options{HeadSize: 2})
    var stream []byte
    for i, s := range []string{"alpha", "", "gamma-gamma"} {
        stream = append(stream, encode(t, c, NewMessage(uint64(i+1), s))...)
    }
    whole := decodeAll(t, c.NewDecoder(), stream)
    if len(whole) != 3 { t.Fatalf("whole: %d messages", len(whole)) }

    for i := 0; i <= len(stream); i++ {
        for j := i; j <= len(stream); j++ {
            got := decodeAll(t, c.NewDecoder(), stream[:i], stream[i:j], stream[j:])
            if len(got) != len(whole) { t.Fatalf("split %d/%d: %d messages", i, j, len(got)) }
            for k := range got {
                if got[k].Head != whole[k].Head || got[k].Body != whole[k].Body {
                    t.Fatalf("split %d/%d: message %d = %+v", i, j, k, got[k])
                }
            }
        }
    }
}

func TestPartialFrameIsHeld(t *testing.T) {
    c := newCodec(t, Options{})
    frame := encode(t, c, NewMessage(0, "partial"))
    d := c.NewDecoder()
    if got := decodeAll(t, d, frame[:6]); len(got) != 0 { t.Fatalf("emitted partial frame") }
    if p := d.(*clientDecoder).cum.Pending(); p != 6 { t.Fatalf("pending %d", p) }
    if got := decodeAll(t, d, frame[6:]); len(got) != 1 { t.Fatalf("got %d", len(got)) }
    if p := d.(*clientDecoder).cum.Pending(); p != 0 { t.Fatalf("pending after frame %d", p) }
}

func TestOversizeFrameDiscardsBuffer(t *testing.T) {
    c := newCodec(t, Options{HeadSize: 2, MaxBodySize: 8})
    ok := encode(t, c, NewMessage(1, "ok"))
    big := encode(t, c, NewMessage(2, "this body is too large"))
    stream := append(append(append([]byte(nil), ok...), big...), ok...)

    d := c.NewDecoder()
    var got []any
    err := d.Decode(stream, func(v any) { got = append(got, v) })
    if !errors.Is(err, ErrFrameTooLarge) { t.Fatalf("want ErrFrameTooLarge, got %v", err) }
    if len(got) != 1 { t.Fatalf("emitted %d messages, want only the frame before the oversize one", len(got)) }
    if p := d.(*clientDecoder).cum.Pending(); p != 0 { t.Fatalf("pending %d after violation", p) }
}

func TestOversizeFirstFrameEmitsNothing(t *testing.T) {
    c := newCodec(t, Options{MaxBodySize: 4})
    stream := append(encode(t, c, NewMessage(0, "12345")), encode(t, c, NewMessage(0, "ok"))...)
    var got []any
    err := c.NewDecoder().Decode(stream, func(v any) { got = append(got, v) })
    if !errors.Is(err, ErrFrameTooLarge) || len(got) != 0 { t.Fatalf("err=%v emitted=%d", err, len(got)) }
}

func TestOversizeDetectedFromLengthAlone(t *testing.T) {
    c := newCodec(t, Options{MaxBodySize: 16})
    err := c.NewDecoder().Decode([]byte{0, 0, 1, 0}, func(any) { t.Fatalf("emitted") })
    if !errors.Is(err, ErrFrameTooLarge) { t.Fatalf("want ErrFrameTooLarge, got %v", err) }
}

func TestLengthBelowHeadSize(t *testing.T) {
    c := newCodec(t, Options{HeadSize: 4})
    err := c.NewDecoder().Decode([]byte{0, 0, 0, 2, 1, 2}, func(any) {})
    if !errors.Is(err, ErrShortFrame) { t.Fatalf("want ErrShortFrame, got %v", err) }
}

func TestKeepRawReusesFrame(t *testing.T) {
    c := newCodec(t, Options{HeadSize: 1, KeepRaw: true, Body: codec.String()})
    frame := encode(t, c, NewMessage(7, "forward me"))
    msgs := decodeAll(t, c.NewDecoder(), frame)
    m := msgs[0]
    raw := m.Raw()
    if raw == nil || !bytes.Equal(raw.Readable(), frame) { t.Fatalf("raw frame not kept") }
    if m.Body != "forward me" { t.Fatalf("body %v", m.Body) }

    out, err := c.Encoder().Encode(m)
    if err != nil { t.Fatalf("encode: %v", err) }
    if out != raw { t.Fatalf("raw frame was re-encoded") }
    if out.RefCnt() != 1 { t.Fatalf("refcnt %d after hand-over", out.RefCnt()) }
    if !out.Release() { t.Fatalf("last release did not free") }
}

func TestRawOnlyDecode(t *testing.T) {
    c := newCodec(t, Options{KeepRaw: true})
    frame := []byte{0, 0, 0, 2, 'h', 'i'}
    m := decodeAll(t, c.NewDecoder(), frame)[0]
    if m.Body != nil || !bytes.Equal(m.Raw().Readable(), frame) { t.Fatalf("decoded %+v", m) }
    m.Release()
}

func TestTransformersRoundTrip(t *testing.T) {
    rc4, err := transform.NewRC4("0123456789abcdef")
    if err != nil { t.Fatalf("rc4: %v", err) }
    c := newCodec(t, Options{
        HeadSize:           2,
        Body:               codec.String(),
        EncodeTransformers: []transform.Transformer{transform.NewGzipCompressor(transform.Always), rc4},
        DecodeTransformers: []transform.Transformer{rc4, transform.NewGzipUncompressor(transform.Always, 0)},
    })
    body := strings.Repeat("compressible ", 100)
    frame := encode(t, c, NewMessage(3, body))
    if len(frame) >= len(body) { t.Fatalf("frame not compressed: %d", len(frame)) }
    if n := int(frame[0])<<24 | int(frame[1])<<16 | int(frame[2])<<8 | int(frame[3]); n != len(frame)-4 {
        t.Fatalf("length field %d, frame %d", n, len(frame))
    }
    msgs := decodeAll(t, c.NewDecoder(), frame[:5], frame[5:])
    if len(msgs) != 1 || msgs[0].Head != 3 || msgs[0].Body != body { t.Fatalf("round trip failed") }
}

func TestExpandedBodyOverLimitIsOversize(t *testing.T) {
    enc := newCodec(t, Options{HeadSize: 2, Body: codec.String(), MaxBodySize: 2 << 20,
        EncodeTransformers: []transform.Transformer{transform.NewGzipCompressor(nil)}})
    frame := encode(t, enc, NewMessage(1, strings.Repeat("a", 1<<20)))
    if len(frame) > DefaultMaxBodySize { t.Fatalf("compressed frame %d not under the limit", len(frame)) }

    o, err := OptionsFromConfig(config.CodecConfig{HeadSize: 2, Body: "string", Decode: []string{"gunzip"}}, nil, nil)
    if err != nil { t.Fatalf("options: %v", err) }
    dec := newCodec(t, o).NewDecoder()
    defer dec.Release()
    err = dec.Decode(frame, func(any) { t.Fatalf("expanded frame emitted") })
    if !errors.Is(err, ErrFrameTooLarge) { t.Fatalf("want ErrFrameTooLarge, got %v", err) }
}

func TestEncodeTransformersLeaveSharedRawIntact(t *testing.T) {
    rc4, _ := transform.NewRC4("0123456789abcdef")
    c := newCodec(t, Options{Body: codec.String(), EncodeTransformers: []transform.Transformer{rc4}})
    raw := buffer.Wrap([]byte{0, 0, 0, 3, 'a', 'b', 'c'})
    raw.Retain()
    out, err := c.Encoder().Encode(NewRawMessage(0, raw, nil))
    if err != nil { t.Fatalf("encode: %v", err) }
    if out == raw || bytes.Equal(out.Readable(), raw.Readable()) { t.Fatalf("raw frame not copied before transform") }
    if string(raw.Readable()[4:]) != "abc" { t.Fatalf("shared raw frame modified") }
    if raw.RefCnt() != 1 { t.Fatalf("raw refcnt %d", raw.RefCnt()) }
    out.Release()
}

func TestRawBufferPassThrough(t *testing.T) {
    c := newCodec(t, Options{})
    b := buffer.Wrap([]byte{0, 0, 0, 0})
    out, err := c.Encoder().Encode(b)
    if err != nil || out != b { t.Fatalf("raw buffer not passed through: %v", err) }
}

func TestUnsupportedMessage(t *testing.T) {
    c := newCodec(t, Options{})
    _, err := c.Encoder().Encode(42)
    var um *ErrUnsupportedMessage
    if !errors.As(err, &um) { t.Fatalf("want ErrUnsupportedMessage, got %v", err) }
}

func TestBodyDecodeError(t *testing.T) {
    c := newCodec(t, Options{})
    err := c.NewDecoder().Decode([]byte{0, 0, 0, 2, 0xff, 0xfe}, func(any) { t.Fatalf("emitted") })
    if err == nil { t.Fatalf("invalid utf-8 body accepted") }
}

func TestOptionsFromConfig(t *testing.T) {
    o, err := OptionsFromConfig(config.CodecConfig{HeadSize: 4, Body: "json", Encode: []string{"gzip"}, Decode: []string{"gunzip"}}, nil, nil)
    if err != nil { t.Fatalf("options: %v", err) }
    c, err := NewClientCodec(o)
    if err != nil { t.Fatalf("codec: %v", err) }
    fb, err := c.Encoder().Encode(NewMessage(3, map[string]any{"k": "v"}))
    if err != nil { t.Fatalf("encode: %v", err) }
    var got []*Message
    d := c.NewDecoder()
    defer d.Release()
    if err := d.Decode(fb.Readable(), func(v any) { got = append(got, v.(*Message)) }); err != nil { t.Fatalf("decode: %v", err) }
    fb.Release()
    if len(got) != 1 || got[0].Body.(map[string]any)["k"] != "v" { t.Fatalf("decoded %+v", got) }

    if _, err := OptionsFromConfig(config.CodecConfig{Body: "xml"}, nil, nil); err == nil { t.Fatalf("unknown body accepted") }
    if _, err := OptionsFromConfig(config.CodecConfig{Encode: []string{"zstd"}}, nil, nil); err == nil { t.Fatalf("unknown transformer accepted") }
}
