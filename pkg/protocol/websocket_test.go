package protocol

import (
    "bytes"
    "errors"
    "testing"

    "gamenet/pkg/protocol/codec"
)

func newWS(t *testing.T, o WSOptions) *WSCodec {
    t.Helper()
    o.Body = codec.String()
    o.HeadSize = 2
    c, err := NewWSCodec(o)
    if err != nil { t.Fatalf("new ws codec: %v", err) }
    return c
}

func wsPayload(t *testing.T, c *WSCodec, v any) []byte {
    t.Helper()
    fb, skip, err := c.Encode(v)
    if err != nil { t.Fatalf("encode: %v", err) }
    defer fb.Release()
    return append([]byte(nil), fb.Readable()[skip:]...)
}

func TestWSBinaryWithoutLengthField(t *testing.T) {
    c := newWS(t, WSOptions{})
    p := wsPayload(t, c, NewMessage(0x0102, "hey"))
    if !bytes.Equal(p, []byte{1, 2, 'h', 'e', 'y'}) { t.Fatalf("payload % x", p) }
    m, err := c.Decode(false, p)
    if err != nil { t.Fatalf("decode: %v", err) }
    if m.Head != 0x0102 || m.Body != "hey" { t.Fatalf("decoded %+v", m) }
}

func TestWSBinaryWithLengthField(t *testing.T) {
    c := newWS(t, WSOptions{LengthField: true, Options: Options{KeepRaw: true}})
    p := wsPayload(t, c, NewMessage(7, "hey"))
    if !bytes.Equal(p, []byte{0, 0, 0, 5, 0, 7, 'h', 'e', 'y'}) { t.Fatalf("payload % x", p) }
    m, err := c.Decode(false, p)
    if err != nil { t.Fatalf("decode: %v", err) }
    if m.Head != 7 || !bytes.Equal(m.Raw().Readable(), p) { t.Fatalf("decoded %+v", m) }

    bad := append([]byte(nil), p...)
    bad[3] = 9
    if _, err := c.Decode(false, bad); !errors.Is(err, ErrLengthMismatch) {
        t.Fatalf("want ErrLengthMismatch, got %v", err)
    }
}

func TestWSTextMode(t *testing.T) {
    c := newWS(t, WSOptions{TextMode: true, Options: Options{KeepRaw: true}})
    if p := wsPayload(t, c, NewMessage(99, "plain")); string(p) != "plain" { t.Fatalf("payload %q", p) }
    m, err := c.Decode(true, []byte("text in"))
    if err != nil { t.Fatalf("decode: %v", err) }
    if m.Head != 0 || m.Body != "text in" { t.Fatalf("decoded %+v", m) }
    if want := []byte{0, 0, 0, 9, 0, 0}; !bytes.HasPrefix(m.Raw().Readable(), want) {
        t.Fatalf("raw is not a client frame: % x", m.Raw().Readable())
    }
}

func TestWSOversize(t *testing.T) {
    c := newWS(t, WSOptions{Options: Options{MaxBodySize: 2}})
    if _, err := c.Decode(false, []byte{0, 1, 'a', 'b', 'c'}); !errors.Is(err, ErrFrameTooLarge) {
        t.Fatalf("want ErrFrameTooLarge, got %v", err)
    }
    if _, err := c.Decode(false, []byte{0}); !errors.Is(err, ErrShortFrame) {
        t.Fatalf("want ErrShortFrame, got %v", err)
    }
}
