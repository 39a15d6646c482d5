package transform

import (
    "bytes"
    "errors"
    "strings"
    "testing"

    "gamenet/pkg/buffer"
)

// frame builds [len:4][head:2][body].
func frame(head uint16, body []byte) *buffer.Buffer {
    b := buffer.Get(6 + len(body))
    b.WriteUint32(uint32(2 + len(body)))
    b.WriteUint16(head)
    _, _ = b.Write(body)
    return b
}

func TestRunFixesLengthAfterGrowth(t *testing.T) {
    grow := Func(func(_ uint64, body *buffer.Buffer) error {
        body.ReplaceReadable(append(append([]byte(nil), body.Readable()...), "+pad"...))
        return nil
    })
    f := frame(7, []byte("ping"))
    orig := f.Uint32(0)
    if err := Run([]Transformer{grow, grow}, f, 7, 2); err != nil { t.Fatalf("run: %v", err) }
    if got := f.Uint32(0); got != orig+8 { t.Fatalf("length: got %d want %d", got, orig+8) }
    if int(f.Uint32(0))+4 != f.ReadableBytes() { t.Fatalf("length does not match frame size") }
    if f.ReaderIndex() != 0 { t.Fatalf("reader index not restored") }
    if !bytes.HasSuffix(f.Bytes(), []byte("ping+pad+pad")) { t.Fatalf("body: %q", f.Bytes()[6:]) }
}

func TestRunRejectsCursorMove(t *testing.T) {
    bad := Func(func(_ uint64, body *buffer.Buffer) error { body.Skip(1); return nil })
    err := Run([]Transformer{bad}, frame(1, []byte("abc")), 1, 2)
    if !errors.Is(err, ErrCursorMoved) { t.Fatalf("want ErrCursorMoved, got %v", err) }
}

func TestRunHonoursFrameOffset(t *testing.T) {
    b := buffer.Get(32)
    _, _ = b.Write([]byte("junk"))
    _, _ = b.Write(frame(0, []byte("abc")).Bytes())
    b.SetReaderIndex(4)
    shrink := Func(func(_ uint64, body *buffer.Buffer) error { body.ReplaceReadable([]byte("a")); return nil })
    if err := Run([]Transformer{shrink}, b, 0, 2); err != nil { t.Fatalf("run: %v", err) }
    if b.Uint32(4) != 3 { t.Fatalf("length at offset: %d", b.Uint32(4)) }
    if b.ReaderIndex() != 4 { t.Fatalf("reader index: %d", b.ReaderIndex()) }
}

func TestGzipRoundTrip(t *testing.T) {
    body := []byte(strings.Repeat("compress me ", 64))
    f := frame(3, body)
    if err := Run([]Transformer{NewGzipCompressor(nil)}, f, 3, 2); err != nil { t.Fatalf("compress: %v", err) }
    if f.Len() >= 6+len(body) { t.Fatalf("not compressed: %d", f.Len()) }
    if int(f.Uint32(0)) != f.Len()-4 { t.Fatalf("length field not fixed") }
    if err := Run([]Transformer{NewGzipUncompressor(nil, 0)}, f, 3, 2); err != nil { t.Fatalf("uncompress: %v", err) }
    if !bytes.Equal(f.Bytes()[6:], body) { t.Fatalf("round trip mismatch") }
    if int(f.Uint32(0)) != 2+len(body) { t.Fatalf("length after uncompress: %d", f.Uint32(0)) }
}

func TestGzipUncompressLimit(t *testing.T) {
    body := bytes.Repeat([]byte("a"), 1<<20)
    f := frame(3, body)
    if err := Run([]Transformer{NewGzipCompressor(nil)}, f, 3, 2); err != nil { t.Fatalf("compress: %v", err) }
    compressed := append([]byte(nil), f.Bytes()...)

    bounded := Bound([]Transformer{NewGzipUncompressor(nil, 0)}, 10240)
    if err := Run(bounded, f, 3, 2); !errors.Is(err, ErrBodyTooLarge) { t.Fatalf("want ErrBodyTooLarge, got %v", err) }

    g := buffer.Wrap(compressed)
    if err := Run(Bound([]Transformer{NewGzipUncompressor(nil, 0)}, len(body)), g, 3, 2); err != nil {
        t.Fatalf("body at the limit rejected: %v", err)
    }
    if g.Len() != 6+len(body) { t.Fatalf("uncompressed frame %d", g.Len()) }

    u := NewGzipUncompressor(nil, 100)
    if got := u.WithLimit(5000).(*GzipUncompressor).Limit; got != 100 { t.Fatalf("tighter limit lost: %d", got) }
    if u.Limit != 100 { t.Fatalf("WithLimit modified the original") }
}

func TestGzipPolicySkips(t *testing.T) {
    onlyOdd := func(h uint64) bool { return h%2 == 1 }
    f := frame(2, []byte("keep"))
    if err := Run([]Transformer{NewGzipCompressor(onlyOdd)}, f, 2, 2); err != nil { t.Fatalf("run: %v", err) }
    if string(f.Bytes()[6:]) != "keep" { t.Fatalf("policy ignored") }
}

func TestRC4Symmetric(t *testing.T) {
    c, err := NewRC4("0123456789abcdef")
    if err != nil { t.Fatalf("rc4: %v", err) }
    f := frame(1, []byte("secret body"))
    if err := Run([]Transformer{c}, f, 1, 2); err != nil { t.Fatalf("encrypt: %v", err) }
    if string(f.Bytes()[6:]) == "secret body" { t.Fatalf("not encrypted") }
    if err := Run([]Transformer{c}, f, 1, 2); err != nil { t.Fatalf("decrypt: %v", err) }
    if string(f.Bytes()[6:]) != "secret body" { t.Fatalf("decrypt mismatch: %q", f.Bytes()[6:]) }
    if _, err := NewRC4("short"); err == nil { t.Fatalf("short key accepted") }
}

func TestChaCha20Symmetric(t *testing.T) {
    c, err := NewChaCha20(bytes.Repeat([]byte{1}, 32), bytes.Repeat([]byte{2}, 12))
    if err != nil { t.Fatalf("chacha20: %v", err) }
    f := frame(1, []byte("secret body"))
    _ = Run([]Transformer{c}, f, 1, 2)
    _ = Run([]Transformer{c}, f, 1, 2)
    if string(f.Bytes()[6:]) != "secret body" { t.Fatalf("round trip mismatch") }
}

func TestParse(t *testing.T) {
    ts, err := ParseAll([]string{"gzip", "rc4:0123456789abcdef", "chacha20:" + strings.Repeat("ab", 32) + ":" + strings.Repeat("cd", 12)})
    if err != nil { t.Fatalf("parse: %v", err) }
    if len(ts) != 3 { t.Fatalf("want 3, got %d", len(ts)) }
    if _, err := Parse("zstd"); err == nil { t.Fatalf("unknown kind accepted") }
}
