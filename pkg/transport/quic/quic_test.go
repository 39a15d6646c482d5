package quic

import (
    "context"
    "io"
    "testing"
    "time"
)

func TestStreamConnRoundTrip(t *testing.T) {
    tr, err := New(nil)
    if err != nil { t.Fatalf("new: %v", err) }
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    l, err := tr.Listen(ctx, "127.0.0.1:0")
    if err != nil { t.Fatalf("listen: %v", err) }
    defer l.Close()

    c, err := tr.Dial(ctx, l.Addr().String())
    if err != nil { t.Fatalf("dial: %v", err) }
    defer c.Close()

    s, err := l.Accept(ctx)
    if err != nil { t.Fatalf("accept: %v", err) }
    defer s.Close()

    // the accepting side may write first
    if _, err := s.Write([]byte("hi")); err != nil { t.Fatalf("write: %v", err) }
    got := make([]byte, 2)
    if _, err := io.ReadFull(c, got); err != nil || string(got) != "hi" {
        t.Fatalf("read %q %v", got, err)
    }
}
