package transform

import (
    "bytes"
    "compress/gzip"
    "fmt"
    "io"
    "sync"

    "gamenet/pkg/buffer"
)

var writers = sync.Pool{New: func() any { return gzip.NewWriter(io.Discard) }}

// GzipCompressor compresses bodies whose head satisfies Policy.
type GzipCompressor struct {
    Policy Policy
}

// NewGzipCompressor returns a compressor; a nil policy compresses everything.
func NewGzipCompressor(p Policy) *GzipCompressor {
    if p == nil { p = Always }
    return &GzipCompressor{Policy: p}
}

func (c *GzipCompressor) Transform(head uint64, body *buffer.Buffer) error {
    if !c.Policy(head) {
        return nil
    }
    var out bytes.Buffer
    zw := writers.Get().(*gzip.Writer)
    defer writers.Put(zw)
    zw.Reset(&out)
    if _, err := zw.Write(body.Readable()); err != nil {
        return fmt.Errorf("compress body: %w", err)
    }
    if err := zw.Close(); err != nil {
        return fmt.Errorf("compress body: %w", err)
    }
    body.ReplaceReadable(out.Bytes())
    return nil
}

// GzipUncompressor reverses GzipCompressor for heads satisfying Policy.
// Bodies that expand beyond Limit bytes fail with ErrBodyTooLarge; zero
// means no limit.
type GzipUncompressor struct {
    Policy Policy
    Limit  int
}

// NewGzipUncompressor returns an uncompressor; a nil policy applies to everything.
func NewGzipUncompressor(p Policy, limit int) *GzipUncompressor {
    if p == nil { p = Always }
    return &GzipUncompressor{Policy: p, Limit: limit}
}

// WithLimit returns a copy bounded to limit bytes, keeping a tighter
// existing limit.
func (u *GzipUncompressor) WithLimit(limit int) Transformer {
    c := *u
    if c.Limit <= 0 || (limit > 0 && limit < c.Limit) {
        c.Limit = limit
    }
    return &c
}

func (u *GzipUncompressor) Transform(head uint64, body *buffer.Buffer) error {
    if !u.Policy(head) {
        return nil
    }
    zr, err := gzip.NewReader(bytes.NewReader(body.Readable()))
    if err != nil {
        return fmt.Errorf("uncompress body: %w", err)
    }
    var r io.Reader = zr
    if u.Limit > 0 {
        r = io.LimitReader(zr, int64(u.Limit)+1)
    }
    plain, err := io.ReadAll(r)
    if err != nil {
        return fmt.Errorf("uncompress body: %w", err)
    }
    if u.Limit > 0 && len(plain) > u.Limit {
        return fmt.Errorf("%w: uncompressed body exceeds %d bytes", ErrBodyTooLarge, u.Limit)
    }
    body.ReplaceReadable(plain)
    return nil
}
