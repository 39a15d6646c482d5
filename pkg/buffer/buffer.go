// Package buffer provides reference-counted byte buffers used by the frame
// codecs. A Buffer is released exactly once per logical owner; the last
// release returns its memory to the Pool it came from.
package buffer

import (
    "encoding/binary"
    "fmt"
    "sync/atomic"
)

// RefCounted is implemented by values that own a Buffer and forward
// retain/release to it.
type RefCounted interface {
    RefCnt() int32
    Retain()
    Release() bool
}

// Buffer is a growable byte slice with a reader index and an atomic
// reference count. All bytes from the reader index to Len are readable.
type Buffer struct {
    b      []byte
    r      int
    refs   atomic.Int32
    pool   *Pool
    parent *Buffer
}

// New returns an unpooled buffer with the given capacity and a reference
// count of one.
func New(capacity int) *Buffer {
    buf := &Buffer{b: make([]byte, 0, capacity)}
    buf.refs.Store(1)
    return buf
}

// Wrap returns a buffer backed by p. The caller must not modify p afterwards.
func Wrap(p []byte) *Buffer {
    buf := &Buffer{b: p}
    buf.refs.Store(1)
    return buf
}

// Len returns the number of written bytes, readable or not.
func (b *Buffer) Len() int { return len(b.b) }

// Bytes returns every written byte regardless of the reader index.
func (b *Buffer) Bytes() []byte { return b.b }

// ReaderIndex returns the offset of the first readable byte.
func (b *Buffer) ReaderIndex() int { return b.r }

// SetReaderIndex moves the reader index.
func (b *Buffer) SetReaderIndex(i int) {
    if i < 0 || i > len(b.b) {
        panic(fmt.Sprintf("buffer: reader index %d out of range [0,%d]", i, len(b.b)))
    }
    b.r = i
}

// Skip advances the reader index by n bytes.
func (b *Buffer) Skip(n int) { b.SetReaderIndex(b.r + n) }

// Readable returns the bytes between the reader index and Len.
func (b *Buffer) Readable() []byte { return b.b[b.r:] }

// ReadableBytes returns Len minus the reader index.
func (b *Buffer) ReadableBytes() int { return len(b.b) - b.r }

// Write appends p. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
    b.b = append(b.b, p...)
    return len(p), nil
}

// WriteByte appends c.
func (b *Buffer) WriteByte(c byte) error {
    b.b = append(b.b, c)
    return nil
}

// WriteString appends s.
func (b *Buffer) WriteString(s string) (int, error) {
    b.b = append(b.b, s...)
    return len(s), nil
}

func (b *Buffer) WriteUint16(v uint16) { b.b = binary.BigEndian.AppendUint16(b.b, v) }
func (b *Buffer) WriteUint32(v uint32) { b.b = binary.BigEndian.AppendUint32(b.b, v) }
func (b *Buffer) WriteUint64(v uint64) { b.b = binary.BigEndian.AppendUint64(b.b, v) }

// Uint32 reads a big-endian u32 at absolute offset off without moving the
// reader index.
func (b *Buffer) Uint32(off int) uint32 { return binary.BigEndian.Uint32(b.b[off : off+4]) }

// SetUint32 overwrites a big-endian u32 at absolute offset off.
func (b *Buffer) SetUint32(off int, v uint32) { binary.BigEndian.PutUint32(b.b[off:off+4], v) }

// Grow ensures room for n more bytes without another allocation.
func (b *Buffer) Grow(n int) {
    if cap(b.b)-len(b.b) >= n {
        return
    }
    nb := make([]byte, len(b.b), 2*cap(b.b)+n)
    copy(nb, b.b)
    b.b = nb
}

// Extend appends n bytes and returns them for the caller to fill.
func (b *Buffer) Extend(n int) []byte {
    b.Grow(n)
    off := len(b.b)
    b.b = b.b[:off+n]
    return b.b[off:]
}

// AppendWith lets f append to the written bytes, for encoders that follow
// the append convention.
func (b *Buffer) AppendWith(f func(dst []byte) ([]byte, error)) error {
    nb, err := f(b.b)
    if err != nil { return err }
    b.b = nb
    return nil
}

// Truncate keeps the first n written bytes.
func (b *Buffer) Truncate(n int) {
    if n < b.r {
        b.r = n
    }
    b.b = b.b[:n]
}

// ReplaceReadable substitutes p for the readable region, keeping the reader
// index where it is.
func (b *Buffer) ReplaceReadable(p []byte) {
    b.b = append(b.b[:b.r], p...)
}

// RefCnt returns the current reference count.
func (b *Buffer) RefCnt() int32 { return b.refs.Load() }

// Retain increments the reference count.
func (b *Buffer) Retain() {
    if b.refs.Add(1) <= 1 {
        panic("buffer: retain of released buffer")
    }
}

// Release decrements the reference count and returns true when the buffer
// was freed by this call.
func (b *Buffer) Release() bool {
    n := b.refs.Add(-1)
    switch {
    case n > 0:
        return false
    case n < 0:
        panic("buffer: release of released buffer")
    }
    if b.parent != nil {
        b.parent.Release()
        b.parent = nil
    } else if b.pool != nil {
        b.pool.put(b.b)
    }
    b.b = nil
    b.r = 0
    return true
}

// Slice returns a retained view of n bytes starting at absolute offset off.
// The view shares memory with b and keeps b alive until the view is released.
// Appending to the view never overwrites bytes of b.
func (b *Buffer) Slice(off, n int) *Buffer {
    b.Retain()
    v := &Buffer{b: b.b[off : off+n : off+n], parent: b}
    v.refs.Store(1)
    return v
}

// Copy returns an independent buffer holding n bytes of b starting at off,
// taken from b's pool (or the default pool).
func (b *Buffer) Copy(off, n int) *Buffer {
    p := b.pool
    if p == nil {
        p = Default
    }
    out := p.Get(n)
    out.b = append(out.b, b.b[off:off+n]...)
    return out
}

// Release releases v if it implements RefCounted.
func Release(v any) bool {
    if rc, ok := v.(RefCounted); ok {
        return rc.Release()
    }
    return false
}
