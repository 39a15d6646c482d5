// Package transform holds body transformers (compression, encryption) and the
// runner that applies them to encoded frames while keeping the frame length
// field consistent.
package transform

import (
    "errors"
    "fmt"

    "gamenet/pkg/buffer"
)

// Transformer rewrites the body region of one encoded frame.
//
// On entry the reader index of body points at the first body byte and the
// readable region is exactly the body. A transformer may replace the readable
// region (ReplaceReadable) or modify it in place, but must not move the
// reader index.
type Transformer interface {
    Transform(head uint64, body *buffer.Buffer) error
}

// Func adapts a function to Transformer.
type Func func(head uint64, body *buffer.Buffer) error

func (f Func) Transform(head uint64, body *buffer.Buffer) error { return f(head, body) }

// Policy decides per message head whether a transformer applies.
type Policy func(head uint64) bool

// Always applies a transformer to every message.
func Always(uint64) bool { return true }

// ErrBodyTooLarge reports a body that grew past the limit of a bounded
// transformer.
var ErrBodyTooLarge = errors.New("transformed body too large")

// Bounded is implemented by transformers whose output size can be capped.
type Bounded interface {
    WithLimit(limit int) Transformer
}

// Bound returns ts with every Bounded transformer capped at limit bytes.
// ts itself is not modified.
func Bound(ts []Transformer, limit int) []Transformer {
    if len(ts) == 0 || limit <= 0 {
        return ts
    }
    out := make([]Transformer, len(ts))
    for i, t := range ts {
        if b, ok := t.(Bounded); ok {
            t = b.WithLimit(limit)
        }
        out[i] = t
    }
    return out
}

// ErrCursorMoved reports a transformer that moved the body reader index.
// It indicates a defective transformer and is never retried.
var ErrCursorMoved = errors.New("transformer moved body reader index")

// Run applies ts in order to the frame starting at the reader index of frame.
// The frame layout is [length:4][head:headSize][body]. Whenever a transformer
// changes the body length the length field is rewritten before the next
// transformer runs. The reader index is restored before Run returns.
func Run(ts []Transformer, frame *buffer.Buffer, head uint64, headSize int) error {
    if len(ts) == 0 {
        return nil
    }
    msgIndex := frame.ReaderIndex()
    bodyIndex := msgIndex + 4 + headSize
    frame.SetReaderIndex(bodyIndex)
    defer frame.SetReaderIndex(msgIndex)

    for _, t := range ts {
        before := frame.ReadableBytes()
        if err := t.Transform(head, frame); err != nil {
            return err
        }
        if frame.ReaderIndex() != bodyIndex {
            return fmt.Errorf("%T: %w", t, ErrCursorMoved)
        }
        if n := frame.ReadableBytes(); n != before {
            frame.SetUint32(msgIndex, uint32(n+headSize))
        }
    }
    return nil
}
