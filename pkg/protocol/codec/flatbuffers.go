package codec

import (
    "fmt"

    flatbuffers "github.com/google/flatbuffers/go"
)

type flatCodec struct{}

// FlatBuffers returns a codec for FlatBuffers tables. Marshal accepts a
// finished *flatbuffers.Builder or already-built bytes; Unmarshal fills any
// generated table type (flatbuffers.FlatBuffer) or a *[]byte. Decoded tables
// own a private copy of the data.
func FlatBuffers() Codec { return flatCodec{} }

func (flatCodec) ContentType() string { return ContentFlatBuffers }

func (flatCodec) Marshal(v any) ([]byte, error) {
    switch b := v.(type) {
    case *flatbuffers.Builder:
        return append([]byte(nil), b.FinishedBytes()...), nil
    case []byte:
        return b, nil
    default:
        return nil, fmt.Errorf("flatbuffers: cannot marshal %T", v)
    }
}

func (flatCodec) Unmarshal(data []byte, v any) error {
    buf := append([]byte(nil), data...)
    switch t := v.(type) {
    case flatbuffers.FlatBuffer:
        if len(buf) < flatbuffers.SizeUOffsetT {
            return fmt.Errorf("flatbuffers: short buffer (%d bytes)", len(buf))
        }
        flatbuffers.GetRootAs(buf, 0, t)
        return nil
    case *[]byte:
        *t = buf
        return nil
    default:
        return fmt.Errorf("flatbuffers: cannot unmarshal into %T", v)
    }
}
