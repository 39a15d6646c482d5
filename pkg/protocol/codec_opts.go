package protocol

import (
    "fmt"

    "gamenet/pkg/buffer"
    "gamenet/pkg/protocol/codec"
    "gamenet/pkg/transform"
)

// Options configures the client frame codec. The zero value of MaxBodySize
// means DefaultMaxBodySize and a nil Pool means buffer.Default.
type Options struct {
    HeadSize    int
    MaxBodySize int
    // KeepRaw keeps the decoded frame on the message so it can be forwarded
    // without re-encoding.
    KeepRaw bool
    // Body decodes and encodes bodies. It may be nil only with KeepRaw.
    Body               codec.BodyCodec
    EncodeTransformers []transform.Transformer
    DecodeTransformers []transform.Transformer
    Pool               *buffer.Pool
}

func (o Options) normalize() (Options, error) {
    if err := ValidHeadSize(o.HeadSize); err != nil { return o, err }
    if o.MaxBodySize <= 0 {
        o.MaxBodySize = DefaultMaxBodySize
    }
    // a frame under the limit must not expand past it
    o.DecodeTransformers = transform.Bound(o.DecodeTransformers, o.MaxBodySize)
    if o.Body == nil && !o.KeepRaw {
        return o, fmt.Errorf("client codec: %w", ErrMissingBody)
    }
    if o.Pool == nil {
        o.Pool = buffer.Default
    }
    return o, nil
}

// copyFrames reports whether decoded frames need their own buffer instead of
// a retained slice of the receive buffer.
func (o *Options) copyFrames() bool { return o.KeepRaw || len(o.DecodeTransformers) > 0 }

// Decoder turns a byte stream into messages. It keeps partial frames between
// calls and is owned by exactly one connection.
type Decoder interface {
    // Decode appends in to the pending bytes and calls emit once per complete
    // frame, in stream order. The receiver of an emitted value owns it.
    // After an error the decoder holds no bytes and the connection must be
    // closed.
    Decode(in []byte, emit func(any)) error
    // Release drops any pending bytes.
    Release()
}

// Encoder turns outbound values into encoded frames. Encoders are stateless
// and safe for concurrent use. Encode consumes v: a message is released, a
// *buffer.Buffer is passed through as already encoded.
type Encoder interface {
    Encode(v any) (*buffer.Buffer, error)
}

// Codec pairs the shared encoder with a decoder factory for one wire format.
type Codec interface {
    NewDecoder() Decoder
    Encoder() Encoder
}
