package codec

import (
    "reflect"

    cbor "github.com/fxamacker/cbor/v2"
)

var mapStringAny = reflect.TypeOf(map[string]any(nil))

type cborCodec struct{ enc cbor.EncMode; dec cbor.DecMode }

// CBOR returns a deterministic CBOR codec (RFC 8949 core deterministic
// encoding). Decoded maps use string keys so bodies round-trip through
// map[string]any like JSON does.
func CBOR() (Codec, error) {
    em, err := cbor.CoreDetEncOptions().EncMode()
    if err != nil { return nil, err }
    dm, err := cbor.DecOptions{DefaultMapType: mapStringAny}.DecMode()
    if err != nil { return nil, err }
    return cborCodec{enc: em, dec: dm}, nil
}

func (c cborCodec) ContentType() string { return ContentCBOR }
func (c cborCodec) Marshal(v any) ([]byte, error) { return c.enc.Marshal(v) }
func (c cborCodec) Unmarshal(data []byte, v any) error { return c.dec.Unmarshal(data, v) }
