package codec

import (
    "fmt"
    "unicode/utf8"
)

// BodyCodec turns message bodies into bytes and back. head is the message
// head and may be used to pick the body type.
//
// DecodeBody receives exactly the body bytes of one frame. The slice is only
// valid during the call; implementations must copy what they keep.
type BodyCodec interface {
    AppendBody(dst []byte, head uint64, body any) ([]byte, error)
    DecodeBody(head uint64, body []byte) (any, error)
}

// Sizer is implemented by body codecs that know the encoded size without
// encoding. The frame encoder uses it to allocate exactly once.
type Sizer interface {
    BodySize(head uint64, body any) (int, error)
}

// String is a UTF-8 text body codec.
func String() BodyCodec { return stringBody{} }

type stringBody struct{}

func (stringBody) AppendBody(dst []byte, _ uint64, body any) ([]byte, error) {
    switch s := body.(type) {
    case string:
        return append(dst, s...), nil
    case []byte:
        return append(dst, s...), nil
    case nil:
        return dst, nil
    default:
        return nil, fmt.Errorf("string body: unsupported type %T", body)
    }
}

func (stringBody) DecodeBody(_ uint64, body []byte) (any, error) {
    if !utf8.Valid(body) {
        return nil, fmt.Errorf("string body: invalid utf-8")
    }
    return string(body), nil
}

func (stringBody) BodySize(_ uint64, body any) (int, error) {
    switch s := body.(type) {
    case string:
        return len(s), nil
    case []byte:
        return len(s), nil
    case nil:
        return 0, nil
    default:
        return 0, fmt.Errorf("string body: unsupported type %T", body)
    }
}

// Bytes passes bodies through as []byte.
func Bytes() BodyCodec { return bytesBody{} }

type bytesBody struct{}

func (bytesBody) AppendBody(dst []byte, _ uint64, body any) ([]byte, error) {
    switch b := body.(type) {
    case []byte:
        return append(dst, b...), nil
    case nil:
        return dst, nil
    default:
        return nil, fmt.Errorf("bytes body: unsupported type %T", body)
    }
}

func (bytesBody) DecodeBody(_ uint64, body []byte) (any, error) {
    return append([]byte(nil), body...), nil
}

func (bytesBody) BodySize(_ uint64, body any) (int, error) {
    b, _ := body.([]byte)
    return len(b), nil
}

// Factory returns a fresh pointer to decode the body of a message with the
// given head into, or nil to decode into a generic value.
type Factory func(head uint64) any

// Body adapts a marshaling Codec to a BodyCodec.
func Body(c Codec, newValue Factory) BodyCodec {
    return typedBody{c: c, newValue: newValue}
}

type typedBody struct {
    c        Codec
    newValue Factory
}

func (t typedBody) AppendBody(dst []byte, _ uint64, body any) ([]byte, error) {
    if a, ok := t.c.(appender); ok {
        return a.AppendMarshal(dst, body)
    }
    b, err := t.c.Marshal(body)
    if err != nil { return nil, err }
    return append(dst, b...), nil
}

func (t typedBody) DecodeBody(head uint64, body []byte) (any, error) {
    var v any
    if t.newValue != nil {
        v = t.newValue(head)
    }
    if v == nil {
        var generic any
        if err := t.c.Unmarshal(body, &generic); err != nil { return nil, err }
        return generic, nil
    }
    if err := t.c.Unmarshal(body, v); err != nil { return nil, err }
    return v, nil
}

// ByName resolves a body codec from configuration: string, bytes, or any
// codec name known to reg (json, cbor, proto, flatbuffers).
func ByName(reg *Registry, name string, newValue Factory) (BodyCodec, error) {
    switch name {
    case "", "string":
        return String(), nil
    case "bytes":
        return Bytes(), nil
    }
    c := reg.Named(name)
    if c == nil && name == "cbor" {
        cc, err := CBOR()
        if err != nil { return nil, err }
        reg.Register(cc)
        c = cc
    }
    if c == nil {
        return nil, fmt.Errorf("unknown body codec %q", name)
    }
    return Body(c, newValue), nil
}
