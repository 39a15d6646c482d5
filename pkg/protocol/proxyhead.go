package protocol

import (
    "encoding/binary"
    "fmt"
)

// MaxFieldLen is the largest session id or ip the default header can carry.
const MaxFieldLen = 127

// ProxyHead is the default routing header: who sent the message and from
// where. Empty strings are sent as absent fields.
type ProxyHead struct {
    UserID    uint64
    SessionID string
    IP        string
}

func (h ProxyHead) String() string {
    return fmt.Sprintf("ProxyHead{session=%q ip=%q user=%d}", h.SessionID, h.IP, h.UserID)
}

type defaultHeaderCodec struct{}

// DefaultHeaderCodec encodes ProxyHead as
// [userId:8][sidLen:1][sid][ipLen:1][ip]. Decoded headers are *ProxyHead.
func DefaultHeaderCodec() HeaderCodec { return defaultHeaderCodec{} }

func headOf(v any) (ProxyHead, error) {
    switch h := v.(type) {
    case ProxyHead:
        return h, nil
    case *ProxyHead:
        if h == nil {
            return ProxyHead{}, nil
        }
        return *h, nil
    case nil:
        return ProxyHead{}, nil
    }
    return ProxyHead{}, fmt.Errorf("default proxy head: unsupported type %T", v)
}

func (defaultHeaderCodec) HeaderSize(v any) int {
    h, _ := headOf(v)
    return 8 + 1 + len(h.SessionID) + 1 + len(h.IP)
}

func (defaultHeaderCodec) AppendHeader(dst []byte, v any) ([]byte, error) {
    h, err := headOf(v)
    if err != nil { return nil, err }
    if len(h.SessionID) > MaxFieldLen {
        return nil, &ErrFieldTooLong{Field: "session id", Len: len(h.SessionID)}
    }
    if len(h.IP) > MaxFieldLen {
        return nil, &ErrFieldTooLong{Field: "ip", Len: len(h.IP)}
    }
    dst = binary.BigEndian.AppendUint64(dst, h.UserID)
    dst = append(dst, byte(len(h.SessionID)))
    dst = append(dst, h.SessionID...)
    dst = append(dst, byte(len(h.IP)))
    dst = append(dst, h.IP...)
    return dst, nil
}

func (defaultHeaderCodec) DecodeHeader(p []byte) (any, error) {
    if len(p) < 10 {
        return nil, fmt.Errorf("%w: proxy head of %d bytes", ErrShortFrame, len(p))
    }
    h := &ProxyHead{UserID: binary.BigEndian.Uint64(p)}
    p = p[8:]
    var err error
    if h.SessionID, p, err = readField(p, "session id"); err != nil { return nil, err }
    if h.IP, _, err = readField(p, "ip"); err != nil { return nil, err }
    return h, nil
}

func readField(p []byte, name string) (string, []byte, error) {
    if len(p) < 1 {
        return "", nil, fmt.Errorf("%w: missing %s length", ErrShortFrame, name)
    }
    n := int(p[0])
    if n > MaxFieldLen {
        return "", nil, &ErrFieldTooLong{Field: name, Len: n}
    }
    if len(p) < 1+n {
        return "", nil, fmt.Errorf("%w: %s needs %d bytes", ErrShortFrame, name, n)
    }
    return string(p[1 : 1+n]), p[1+n:], nil
}
