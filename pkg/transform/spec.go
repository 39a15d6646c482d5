package transform

import (
    "encoding/hex"
    "fmt"
    "strings"
)

// Parse builds a transformer from a config spec:
//
//  gzip                      compress every body
//  gunzip                    uncompress every body (bounded by the codec max body size)
//  rc4:<key>                 RC4 with a text key (>= 16 bytes)
//  chacha20:<keyhex>:<noncehex>
func Parse(spec string) (Transformer, error) {
    kind, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
    switch strings.ToLower(kind) {
    case "gzip":
        return NewGzipCompressor(nil), nil
    case "gunzip":
        return NewGzipUncompressor(nil, 0), nil
    case "rc4":
        return NewRC4(arg)
    case "chacha20":
        k, n, ok := strings.Cut(arg, ":")
        if !ok { return nil, fmt.Errorf("chacha20 spec needs key and nonce: %q", spec) }
        key, err := hex.DecodeString(k)
        if err != nil { return nil, fmt.Errorf("chacha20 key: %w", err) }
        nonce, err := hex.DecodeString(n)
        if err != nil { return nil, fmt.Errorf("chacha20 nonce: %w", err) }
        return NewChaCha20(key, nonce)
    default:
        return nil, fmt.Errorf("unknown transformer %q", kind)
    }
}

// ParseAll parses specs in order.
func ParseAll(specs []string) ([]Transformer, error) {
    out := make([]Transformer, 0, len(specs))
    for _, s := range specs {
        t, err := Parse(s)
        if err != nil { return nil, err }
        out = append(out, t)
    }
    return out, nil
}
