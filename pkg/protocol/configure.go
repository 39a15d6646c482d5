package protocol

import (
    "fmt"

    "gamenet/pkg/config"
    "gamenet/pkg/protocol/codec"
    "gamenet/pkg/transform"
)

// OptionsFromConfig builds codec options from configuration. Body "none"
// leaves Body nil, which is only valid together with keep_raw (a gateway
// that forwards frames without looking at them).
func OptionsFromConfig(c config.CodecConfig, reg *codec.Registry, newValue codec.Factory) (Options, error) {
    o := Options{HeadSize: c.HeadSize, MaxBodySize: c.MaxBodySize, KeepRaw: c.KeepRaw}
    if c.Body != "none" {
        if reg == nil {
            reg = codec.NewRegistry()
        }
        body, err := codec.ByName(reg, c.Body, newValue)
        if err != nil { return o, err }
        o.Body = body
    }
    var err error
    if o.EncodeTransformers, err = transform.ParseAll(c.Encode); err != nil {
        return o, fmt.Errorf("encode transformers: %w", err)
    }
    if o.DecodeTransformers, err = transform.ParseAll(c.Decode); err != nil {
        return o, fmt.Errorf("decode transformers: %w", err)
    }
    return o, nil
}

// ProxyOptionsFromConfig is OptionsFromConfig for the envelope codec, using
// the default routing header.
func ProxyOptionsFromConfig(c config.ProxyCodecConfig, reg *codec.Registry, newValue codec.Factory) (ProxyOptions, error) {
    o, err := OptionsFromConfig(c.CodecConfig, reg, newValue)
    if err != nil { return ProxyOptions{}, err }
    return ProxyOptions{Options: o, Header: DefaultHeaderCodec(), MaxHeaderSize: c.MaxHeaderSize}, nil
}
