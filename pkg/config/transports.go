package config

// AcceptorConfig describes one listening endpoint for clients or proxies.
// Example YAML:
// acceptors:
//   - kind: tcp
//     listen: ":7001"
//   - kind: ws
//     listen: ":7002"
//     path: /ws
//     text_mode: false
//     length_field: false
//   - kind: tls
//     listen: ":7443"
//     cert_file: certs/server.crt
//     key_file: certs/server.key
//   - kind: winpipe
//     listen: "\\\\.\\pipe\\gamenet"
type AcceptorConfig struct {
    // Kind: tcp, tls, ws, wss, quic, mem, winpipe
    Kind        string `mapstructure:"kind"`
    Listen      string `mapstructure:"listen"`
    Path        string `mapstructure:"path"`
    TextMode    bool   `mapstructure:"text_mode"`
    LengthField bool   `mapstructure:"length_field"`
    CertFile    string `mapstructure:"cert_file"`
    KeyFile     string `mapstructure:"key_file"`
}

// CodecConfig describes the client frame format.
type CodecConfig struct {
    HeadSize    int  `mapstructure:"head_size"`
    MaxBodySize int  `mapstructure:"max_body_size"`
    KeepRaw     bool `mapstructure:"keep_raw"`
    // Body names the body codec: string, bytes, json, cbor, proto, flatbuffers.
    Body string `mapstructure:"body"`
    // Encode and Decode list transformers in order, e.g. ["gzip", "rc4:<key>"].
    Encode []string `mapstructure:"encode"`
    Decode []string `mapstructure:"decode"`
}

// ProxyCodecConfig describes the envelope format of the gateway to logic link.
type ProxyCodecConfig struct {
    CodecConfig   `mapstructure:",squash"`
    MaxHeaderSize int `mapstructure:"max_header_size"`
}
