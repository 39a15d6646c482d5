// Package transports resolves a transport.Transport from a configured kind.
// Platform-specific kinds are selected at build time.
package transports

import (
    "crypto/tls"
    "strings"
    "time"

    "gamenet/pkg/config"
    "gamenet/pkg/transport"
    "gamenet/pkg/transport/mem"
    tquic "gamenet/pkg/transport/quic"
    ttcp "gamenet/pkg/transport/tcp"
)

// ErrUnknownKind is returned for unsupported transport kinds.
type ErrUnknownKind string

func (e ErrUnknownKind) Error() string { return "unknown transport kind: " + string(e) }

// ErrTLSRequired is returned when a TLS kind is built without a config.
type ErrTLSRequired string

func (e ErrTLSRequired) Error() string { return "transport kind " + string(e) + " requires a TLS config" }

// Options carries what the individual transports need.
type Options struct {
    TCP ttcp.Options
    // TLS is mandatory for "tls"; "quic" falls back to a self-signed certificate.
    TLS *tls.Config
}

// OptionsFromChannel maps channel socket options onto transport options.
func OptionsFromChannel(c config.ChannelConfig) Options {
    ka := time.Duration(c.KeepAliveSec) * time.Second
    if c.KeepAliveSec == 0 {
        ka = -1
    }
    return Options{TCP: ttcp.Options{
        NoDelay:     c.NoDelay,
        KeepAlive:   ka,
        ReadBuffer:  c.ReadBuffer,
        WriteBuffer: c.WriteBuffer,
    }}
}

// NewByKind constructs a Transport by string kind. WebSocket kinds are not
// byte-stream transports and are handled by the acceptor package.
func NewByKind(kind string, o Options) (transport.Transport, error) {
    switch strings.ToLower(kind) {
    case "tcp", "":
        tcpOpts := o.TCP
        tcpOpts.TLS = nil
        return ttcp.New(tcpOpts), nil
    case "tls":
        if o.TLS == nil { return nil, ErrTLSRequired(kind) }
        tcpOpts := o.TCP
        tcpOpts.TLS = o.TLS
        return ttcp.New(tcpOpts), nil
    case "quic":
        return tquic.New(o.TLS)
    case "mem", "inproc":
        return mem.Shared(), nil
    case "winpipe", "pipe":
        return newWinPipeTransport()
    default:
        return nil, ErrUnknownKind(kind)
    }
}
