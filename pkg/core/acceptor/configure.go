package acceptor

import (
    "context"
    "crypto/tls"
    "fmt"
    "net"

    "gamenet/pkg/config"
    "gamenet/pkg/protocol"
    "gamenet/pkg/transport"
    "gamenet/pkg/transports"
)

// ServeConfig starts every configured endpoint. Byte-stream kinds are framed
// with the acceptor codec; ws and wss frame WebSocket messages with wire,
// which should describe the same client frame. On error the endpoints
// already started keep running until Shutdown.
func (a *Acceptor) ServeConfig(ctx context.Context, endpoints []config.AcceptorConfig, o transports.Options, wire protocol.Options) ([]net.Addr, error) {
    var addrs []net.Addr
    for i, ec := range endpoints {
        var tlsConf *tls.Config
        if ec.CertFile != "" {
            c, err := transport.LoadServerTLS(ec.CertFile, ec.KeyFile)
            if err != nil { return addrs, fmt.Errorf("acceptor %d: %w", i, err) }
            tlsConf = c
        }
        var (
            addr net.Addr
            err  error
        )
        switch ec.Kind {
        case "ws", "wss":
            var ws *protocol.WSCodec
            ws, err = protocol.NewWSCodec(protocol.WSOptions{Options: wire, TextMode: ec.TextMode, LengthField: ec.LengthField})
            if err != nil { return addrs, fmt.Errorf("acceptor %d: %w", i, err) }
            addr, err = a.ServeWebSocket(ctx, ec.Listen, ec.Path, ws, tlsConf)
        default:
            eo := o
            eo.TLS = tlsConf
            var tr transport.Transport
            tr, err = transports.NewByKind(ec.Kind, eo)
            if err != nil { return addrs, fmt.Errorf("acceptor %d: %w", i, err) }
            addr, err = a.Serve(ctx, tr, ec.Listen)
        }
        if err != nil { return addrs, fmt.Errorf("acceptor %d (%s %s): %w", i, ec.Kind, ec.Listen, err) }
        addrs = append(addrs, addr)
    }
    return addrs, nil
}
