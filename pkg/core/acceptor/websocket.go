package acceptor

import (
    "context"
    "crypto/tls"
    "errors"
    "net"
    "net/http"
    "time"

    "github.com/gorilla/websocket"
    "github.com/jpillora/requestlog"
    "go.uber.org/zap"
    "go.uber.org/zap/zapcore"

    "gamenet/pkg/core/channel"
    "gamenet/pkg/protocol"
    "gamenet/pkg/transport"
)

var upgrader = websocket.Upgrader{
    ReadBufferSize:  4096,
    WriteBufferSize: 4096,
    CheckOrigin:     func(*http.Request) bool { return true },
}

// WebSocketHandler upgrades requests and accepts them as channels framed
// with ws. Every WebSocket message carries one frame.
func (a *Acceptor) WebSocketHandler(ws *protocol.WSCodec) http.Handler {
    var h http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
        c, err := upgrader.Upgrade(w, r, nil)
        if err != nil {
            zap.L().Info("websocket upgrade failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
            return
        }
        a.accept(channel.NewWSLink(c, ws))
    })
    if zap.L().Core().Enabled(zapcore.DebugLevel) {
        h = requestlog.Wrap(h)
    }
    return h
}

// ServeWebSocket listens on addr and serves WebSocket clients on path. A
// non-nil tlsConf serves WSS.
func (a *Acceptor) ServeWebSocket(ctx context.Context, addr, path string, ws *protocol.WSCodec, tlsConf *tls.Config) (net.Addr, error) {
    var lc net.ListenConfig
    ln, err := lc.Listen(ctx, "tcp", addr)
    if err != nil { return nil, err }
    if tlsConf != nil {
        ln = tls.NewListener(ln, tlsConf)
    }
    mux := http.NewServeMux()
    mux.Handle(path, a.WebSocketHandler(ws))
    srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
    if !a.track(nil, srv) {
        _ = ln.Close()
        return nil, transport.ErrListenerClosed
    }
    go func() {
        if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
            zap.L().Warn("websocket server stopped", zap.String("addr", addr), zap.Error(err))
        }
    }()
    go func() {
        <-ctx.Done()
        _ = srv.Close()
    }()
    zap.L().Info("websocket acceptor listening", zap.String("addr", ln.Addr().String()), zap.String("path", path), zap.Bool("tls", tlsConf != nil))
    a.d.OnAcceptorStarted(ln.Addr())
    return ln.Addr(), nil
}
