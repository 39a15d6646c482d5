package main

import (
    "context"
    "errors"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "go.uber.org/zap"

    "gamenet/pkg/config"
    "gamenet/pkg/core/acceptor"
    "gamenet/pkg/core/channel"
    "gamenet/pkg/core/connector"
    "gamenet/pkg/discovery"
    "gamenet/pkg/observability"
    "gamenet/pkg/protocol"
    "gamenet/pkg/router"
    "gamenet/pkg/transports"
)

// run is the main entry point after CLI parsing.
func run(opts Options) int {
    cfg, err := config.Load(opts.ConfigPath)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
        return 1
    }

    logger, err := observability.SetupLogger(cfg.AppName, cfg.Log)
    if err != nil {
        _, _ = os.Stderr.WriteString("failed to setup logger: " + err.Error() + "\n")
        return 1
    }
    defer func() { _ = logger.Sync() }()

    zap.L().Info("gamenet-gate started", zap.String("app", cfg.AppName))
    zap.L().Info("effective configuration", zap.Any("config", cfg))

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    metrics := observability.NewMetrics()
    serveMetrics(ctx, cfg.Metrics, metrics)

    // Clients speak the client codec; the gateway only needs raw frames.
    wire, err := protocol.OptionsFromConfig(cfg.Codec, nil, nil)
    if err != nil {
        zap.L().Error("client codec", zap.Error(err))
        return 1
    }
    wire.KeepRaw = true
    clientCodec, err := protocol.NewClientCodec(wire)
    if err != nil {
        zap.L().Error("client codec", zap.Error(err))
        return 1
    }
    po, err := protocol.ProxyOptionsFromConfig(cfg.ProxyCodec, nil, nil)
    if err != nil {
        zap.L().Error("proxy codec", zap.Error(err))
        return 1
    }
    po.KeepRaw = true
    proxyCodec, err := protocol.NewProxyCodec(po)
    if err != nil {
        zap.L().Error("proxy codec", zap.Error(err))
        return 1
    }

    tro := transports.OptionsFromChannel(cfg.Channel)
    backendTr, err := transports.NewByKind(cfg.Connector.Kind, tro)
    if err != nil {
        zap.L().Error("connector transport", zap.Error(err))
        return 1
    }

    rtr := router.New(nil)
    conn := connector.New(connector.OptionsFromConfig(cfg.Connector, backendTr, proxyCodec,
        channel.OptionsFromConfig(cfg.Channel, observability.SideServer, metrics), metrics), rtr.Backend())
    rtr.SetSelector(router.SessionHash(conn))
    clients := acceptor.New(clientCodec, acceptor.Options{
        Channel:  channel.OptionsFromConfig(cfg.Channel, observability.SideClient, metrics),
        Sessions: acceptor.NewMemorySessions(),
        Metrics:  metrics,
    }, rtr)
    rtr.Bind(clients, conn)
    defer clients.Shutdown()
    defer conn.Shutdown()

    src, err := discovery.FromConfig(cfg.Discovery, cfg.Servers)
    if err != nil {
        zap.L().Error("discovery", zap.Error(err))
        return 1
    }
    go func() {
        started := false
        err := src.Run(ctx, func(ts []connector.Target) {
            if !started {
                started = true
                if err := conn.Start(ctx, ts); err != nil {
                    zap.L().Error("connector start", zap.Error(err))
                }
                return
            }
            conn.UpdateTargets(ts)
        })
        if err != nil {
            zap.L().Error("discovery stopped", zap.Error(err))
        }
    }()

    if _, err := clients.ServeConfig(ctx, cfg.Acceptors, tro, wire); err != nil {
        zap.L().Error("failed to start acceptors", zap.Error(err))
        return 1
    }

    zap.L().Info("gate is running; press Ctrl+C to exit")
    <-ctx.Done()
    zap.L().Info("shutting down")
    return 0
}

func serveMetrics(ctx context.Context, c config.MetricsConfig, m *observability.Metrics) {
    if c.Listen == "" {
        return
    }
    mux := http.NewServeMux()
    mux.Handle(c.Path, m.Handler())
    srv := &http.Server{Addr: c.Listen, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
    go func() {
        if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
            zap.L().Error("metrics server", zap.Error(err))
        }
    }()
    go func() {
        <-ctx.Done()
        sctx, cancel := context.WithTimeout(context.Background(), time.Second)
        defer cancel()
        _ = srv.Shutdown(sctx)
    }()
    zap.L().Info("metrics listening", zap.String("addr", c.Listen), zap.String("path", c.Path))
}
