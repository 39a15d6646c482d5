// Command gamenet-logic is a sample logic server. It accepts gateway links
// speaking proxy envelopes and answers every message back to the session it
// came from.
package main

import (
    "context"
    "flag"
    "fmt"
    "net"
    "os"
    "os/signal"
    "strconv"
    "syscall"
    "time"

    "github.com/nats-io/nats.go"
    "go.uber.org/zap"

    "gamenet/pkg/buffer"
    "gamenet/pkg/config"
    "gamenet/pkg/core/acceptor"
    "gamenet/pkg/core/channel"
    "gamenet/pkg/core/connector"
    "gamenet/pkg/discovery"
    "gamenet/pkg/observability"
    "gamenet/pkg/protocol"
    "gamenet/pkg/transports"
)

func main() {
    configPath := flag.String("config", "", "Path to YAML config file")
    id := flag.Int("id", 1, "server id announced to gateways")
    advertise := flag.String("advertise", "", "host:port announced over NATS discovery (empty disables)")
    flag.Parse()

    cfg, err := config.Load(*configPath)
    if err != nil { fatalf("failed to load config: %v", err) }
    logger, err := observability.SetupLogger(cfg.AppName, cfg.Log)
    if err != nil { fatalf("failed to setup logger: %v", err) }
    defer func() { _ = logger.Sync() }()

    ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
    defer stop()

    po, err := protocol.ProxyOptionsFromConfig(cfg.ProxyCodec, nil, nil)
    if err != nil { fatalf("proxy codec: %v", err) }
    codec, err := protocol.NewProxyCodec(po)
    if err != nil { fatalf("proxy codec: %v", err) }

    metrics := observability.NewMetrics()
    a := acceptor.New(codec, acceptor.Options{
        Channel: channel.OptionsFromConfig(cfg.Channel, observability.SideProxy, metrics),
        Metrics: metrics,
    }, echo{})
    defer a.Shutdown()
    if _, err := a.ServeConfig(ctx, cfg.Acceptors, transports.OptionsFromChannel(cfg.Channel), po.Options); err != nil {
        fatalf("failed to start acceptors: %v", err)
    }

    if *advertise != "" && cfg.Discovery.Kind == "nats" {
        go announce(ctx, cfg.Discovery, *id, *advertise)
    }

    zap.L().Info("logic server is running; press Ctrl+C to exit", zap.Int("id", *id))
    <-ctx.Done()
}

// announce republishes this server every few seconds so gateways that
// start later pick it up.
func announce(ctx context.Context, c config.DiscoveryConfig, id int, hostport string) {
    host, p, err := net.SplitHostPort(hostport)
    if err != nil {
        zap.L().Error("bad -advertise", zap.Error(err))
        return
    }
    port, err := strconv.Atoi(p)
    if err != nil {
        zap.L().Error("bad -advertise port", zap.Error(err))
        return
    }
    nc, err := nats.Connect(c.NatsURL, nats.Name("gamenet-logic"), nats.MaxReconnects(-1))
    if err != nil {
        zap.L().Error("nats connect", zap.Error(err))
        return
    }
    defer nc.Close()
    self := []connector.Target{{ID: id, Host: host, Port: port}}
    t := time.NewTicker(5 * time.Second)
    defer t.Stop()
    for {
        if err := discovery.Announce(nc, c.Subject, self); err != nil {
            zap.L().Warn("announce failed", zap.Error(err))
        }
        select {
        case <-ctx.Done():
            return
        case <-t.C:
        }
    }
}

type echo struct{}

func (echo) OnAcceptorStarted(addr net.Addr) {
    zap.L().Info("accepting gateways", zap.Stringer("addr", addr))
}

func (echo) OnChannelStatus(ch *channel.Channel, ev channel.Event) {
    zap.L().Info("gateway link", zap.Stringer("channel", ch), zap.Stringer("event", ev))
}

func (echo) OnChannelError(ch *channel.Channel, err error) {
    zap.L().Warn("gateway link error", zap.Stringer("channel", ch), zap.Error(err))
}

func (echo) OnChannelMessage(ch *channel.Channel, msg any) {
    pm, ok := msg.(*protocol.ProxyMessage)
    if !ok {
        buffer.Release(msg)
        return
    }
    zap.L().Debug("message", zap.Any("header", pm.Header), zap.Uint64("head", pm.Msg.Head))
    // the inner raw frame is spliced back unchanged
    if err := ch.WriteAndFlush(pm); err != nil {
        zap.L().Warn("reply failed", zap.Error(err))
    }
}

func fatalf(format string, a ...any) {
    _, _ = fmt.Fprintf(os.Stderr, format+"\n", a...)
    os.Exit(1)
}
