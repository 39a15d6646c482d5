// Package discovery feeds the connector its target set. Static serves the
// configured servers; NATS follows server lists published on a subject.
package discovery

import (
    "context"
    "errors"
    "fmt"
    "time"

    "github.com/nats-io/nats.go"
    "go.uber.org/zap"

    "gamenet/pkg/config"
    "gamenet/pkg/core/connector"
    "gamenet/pkg/protocol/codec"
)

// Source runs until ctx is done, calling update with every new target set.
type Source interface {
    Run(ctx context.Context, update func([]connector.Target)) error
}

// FromConfig returns the source selected by c.
func FromConfig(c config.DiscoveryConfig, servers []config.ServerConfig) (Source, error) {
    switch c.Kind {
    case "", "static":
        return Static(connector.TargetsFromConfig(servers)), nil
    case "nats":
        return &NATS{URL: c.NatsURL, Subject: c.Subject}, nil
    }
    return nil, fmt.Errorf("unknown discovery kind %q", c.Kind)
}

// Static is a fixed target set, delivered once.
type Static []connector.Target

func (s Static) Run(ctx context.Context, update func([]connector.Target)) error {
    update(append([]connector.Target(nil), s...))
    <-ctx.Done()
    return nil
}

// server is the wire form of one list entry:
// [{"id":1,"host":"10.0.0.1","port":7100}, ...]
type server struct {
    ID   int    `json:"id"`
    Host string `json:"host"`
    Port int    `json:"port"`
}

var ErrBadServerList = errors.New("bad server list")

// ParseServers decodes a published server list.
func ParseServers(data []byte) ([]connector.Target, error) {
    var list []server
    if err := codec.JSON().Unmarshal(data, &list); err != nil {
        return nil, fmt.Errorf("%w: %v", ErrBadServerList, err)
    }
    seen := make(map[int]bool, len(list))
    out := make([]connector.Target, 0, len(list))
    for _, s := range list {
        if s.Host == "" || s.Port <= 0 || s.Port > 65535 {
            return nil, fmt.Errorf("%w: server %d has address %s:%d", ErrBadServerList, s.ID, s.Host, s.Port)
        }
        if seen[s.ID] {
            return nil, fmt.Errorf("%w: duplicate id %d", ErrBadServerList, s.ID)
        }
        seen[s.ID] = true
        out = append(out, connector.Target{ID: s.ID, Host: s.Host, Port: s.Port})
    }
    return out, nil
}

// MarshalServers is the inverse of ParseServers.
func MarshalServers(targets []connector.Target) ([]byte, error) {
    list := make([]server, len(targets))
    for i, t := range targets {
        list[i] = server{ID: t.ID, Host: t.Host, Port: t.Port}
    }
    return codec.JSON().Marshal(list)
}

// NATS subscribes to Subject and applies every valid list published there.
// Malformed lists are logged and skipped.
type NATS struct {
    URL     string
    Subject string
    // Options are appended to the default connection options.
    Options []nats.Option
}

func (n *NATS) connect() (*nats.Conn, error) {
    opts := []nats.Option{
        nats.Name("gamenet-discovery"),
        nats.MaxReconnects(-1),
        nats.ReconnectWait(2 * time.Second),
        nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
            if err != nil {
                zap.L().Warn("discovery disconnected", zap.Error(err))
            }
        }),
        nats.ReconnectHandler(func(c *nats.Conn) {
            zap.L().Info("discovery reconnected", zap.String("url", c.ConnectedUrl()))
        }),
    }
    return nats.Connect(n.URL, append(opts, n.Options...)...)
}

func (n *NATS) Run(ctx context.Context, update func([]connector.Target)) error {
    nc, err := n.connect()
    if err != nil { return fmt.Errorf("discovery connect %s: %w", n.URL, err) }
    defer nc.Close()

    sub, err := nc.Subscribe(n.Subject, func(m *nats.Msg) {
        targets, err := ParseServers(m.Data)
        if err != nil {
            zap.L().Warn("discovery: ignoring server list", zap.String("subject", m.Subject), zap.Error(err))
            return
        }
        zap.L().Info("discovery: server list", zap.Int("servers", len(targets)))
        update(targets)
    })
    if err != nil { return fmt.Errorf("discovery subscribe %s: %w", n.Subject, err) }
    defer func() { _ = sub.Unsubscribe() }()

    <-ctx.Done()
    return nil
}

// Announce publishes targets on subject. Logic servers use it to register
// themselves with gateways following the same subject.
func Announce(nc *nats.Conn, subject string, targets []connector.Target) error {
    data, err := MarshalServers(targets)
    if err != nil { return err }
    return nc.Publish(subject, data)
}
