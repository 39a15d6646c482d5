// Package connector keeps outbound channels to a changing set of backend
// servers. A reconcile pass runs once at start and then on a fixed period:
// channels to removed targets are closed, new targets get a channel, and
// every channel that is not connected gets a connect attempt unless one is
// already running.
package connector

import (
    "context"
    "errors"
    "net"
    "sync"
    "sync/atomic"
    "time"

    "github.com/jpillora/backoff"
    "go.uber.org/zap"

    "gamenet/pkg/config"
    "gamenet/pkg/core/channel"
    "gamenet/pkg/observability"
    "gamenet/pkg/protocol"
    "gamenet/pkg/transport"
)

const DefaultPeriod = 5 * time.Second

var ErrAlreadyStarted = errors.New("connector already started")

// Delegate receives connector events. Status events other than
// EventConnect/EventConnectFail, errors and messages are delivered from the
// channel's read goroutine.
type Delegate interface {
    OnConnectorStart()
    OnChannelStatus(ch *ServerChannel, ev channel.Event)
    OnChannelError(ch *ServerChannel, err error)
    // OnChannelMessage owns msg and must release it.
    OnChannelMessage(ch *ServerChannel, msg any)
}

// Options are fixed when the connector is created.
type Options struct {
    Transport transport.Transport
    Codec     protocol.Codec
    Channel   channel.Options
    // Period between reconcile passes; zero means DefaultPeriod.
    Period      time.Duration
    DialTimeout time.Duration
    // Backoff delays retries of a failing target with jittered exponential
    // backoff between Period and BackoffMax. Off means fixed-interval retry.
    Backoff    bool
    BackoffMax time.Duration
    Metrics    *observability.Metrics
}

// OptionsFromConfig fills the timing options from configuration.
func OptionsFromConfig(c config.ConnectorConfig, tr transport.Transport, codec protocol.Codec, ch channel.Options, m *observability.Metrics) Options {
    return Options{
        Transport:   tr,
        Codec:       codec,
        Channel:     ch,
        Period:      time.Duration(c.PeriodMS) * time.Millisecond,
        DialTimeout: time.Duration(c.DialTimeoutMS) * time.Millisecond,
        Backoff:     c.Backoff.Enable,
        BackoffMax:  time.Duration(c.Backoff.MaxMS) * time.Millisecond,
        Metrics:     m,
    }
}

type Connector struct {
    opts Options
    d    Delegate

    running atomic.Bool
    stop    chan struct{}

    tmu     sync.RWMutex
    targets []Target

    mu    sync.Mutex
    chans map[int]*ServerChannel
}

func New(opts Options, d Delegate) *Connector {
    if opts.Period <= 0 {
        opts.Period = DefaultPeriod
    }
    if opts.DialTimeout <= 0 {
        opts.DialTimeout = opts.Period
    }
    if opts.BackoffMax < opts.Period {
        opts.BackoffMax = 12 * opts.Period
    }
    if opts.Channel.Metrics == nil {
        opts.Channel.Metrics = opts.Metrics
    }
    if opts.Channel.Side == "" {
        opts.Channel.Side = observability.SideServer
    }
    return &Connector{opts: opts, d: d, chans: make(map[int]*ServerChannel)}
}

// Start runs the reconcile loop until ctx is done or Shutdown is called.
func (c *Connector) Start(ctx context.Context, targets []Target) error {
    c.mu.Lock()
    if !c.running.CompareAndSwap(false, true) {
        c.mu.Unlock()
        return ErrAlreadyStarted
    }
    stop := make(chan struct{})
    c.stop = stop
    c.mu.Unlock()
    c.UpdateTargets(targets)
    go func() {
        c.reconcile()
        c.safely("connector start", c.d.OnConnectorStart)
        t := time.NewTicker(c.opts.Period)
        defer t.Stop()
        for {
            select {
            case <-ctx.Done():
                c.Shutdown()
                return
            case <-stop:
                return
            case <-t.C:
                c.reconcile()
            }
        }
    }()
    return nil
}

// UpdateTargets replaces the desired target set; the next pass applies it.
func (c *Connector) UpdateTargets(targets []Target) {
    cp := append([]Target(nil), targets...)
    c.tmu.Lock()
    c.targets = cp
    c.tmu.Unlock()
}

// Targets returns the desired target set.
func (c *Connector) Targets() []Target {
    c.tmu.RLock()
    defer c.tmu.RUnlock()
    return append([]Target(nil), c.targets...)
}

// Shutdown stops the loop and closes every channel. Connect attempts in
// flight finish on their own and close what they established.
func (c *Connector) Shutdown() {
    if !c.running.CompareAndSwap(true, false) {
        return
    }
    c.mu.Lock()
    close(c.stop)
    chans := make([]*ServerChannel, 0, len(c.chans))
    for _, sc := range c.chans {
        chans = append(chans, sc)
    }
    c.mu.Unlock()
    for _, sc := range chans {
        _ = sc.Close()
    }
    zap.L().Info("connector stopped", zap.Int("channels", len(chans)))
}

// Channel returns the channel of a target, or nil.
func (c *Connector) Channel(serverID int) *ServerChannel {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.chans[serverID]
}

// Channels returns every tracked channel.
func (c *Connector) Channels() []*ServerChannel {
    c.mu.Lock()
    defer c.mu.Unlock()
    out := make([]*ServerChannel, 0, len(c.chans))
    for _, sc := range c.chans {
        out = append(out, sc)
    }
    return out
}

// Encoder is the stateless encoder shared by all channels, for encoding a
// message once before writing it to several channels.
func (c *Connector) Encoder() protocol.Encoder { return c.opts.Codec.Encoder() }

func (c *Connector) reconcile() {
    defer func() {
        if r := recover(); r != nil {
            zap.L().Error("reconcile panic", zap.Any("panic", r))
        }
    }()
    if !c.running.Load() {
        return
    }
    desired := c.Targets()
    want := make(map[int]Target, len(desired))
    for _, t := range desired {
        want[t.ID] = t
    }
    now := time.Now()

    var stale, connect []*ServerChannel
    c.mu.Lock()
    for id, sc := range c.chans {
        if t, ok := want[id]; !ok || t != sc.target {
            stale = append(stale, sc)
            delete(c.chans, id)
        }
    }
    for _, t := range desired {
        sc := c.chans[t.ID]
        if sc == nil {
            sc = c.newServerChannel(t)
            c.chans[t.ID] = sc
        }
        if !sc.IsConnected() && sc.eligible(now) && sc.tryLock() {
            connect = append(connect, sc)
        }
    }
    c.mu.Unlock()

    for _, sc := range stale {
        _ = sc.Close()
        zap.L().Info("delete server channel", zap.Stringer("server", sc.target))
    }
    for _, sc := range connect {
        go c.connect(sc)
    }
}

func (c *Connector) newServerChannel(t Target) *ServerChannel {
    sc := &ServerChannel{target: t}
    if c.opts.Backoff {
        sc.bo = &backoff.Backoff{Min: c.opts.Period, Max: c.opts.BackoffMax, Factor: 2, Jitter: true}
    }
    sc.Channel = channel.New(c.opts.Channel, handler{sc: sc, d: c.d})
    return sc
}

// connect runs one attempt; the connect lock is released however it ends.
func (c *Connector) connect(sc *ServerChannel) {
    defer sc.unlock()
    defer func() {
        if r := recover(); r != nil {
            zap.L().Error("connect panic", zap.Stringer("server", sc.target), zap.Any("panic", r))
            sc.MarkConnectFailed()
        }
    }()
    if !sc.MarkConnecting() {
        return
    }
    sc.Notify(channel.EventConnect)

    ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
    conn, err := c.opts.Transport.Dial(ctx, sc.target.Addr())
    cancel()
    if err != nil {
        c.opts.Metrics.ConnectAttempt(false)
        zap.L().Warn("connect fail", zap.Stringer("server", sc.target), zap.Error(err))
        sc.MarkConnectFailed()
        sc.failed(time.Now())
        sc.Notify(channel.EventConnectFail)
        return
    }
    if !c.adopt(sc, conn) {
        _ = conn.Close()
        sc.MarkConnectFailed()
        return
    }
    c.opts.Metrics.ConnectAttempt(true)
    sc.succeeded()
    zap.L().Info("connected", zap.Stringer("server", sc.target), zap.String("kind", c.opts.Transport.Kind().String()))
}

// adopt attaches conn to sc unless the connector stopped or sc was replaced
// meanwhile. It holds c.mu so that Shutdown and reconcile either see the new
// link and close it, or make adopt refuse it.
func (c *Connector) adopt(sc *ServerChannel, conn net.Conn) bool {
    c.mu.Lock()
    defer c.mu.Unlock()
    if !c.running.Load() || c.chans[sc.target.ID] != sc {
        return false
    }
    sc.Attach(channel.NewStreamLink(conn, c.opts.Codec))
    return true
}

func (c *Connector) safely(what string, f func()) {
    defer func() {
        if r := recover(); r != nil {
            zap.L().Error(what+" panic", zap.Any("panic", r))
        }
    }()
    f()
}

// handler forwards channel callbacks to the delegate with the ServerChannel.
type handler struct {
    sc *ServerChannel
    d  Delegate
}

func (h handler) OnStatus(_ *channel.Channel, ev channel.Event) { h.d.OnChannelStatus(h.sc, ev) }
func (h handler) OnMessage(_ *channel.Channel, msg any)        { h.d.OnChannelMessage(h.sc, msg) }
func (h handler) OnError(_ *channel.Channel, err error)        { h.d.OnChannelError(h.sc, err) }
