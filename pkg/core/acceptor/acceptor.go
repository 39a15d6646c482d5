// Package acceptor accepts inbound connections, wraps each one in a
// channel, and tracks the channels in a Registry for identity dedup and
// broadcast. The same Acceptor serves the client tier (optionally with
// sessions) and the proxy tier (with the envelope codec).
package acceptor

import (
    "context"
    "errors"
    "net"
    "net/http"
    "sync"

    "go.uber.org/zap"

    "gamenet/pkg/core/channel"
    "gamenet/pkg/observability"
    "gamenet/pkg/protocol"
    "gamenet/pkg/transport"
)

// Delegate receives acceptor events. Channel callbacks arrive on the
// channel's read goroutine.
type Delegate interface {
    OnAcceptorStarted(addr net.Addr)
    OnChannelStatus(ch *channel.Channel, ev channel.Event)
    OnChannelError(ch *channel.Channel, err error)
    // OnChannelMessage owns msg and must release it.
    OnChannelMessage(ch *channel.Channel, msg any)
}

type Options struct {
    Channel channel.Options
    // Sessions, when set, gets a session for every accepted channel.
    Sessions SessionManager
    Metrics  *observability.Metrics
}

type Acceptor struct {
    codec protocol.Codec
    opts  Options
    d     Delegate
    reg   *Registry

    mu        sync.Mutex
    listeners []transport.Listener
    servers   []*http.Server
    closed    bool
}

// New returns an acceptor framing byte streams with codec. codec may be
// nil for an acceptor that only serves WebSocket.
func New(codec protocol.Codec, opts Options, d Delegate) *Acceptor {
    if opts.Channel.Metrics == nil {
        opts.Channel.Metrics = opts.Metrics
    }
    return &Acceptor{codec: codec, opts: opts, d: d, reg: NewRegistry(opts.Metrics)}
}

func (a *Acceptor) Registry() *Registry { return a.reg }

// Sessions returns the session manager, or nil.
func (a *Acceptor) Sessions() SessionManager { return a.opts.Sessions }

// Encoder is the shared stateless encoder of the stream codec: encode once,
// then Broadcast the frame.
func (a *Acceptor) Encoder() protocol.Encoder { return a.codec.Encoder() }

// SetIdentity assigns an application identity to ch and closes any other
// channel that holds it.
func (a *Acceptor) SetIdentity(ch *channel.Channel, id any) error { return a.reg.SetIdentity(ch, id) }

// Broadcast writes msg to every channel matching match. See Registry.Broadcast.
func (a *Acceptor) Broadcast(msg any, match func(*channel.Channel) bool) int {
    return a.reg.Broadcast(msg, match)
}

// Serve listens on addr and accepts until ctx is done or Shutdown.
func (a *Acceptor) Serve(ctx context.Context, tr transport.Transport, addr string) (net.Addr, error) {
    l, err := tr.Listen(ctx, addr)
    if err != nil { return nil, err }
    if !a.track(l, nil) {
        _ = l.Close()
        return nil, transport.ErrListenerClosed
    }
    zap.L().Info("acceptor listening", zap.String("kind", tr.Kind().String()), zap.String("addr", l.Addr().String()))
    go a.acceptLoop(ctx, l)
    a.d.OnAcceptorStarted(l.Addr())
    return l.Addr(), nil
}

func (a *Acceptor) acceptLoop(ctx context.Context, l transport.Listener) {
    for {
        c, err := l.Accept(ctx)
        if err != nil {
            if ctx.Err() == nil && !errors.Is(err, transport.ErrListenerClosed) {
                zap.L().Warn("accept failed", zap.String("addr", l.Addr().String()), zap.Error(err))
            }
            return
        }
        a.accept(channel.NewStreamLink(c, a.codec))
    }
}

func (a *Acceptor) track(l transport.Listener, s *http.Server) bool {
    a.mu.Lock()
    defer a.mu.Unlock()
    if a.closed {
        return false
    }
    if l != nil {
        a.listeners = append(a.listeners, l)
    }
    if s != nil {
        a.servers = append(a.servers, s)
    }
    return true
}

// accept registers a new channel for link and starts it.
func (a *Acceptor) accept(link channel.Link) {
    zap.L().Info("on channel accepted", zap.Stringer("remote", link.RemoteAddr()))
    ch := channel.New(a.opts.Channel, handler{a: a})
    if a.opts.Sessions != nil {
        s := a.opts.Sessions.CreateSession(ch)
        ch.SetAttribute(sessionAttr, s)
        a.opts.Sessions.SaveSession(s)
    }
    if !a.reg.Add(ch) {
        _ = link.Close()
        return
    }
    ch.Attach(link)
}

// unregister drops ch and its session. It returns false for a channel that
// was already removed, e.g. by identity dedup.
func (a *Acceptor) unregister(ch *channel.Channel) bool {
    if a.opts.Sessions != nil {
        if s := SessionOf(ch); s != nil {
            a.opts.Sessions.RemoveSession(s.ID())
        }
    }
    return a.reg.Remove(ch)
}

// Shutdown stops every listener and closes every channel.
func (a *Acceptor) Shutdown() {
    a.mu.Lock()
    if a.closed {
        a.mu.Unlock()
        return
    }
    a.closed = true
    ls, ss := a.listeners, a.servers
    a.mu.Unlock()
    for _, l := range ls {
        _ = l.Close()
    }
    for _, s := range ss {
        _ = s.Close()
    }
    a.reg.CloseAll()
}

type handler struct{ a *Acceptor }

func (h handler) OnStatus(ch *channel.Channel, ev channel.Event) {
    if ev == channel.EventInactive && !h.a.unregister(ch) {
        zap.L().Debug("inactive event of an unregistered channel ignored", zap.Uint64("channel", ch.ID()))
        return
    }
    h.a.d.OnChannelStatus(ch, ev)
}

func (h handler) OnMessage(ch *channel.Channel, msg any) { h.a.d.OnChannelMessage(ch, msg) }

func (h handler) OnError(ch *channel.Channel, err error) {
    if !h.a.reg.Contains(ch) {
        zap.L().Debug("error of an unregistered channel ignored", zap.Uint64("channel", ch.ID()), zap.Error(err))
        return
    }
    h.a.d.OnChannelError(ch, err)
}
