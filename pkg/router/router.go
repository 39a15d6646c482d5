// Package router forwards traffic between the client tier and the logic
// tier of a gateway. Client messages are wrapped in envelopes carrying the
// routing header and written to the backend chosen by a Selector; envelopes
// coming back are unwrapped and written to the client session they name.
package router

import (
    "errors"
    "fmt"
    "net"

    "go.uber.org/zap"

    "gamenet/pkg/buffer"
    "gamenet/pkg/core/acceptor"
    "gamenet/pkg/core/channel"
    "gamenet/pkg/core/connector"
    "gamenet/pkg/protocol"
)

// UserAttr is the channel attribute holding the authenticated user id
// (uint64) that goes into the routing header.
const UserAttr = "gamenet.uid"

var (
    ErrNoRoute     = errors.New("no backend for message")
    ErrBackendDown = errors.New("backend not connected")
    ErrNoSession   = errors.New("no such client session")
)

// Router joins a client acceptor and a backend connector. It is the
// acceptor delegate of the client tier; Backend returns the connector
// delegate.
type Router struct {
    sel      Selector
    clients  *acceptor.Acceptor
    backends *connector.Connector

    // OnClientStatus, when set, observes client channel events.
    OnClientStatus func(ch *channel.Channel, ev channel.Event)
}

func New(sel Selector) *Router { return &Router{sel: sel} }

// SetSelector replaces the selector. Selectors that look at the connector
// are set once it exists.
func (r *Router) SetSelector(sel Selector) { r.sel = sel }

// Bind attaches the tiers; call it before either one starts.
func (r *Router) Bind(clients *acceptor.Acceptor, backends *connector.Connector) {
    r.clients, r.backends = clients, backends
}

// Forward wraps m for the session of ch and writes it to the selected
// backend. It consumes m.
func (r *Router) Forward(ch *channel.Channel, m *protocol.Message) error {
    s := acceptor.SessionOf(ch)
    if s == nil {
        m.Release()
        return fmt.Errorf("%w: channel %d has no session", ErrNoSession, ch.ID())
    }
    id, ok := r.sel(s, m)
    if !ok {
        m.Release()
        return ErrNoRoute
    }
    sc := r.backends.Channel(id)
    if sc == nil || !sc.IsConnected() {
        m.Release()
        return fmt.Errorf("%w: server %d", ErrBackendDown, id)
    }
    return sc.WriteAndFlush(protocol.NewProxyMessage(headerFor(ch, s), m))
}

// Deliver writes the inner message of pm to the session named in its
// header. It consumes pm.
func (r *Router) Deliver(pm *protocol.ProxyMessage) error {
    h, ok := pm.Header.(*protocol.ProxyHead)
    if !ok || h.SessionID == "" {
        pm.Release()
        return fmt.Errorf("%w: header %v", ErrNoSession, pm.Header)
    }
    var s acceptor.Session
    if sm := r.clients.Sessions(); sm != nil {
        s = sm.Session(h.SessionID)
    }
    if s == nil {
        pm.Release()
        return fmt.Errorf("%w: %s", ErrNoSession, h.SessionID)
    }
    return s.Channel().WriteAndFlush(pm.Msg)
}

func headerFor(ch *channel.Channel, s acceptor.Session) *protocol.ProxyHead {
    h := &protocol.ProxyHead{SessionID: s.ID()}
    if v, ok := ch.Attribute(UserAttr); ok {
        h.UserID, _ = v.(uint64)
    }
    if a := ch.RemoteAddr(); a != nil {
        host, _, err := net.SplitHostPort(a.String())
        if err != nil {
            host = a.String()
        }
        if len(host) <= protocol.MaxFieldLen {
            h.IP = host
        }
    }
    return h
}

func (r *Router) OnAcceptorStarted(addr net.Addr) {
    zap.L().Info("client acceptor started", zap.Stringer("addr", addr))
}

func (r *Router) OnChannelStatus(ch *channel.Channel, ev channel.Event) {
    zap.L().Debug("client channel event", zap.Uint64("channel", ch.ID()), zap.Stringer("event", ev))
    if r.OnClientStatus != nil {
        r.OnClientStatus(ch, ev)
    }
}

func (r *Router) OnChannelError(ch *channel.Channel, err error) {
    zap.L().Info("client channel error", zap.Uint64("channel", ch.ID()), zap.Error(err))
}

func (r *Router) OnChannelMessage(ch *channel.Channel, msg any) {
    m, ok := msg.(*protocol.Message)
    if !ok {
        buffer.Release(msg)
        return
    }
    if err := r.Forward(ch, m); err != nil {
        zap.L().Warn("forward failed", zap.Uint64("channel", ch.ID()), zap.Uint64("head", m.Head), zap.Error(err))
    }
}

// Backend returns the connector delegate of the logic tier.
func (r *Router) Backend() connector.Delegate { return backend{r} }

type backend struct{ r *Router }

func (b backend) OnConnectorStart() { zap.L().Info("backend connector started") }

func (b backend) OnChannelStatus(ch *connector.ServerChannel, ev channel.Event) {
    zap.L().Info("backend channel event", zap.Stringer("server", ch.Target()), zap.Stringer("event", ev))
}

func (b backend) OnChannelError(ch *connector.ServerChannel, err error) {
    zap.L().Warn("backend channel error", zap.Stringer("server", ch.Target()), zap.Error(err))
}

func (b backend) OnChannelMessage(ch *connector.ServerChannel, msg any) {
    pm, ok := msg.(*protocol.ProxyMessage)
    if !ok {
        buffer.Release(msg)
        return
    }
    if err := b.r.Deliver(pm); err != nil {
        zap.L().Info("deliver failed", zap.Stringer("server", ch.Target()), zap.Error(err))
    }
}
