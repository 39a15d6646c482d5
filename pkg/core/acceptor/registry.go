package acceptor

import (
    "errors"
    "fmt"
    "reflect"
    "sync"

    "go.uber.org/zap"

    "gamenet/pkg/buffer"
    "gamenet/pkg/core/channel"
    "gamenet/pkg/observability"
)

var (
    // ErrIdentitySet is returned when a channel already has an identity.
    ErrIdentitySet = errors.New("channel identity already set")
    // ErrNotRegistered is returned for channels the registry does not track.
    ErrNotRegistered = errors.New("channel not registered")
)

// ErrIdentityType rejects identities that cannot be compared with ==.
type ErrIdentityType struct{ Value any }

func (e *ErrIdentityType) Error() string { return fmt.Sprintf("identity of type %T is not comparable", e.Value) }

// Registry tracks accepted channels by id and keeps at most one channel per
// application identity: assigning an identity closes every other channel
// holding the same one.
type Registry struct {
    mu      sync.Mutex
    byID    map[uint64]*channel.Channel
    metrics *observability.Metrics
}

func NewRegistry(m *observability.Metrics) *Registry {
    return &Registry{byID: make(map[uint64]*channel.Channel), metrics: m}
}

// Add registers ch. It returns false when ch is already registered; a
// different channel under the same id is closed and replaced.
func (r *Registry) Add(ch *channel.Channel) bool {
    r.mu.Lock()
    old := r.byID[ch.ID()]
    if old == ch {
        r.mu.Unlock()
        zap.L().Warn("channel already registered", zap.Stringer("channel", ch))
        return false
    }
    r.byID[ch.ID()] = ch
    r.mu.Unlock()
    if old != nil {
        zap.L().Warn("duplicate channel id, closing old one", zap.Stringer("channel", ch), zap.Stringer("old", old))
        _ = old.Close()
    }
    return true
}

// Remove unregisters ch if it is the registered channel for its id.
func (r *Registry) Remove(ch *channel.Channel) bool {
    r.mu.Lock()
    defer r.mu.Unlock()
    if r.byID[ch.ID()] != ch {
        return false
    }
    delete(r.byID, ch.ID())
    return true
}

func (r *Registry) Contains(ch *channel.Channel) bool {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.byID[ch.ID()] == ch
}

// SetIdentity assigns id to ch, then closes and unregisters every other
// registered channel with an equal identity. The last assignment wins.
func (r *Registry) SetIdentity(ch *channel.Channel, id any) error {
    if id == nil || !reflect.TypeOf(id).Comparable() {
        return &ErrIdentityType{Value: id}
    }
    var dups []*channel.Channel
    r.mu.Lock()
    if r.byID[ch.ID()] != ch {
        r.mu.Unlock()
        return ErrNotRegistered
    }
    if !ch.SetIdentity(id) {
        r.mu.Unlock()
        return fmt.Errorf("%w for %s", ErrIdentitySet, ch)
    }
    for cid, other := range r.byID {
        if other != ch && other.Identity() == id {
            dups = append(dups, other)
            delete(r.byID, cid)
        }
    }
    r.mu.Unlock()
    for _, d := range dups {
        zap.L().Info("closing duplicate channel", zap.Any("identity", id), zap.Stringer("channel", d), zap.Stringer("kept", ch))
        _ = d.Close()
    }
    return nil
}

// ByIdentity returns the registered channel holding id, or nil.
func (r *Registry) ByIdentity(id any) *channel.Channel {
    r.mu.Lock()
    defer r.mu.Unlock()
    for _, ch := range r.byID {
        if ch.Identity() == id {
            return ch
        }
    }
    return nil
}

func (r *Registry) Get(id uint64) *channel.Channel {
    r.mu.Lock()
    defer r.mu.Unlock()
    return r.byID[id]
}

func (r *Registry) Len() int {
    r.mu.Lock()
    defer r.mu.Unlock()
    return len(r.byID)
}

// Channels returns a snapshot of the registered channels.
func (r *Registry) Channels() []*channel.Channel {
    r.mu.Lock()
    defer r.mu.Unlock()
    out := make([]*channel.Channel, 0, len(r.byID))
    for _, ch := range r.byID {
        out = append(out, ch)
    }
    return out
}

// Broadcast writes and flushes msg, a message or an encoded frame, to every
// registered channel for which match returns true (nil matches all). The
// predicate runs per channel at send time. Broadcast consumes msg and
// returns the number of channels written.
func (r *Registry) Broadcast(msg any, match func(*channel.Channel) bool) int {
    rc, _ := msg.(buffer.RefCounted)
    n := 0
    for _, ch := range r.Channels() {
        if match != nil && !match(ch) {
            continue
        }
        if rc != nil {
            rc.Retain()
        }
        if err := ch.WriteAndFlush(msg); err == nil {
            n++
        }
    }
    buffer.Release(msg)
    r.metrics.Broadcast(n)
    return n
}

// CloseAll closes every registered channel.
func (r *Registry) CloseAll() {
    for _, ch := range r.Channels() {
        _ = ch.Close()
    }
}
