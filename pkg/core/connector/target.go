package connector

import (
    "fmt"
    "net"
    "strconv"
    "sync"
    "sync/atomic"
    "time"

    "github.com/jpillora/backoff"

    "gamenet/pkg/config"
    "gamenet/pkg/core/channel"
)

// Target is a backend server the connector keeps a channel to. Two targets
// are equal when every field matches.
type Target struct {
    ID   int
    Host string
    Port int
}

func (t Target) Addr() string { return net.JoinHostPort(t.Host, strconv.Itoa(t.Port)) }

func (t Target) String() string { return fmt.Sprintf("server#%d(%s)", t.ID, t.Addr()) }

// TargetsFromConfig converts the configured server list.
func TargetsFromConfig(servers []config.ServerConfig) []Target {
    out := make([]Target, 0, len(servers))
    for _, s := range servers {
        out = append(out, Target{ID: s.ID, Host: s.Host, Port: s.Port})
    }
    return out
}

// ServerChannel is the channel the connector keeps for one target.
type ServerChannel struct {
    *channel.Channel
    target     Target
    connecting atomic.Bool

    mu      sync.Mutex
    bo      *backoff.Backoff
    nextTry time.Time
}

func (s *ServerChannel) Target() Target { return s.target }

// tryLock takes the per-target connect lock.
func (s *ServerChannel) tryLock() bool { return s.connecting.CompareAndSwap(false, true) }

func (s *ServerChannel) unlock() { s.connecting.Store(false) }

// Connecting reports whether a connect attempt holds the lock.
func (s *ServerChannel) Connecting() bool { return s.connecting.Load() }

func (s *ServerChannel) eligible(now time.Time) bool {
    s.mu.Lock()
    defer s.mu.Unlock()
    return s.bo == nil || !now.Before(s.nextTry)
}

func (s *ServerChannel) failed(now time.Time) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.bo != nil {
        s.nextTry = now.Add(s.bo.Duration())
    }
}

func (s *ServerChannel) succeeded() {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.bo != nil {
        s.bo.Reset()
        s.nextTry = time.Time{}
    }
}

func (s *ServerChannel) String() string {
    return fmt.Sprintf("{server=%s, connecting=%v, state=%s}", s.target, s.Connecting(), s.State())
}
