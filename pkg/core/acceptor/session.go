package acceptor

import (
    "sync"

    "github.com/google/uuid"

    "gamenet/pkg/core/channel"
)

const sessionAttr = "gamenet.session"

// Session is the application state attached to an accepted channel.
type Session interface {
    ID() string
    Channel() *channel.Channel
}

// SessionManager creates and indexes sessions. CreateSession must return
// ids that are unique among open channels.
type SessionManager interface {
    CreateSession(ch *channel.Channel) Session
    SaveSession(s Session)
    RemoveSession(id string)
    Session(id string) Session
}

// BasicSession is the default Session.
type BasicSession struct {
    id string
    ch *channel.Channel
}

func NewBasicSession(id string, ch *channel.Channel) *BasicSession { return &BasicSession{id: id, ch: ch} }

func (s *BasicSession) ID() string                { return s.id }
func (s *BasicSession) Channel() *channel.Channel { return s.ch }
func (s *BasicSession) String() string            { return "{sessionId=" + s.id + "}" }

// MemorySessions keeps sessions in a map and names them with random UUIDs.
type MemorySessions struct {
    mu       sync.RWMutex
    sessions map[string]Session
}

func NewMemorySessions() *MemorySessions { return &MemorySessions{sessions: make(map[string]Session)} }

func (m *MemorySessions) CreateSession(ch *channel.Channel) Session {
    return NewBasicSession(uuid.NewString(), ch)
}

func (m *MemorySessions) SaveSession(s Session) {
    m.mu.Lock()
    m.sessions[s.ID()] = s
    m.mu.Unlock()
}

func (m *MemorySessions) RemoveSession(id string) {
    m.mu.Lock()
    delete(m.sessions, id)
    m.mu.Unlock()
}

func (m *MemorySessions) Session(id string) Session {
    m.mu.RLock()
    defer m.mu.RUnlock()
    return m.sessions[id]
}

func (m *MemorySessions) Len() int {
    m.mu.RLock()
    defer m.mu.RUnlock()
    return len(m.sessions)
}

// SessionOf returns the session attached to an accepted channel, or nil.
func SessionOf(ch *channel.Channel) Session {
    v, ok := ch.Attribute(sessionAttr)
    if !ok {
        return nil
    }
    s, _ := v.(Session)
    return s
}
