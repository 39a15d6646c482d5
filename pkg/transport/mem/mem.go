// Package mem implements an in-process transport over net.Pipe. Gateway and
// logic roles running in one process, and tests, use it instead of sockets.
package mem

import (
    "context"
    "errors"
    "net"
    "sync"

    "gamenet/pkg/transport"
)

var (
    ErrAddrInUse  = errors.New("mem: listener already exists")
    ErrNoListener  = errors.New("mem: no such listener")
)

// Transport keeps a name -> listener table. Dial and Listen must use the same
// Transport value.
type Transport struct {
    mu        sync.Mutex
    listeners map[string]*transport.Queue
}

func New() *Transport { return &Transport{listeners: make(map[string]*transport.Queue)} }

var (
    sharedOnce sync.Once
    shared     *Transport
)

// Shared returns the process-wide transport.
func Shared() *Transport {
    sharedOnce.Do(func() { shared = New() })
    return shared
}

func (t *Transport) Kind() transport.Kind { return transport.KindMem }

func (t *Transport) Listen(ctx context.Context, name string) (transport.Listener, error) {
    t.mu.Lock()
    defer t.mu.Unlock()
    if _, ok := t.listeners[name]; ok {
        return nil, ErrAddrInUse
    }
    var q *transport.Queue
    q = transport.NewQueue(Addr(name), func() error {
        t.mu.Lock()
        if t.listeners[name] == q {
            delete(t.listeners, name)
        }
        t.mu.Unlock()
        return nil
    })
    t.listeners[name] = q
    q.CloseOnDone(ctx)
    return q, nil
}

func (t *Transport) Dial(ctx context.Context, name string) (net.Conn, error) {
    t.mu.Lock()
    q := t.listeners[name]
    t.mu.Unlock()
    if q == nil { return nil, ErrNoListener }
    srv, cli := net.Pipe()
    pushed := make(chan bool, 1)
    go func() { pushed <- q.Push(srv) }()
    select {
    case ok := <-pushed:
        if !ok {
            _ = cli.Close()
            return nil, transport.ErrListenerClosed
        }
        return cli, nil
    case <-ctx.Done():
        _ = cli.Close()
        _ = srv.Close()
        return nil, ctx.Err()
    }
}

// Addr is the net.Addr of a mem listener.
type Addr string

func (a Addr) Network() string { return "mem" }
func (a Addr) String() string  { return string(a) }
