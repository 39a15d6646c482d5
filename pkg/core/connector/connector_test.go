package connector

import (
    "context"
    "errors"
    "io"
    "net"
    "sync"
    "sync/atomic"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "gamenet/pkg/buffer"
    "gamenet/pkg/core/channel"
    "gamenet/pkg/protocol"
    "gamenet/pkg/protocol/codec"
    "gamenet/pkg/transport"
    "gamenet/pkg/transport/mem"
)

type recDelegate struct {
    mu      sync.Mutex
    events  map[int][]channel.Event
    started atomic.Bool
    panicOn channel.Event
    panics  atomic.Int32
}

func newRecDelegate() *recDelegate { return &recDelegate{events: map[int][]channel.Event{}, panicOn: -1} }

func (d *recDelegate) OnConnectorStart() { d.started.Store(true) }

func (d *recDelegate) OnChannelStatus(ch *ServerChannel, ev channel.Event) {
    d.mu.Lock()
    d.events[ch.Target().ID] = append(d.events[ch.Target().ID], ev)
    d.mu.Unlock()
    if ev == d.panicOn && d.panics.Add(1) == 1 {
        panic("delegate bug")
    }
}

func (d *recDelegate) OnChannelError(*ServerChannel, error)   {}
func (d *recDelegate) OnChannelMessage(_ *ServerChannel, m any) { buffer.Release(m) }

func (d *recDelegate) count(id int, ev channel.Event) int {
    d.mu.Lock()
    defer d.mu.Unlock()
    n := 0
    for _, e := range d.events[id] {
        if e == ev { n++ }
    }
    return n
}

func testCodec(t *testing.T) protocol.Codec {
    t.Helper()
    c, err := protocol.NewClientCodec(protocol.Options{HeadSize: 2, Body: codec.String()})
    require.NoError(t, err)
    return c
}

// sink accepts and holds connections on a mem listener.
func sink(t *testing.T, tr *mem.Transport, addr string) {
    t.Helper()
    ctx, cancel := context.WithCancel(context.Background())
    t.Cleanup(cancel)
    l, err := tr.Listen(ctx, addr)
    require.NoError(t, err)
    go func() {
        for {
            c, err := l.Accept(ctx)
            if err != nil { return }
            go func() { <-ctx.Done(); _ = c.Close() }()
        }
    }()
}

func newConnector(t *testing.T, tr transport.Transport, d Delegate) *Connector {
    t.Helper()
    c := New(Options{Transport: tr, Codec: testCodec(t), Period: time.Hour, DialTimeout: time.Second}, d)
    t.Cleanup(c.Shutdown)
    return c
}

var (
    tA = Target{ID: 1, Host: "a", Port: 1}
    tB = Target{ID: 2, Host: "b", Port: 2}
    tC = Target{ID: 3, Host: "c", Port: 3}
)

func connected(c *Connector, ids ...int) func() bool {
    return func() bool {
        for _, id := range ids {
            sc := c.Channel(id)
            if sc == nil || !sc.IsConnected() { return false }
        }
        return true
    }
}

func TestReconcileReplacesTargetSet(t *testing.T) {
    tr := mem.New()
    for _, tg := range []Target{tA, tB, tC} {
        sink(t, tr, tg.Addr())
    }
    d := newRecDelegate()
    c := newConnector(t, tr, d)
    require.NoError(t, c.Start(context.Background(), []Target{tB, tC}))
    require.Eventually(t, connected(c, 2, 3), 2*time.Second, 5*time.Millisecond)
    require.Eventually(t, d.started.Load, time.Second, 5*time.Millisecond)

    oldB, oldC := c.Channel(2), c.Channel(3)
    c.UpdateTargets([]Target{tA, tB})
    c.reconcile()

    assert.Nil(t, c.Channel(3), "C should be untracked")
    assert.Same(t, oldB, c.Channel(2), "B should be kept")
    assert.NotNil(t, c.Channel(1), "A should be tracked")
    assert.False(t, oldC.IsConnected(), "C should be closed")
    require.Eventually(t, connected(c, 1, 2), 2*time.Second, 5*time.Millisecond)
    assert.Len(t, c.Channels(), 2)
}

func TestChangedAddressReplacesChannel(t *testing.T) {
    tr := mem.New()
    moved := Target{ID: 1, Host: "a2", Port: 1}
    sink(t, tr, tA.Addr())
    sink(t, tr, moved.Addr())
    c := newConnector(t, tr, newRecDelegate())
    require.NoError(t, c.Start(context.Background(), []Target{tA}))
    require.Eventually(t, connected(c, 1), 2*time.Second, 5*time.Millisecond)
    old := c.Channel(1)
    c.UpdateTargets([]Target{moved})
    c.reconcile()
    require.NotSame(t, old, c.Channel(1))
    require.Equal(t, moved, c.Channel(1).Target())
}

// gateTransport blocks every Dial until released and counts attempts.
type gateTransport struct {
    dials   atomic.Int32
    release chan struct{}
    fail    atomic.Bool
    peers   chan net.Conn
}

func (g *gateTransport) Kind() transport.Kind { return transport.KindMem }

func (g *gateTransport) Listen(context.Context, string) (transport.Listener, error) {
    return nil, errors.New("not supported")
}

func (g *gateTransport) Dial(ctx context.Context, _ string) (net.Conn, error) {
    g.dials.Add(1)
    select {
    case <-g.release:
    case <-ctx.Done():
        return nil, ctx.Err()
    }
    if g.fail.Load() { return nil, errors.New("connection refused") }
    a, b := net.Pipe()
    g.peers <- b
    return a, nil
}

func TestConnectLockIsExclusive(t *testing.T) {
    g := &gateTransport{release: make(chan struct{}), peers: make(chan net.Conn, 4)}
    c := newConnector(t, g, newRecDelegate())
    require.NoError(t, c.Start(context.Background(), []Target{tA}))
    require.Eventually(t, func() bool { return g.dials.Load() == 1 }, time.Second, time.Millisecond)

    var wg sync.WaitGroup
    for i := 0; i < 8; i++ {
        wg.Add(1)
        go func() { defer wg.Done(); c.reconcile() }()
    }
    wg.Wait()
    time.Sleep(20 * time.Millisecond)
    assert.EqualValues(t, 1, g.dials.Load(), "only one connect attempt may be in flight")
    assert.True(t, c.Channel(1).Connecting())

    close(g.release)
    require.Eventually(t, connected(c, 1), time.Second, time.Millisecond)
    require.Eventually(t, func() bool { return !c.Channel(1).Connecting() }, time.Second, time.Millisecond)
}

func TestFailedConnectIsRetriedNextPass(t *testing.T) {
    g := &gateTransport{release: make(chan struct{}), peers: make(chan net.Conn, 4)}
    close(g.release)
    g.fail.Store(true)
    d := newRecDelegate()
    c := newConnector(t, g, d)
    require.NoError(t, c.Start(context.Background(), []Target{tA}))
    require.Eventually(t, func() bool { return d.count(1, channel.EventConnectFail) == 1 }, time.Second, time.Millisecond)
    require.Eventually(t, func() bool { return !c.Channel(1).Connecting() }, time.Second, time.Millisecond)

    g.fail.Store(false)
    c.reconcile()
    require.Eventually(t, connected(c, 1), time.Second, time.Millisecond)
    assert.Equal(t, 2, d.count(1, channel.EventConnect))
    require.Eventually(t, func() bool { return d.count(1, channel.EventConnected) == 1 }, time.Second, time.Millisecond)
}

func TestBackoffSkipsTargetUntilDue(t *testing.T) {
    g := &gateTransport{release: make(chan struct{}), peers: make(chan net.Conn, 4)}
    close(g.release)
    g.fail.Store(true)
    c := New(Options{Transport: g, Codec: testCodec(t), Period: time.Hour, Backoff: true, BackoffMax: 2 * time.Hour}, newRecDelegate())
    t.Cleanup(c.Shutdown)
    require.NoError(t, c.Start(context.Background(), []Target{tA}))
    require.Eventually(t, func() bool { sc := c.Channel(1); return sc != nil && !sc.Connecting() && g.dials.Load() == 1 }, time.Second, time.Millisecond)
    c.reconcile()
    time.Sleep(20 * time.Millisecond)
    assert.EqualValues(t, 1, g.dials.Load(), "target in backoff must be skipped")
}

func TestDelegatePanicDoesNotWedgeTarget(t *testing.T) {
    tr := mem.New()
    sink(t, tr, tA.Addr())
    d := newRecDelegate()
    d.panicOn = channel.EventConnect
    c := newConnector(t, tr, d)
    require.NoError(t, c.Start(context.Background(), []Target{tA}))
    require.Eventually(t, func() bool { return d.panics.Load() == 1 && !c.Channel(1).Connecting() }, time.Second, time.Millisecond)
    c.reconcile()
    require.Eventually(t, connected(c, 1), time.Second, time.Millisecond)
}

func TestStartTwiceAndShutdown(t *testing.T) {
    tr := mem.New()
    sink(t, tr, tA.Addr())
    c := newConnector(t, tr, newRecDelegate())
    require.NoError(t, c.Start(context.Background(), []Target{tA}))
    require.ErrorIs(t, c.Start(context.Background(), nil), ErrAlreadyStarted)
    require.Eventually(t, connected(c, 1), time.Second, time.Millisecond)
    sc := c.Channel(1)

    c.Shutdown()
    c.Shutdown()
    require.Eventually(t, func() bool { return !sc.IsConnected() }, time.Second, time.Millisecond)
    c.reconcile()
    time.Sleep(10 * time.Millisecond)
    assert.False(t, sc.IsConnected(), "no reconnect after shutdown")
}

func TestConnectFinishingAfterShutdownClosesLink(t *testing.T) {
    g := &gateTransport{release: make(chan struct{}), peers: make(chan net.Conn, 4)}
    c := newConnector(t, g, newRecDelegate())
    require.NoError(t, c.Start(context.Background(), []Target{tA}))
    require.Eventually(t, func() bool { return g.dials.Load() == 1 }, time.Second, time.Millisecond)
    sc := c.Channel(1)

    c.Shutdown()
    close(g.release)
    peer := <-g.peers
    _ = peer.SetReadDeadline(time.Now().Add(2 * time.Second))
    _, err := peer.Read(make([]byte, 1))
    assert.ErrorIs(t, err, io.EOF, "late connection must be closed")
    require.Eventually(t, func() bool { return !sc.Connecting() }, time.Second, time.Millisecond)
    assert.False(t, sc.IsConnected())
}

func TestAdoptRefusesReplacedChannel(t *testing.T) {
    tr := mem.New()
    sink(t, tr, tA.Addr())
    c := newConnector(t, tr, newRecDelegate())
    require.NoError(t, c.Start(context.Background(), []Target{tA}))
    require.Eventually(t, connected(c, 1), time.Second, time.Millisecond)

    stale := c.newServerChannel(tA)
    a, b := net.Pipe()
    defer b.Close()
    assert.False(t, c.adopt(stale, a), "a channel that is not tracked must not get a link")
    assert.False(t, stale.IsConnected())

    c.Shutdown()
    assert.False(t, c.adopt(c.Channel(1), a), "no link after shutdown")
    _ = a.Close()
}

func TestSharedEncoder(t *testing.T) {
    c := newConnector(t, mem.New(), newRecDelegate())
    fb, err := c.Encoder().Encode(protocol.NewMessage(0, "ping"))
    require.NoError(t, err)
    defer fb.Release()
    assert.Equal(t, []byte{0, 0, 0, 6, 0, 0, 'p', 'i', 'n', 'g'}, fb.Readable())
}
