// Package channel wraps one framed connection: buffered writes with explicit
// or periodic flushing, an idempotent close, per-channel attributes, and a
// read goroutine that decodes messages and delivers them to a Handler.
//
// A Channel may outlive its connection: outbound channels owned by a
// connector are re-attached to a fresh Link after every reconnect.
package channel

import (
    "errors"
    "fmt"
    "net"
    "sync"
    "sync/atomic"
    "time"

    "github.com/jpillora/sizestr"
    "go.uber.org/zap"

    "gamenet/pkg/core/ratelimit"
    "gamenet/pkg/observability"
    "gamenet/pkg/protocol"
)

var (
    // ErrClosed is returned when writing to a channel without a live link.
    ErrClosed = errors.New("channel closed")
    // ErrAutoFlushSet is returned when auto flush is configured twice.
    ErrAutoFlushSet = errors.New("auto flush already set")
    // ErrReadTimeout closes a channel that read nothing for the read timeout.
    ErrReadTimeout = errors.New("read timeout")
)

var lastID atomic.Uint64

// Channel is safe for concurrent use.
type Channel struct {
    id   uint64
    opts Options
    h    Handler

    state atomic.Int32

    mu       sync.Mutex
    cur      *conn
    identity any

    cbMu  sync.Mutex
    attrs sync.Map

    sent atomic.Int64
    recv atomic.Int64
}

// conn is the per-link state of a Channel.
type conn struct {
    link      Link
    wmu       sync.Mutex
    released  bool
    local     atomic.Bool
    lastRead  atomic.Int64
    autoFlush time.Duration
    done      chan struct{}
    bucket    *ratelimit.TokenBucket
}

// New returns an idle channel.
func New(opts Options, h Handler) *Channel {
    if h == nil {
        h = Funcs{}
    }
    return &Channel{id: lastID.Add(1), opts: opts, h: h}
}

// ID is unique within the process.
func (c *Channel) ID() uint64 { return c.id }

func (c *Channel) State() State { return State(c.state.Load()) }

// IsConnected reports whether a link is attached and open.
func (c *Channel) IsConnected() bool { return c.State() == StateConnected }

// MarkConnecting moves an idle or closed channel to StateConnecting.
func (c *Channel) MarkConnecting() bool {
    for {
        s := c.state.Load()
        if State(s) == StateConnected || State(s) == StateConnecting {
            return false
        }
        if c.state.CompareAndSwap(s, int32(StateConnecting)) {
            return true
        }
    }
}

// MarkConnectFailed returns a connecting channel to StateClosed.
func (c *Channel) MarkConnectFailed() {
    c.state.CompareAndSwap(int32(StateConnecting), int32(StateClosed))
}

func (c *Channel) RemoteAddr() net.Addr {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.cur == nil {
        return nil
    }
    return c.cur.link.RemoteAddr()
}

// Identity returns the application identity, or nil.
func (c *Channel) Identity() any {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.identity
}

// SetIdentity stores id once. It returns false if an identity is already set.
// Registries use it; applications go through the registry to get dedup.
func (c *Channel) SetIdentity(id any) bool {
    c.mu.Lock()
    defer c.mu.Unlock()
    if c.identity != nil {
        return false
    }
    c.identity = id
    return true
}

func (c *Channel) SetAttribute(key string, v any) { c.attrs.Store(key, v) }

func (c *Channel) Attribute(key string) (any, bool) { return c.attrs.Load(key) }

func (c *Channel) DeleteAttribute(key string) { c.attrs.Delete(key) }

// Stats returns the bytes sent and received over the life of the channel.
func (c *Channel) Stats() (sent, recv int64) { return c.sent.Load(), c.recv.Load() }

func (c *Channel) String() string {
    if a := c.RemoteAddr(); a != nil {
        return fmt.Sprintf("channel#%d(%s)", c.id, a)
    }
    return fmt.Sprintf("channel#%d", c.id)
}

// Attach installs l as the live link, fires EventConnected and starts
// reading. A link still attached is closed first.
func (c *Channel) Attach(l Link) {
    cur := &conn{link: l, done: make(chan struct{}), bucket: ratelimit.New(c.opts.MsgRate, c.opts.MsgBurst)}
    cur.lastRead.Store(time.Now().UnixNano())
    c.mu.Lock()
    old := c.cur
    c.cur = cur
    c.state.Store(int32(StateConnected))
    c.mu.Unlock()
    if old != nil {
        old.local.Store(true)
        _ = old.link.Close()
    }
    c.opts.Metrics.ChannelOpened(c.opts.Side)
    if c.opts.AutoFlush > 0 {
        _ = c.SetAutoFlush(c.opts.AutoFlush)
    }
    if c.opts.IdleTimeout > 0 {
        go c.idleWatch(cur)
    }
    go c.serve(cur)
}

// Write encodes v into the write buffer. Without auto flush the caller must
// Flush. Write consumes v even on error.
func (c *Channel) Write(v any) error { return c.write(v, false) }

// WriteAndFlush writes v and flushes the link.
func (c *Channel) WriteAndFlush(v any) error { return c.write(v, true) }

func (c *Channel) write(v any, flush bool) error {
    cur := c.live()
    if cur == nil {
        release(v)
        return ErrClosed
    }
    cur.wmu.Lock()
    if cur.released {
        cur.wmu.Unlock()
        release(v)
        return ErrClosed
    }
    n, err := cur.link.Write(v)
    if err == nil && flush {
        err = cur.link.Flush()
    }
    cur.wmu.Unlock()
    if err != nil {
        var ee *EncodeError
        if errors.As(err, &ee) {
            return ee.Err
        }
        c.fail(cur, err)
        return err
    }
    c.sent.Add(int64(n))
    c.opts.Metrics.FrameEncoded()
    return nil
}

// Flush writes out buffered data.
func (c *Channel) Flush() error {
    cur := c.live()
    if cur == nil {
        return ErrClosed
    }
    return c.flush(cur, false)
}

func (c *Channel) flush(cur *conn, onlyPending bool) error {
    cur.wmu.Lock()
    if cur.released || (onlyPending && cur.link.Buffered() == 0) {
        cur.wmu.Unlock()
        return nil
    }
    err := cur.link.Flush()
    cur.wmu.Unlock()
    if err != nil {
        c.fail(cur, err)
    }
    return err
}

// SetAutoFlush flushes pending writes every interval until the link closes.
func (c *Channel) SetAutoFlush(interval time.Duration) error {
    cur := c.live()
    if cur == nil {
        return ErrClosed
    }
    cur.wmu.Lock()
    if cur.autoFlush != 0 {
        cur.wmu.Unlock()
        return ErrAutoFlushSet
    }
    if interval <= 0 {
        cur.wmu.Unlock()
        return nil
    }
    cur.autoFlush = interval
    cur.wmu.Unlock()
    go func() {
        t := time.NewTicker(interval)
        defer t.Stop()
        for {
            select {
            case <-cur.done:
                return
            case <-t.C:
                _ = c.flush(cur, true)
            }
        }
    }()
    return nil
}

// Close closes the live link. Unflushed writes are discarded. Closing a
// channel without a live link is a no-op.
func (c *Channel) Close() error {
    c.mu.Lock()
    cur := c.cur
    if cur == nil {
        c.mu.Unlock()
        return nil
    }
    c.cur = nil
    c.state.Store(int32(StateClosed))
    c.mu.Unlock()
    cur.local.Store(true)
    return cur.link.Close()
}

func (c *Channel) live() *conn {
    c.mu.Lock()
    defer c.mu.Unlock()
    return c.cur
}

// fail closes cur after a write or flush error. The read goroutine reports it.
func (c *Channel) fail(cur *conn, err error) {
    observability.LogConnError(zap.L(), "channel write failed", err, zap.Uint64("channel", c.id))
    c.mu.Lock()
    if c.cur == cur {
        c.cur = nil
        c.state.Store(int32(StateClosed))
    }
    c.mu.Unlock()
    _ = cur.link.Close()
}

func (c *Channel) serve(cur *conn) {
    c.fire(func() { c.h.OnStatus(c, EventConnected) })
    err := c.readLoop(cur)

    close(cur.done)
    c.mu.Lock()
    if c.cur == cur {
        c.cur = nil
        c.state.Store(int32(StateClosed))
    }
    c.mu.Unlock()
    _ = cur.link.Close()
    cur.wmu.Lock()
    cur.released = true
    cur.link.Release()
    cur.wmu.Unlock()
    c.opts.Metrics.ChannelClosed(c.opts.Side)

    fields := []zap.Field{
        zap.Uint64("channel", c.id),
        zap.String("sent", sizestr.ToString(c.sent.Load())),
        zap.String("received", sizestr.ToString(c.recv.Load())),
    }
    if a := cur.link.RemoteAddr(); a != nil {
        fields = append(fields, zap.String("remote", a.String()))
    }
    if cur.local.Load() || observability.IsIOError(err) && !errors.Is(err, ErrReadTimeout) {
        zap.L().Info("channel closed", append(fields, zap.NamedError("cause", err))...)
    } else {
        if errors.Is(err, protocol.ErrFrameTooLarge) {
            c.opts.Metrics.FrameOversize()
        }
        observability.LogConnError(zap.L(), "channel closed on error", err, fields...)
        c.fire(func() { c.h.OnError(c, err) })
    }
    c.fire(func() { c.h.OnStatus(c, EventInactive) })
}

func (c *Channel) readLoop(cur *conn) error {
    emit := func(v any) { c.dispatch(cur, v) }
    for {
        if c.opts.ReadTimeout > 0 {
            _ = cur.link.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
        }
        n, err := cur.link.Read(emit)
        if n > 0 {
            c.recv.Add(int64(n))
            cur.lastRead.Store(time.Now().UnixNano())
        }
        if err != nil {
            var ne net.Error
            if c.opts.ReadTimeout > 0 && errors.As(err, &ne) && ne.Timeout() && !cur.local.Load() {
                return fmt.Errorf("%w after %s", ErrReadTimeout, c.opts.ReadTimeout)
            }
            return err
        }
    }
}

func (c *Channel) dispatch(cur *conn, v any) {
    if ok, _ := cur.bucket.Allow(1); !ok {
        c.opts.Metrics.Throttled()
        release(v)
        return
    }
    c.opts.Metrics.FrameDecoded()
    c.fire(func() { c.h.OnMessage(c, v) })
}

func (c *Channel) idleWatch(cur *conn) {
    idle := c.opts.IdleTimeout
    t := time.NewTimer(idle)
    defer t.Stop()
    for {
        select {
        case <-cur.done:
            return
        case <-t.C:
            since := time.Since(time.Unix(0, cur.lastRead.Load()))
            if since < idle {
                t.Reset(idle - since)
                continue
            }
            c.fire(func() { c.h.OnStatus(c, EventIdle) })
            cur.lastRead.Store(time.Now().UnixNano())
            t.Reset(idle)
        }
    }
}

// Notify delivers ev to the handler, serialized with the channel's other
// callbacks. Connectors use it for EventConnect and EventConnectFail.
func (c *Channel) Notify(ev Event) {
    c.fire(func() { c.h.OnStatus(c, ev) })
}

// fire runs a handler callback; callbacks of one channel are serialized.
func (c *Channel) fire(f func()) {
    c.cbMu.Lock()
    defer c.cbMu.Unlock()
    f()
}
