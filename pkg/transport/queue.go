package transport

import (
    "context"
    "errors"
    "net"
    "sync"
    "syscall"
    "time"

    "github.com/jpillora/backoff"
    "go.uber.org/zap"
)

// Queue is a Listener fed by an accept loop. Implementations call Serve (or
// Push) from their own goroutine.
type Queue struct {
    addr    net.Addr
    closeFn func() error
    newCh   chan net.Conn
    closeCh chan struct{}
    once    sync.Once
}

// NewQueue returns a queue reporting addr; closeFn closes the underlying
// listener and may be nil.
func NewQueue(addr net.Addr, closeFn func() error) *Queue {
    return &Queue{addr: addr, closeFn: closeFn, newCh: make(chan net.Conn), closeCh: make(chan struct{})}
}

func (q *Queue) Addr() net.Addr { return q.addr }

// Done is closed by Close.
func (q *Queue) Done() <-chan struct{} { return q.closeCh }

func (q *Queue) Accept(ctx context.Context) (net.Conn, error) {
    select {
    case <-ctx.Done():
        return nil, ctx.Err()
    case <-q.closeCh:
        return nil, ErrListenerClosed
    case c := <-q.newCh:
        return c, nil
    }
}

// Push hands c to the next Accept call. It closes c and returns false when
// the queue is closed first.
func (q *Queue) Push(c net.Conn) bool {
    select {
    case q.newCh <- c:
        return true
    case <-q.closeCh:
        _ = c.Close()
        return false
    }
}

// Serve pushes connections from accept until the queue closes. Temporary
// accept errors (such as running out of file descriptors) are retried with
// a growing delay; any other error closes the queue.
func (q *Queue) Serve(accept func() (net.Conn, error)) {
    bo := &backoff.Backoff{Min: 5 * time.Millisecond, Max: time.Second, Factor: 2}
    for {
        c, err := accept()
        if err != nil {
            select {
            case <-q.closeCh:
                return
            default:
            }
            if !Temporary(err) {
                zap.L().Error("accept failed, listener closed", zap.Stringer("addr", q.addr), zap.Error(err))
                _ = q.Close()
                return
            }
            d := bo.Duration()
            zap.L().Warn("accept failed, retrying", zap.Stringer("addr", q.addr), zap.Duration("delay", d), zap.Error(err))
            select {
            case <-time.After(d):
            case <-q.closeCh:
                return
            }
            continue
        }
        bo.Reset()
        if !q.Push(c) { return }
    }
}

// Temporary reports whether an accept error is worth retrying.
func Temporary(err error) bool {
    var te interface{ Temporary() bool }
    if errors.As(err, &te) && te.Temporary() {
        return true
    }
    return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE) || errors.Is(err, syscall.ECONNABORTED)
}

func (q *Queue) Close() error {
    var err error
    q.once.Do(func() {
        close(q.closeCh)
        if q.closeFn != nil {
            err = q.closeFn()
        }
    })
    return err
}

// CloseOnDone closes q when ctx is done.
func (q *Queue) CloseOnDone(ctx context.Context) {
    go func() {
        select {
        case <-ctx.Done():
            _ = q.Close()
        case <-q.closeCh:
        }
    }()
}
