// Package tcp implements transport.Transport over TCP, optionally wrapped in TLS.
package tcp

import (
    "context"
    "crypto/tls"
    "net"
    "time"

    "gamenet/pkg/transport"
)

// Options are the socket options applied to every accepted and dialed connection.
type Options struct {
    NoDelay     bool
    KeepAlive   time.Duration // 0 keeps the OS default, negative disables
    ReadBuffer  int           // 0 keeps the OS default
    WriteBuffer int
    // TLS wraps every connection when set. Listeners need Certificates.
    TLS *tls.Config
}

// Transport dials and listens on TCP.
type Transport struct {
    o Options
}

func New(o Options) *Transport { return &Transport{o: o} }

func (t *Transport) Kind() transport.Kind {
    if t.o.TLS != nil {
        return transport.KindTLS
    }
    return transport.KindTCP
}

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    lc := net.ListenConfig{KeepAlive: t.o.KeepAlive}
    l, err := lc.Listen(ctx, "tcp", address)
    if err != nil { return nil, err }
    q := transport.NewQueue(l.Addr(), l.Close)
    go q.Serve(func() (net.Conn, error) {
        c, err := l.Accept()
        if err != nil { return nil, err }
        return t.wrap(c, false), nil
    })
    q.CloseOnDone(ctx)
    return q, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (net.Conn, error) {
    d := &net.Dialer{KeepAlive: t.o.KeepAlive}
    c, err := d.DialContext(ctx, "tcp", address)
    if err != nil { return nil, err }
    c = t.wrap(c, true)
    if tc, ok := c.(*tls.Conn); ok {
        if err := tc.HandshakeContext(ctx); err != nil {
            _ = c.Close()
            return nil, err
        }
    }
    return c, nil
}

// wrap applies socket options and TLS. Server-side handshakes run lazily
// on the first read so the accept loop never blocks on a slow client.
func (t *Transport) wrap(c net.Conn, client bool) net.Conn {
    if tc, ok := c.(*net.TCPConn); ok {
        _ = tc.SetNoDelay(t.o.NoDelay)
        if t.o.ReadBuffer > 0 { _ = tc.SetReadBuffer(t.o.ReadBuffer) }
        if t.o.WriteBuffer > 0 { _ = tc.SetWriteBuffer(t.o.WriteBuffer) }
    }
    if t.o.TLS == nil {
        return c
    }
    if client {
        return tls.Client(c, t.o.TLS)
    }
    return tls.Server(c, t.o.TLS)
}
