// Package quic implements transport.Transport over QUIC. Each connection
// carries exactly one bidirectional stream which is exposed as a net.Conn.
package quic

import (
    "context"
    "crypto/tls"
    "errors"
    "net"
    "time"

    quicgo "github.com/quic-go/quic-go"

    "gamenet/pkg/transport"
)

// ALPN is the application protocol negotiated on every connection.
const ALPN = "gamenet"

// streamOpen is written by the dialer so the peer sees the stream at once;
// QUIC only announces a stream when it carries data.
const streamOpen byte = 0x01

var ErrBadPreamble = errors.New("quic: bad stream preamble")

// Transport dials and listens on QUIC.
type Transport struct {
    tls           *tls.Config
    conf          *quicgo.Config
    acceptTimeout time.Duration
}

// New returns a transport using tlsConf for both sides. A nil tlsConf
// generates a self-signed certificate and skips verification when dialing,
// which is only fit for local links.
func New(tlsConf *tls.Config) (*Transport, error) {
    if tlsConf == nil {
        c, err := transport.SelfSignedTLS()
        if err != nil { return nil, err }
        c.InsecureSkipVerify = true
        tlsConf = c
    }
    tlsConf = tlsConf.Clone()
    tlsConf.NextProtos = []string{ALPN}
    return &Transport{
        tls:           tlsConf,
        conf:          &quicgo.Config{KeepAlivePeriod: 15 * time.Second, MaxIdleTimeout: 60 * time.Second},
        acceptTimeout: 10 * time.Second,
    }, nil
}

func (t *Transport) Kind() transport.Kind { return transport.KindQUIC }

func (t *Transport) Listen(ctx context.Context, address string) (transport.Listener, error) {
    ln, err := quicgo.ListenAddr(address, t.tls, t.conf)
    if err != nil { return nil, err }
    q := transport.NewQueue(ln.Addr(), ln.Close)
    go t.acceptLoop(ln, q)
    q.CloseOnDone(ctx)
    return q, nil
}

func (t *Transport) acceptLoop(ln *quicgo.Listener, q *transport.Queue) {
    ctx, cancel := context.WithCancel(context.Background())
    defer cancel()
    go func() { <-q.Done(); cancel() }()
    for {
        qc, err := ln.Accept(ctx)
        if err != nil {
            // quic listeners fail only when closed; make Accept report it
            _ = q.Close()
            return
        }
        go func() {
            sctx, scancel := context.WithTimeout(ctx, t.acceptTimeout)
            defer scancel()
            c, err := t.acceptStream(sctx, qc)
            if err != nil {
                _ = qc.CloseWithError(0, err.Error())
                return
            }
            q.Push(c)
        }()
    }
}

func (t *Transport) acceptStream(ctx context.Context, qc quicgo.Connection) (net.Conn, error) {
    st, err := qc.AcceptStream(ctx)
    if err != nil { return nil, err }
    var pre [1]byte
    if dl, ok := ctx.Deadline(); ok {
        _ = st.SetReadDeadline(dl)
    }
    if _, err := st.Read(pre[:]); err != nil { return nil, err }
    if pre[0] != streamOpen { return nil, ErrBadPreamble }
    _ = st.SetReadDeadline(time.Time{})
    return &streamConn{Stream: st, qc: qc}, nil
}

func (t *Transport) Dial(ctx context.Context, address string) (net.Conn, error) {
    qc, err := quicgo.DialAddr(ctx, address, t.tls, t.conf)
    if err != nil { return nil, err }
    st, err := qc.OpenStreamSync(ctx)
    if err != nil {
        _ = qc.CloseWithError(0, "")
        return nil, err
    }
    if _, err := st.Write([]byte{streamOpen}); err != nil {
        _ = qc.CloseWithError(0, "")
        return nil, err
    }
    return &streamConn{Stream: st, qc: qc}, nil
}

// streamConn adapts a stream and its connection to net.Conn. Close tears
// down the whole connection.
type streamConn struct {
    quicgo.Stream
    qc quicgo.Connection
}

func (c *streamConn) LocalAddr() net.Addr  { return c.qc.LocalAddr() }
func (c *streamConn) RemoteAddr() net.Addr { return c.qc.RemoteAddr() }

func (c *streamConn) Close() error {
    _ = c.Stream.Close()
    return c.qc.CloseWithError(0, "")
}
