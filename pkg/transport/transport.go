package transport

import (
    "context"
    "errors"
    "net"
)

// Kind identifies the link type of a transport.
type Kind int

const (
    KindUnknown Kind = iota
    KindTCP
    KindTLS
    KindQUIC
    KindWinPipe
    KindMem
)

func (k Kind) String() string {
    switch k {
    case KindTCP:
        return "tcp"
    case KindTLS:
        return "tls"
    case KindQUIC:
        return "quic"
    case KindWinPipe:
        return "winpipe"
    case KindMem:
        return "mem"
    default:
        return "unknown"
    }
}

// ErrListenerClosed is returned by Accept after Close.
var ErrListenerClosed = errors.New("listener closed")

// Listener accepts inbound byte-stream connections.
type Listener interface {
    // Accept blocks until an inbound connection is available or ctx is done.
    Accept(ctx context.Context) (net.Conn, error)
    // Addr returns the local listening address.
    Addr() net.Addr
    // Close stops the listener and unblocks Accept.
    Close() error
}

// Transport provides dialing/listening for a specific link kind. Every
// connection is an ordered, reliable byte stream; framing is left to the
// protocol codecs.
type Transport interface {
    Kind() Kind
    // Listen starts accepting inbound connections on address (transport-specific format).
    Listen(ctx context.Context, address string) (Listener, error)
    // Dial connects to address.
    Dial(ctx context.Context, address string) (net.Conn, error)
}
