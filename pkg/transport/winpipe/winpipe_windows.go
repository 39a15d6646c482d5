//go:build windows

// Package winpipe implements transport.Transport over Windows named pipes.
package winpipe

import (
    "context"
    "net"

    "github.com/Microsoft/go-winio"

    "gamenet/pkg/transport"
)

type Transport struct{}

func New() *Transport { return &Transport{} }

func (t *Transport) Kind() transport.Kind { return transport.KindWinPipe }

// Listen takes a pipe name such as \\.\pipe\gamenet-logic.
func (t *Transport) Listen(ctx context.Context, pipeName string) (transport.Listener, error) {
    l, err := winio.ListenPipe(pipeName, nil)
    if err != nil { return nil, err }
    q := transport.NewQueue(l.Addr(), l.Close)
    go q.Serve(l.Accept)
    q.CloseOnDone(ctx)
    return q, nil
}

func (t *Transport) Dial(ctx context.Context, pipeName string) (net.Conn, error) {
    return winio.DialPipeContext(ctx, pipeName)
}
