package channel

import (
    "errors"
    "fmt"
    "net"
    "time"

    "github.com/gorilla/websocket"

    "gamenet/pkg/buffer"
    "gamenet/pkg/protocol"
)

type wsFrame struct {
    fb   *buffer.Buffer
    skip int
}

type wsLink struct {
    c        *websocket.Conn
    codec    *protocol.WSCodec
    pending  []wsFrame
    buffered int
}

// NewWSLink frames a WebSocket connection; every message carries one frame.
// Incoming messages larger than the codec allows are refused while reading.
func NewWSLink(c *websocket.Conn, codec *protocol.WSCodec) Link {
    c.SetReadLimit(int64(codec.MaxMessageSize()))
    return &wsLink{c: c, codec: codec}
}

func (l *wsLink) Read(emit func(any)) (int, error) {
    mt, p, err := l.c.ReadMessage()
    if errors.Is(err, websocket.ErrReadLimit) {
        return 0, fmt.Errorf("%w: websocket message over %d bytes", protocol.ErrFrameTooLarge, l.codec.MaxMessageSize())
    }
    if err != nil { return 0, err }
    if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
        return len(p), nil
    }
    m, err := l.codec.Decode(mt == websocket.TextMessage, p)
    if err != nil { return len(p), err }
    emit(m)
    return len(p), nil
}

func (l *wsLink) SetReadDeadline(t time.Time) error { return l.c.SetReadDeadline(t) }

func (l *wsLink) Write(v any) (int, error) {
    fb, skip, err := l.codec.Encode(v)
    if err != nil { return 0, &EncodeError{Err: err} }
    l.pending = append(l.pending, wsFrame{fb: fb, skip: skip})
    n := fb.ReadableBytes() - skip
    l.buffered += n
    return n, nil
}

func (l *wsLink) Flush() error {
    mt := websocket.BinaryMessage
    if l.codec.TextMode() {
        mt = websocket.TextMessage
    }
    for i, f := range l.pending {
        err := l.c.WriteMessage(mt, f.fb.Readable()[f.skip:])
        f.fb.Release()
        l.pending[i] = wsFrame{}
        if err != nil {
            l.dropPending(i + 1)
            return err
        }
    }
    l.pending = l.pending[:0]
    l.buffered = 0
    return nil
}

func (l *wsLink) dropPending(from int) {
    for _, f := range l.pending[from:] {
        f.fb.Release()
    }
    l.pending = l.pending[:0]
    l.buffered = 0
}

func (l *wsLink) Buffered() int { return l.buffered }

func (l *wsLink) Close() error {
    _ = l.c.WriteControl(websocket.CloseMessage,
        websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
    return l.c.Close()
}

func (l *wsLink) Release()             { l.dropPending(0) }
func (l *wsLink) LocalAddr() net.Addr  { return l.c.LocalAddr() }
func (l *wsLink) RemoteAddr() net.Addr { return l.c.RemoteAddr() }
