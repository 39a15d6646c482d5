// Command gamenet-client sends test messages to a gateway and prints the
// replies.
package main

import (
    "context"
    "flag"
    "fmt"
    "os"
    "time"

    "github.com/gorilla/websocket"
    "go.uber.org/zap"

    "gamenet/pkg/buffer"
    "gamenet/pkg/core/channel"
    "gamenet/pkg/protocol"
    "gamenet/pkg/protocol/codec"
    "gamenet/pkg/transports"
)

func main() {
    kind := flag.String("kind", "tcp", "transport kind: tcp|tls|quic|winpipe|ws|wss")
    addr := flag.String("addr", "127.0.0.1:7001", "address (ws: URL) to connect to")
    headSize := flag.Int("head-size", 2, "head field width: 0,1,2,4,8")
    head := flag.Uint64("head", 1, "message head")
    body := flag.String("body", "string", "body codec: string|json")
    msg := flag.String("message", "hello gamenet", "text to send")
    count := flag.Int("count", 1, "messages to send")
    textMode := flag.Bool("text", false, "ws: send text messages")
    timeout := flag.Duration("timeout", 5*time.Second, "dial and reply timeout")
    flag.Parse()

    logger, _ := zap.NewDevelopment()
    zap.ReplaceGlobals(logger)
    defer logger.Sync()

    o := protocol.Options{HeadSize: *headSize}
    switch *body {
    case "string":
        o.Body = codec.String()
    case "json":
        o.Body = codec.Body(codec.JSON(), nil)
    default:
        fatalf("unknown body codec %q", *body)
    }

    replies := make(chan *protocol.Message, *count)
    ch := channel.New(channel.Options{Side: "player"}, channel.Funcs{
        Message: func(_ *channel.Channel, v any) {
            m, ok := v.(*protocol.Message)
            if !ok {
                buffer.Release(v)
                return
            }
            replies <- m
        },
        Error: func(_ *channel.Channel, err error) { zap.L().Warn("channel error", zap.Error(err)) },
    })

    ctx, cancel := context.WithTimeout(context.Background(), *timeout)
    defer cancel()
    link, err := dial(ctx, *kind, *addr, o, *textMode)
    if err != nil { fatalf("dial %s %s: %v", *kind, *addr, err) }
    ch.Attach(link)
    defer ch.Close()

    for i := 0; i < *count; i++ {
        var b any = *msg
        if *body == "json" {
            b = map[string]any{"text": *msg, "seq": i, "ts": time.Now().UnixMilli()}
        }
        if err := ch.WriteAndFlush(protocol.NewMessage(*head, b)); err != nil { fatalf("send: %v", err) }
    }
    for i := 0; i < *count; i++ {
        select {
        case m := <-replies:
            fmt.Printf("reply head=%d body=%v\n", m.Head, m.Body)
            m.Release()
        case <-ctx.Done():
            fatalf("timed out after %d of %d replies", i, *count)
        }
    }
}

func dial(ctx context.Context, kind, addr string, o protocol.Options, text bool) (channel.Link, error) {
    switch kind {
    case "ws", "wss":
        ws, err := protocol.NewWSCodec(protocol.WSOptions{Options: o, TextMode: text})
        if err != nil { return nil, err }
        c, _, err := websocket.DefaultDialer.DialContext(ctx, addr, nil)
        if err != nil { return nil, err }
        return channel.NewWSLink(c, ws), nil
    }
    cc, err := protocol.NewClientCodec(o)
    if err != nil { return nil, err }
    tro := transports.Options{}
    if kind == "tls" {
        tro.TLS = insecureTLS()
    }
    tr, err := transports.NewByKind(kind, tro)
    if err != nil { return nil, err }
    c, err := tr.Dial(ctx, addr)
    if err != nil { return nil, err }
    return channel.NewStreamLink(c, cc), nil
}

func fatalf(format string, a ...any) {
    _, _ = fmt.Fprintf(os.Stderr, format+"\n", a...)
    os.Exit(1)
}
