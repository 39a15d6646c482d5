// Command gamenet-genframe writes sample client frames and proxy envelopes
// for codec tests in other languages.
package main

import (
    "encoding/hex"
    "flag"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "strings"

    "gamenet/pkg/protocol"
    "gamenet/pkg/protocol/codec"
    "gamenet/pkg/transform"
)

func main() {
    outDir := flag.String("out", "testdata/frame", "output directory for binary frames")
    flag.Parse()
    if err := os.MkdirAll(*outDir, 0o755); err != nil { log.Fatal(err) }

    // 1) String body, 2 byte head
    str := mustClient(protocol.Options{HeadSize: 2, Body: codec.String()})
    writeOut(*outDir, "client_string.bin", mustEncode(str, protocol.NewMessage(0x0102, "hello")))

    // 2) JSON body, 4 byte head
    js := mustClient(protocol.Options{HeadSize: 4, Body: codec.Body(codec.JSON(), nil)})
    writeOut(*outDir, "client_json.bin", mustEncode(js, protocol.NewMessage(42, map[string]any{"ok": true, "n": 42})))

    // 3) CBOR body, 1 byte head
    cb, err := codec.CBOR()
    if err != nil { log.Fatal(err) }
    cbc := mustClient(protocol.Options{HeadSize: 1, Body: codec.Body(cb, nil)})
    writeOut(*outDir, "client_cbor.bin", mustEncode(cbc, protocol.NewMessage(7, map[string]any{"n": 42})))

    // 4) Headless frame
    bare := mustClient(protocol.Options{HeadSize: 0, Body: codec.String()})
    writeOut(*outDir, "client_headless.bin", mustEncode(bare, protocol.NewMessage(0, "bare")))

    // 5) Gzip then RC4, length fixed up after each step
    ts, err := transform.ParseAll([]string{"gzip", "rc4:gamenet-sample-key"})
    if err != nil { log.Fatal(err) }
    enc := mustClient(protocol.Options{HeadSize: 2, Body: codec.String(), EncodeTransformers: ts})
    writeOut(*outDir, "client_gzip_rc4.bin", mustEncode(enc, protocol.NewMessage(9, strings.Repeat("gamenet ", 16))))

    // 6) Proxy envelope around frame 1
    px, err := protocol.NewProxyCodec(protocol.ProxyOptions{Options: protocol.Options{HeadSize: 2, Body: codec.String()}})
    if err != nil { log.Fatal(err) }
    head := &protocol.ProxyHead{UserID: 1001, SessionID: "5f0c6f3e-sess", IP: "203.0.113.7"}
    writeOut(*outDir, "proxy_envelope.bin", mustEncode(px, protocol.NewProxyMessage(head, protocol.NewMessage(0x0102, "hello"))))

    fmt.Println("Generated frames in", *outDir)
}

func mustClient(o protocol.Options) protocol.Codec {
    c, err := protocol.NewClientCodec(o)
    if err != nil { log.Fatal(err) }
    return c
}

func mustEncode(c protocol.Codec, v any) []byte {
    fb, err := c.Encoder().Encode(v)
    if err != nil { log.Fatal(err) }
    defer fb.Release()
    return append([]byte(nil), fb.Readable()...)
}

func writeOut(dir, name string, b []byte) {
    p := filepath.Join(dir, name)
    if err := os.WriteFile(p, b, 0o644); err != nil { log.Fatal(err) }
    fmt.Printf("%-24s %5d bytes  head: %s\n", name, len(b), shortHex(b, 64))
}

func shortHex(b []byte, n int) string {
    if len(b) == 0 { return "" }
    if n > len(b) { n = len(b) }
    enc := hex.EncodeToString(b[:n])
    if len(b) > n { enc += "..." }
    var out []string
    for i := 0; i < len(enc); i += 4 {
        j := i + 4
        if j > len(enc) { j = len(enc) }
        out = append(out, enc[i:j])
    }
    return strings.Join(out, " ")
}
