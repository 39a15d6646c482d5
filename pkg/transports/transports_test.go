package transports

import (
    "errors"
    "runtime"
    "testing"

    "gamenet/pkg/config"
    "gamenet/pkg/transport"
)

func TestNewByKind(t *testing.T) {
    cases := map[string]transport.Kind{"tcp": transport.KindTCP, "TCP": transport.KindTCP, "mem": transport.KindMem, "quic": transport.KindQUIC}
    for kind, want := range cases {
        tr, err := NewByKind(kind, OptionsFromChannel(config.Default().Channel))
        if err != nil { t.Fatalf("%s: %v", kind, err) }
        if tr.Kind() != want { t.Fatalf("%s: kind %v", kind, tr.Kind()) }
    }
}

func TestNewByKindErrors(t *testing.T) {
    var uk ErrUnknownKind
    if _, err := NewByKind("carrier-pigeon", Options{}); !errors.As(err, &uk) {
        t.Fatalf("want ErrUnknownKind, got %v", err)
    }
    var tr ErrTLSRequired
    if _, err := NewByKind("tls", Options{}); !errors.As(err, &tr) {
        t.Fatalf("want ErrTLSRequired, got %v", err)
    }
    if runtime.GOOS != "windows" {
        if _, err := NewByKind("winpipe", Options{}); err == nil { t.Fatalf("winpipe should fail off windows") }
    }
}
