package config

import (
    "os"
    "path/filepath"
    "testing"
)

func writeConfig(t *testing.T, body string) string {
    t.Helper()
    p := filepath.Join(t.TempDir(), "gamenet.yaml")
    if err := os.WriteFile(p, []byte(body), 0o644); err != nil { t.Fatalf("write: %v", err) }
    return p
}

func TestLoadDefaults(t *testing.T) {
    cfg, err := Load(writeConfig(t, "app_name: gate\n"))
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.AppName != "gate" { t.Fatalf("app_name %q", cfg.AppName) }
    if cfg.Codec.HeadSize != 2 || cfg.Codec.MaxBodySize != 10240 { t.Fatalf("codec defaults %+v", cfg.Codec) }
    if !cfg.ProxyCodec.KeepRaw { t.Fatalf("proxy codec should keep raw frames by default") }
    if cfg.Connector.PeriodMS != 5000 { t.Fatalf("period %d", cfg.Connector.PeriodMS) }
}

func TestLoadFile(t *testing.T) {
    p := writeConfig(t, `
codec:
  head_size: 4
  body: JSON
  encode: [gzip]
channel:
  idle_sec: 30
acceptors:
  - kind: WS
    listen: ":9000"
servers:
  - {id: 1, host: 10.0.0.1, port: 7100}
  - {id: 2, host: 10.0.0.2, port: 7100}
`)
    cfg, err := Load(p)
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.Codec.HeadSize != 4 || cfg.Codec.Body != "json" || len(cfg.Codec.Encode) != 1 {
        t.Fatalf("codec %+v", cfg.Codec)
    }
    if cfg.Channel.IdleSec != 30 { t.Fatalf("idle %d", cfg.Channel.IdleSec) }
    if len(cfg.Acceptors) != 1 || cfg.Acceptors[0].Kind != "ws" || cfg.Acceptors[0].Path != "/" {
        t.Fatalf("acceptors %+v", cfg.Acceptors)
    }
    if len(cfg.Servers) != 2 || cfg.Servers[1].Host != "10.0.0.2" { t.Fatalf("servers %+v", cfg.Servers) }
}

func TestEnvOverride(t *testing.T) {
    t.Setenv("GAMENET_LOG_LEVEL", "debug")
    t.Setenv("GAMENET_CONNECTOR_PERIOD_MS", "250")
    cfg, err := Load(writeConfig(t, ""))
    if err != nil { t.Fatalf("load: %v", err) }
    if cfg.Log.Level != "debug" || cfg.Connector.PeriodMS != 250 {
        t.Fatalf("env not applied: level=%q period=%d", cfg.Log.Level, cfg.Connector.PeriodMS)
    }
}

func TestValidateRejects(t *testing.T) {
    cases := map[string]string{
        "head size":     "codec:\n  head_size: 3\n",
        "tls cert":      "acceptors:\n  - kind: tls\n    listen: \":1\"\n",
        "duplicate id":  "servers:\n  - {id: 1, host: a, port: 1}\n  - {id: 1, host: b, port: 2}\n",
        "nats url":      "discovery:\n  kind: nats\n",
        "log level":     "log:\n  level: loud\n",
    }
    for name, body := range cases {
        if _, err := Load(writeConfig(t, body)); err == nil {
            t.Fatalf("%s: expected error", name)
        }
    }
}
