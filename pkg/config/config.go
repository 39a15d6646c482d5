// Package config provides YAML-based configuration loading for gamenet.
package config

import (
    "errors"
    "fmt"
    "os"
    "path/filepath"
    "strings"

    "github.com/joho/godotenv"
    "github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
    // AppName optional logical name of the process
    AppName string `mapstructure:"app_name"`

    // Log holds logging configuration
    Log LogConfig `mapstructure:"log"`

    // Codec is the client frame format spoken by acceptors facing players.
    Codec CodecConfig `mapstructure:"codec"`

    // ProxyCodec is the envelope format between gateways and logic servers.
    ProxyCodec ProxyCodecConfig `mapstructure:"proxy_codec"`

    // Channel holds per-connection options.
    Channel ChannelConfig `mapstructure:"channel"`

    // Acceptors lists the listening endpoints.
    Acceptors []AcceptorConfig `mapstructure:"acceptors"`

    Connector ConnectorConfig `mapstructure:"connector"`

    // Servers is the static target set of the connector.
    Servers []ServerConfig `mapstructure:"servers"`

    Discovery DiscoveryConfig `mapstructure:"discovery"`
    Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
    // Level: debug, info, warn, error
    Level string `mapstructure:"level"`
    // Format: console or json
    Format string `mapstructure:"format"`
    // Outputs: list of outputs: stdout, stderr, or file paths
    Outputs []string `mapstructure:"outputs"`

    // Rotation controls file rotation when writing to files
    Rotation RotationConfig `mapstructure:"rotation"`
    // Development toggles development-friendly logging options
    Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
    Enable     bool   `mapstructure:"enable"`
    Filename   string `mapstructure:"filename"`
    MaxSizeMB  int    `mapstructure:"max_size_mb"`
    MaxBackups int    `mapstructure:"max_backups"`
    MaxAgeDays int    `mapstructure:"max_age_days"`
    Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
    return &Config{
        AppName: "gamenet",
        Log: LogConfig{
            Level:       "info",
            Format:      "console",
            Outputs:     []string{"stdout"},
            Development: true,
            Rotation: RotationConfig{
                Enable:     false,
                Filename:   "logs/gamenet.log",
                MaxSizeMB:  50,
                MaxBackups: 3,
                MaxAgeDays: 28,
                Compress:   true,
            },
        },
        Codec: CodecConfig{HeadSize: 2, MaxBodySize: 10 * 1024, Body: "string"},
        ProxyCodec: ProxyCodecConfig{
            CodecConfig:   CodecConfig{HeadSize: 2, MaxBodySize: 10 * 1024, KeepRaw: true, Body: "string"},
            MaxHeaderSize: 1024,
        },
        Channel: ChannelConfig{NoDelay: true, KeepAliveSec: 30},
        Acceptors: []AcceptorConfig{
            {Kind: "tcp", Listen: ":7001"},
        },
        Connector: ConnectorConfig{
            Kind:          "tcp",
            PeriodMS:      5000,
            DialTimeoutMS: 3000,
            Backoff:       BackoffConfig{Enable: false, MaxMS: 60000},
        },
        Discovery: DiscoveryConfig{Kind: "static", Subject: "gamenet.servers"},
        Metrics:   MetricsConfig{Path: "/metrics"},
    }
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// A .env file in the working directory is loaded into the environment first.
// Environment variables use the prefix GAMENET and `.`/`-` are replaced with `_`.
// Example: GAMENET_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
    if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
        return nil, fmt.Errorf("load .env: %w", err)
    }
    cfg := Default()

    v := viper.New()
    v.SetConfigType("yaml")
    v.SetEnvPrefix("GAMENET")
    v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
    v.AutomaticEnv()

    // seed defaults for viper so env-only configs work
    v.SetDefault("app_name", cfg.AppName)
    v.SetDefault("log.level", cfg.Log.Level)
    v.SetDefault("log.format", cfg.Log.Format)
    v.SetDefault("log.outputs", cfg.Log.Outputs)
    v.SetDefault("log.development", cfg.Log.Development)
    v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
    v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
    v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
    v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
    v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
    v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
    setCodecDefaults(v, "codec", cfg.Codec)
    setCodecDefaults(v, "proxy_codec", cfg.ProxyCodec.CodecConfig)
    v.SetDefault("proxy_codec.max_header_size", cfg.ProxyCodec.MaxHeaderSize)
    v.SetDefault("channel.read_timeout_sec", cfg.Channel.ReadTimeoutSec)
    v.SetDefault("channel.idle_sec", cfg.Channel.IdleSec)
    v.SetDefault("channel.auto_flush_ms", cfg.Channel.AutoFlushMS)
    v.SetDefault("channel.no_delay", cfg.Channel.NoDelay)
    v.SetDefault("channel.keep_alive_sec", cfg.Channel.KeepAliveSec)
    v.SetDefault("channel.read_buffer", cfg.Channel.ReadBuffer)
    v.SetDefault("channel.write_buffer", cfg.Channel.WriteBuffer)
    v.SetDefault("channel.msg_rate", cfg.Channel.MsgRate)
    v.SetDefault("channel.msg_burst", cfg.Channel.MsgBurst)
    v.SetDefault("acceptors", cfg.Acceptors)
    v.SetDefault("connector.kind", cfg.Connector.Kind)
    v.SetDefault("connector.period_ms", cfg.Connector.PeriodMS)
    v.SetDefault("connector.dial_timeout_ms", cfg.Connector.DialTimeoutMS)
    v.SetDefault("connector.backoff.enable", cfg.Connector.Backoff.Enable)
    v.SetDefault("connector.backoff.max_ms", cfg.Connector.Backoff.MaxMS)
    v.SetDefault("servers", cfg.Servers)
    v.SetDefault("discovery.kind", cfg.Discovery.Kind)
    v.SetDefault("discovery.nats_url", cfg.Discovery.NatsURL)
    v.SetDefault("discovery.subject", cfg.Discovery.Subject)
    v.SetDefault("metrics.listen", cfg.Metrics.Listen)
    v.SetDefault("metrics.path", cfg.Metrics.Path)

    // Choose config file
    if path == "" {
        // Allow override via env var
        if envPath := os.Getenv("GAMENET_CONFIG"); envPath != "" {
            path = envPath
        }
    }

    if path != "" {
        v.SetConfigFile(path)
    } else {
        // Search common locations with base name `gamenet`
        v.SetConfigName("gamenet")
        v.AddConfigPath(".")
        v.AddConfigPath("./configs")
        if home, err := os.UserHomeDir(); err == nil {
            v.AddConfigPath(filepath.Join(home, ".gamenet"))
        }
    }

    // Read config file if present; if not found, continue with defaults/env
    if err := v.ReadInConfig(); err != nil {
        var viperConfigFileNotFound viper.ConfigFileNotFoundError
        if !errors.As(err, &viperConfigFileNotFound) {
            return nil, fmt.Errorf("read config: %w", err)
        }
    }

    if err := v.Unmarshal(&cfg); err != nil {
        return nil, fmt.Errorf("decode config: %w", err)
    }

    if err := cfg.validate(); err != nil {
        return nil, err
    }
    return cfg, nil
}

func setCodecDefaults(v *viper.Viper, prefix string, c CodecConfig) {
    v.SetDefault(prefix+".head_size", c.HeadSize)
    v.SetDefault(prefix+".max_body_size", c.MaxBodySize)
    v.SetDefault(prefix+".keep_raw", c.KeepRaw)
    v.SetDefault(prefix+".body", c.Body)
    v.SetDefault(prefix+".encode", c.Encode)
    v.SetDefault(prefix+".decode", c.Decode)
}

func (c *Config) validate() error {
    lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
    switch lvl {
    case "debug", "info", "warn", "warning", "error":
        // ok
    default:
        return fmt.Errorf("invalid log.level: %q", c.Log.Level)
    }

    if c.Log.Format == "" {
        c.Log.Format = "console"
    }
    if len(c.Log.Outputs) == 0 {
        c.Log.Outputs = []string{"stdout"}
    }
    for _, cc := range []*CodecConfig{&c.Codec, &c.ProxyCodec.CodecConfig} {
        switch cc.HeadSize {
        case 0, 1, 2, 4, 8:
        default:
            return fmt.Errorf("invalid head_size: %d", cc.HeadSize)
        }
        cc.Body = strings.ToLower(strings.TrimSpace(cc.Body))
    }
    if c.Channel.ReadTimeoutSec < 0 || c.Channel.IdleSec < 0 || c.Channel.AutoFlushMS < 0 {
        return fmt.Errorf("channel timers must not be negative")
    }
    for i := range c.Acceptors {
        a := &c.Acceptors[i]
        a.Kind = strings.ToLower(strings.TrimSpace(a.Kind))
        if (a.Kind == "tls" || a.Kind == "wss") && (a.CertFile == "" || a.KeyFile == "") {
            return fmt.Errorf("acceptor %d (%s): cert_file and key_file are required", i, a.Kind)
        }
        if (a.Kind == "ws" || a.Kind == "wss") && a.Path == "" {
            a.Path = "/"
        }
    }
    c.Connector.Kind = strings.ToLower(strings.TrimSpace(c.Connector.Kind))
    if c.Connector.PeriodMS <= 0 {
        c.Connector.PeriodMS = 5000
    }
    seen := make(map[int]bool, len(c.Servers))
    for _, s := range c.Servers {
        if seen[s.ID] {
            return fmt.Errorf("duplicate server id %d", s.ID)
        }
        seen[s.ID] = true
    }
    c.Discovery.Kind = strings.ToLower(strings.TrimSpace(c.Discovery.Kind))
    if c.Discovery.Kind == "nats" && c.Discovery.NatsURL == "" {
        return fmt.Errorf("discovery.nats_url is required for kind nats")
    }
    return nil
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
    cfg, err := Load(path)
    if err != nil {
        panic(err)
    }
    return cfg
}
