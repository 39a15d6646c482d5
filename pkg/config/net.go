package config

// ChannelConfig holds per-connection options applied when a channel is
// created. Zero disables a timer.
type ChannelConfig struct {
    // ReadTimeoutSec closes a channel that received nothing for this long.
    ReadTimeoutSec int `mapstructure:"read_timeout_sec"`
    // IdleSec fires an idle event, without closing, after this long without reads.
    IdleSec     int `mapstructure:"idle_sec"`
    AutoFlushMS int `mapstructure:"auto_flush_ms"`

    // Socket options, passed to TCP connections.
    NoDelay      bool `mapstructure:"no_delay"`
    KeepAliveSec int  `mapstructure:"keep_alive_sec"`
    ReadBuffer   int  `mapstructure:"read_buffer"`
    WriteBuffer  int  `mapstructure:"write_buffer"`

    // MsgRate and MsgBurst bound inbound messages per second; 0 disables.
    MsgRate  float64 `mapstructure:"msg_rate"`
    MsgBurst int     `mapstructure:"msg_burst"`
}

// ConnectorConfig controls the outbound connection manager.
type ConnectorConfig struct {
    // Kind is the transport used to dial servers: tcp, quic, mem, winpipe.
    Kind          string        `mapstructure:"kind"`
    PeriodMS      int           `mapstructure:"period_ms"`
    DialTimeoutMS int           `mapstructure:"dial_timeout_ms"`
    Backoff       BackoffConfig `mapstructure:"backoff"`
}

// BackoffConfig enables per-server reconnect backoff. When disabled every
// reconcile pass retries every disconnected server.
type BackoffConfig struct {
    Enable bool `mapstructure:"enable"`
    MaxMS  int  `mapstructure:"max_ms"`
}

// ServerConfig is one backend the connector keeps a connection to.
type ServerConfig struct {
    ID   int    `mapstructure:"id"`
    Host string `mapstructure:"host"`
    Port int    `mapstructure:"port"`
}

// DiscoveryConfig selects where the server list comes from.
//
//  discovery:
//    kind: nats               # static (servers above) or nats
//    nats_url: nats://127.0.0.1:4222
//    subject: gamenet.servers
type DiscoveryConfig struct {
    Kind    string `mapstructure:"kind"`
    NatsURL string `mapstructure:"nats_url"`
    Subject string `mapstructure:"subject"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
    Listen string `mapstructure:"listen"`
    Path   string `mapstructure:"path"`
}
