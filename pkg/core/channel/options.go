package channel

import (
    "time"

    "gamenet/pkg/config"
    "gamenet/pkg/observability"
)

// Options are fixed for the life of a channel.
type Options struct {
    // Side labels metrics (observability.SideClient etc).
    Side string
    // ReadTimeout closes the channel with ErrReadTimeout when nothing is read
    // for that long. Zero disables it.
    ReadTimeout time.Duration
    // IdleTimeout fires EventIdle when nothing is read for that long.
    IdleTimeout time.Duration
    // AutoFlush flushes buffered writes on this interval; Write then only
    // buffers. Zero disables it.
    AutoFlush time.Duration
    // MsgRate limits inbound messages per second; excess messages are dropped.
    MsgRate  float64
    MsgBurst int
    Metrics  *observability.Metrics
}

// OptionsFromConfig converts channel configuration.
func OptionsFromConfig(c config.ChannelConfig, side string, m *observability.Metrics) Options {
    return Options{
        Side:        side,
        ReadTimeout: time.Duration(c.ReadTimeoutSec) * time.Second,
        IdleTimeout: time.Duration(c.IdleSec) * time.Second,
        AutoFlush:   time.Duration(c.AutoFlushMS) * time.Millisecond,
        MsgRate:     c.MsgRate,
        MsgBurst:    c.MsgBurst,
        Metrics:     m,
    }
}
