package observability

import (
    "net/http"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

// Channel sides for ChannelOpened/ChannelClosed.
const (
    SideClient = "client" // accepted from players
    SideProxy  = "proxy"  // accepted from gateways
    SideServer = "server" // dialed by a connector
)

// Metrics holds the Prometheus collectors of one process. Every method is
// safe on a nil *Metrics, which disables collection.
type Metrics struct {
    reg *prometheus.Registry

    framesDecoded   prometheus.Counter
    framesEncoded   prometheus.Counter
    framesOversize  prometheus.Counter
    connectAttempts *prometheus.CounterVec
    channelsActive  *prometheus.GaugeVec
    broadcasts      prometheus.Counter
    throttled       prometheus.Counter
}

// NewMetrics creates the collectors and registers them, together with the
// Go runtime and process collectors, on a private registry.
func NewMetrics() *Metrics {
    m := &Metrics{
        reg: prometheus.NewRegistry(),
        framesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "gamenet",
            Name:      "frames_decoded_total",
            Help:      "Total frames decoded from all channels",
        }),
        framesEncoded: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "gamenet",
            Name:      "frames_encoded_total",
            Help:      "Total frames written to all channels",
        }),
        framesOversize: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "gamenet",
            Name:      "frames_oversize_total",
            Help:      "Channels closed because a frame exceeded the body size limit",
        }),
        connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
            Namespace: "gamenet",
            Name:      "connect_attempts_total",
            Help:      "Outbound connect attempts by result",
        }, []string{"result"}),
        channelsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
            Namespace: "gamenet",
            Name:      "channels_active",
            Help:      "Open channels by side",
        }, []string{"side"}),
        broadcasts: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "gamenet",
            Name:      "broadcast_total",
            Help:      "Messages written by broadcasts, counted per receiving channel",
        }),
        throttled: prometheus.NewCounter(prometheus.CounterOpts{
            Namespace: "gamenet",
            Name:      "messages_throttled_total",
            Help:      "Inbound messages dropped by the per-channel rate limit",
        }),
    }
    m.reg.MustRegister(
        collectors.NewGoCollector(),
        collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
        m.framesDecoded, m.framesEncoded, m.framesOversize,
        m.connectAttempts, m.channelsActive, m.broadcasts, m.throttled,
    )
    return m
}

// Registry exposes the registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
    if m == nil {
        return nil
    }
    return m.reg
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
    if m == nil {
        return http.NotFoundHandler()
    }
    return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) FrameDecoded() {
    if m != nil {
        m.framesDecoded.Inc()
    }
}

func (m *Metrics) FrameEncoded() {
    if m != nil {
        m.framesEncoded.Inc()
    }
}

func (m *Metrics) FrameOversize() {
    if m != nil {
        m.framesOversize.Inc()
    }
}

// ConnectAttempt records an outbound connect result ("ok" or "fail").
func (m *Metrics) ConnectAttempt(ok bool) {
    if m == nil {
        return
    }
    result := "ok"
    if !ok {
        result = "fail"
    }
    m.connectAttempts.WithLabelValues(result).Inc()
}

func (m *Metrics) ChannelOpened(side string) {
    if m != nil {
        m.channelsActive.WithLabelValues(side).Inc()
    }
}

func (m *Metrics) ChannelClosed(side string) {
    if m != nil {
        m.channelsActive.WithLabelValues(side).Dec()
    }
}

func (m *Metrics) Broadcast(n int) {
    if m != nil {
        m.broadcasts.Add(float64(n))
    }
}

func (m *Metrics) Throttled() {
    if m != nil {
        m.throttled.Inc()
    }
}
