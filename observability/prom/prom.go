// Package prom exports relay metrics to Prometheus: one gauge, counter, or
// histogram per observer event, registered on a private registry.
package prom

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relaybridge/relaybridge/observability"
)

// NewRegistry returns a fresh Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// Handler returns a Prometheus HTTP handler bound to the registry.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// RelayObserver exports relay routing metrics to Prometheus.
type RelayObserver struct {
	connGauge    prometheus.Gauge
	sessionGauge prometheus.Gauge
	attachTotal  *prometheus.CounterVec
	replaceTotal *prometheus.CounterVec
	closeTotal   *prometheus.CounterVec
	probeTotal   *prometheus.CounterVec
	pairLatency  prometheus.Histogram
	channelOpen  prometheus.Counter
}

// NewRelayObserver registers relay metrics on the registry.
func NewRelayObserver(reg *prometheus.Registry) *RelayObserver {
	o := &RelayObserver{
		connGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relaybridge_connections",
			Help: "Current websocket connection count.",
		}),
		sessionGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relaybridge_sessions",
			Help: "Current active session count.",
		}),
		attachTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaybridge_attach_total",
			Help: "Relay attach attempts by result and reason.",
		}, []string{"result", "reason"}),
		replaceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaybridge_replace_total",
			Help: "Socket replace outcomes.",
		}, []string{"result"}),
		closeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaybridge_close_total",
			Help: "Relay-initiated close reasons.",
		}, []string{"reason"}),
		probeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relaybridge_control_probe_total",
			Help: "Control-liveness probe stage firings.",
		}, []string{"stage"}),
		pairLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "relaybridge_pair_latency_seconds",
			Help:    "Latency from client connect to connected notification.",
			Buckets: prometheus.DefBuckets,
		}),
		channelOpen: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "relaybridge_channel_open_total",
			Help: "E2EE channels that reached the open state.",
		}),
	}
	reg.MustRegister(
		o.connGauge,
		o.sessionGauge,
		o.attachTotal,
		o.replaceTotal,
		o.closeTotal,
		o.probeTotal,
		o.pairLatency,
		o.channelOpen,
	)
	return o
}

func (o *RelayObserver) ConnCount(n int64)  { o.connGauge.Set(float64(n)) }
func (o *RelayObserver) SessionCount(n int) { o.sessionGauge.Set(float64(n)) }

func (o *RelayObserver) Attach(result observability.AttachResult, reason observability.AttachReason) {
	o.attachTotal.WithLabelValues(string(result), string(reason)).Inc()
}

func (o *RelayObserver) Replace(result observability.ReplaceResult) {
	o.replaceTotal.WithLabelValues(string(result)).Inc()
}

func (o *RelayObserver) Close(reason observability.CloseReason) {
	o.closeTotal.WithLabelValues(string(reason)).Inc()
}

func (o *RelayObserver) ProbeFired(stage observability.ProbeStage) {
	o.probeTotal.WithLabelValues(string(stage)).Inc()
}

func (o *RelayObserver) PairLatency(d time.Duration) {
	o.pairLatency.Observe(d.Seconds())
}

func (o *RelayObserver) ChannelOpen() {
	o.channelOpen.Inc()
}
