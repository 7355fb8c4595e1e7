package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records stream activity. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Connection metrics
	connectionsActive   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsReplaced prometheus.Counter
	authFailures        *prometheus.CounterVec

	// Message metrics
	messagesReceived *prometheus.CounterVec
	messagesSent     prometheus.Counter
	deliveryFailures prometheus.Counter
	rateLimited      prometheus.Counter

	// Scheduler metrics
	activeTimers  prometheus.Gauge
	ticks         *prometheus.CounterVec
	quoteFailures prometheus.Counter
	quoteLatency  prometheus.Histogram
}

// NewMetrics registers every collector on a private registry, plus the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		connectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "stream_connections_active",
			Help: "Number of currently registered sessions",
		}),
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_connections_accepted_total",
			Help: "Total number of authenticated sessions",
		}),
		connectionsReplaced: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_connections_replaced_total",
			Help: "Sessions closed because the same user connected again",
		}),
		authFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_auth_failures_total",
			Help: "Rejected connection attempts by reason",
		}, []string{"reason"}),

		messagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_messages_received_total",
			Help: "Control messages received by type",
		}, []string{"type"}),
		messagesSent: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_messages_sent_total",
			Help: "Messages queued to sessions",
		}),
		deliveryFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_delivery_failures_total",
			Help: "Sends that failed and tore the session down",
		}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_messages_rate_limited_total",
			Help: "Control messages dropped by the per-connection rate limit",
		}),

		activeTimers: f.NewGauge(prometheus.GaugeOpts{
			Name: "stream_active_timers",
			Help: "Running symbol and portfolio timers",
		}),
		ticks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "stream_ticks_total",
			Help: "Timer ticks by kind",
		}, []string{"kind"}),
		quoteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "stream_quote_failures_total",
			Help: "Ticks skipped because no quote could be obtained",
		}),
		quoteLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "stream_quote_fetch_seconds",
			Help:    "Latency of quote source calls",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// -----------------------------------------------------------------------------

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// -----------------------------------------------------------------------------

func (m *Metrics) SetConnections(n int) {
	if m == nil {
		return
	}
	m.connectionsActive.Set(float64(n))
}

func (m *Metrics) ConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *Metrics) ConnectionReplaced() {
	if m == nil {
		return
	}
	m.connectionsReplaced.Inc()
}

func (m *Metrics) AuthFailed(reason string) {
	if m == nil {
		return
	}
	m.authFailures.WithLabelValues(reason).Inc()
}

// -----------------------------------------------------------------------------

func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MessageSent() {
	if m == nil {
		return
	}
	m.messagesSent.Inc()
}

func (m *Metrics) DeliveryFailed() {
	if m == nil {
		return
	}
	m.deliveryFailures.Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}

// -----------------------------------------------------------------------------

func (m *Metrics) SetActiveTimers(n int) {
	if m == nil {
		return
	}
	m.activeTimers.Set(float64(n))
}

func (m *Metrics) Tick(kind string) {
	if m == nil {
		return
	}
	m.ticks.WithLabelValues(kind).Inc()
}

func (m *Metrics) QuoteFailed() {
	if m == nil {
		return
	}
	m.quoteFailures.Inc()
}

func (m *Metrics) ObserveQuoteLatency(seconds float64) {
	if m == nil {
		return
	}
	m.quoteLatency.Observe(seconds)
}
