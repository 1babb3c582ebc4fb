// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the agent. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Feed
	FeedFrames     *prometheus.CounterVec
	FeedReconnects prometheus.Counter
	FeedConnected  prometheus.Gauge
	Subscriptions  prometheus.Gauge

	// Pipeline
	TokensScanned prometheus.Counter
	Verdicts      *prometheus.CounterVec
	ScoreLatency  prometheus.Histogram
	LookupErrors  *prometheus.CounterVec

	// Execution
	Executions       *prometheus.CounterVec
	ExecutionLatency *prometheus.HistogramVec

	// Supervisor
	SupervisorTicks prometheus.Counter
	OpenPositions   prometheus.Gauge
	Exits           *prometheus.CounterVec

	// Status
	WalletBalance prometheus.Gauge
}

// NewMetrics creates a Metrics instance registered on its own registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "skull"
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FeedFrames: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "frames_total",
			Help:      "Inbound feed frames by kind (create, trade, ignored, malformed)",
		}, []string{"kind"}),
		FeedReconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a connection failure",
		}),
		FeedConnected: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "connected",
			Help:      "1 while the feed connection is established",
		}),
		Subscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "token_subscriptions",
			Help:      "Tokens currently subscribed for trade events",
		}),

		TokensScanned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "tokens_scanned_total",
			Help:      "New tokens received from the feed",
		}),
		Verdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "verdicts_total",
			Help:      "Scoring verdicts by value",
		}, []string{"verdict"}),
		ScoreLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "enrich_score_seconds",
			Help:      "Time spent enriching and scoring one token",
			Buckets:   prometheus.DefBuckets,
		}),
		LookupErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "lookup_errors_total",
			Help:      "Market data lookup failures by endpoint",
		}, []string{"endpoint"}),

		Executions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "Gateway calls by action and outcome",
		}, []string{"action", "outcome"}),
		ExecutionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "execution_seconds",
			Help:      "Build, sign and submit latency",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"action"}),

		SupervisorTicks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "ticks_total",
			Help:      "Position supervisor ticks",
		}),
		OpenPositions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "open_positions",
			Help:      "Open positions seen on the last tick",
		}),
		Exits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "supervisor",
			Name:      "exits_total",
			Help:      "Position exits by reason and outcome",
		}, []string{"reason", "outcome"}),

		WalletBalance: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "status",
			Name:      "wallet_balance_sol",
			Help:      "Last observed wallet balance",
		}),
	}
}

// Handler returns the HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// FeedFrame counts one inbound frame.
func (m *Metrics) FeedFrame(kind string) {
	if m == nil {
		return
	}
	m.FeedFrames.WithLabelValues(kind).Inc()
}

// FeedState records connection changes.
func (m *Metrics) FeedState(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.FeedConnected.Set(1)
	} else {
		m.FeedConnected.Set(0)
	}
}

// ReconnectScheduled counts one scheduled reconnect.
func (m *Metrics) ReconnectScheduled() {
	if m == nil {
		return
	}
	m.FeedReconnects.Inc()
}

// SetSubscriptions records the subscription set size.
func (m *Metrics) SetSubscriptions(n int) {
	if m == nil {
		return
	}
	m.Subscriptions.Set(float64(n))
}

// TokenScanned counts one detected token.
func (m *Metrics) TokenScanned() {
	if m == nil {
		return
	}
	m.TokensScanned.Inc()
}

// Verdict counts one scoring verdict and its latency.
func (m *Metrics) Verdict(verdict string, seconds float64) {
	if m == nil {
		return
	}
	m.Verdicts.WithLabelValues(verdict).Inc()
	m.ScoreLatency.Observe(seconds)
}

// LookupError counts one failed market data call.
func (m *Metrics) LookupError(endpoint string) {
	if m == nil {
		return
	}
	m.LookupErrors.WithLabelValues(endpoint).Inc()
}

// Execution records one gateway call.
func (m *Metrics) Execution(action string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.Executions.WithLabelValues(action, outcome).Inc()
	m.ExecutionLatency.WithLabelValues(action).Observe(seconds)
}

// SupervisorTick records one supervisor pass over n open positions.
func (m *Metrics) SupervisorTick(open int) {
	if m == nil {
		return
	}
	m.SupervisorTicks.Inc()
	m.OpenPositions.Set(float64(open))
}

// Exit records one exit attempt.
func (m *Metrics) Exit(reason string, ok bool) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	m.Exits.WithLabelValues(reason, outcome).Inc()
}

// SetBalance records the wallet balance.
func (m *Metrics) SetBalance(sol float64) {
	if m == nil {
		return
	}
	m.WalletBalance.Set(sol)
}
