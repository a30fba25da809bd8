// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Chain metrics
	ActionsApplied    *prometheus.CounterVec
	ActionsRejected   *prometheus.CounterVec
	ActionLatency     *prometheus.HistogramVec
	AccountsCreated   prometheus.Counter
	ContractsDeployed prometheus.Counter
	HeadBlock         prometheus.Gauge
	Resets            prometheus.Counter

	// Wallet metrics
	KeysImported prometheus.Counter

	// API metrics
	HTTPRequests      *prometheus.CounterVec
	HTTPLatency       *prometheus.HistogramVec
	ClientCallLatency *prometheus.HistogramVec
	ClientRetries     *prometheus.CounterVec
	FeedSubscribers   prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	StartedAt prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "currency_ledger"
	}

	return &Metrics{
		ActionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "actions_applied_total",
			Help:      "Total number of actions applied by contract and action",
		}, []string{"contract", "action"}),
		ActionsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "actions_rejected_total",
			Help:      "Total number of rejected actions by action and error kind",
		}, []string{"action", "kind"}),
		ActionLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "action_latency_seconds",
			Help:      "Time to validate, apply and journal an action",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "accounts_created_total",
			Help:      "Total number of accounts created",
		}),
		ContractsDeployed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "contracts_deployed_total",
			Help:      "Total number of contract deployments",
		}),
		HeadBlock: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "head_block_num",
			Help:      "Sequence number of the last applied action",
		}),
		Resets: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "resets_total",
			Help:      "Total number of clean-state resets",
		}),

		KeysImported: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wallet",
			Name:      "keys_imported_total",
			Help:      "Total number of private keys imported",
		}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests by path and status code",
		}, []string{"path", "code"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_latency_seconds",
			Help:      "API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		ClientCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "call_latency_seconds",
			Help:      "Client call latency in seconds including retries",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
		ClientRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "retries_total",
			Help:      "Total number of client request retries",
		}, []string{"path"}),
		FeedSubscribers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "feed_subscribers",
			Help:      "Current number of receipt feed subscribers",
		}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"store", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"store", "operation"}),

		StartedAt: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "started_at_timestamp",
			Help:      "Unix timestamp of node start",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordActionApplied records an applied action and its latency.
func RecordActionApplied(contract, action string, seq uint64, elapsed time.Duration) {
	DefaultMetrics.ActionsApplied.WithLabelValues(contract, action).Inc()
	DefaultMetrics.ActionLatency.WithLabelValues(action).Observe(elapsed.Seconds())
	DefaultMetrics.HeadBlock.Set(float64(seq))
}

// RecordActionRejected records a rejected action by error kind.
func RecordActionRejected(action, kind string) {
	if kind == "" {
		kind = "internal"
	}
	DefaultMetrics.ActionsRejected.WithLabelValues(action, kind).Inc()
}

// RecordAccountCreated increments the accounts created counter.
func RecordAccountCreated() {
	DefaultMetrics.AccountsCreated.Inc()
}

// RecordContractDeployed increments the contracts deployed counter.
func RecordContractDeployed() {
	DefaultMetrics.ContractsDeployed.Inc()
}

// RecordKeyImported increments the keys imported counter.
func RecordKeyImported() {
	DefaultMetrics.KeysImported.Inc()
}

// RecordReset records a clean-state reset.
func RecordReset() {
	DefaultMetrics.Resets.Inc()
	DefaultMetrics.HeadBlock.Set(0)
}

// RecordHTTPRequest records a served API request.
func RecordHTTPRequest(path string, code int, elapsed time.Duration) {
	DefaultMetrics.HTTPRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
	DefaultMetrics.HTTPLatency.WithLabelValues(path).Observe(elapsed.Seconds())
}

// RecordClientCall records client call latency.
func RecordClientCall(path string, elapsed time.Duration) {
	DefaultMetrics.ClientCallLatency.WithLabelValues(path).Observe(elapsed.Seconds())
}

// RecordClientRetry increments the client retry counter.
func RecordClientRetry(path string) {
	DefaultMetrics.ClientRetries.WithLabelValues(path).Inc()
}

// UpdateFeedSubscribers sets the feed subscriber gauge.
func UpdateFeedSubscribers(n int) {
	DefaultMetrics.FeedSubscribers.Set(float64(n))
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(store, operation string, elapsed time.Duration, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(store, operation).Observe(elapsed.Seconds())
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(store, operation).Inc()
	}
}

// RecordDBError counts a storage error that never reached the store.
func RecordDBError(store, operation string) {
	DefaultMetrics.DBQueryErrors.WithLabelValues(store, operation).Inc()
}

// RecordStart sets the node start timestamp.
func RecordStart(t time.Time) {
	DefaultMetrics.StartedAt.Set(float64(t.Unix()))
}
