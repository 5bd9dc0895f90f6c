package metrics

import (
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/chain-monitor/pkg/registry"
)

const (
	Namespace = "chainmonitor"

	// Status label values for success/error metrics
	StatusSuccess = "success"
	StatusError   = "error"

	Source = "source"
	Cycle  = "cycle"
	Export = "export"
	HTTP   = "http"
)

// Labels holds constant labels applied to all metrics.
// These are useful for distinguishing metrics from multiple monitor instances.
type Labels struct {
	Instance      string // Instance name (e.g., "primary", "mirror")
	Environment   string // Deployment environment (e.g., "production", "staging", "development")
	Region        string // Cloud region (e.g., "us-east-1", "eu-west-1")
	CloudProvider string // Cloud provider (e.g., "aws", "oci", "gcp")
}

// toPrometheusLabels converts Labels to prometheus.Labels map.
// Only non-empty labels are included to avoid empty label values.
func (l Labels) toPrometheusLabels() prometheus.Labels {
	labels := prometheus.Labels{}
	if l.Instance != "" {
		labels["instance_name"] = l.Instance
	}
	if l.Environment != "" {
		labels["environment"] = l.Environment
	}
	if l.Region != "" {
		labels["region"] = l.Region
	}
	if l.CloudProvider != "" {
		labels["cloud_provider"] = l.CloudProvider
	}
	return labels
}

type Metrics struct {
	// Aggregated chain state
	chainHeight *prometheus.GaugeVec
	bestHeight  *prometheus.GaugeVec
	updates     *prometheus.CounterVec
	errors      *prometheus.CounterVec

	// Source fetches
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	// Poll cycles
	cycleDuration prometheus.Histogram
	cycleTimeouts prometheus.Counter

	// Subscribers
	subscribers   prometheus.Gauge
	droppedEvents prometheus.Counter

	// Event export
	exportedEvents *prometheus.CounterVec

	// HTTP API
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance and registers all metrics with the provided registerer.
// Returns an error if any metric registration fails.
func New(reg prometheus.Registerer) (*Metrics, error) {
	return NewWithLabels(reg, Labels{})
}

// NewWithLabels creates a new Metrics instance with constant labels applied to all metrics.
func NewWithLabels(reg prometheus.Registerer, labels Labels) (*Metrics, error) {
	promLabels := labels.toPrometheusLabels()
	if len(promLabels) > 0 {
		reg = prometheus.WrapRegistererWith(promLabels, reg)
	}

	return newMetrics(reg)
}

func newMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		chainHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "chain_height",
			Help:      "Latest block height reported by a source for a chain",
		}, []string{"source", "chain", "ticker", "network_type"}),
		bestHeight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "best_height",
			Help:      "Best (maximum) block height observed for a chain across all sources",
		}, []string{"chain"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "updates_total",
			Help:      "Total recorded updates by source, chain and whether the state changed",
		}, []string{"source", "chain", "changed"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Total errors by type",
		}, []string{"type"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Source,
			Name:      "fetch_total",
			Help:      "Total remote fetches by source and status",
		}, []string{"source", "status"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Source,
			Name:      "fetch_duration_seconds",
			Help:      "Remote fetch duration in seconds",
			// Third-party explorers are slow: 10ms up to 30s
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"source"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: Cycle,
			Name:      "duration_seconds",
			Help:      "Time for all sources to finish one poll cycle",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		}),
		cycleTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Cycle,
			Name:      "timeouts_total",
			Help:      "Total poll cycles abandoned because of the cycle timeout",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "subscribers",
			Help:      "Number of connected live-update subscribers",
		}),
		droppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "dropped_events_total",
			Help:      "Total events dropped from full subscriber queues",
		}),
		exportedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: Export,
			Name:      "events_total",
			Help:      "Total state-change events exported by status",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: HTTP,
			Name:      "requests_total",
			Help:      "Total HTTP requests by route and status code",
		}, []string{"path", "code"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: HTTP,
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route; WebSocket streams count until disconnect",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path"}),
	}

	err := errors.Join(
		reg.Register(m.chainHeight),
		reg.Register(m.bestHeight),
		reg.Register(m.updates),
		reg.Register(m.errors),
		reg.Register(m.fetches),
		reg.Register(m.fetchDuration),
		reg.Register(m.cycleDuration),
		reg.Register(m.cycleTimeouts),
		reg.Register(m.subscribers),
		reg.Register(m.droppedEvents),
		reg.Register(m.exportedEvents),
		reg.Register(m.httpRequests),
		reg.Register(m.httpRequestDuration),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// Error type constants for errors that are not tied to a fetch.
const (
	ErrTypeBehindUnderflow = "behind_underflow"
	ErrTypeUnknownTicker   = "unknown_ticker"
	ErrTypeEncode          = "encode"
)

// IncError increments the error counter for the given error type.
func (m *Metrics) IncError(errType string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(errType).Inc()
}

// RecordUpdate records a height reported by a source and whether it changed the stored state.
func (m *Metrics) RecordUpdate(source registry.SourceID, chain registry.ChainID, height uint64, changed bool) {
	if m == nil {
		return
	}
	m.chainHeight.WithLabelValues(
		string(source),
		string(chain),
		chain.Ticker(),
		string(chain.NetworkType()),
	).Set(float64(height))
	m.updates.WithLabelValues(string(source), string(chain), strconv.FormatBool(changed)).Inc()
}

// SetBestHeight updates the best height gauge of a chain.
func (m *Metrics) SetBestHeight(chain registry.ChainID, height uint64) {
	if m == nil {
		return
	}
	m.bestHeight.WithLabelValues(string(chain)).Set(float64(height))
}

// RecordFetch records the outcome of a remote fetch.
func (m *Metrics) RecordFetch(source registry.SourceID, err error, durationSeconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.fetches.WithLabelValues(string(source), status).Inc()
	m.fetchDuration.WithLabelValues(string(source)).Observe(durationSeconds)
}

// ObserveCycle records a finished poll cycle.
func (m *Metrics) ObserveCycle(durationSeconds float64, timedOut bool) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(durationSeconds)
	if timedOut {
		m.cycleTimeouts.Inc()
	}
}

// IncSubscribers increments the connected subscribers gauge.
func (m *Metrics) IncSubscribers() {
	if m == nil {
		return
	}
	m.subscribers.Inc()
}

// DecSubscribers decrements the connected subscribers gauge.
func (m *Metrics) DecSubscribers() {
	if m == nil {
		return
	}
	m.subscribers.Dec()
}

// IncDroppedEvents counts one event dropped from a subscriber queue.
func (m *Metrics) IncDroppedEvents() {
	if m == nil {
		return
	}
	m.droppedEvents.Inc()
}

// RecordExport records the outcome of exporting one event.
func (m *Metrics) RecordExport(err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.exportedEvents.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest records a served HTTP request.
func (m *Metrics) ObserveHTTPRequest(path string, code int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, strconv.Itoa(code)).Inc()
	m.httpRequestDuration.WithLabelValues(path).Observe(durationSeconds)
}
