// Package metrics exposes Prometheus instrumentation for the codec and the
// LDAP front end.
package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KilimcininKorOglu/obaber/internal/ber"
	"github.com/KilimcininKorOglu/obaber/internal/digester"
)

// Metrics tracks decoder and connection activity.
//
// All metrics use the "obaber_" prefix. Methods handle a nil receiver, so a
// nil *Metrics is a no-op when metrics are disabled.
type Metrics struct {
	// PDUsDecoded counts completed messages by operation.
	// Labels: operation
	PDUsDecoded *prometheus.CounterVec

	// DecodeErrors counts terminal stream errors by kind.
	// Labels: kind=[malformed_tag, malformed_length, unexpected_eoc,
	//               truncated, max_depth, length_limit, rule, invalid_value, other]
	DecodeErrors *prometheus.CounterVec

	// RuleFailures counts failed rule callbacks by phase.
	// Labels: phase=[tag, length, value, finish]
	RuleFailures *prometheus.CounterVec

	BytesRead    prometheus.Counter
	BytesWritten prometheus.Counter

	ActiveConnections   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	ConnectionsRejected prometheus.Counter

	// ConnectionDuration observes connection lifetimes in seconds.
	ConnectionDuration prometheus.Histogram
}

// New creates and registers the metrics on registerer. If registerer is
// nil, prometheus.DefaultRegisterer is used.
func New(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		PDUsDecoded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obaber_pdus_decoded_total",
				Help: "Total LDAP messages decoded by operation",
			},
			[]string{"operation"},
		),
		DecodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obaber_decode_errors_total",
				Help: "Total terminal decode errors by kind",
			},
			[]string{"kind"},
		),
		RuleFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "obaber_rule_failures_total",
				Help: "Total digester rule failures by phase",
			},
			[]string{"phase"},
		),
		BytesRead: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "obaber_bytes_read_total",
				Help: "Total bytes read from clients",
			},
		),
		BytesWritten: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "obaber_bytes_written_total",
				Help: "Total bytes written to clients",
			},
		),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "obaber_active_connections",
				Help: "Current number of client connections",
			},
		),
		ConnectionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "obaber_connections_total",
				Help: "Total accepted client connections",
			},
		),
		ConnectionsRejected: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "obaber_connections_rejected_total",
				Help: "Total connections refused at the connection limit",
			},
		),
		ConnectionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "obaber_connection_duration_seconds",
				Help:    "Client connection lifetime in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
		),
	}

	registerer.MustRegister(
		m.PDUsDecoded,
		m.DecodeErrors,
		m.RuleFailures,
		m.BytesRead,
		m.BytesWritten,
		m.ActiveConnections,
		m.ConnectionsTotal,
		m.ConnectionsRejected,
		m.ConnectionDuration,
	)

	return m
}

// RecordPDU records one decoded message.
func (m *Metrics) RecordPDU(operation string) {
	if m == nil {
		return
	}
	m.PDUsDecoded.WithLabelValues(operation).Inc()
}

// RecordDecodeError records a terminal stream error.
func (m *Metrics) RecordDecodeError(err error) {
	if m == nil || err == nil {
		return
	}
	m.DecodeErrors.WithLabelValues(ErrorKind(err)).Inc()
}

// RecordRuleFailure records a failed rule callback.
func (m *Metrics) RecordRuleFailure(phase digester.Phase) {
	if m == nil {
		return
	}
	m.RuleFailures.WithLabelValues(phase.String()).Inc()
}

// AddBytesRead adds n to the bytes read counter.
func (m *Metrics) AddBytesRead(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesRead.Add(float64(n))
}

// AddBytesWritten adds n to the bytes written counter.
func (m *Metrics) AddBytesWritten(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.BytesWritten.Add(float64(n))
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ActiveConnections.Inc()
}

// ConnectionClosed records the end of a connection that lasted d.
func (m *Metrics) ConnectionClosed(d time.Duration) {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
	m.ConnectionDuration.Observe(d.Seconds())
}

// ConnectionRejected records a connection refused at the limit.
func (m *Metrics) ConnectionRejected() {
	if m == nil {
		return
	}
	m.ConnectionsRejected.Inc()
}

// ErrorKind maps a decode error to its metric label.
func ErrorKind(err error) string {
	var ruleErr *digester.RuleError
	switch {
	case errors.As(err, &ruleErr):
		return "rule"
	case errors.Is(err, ber.ErrMalformedTag):
		return "malformed_tag"
	case errors.Is(err, ber.ErrMalformedLength):
		return "malformed_length"
	case errors.Is(err, ber.ErrUnexpectedEndOfContents):
		return "unexpected_eoc"
	case errors.Is(err, ber.ErrTruncatedStream):
		return "truncated"
	case errors.Is(err, ber.ErrMaxDepthExceeded):
		return "max_depth"
	case errors.Is(err, ber.ErrLengthLimitExceeded):
		return "length_limit"
	case errors.Is(err, ber.ErrInvalidBoolean),
		errors.Is(err, ber.ErrInvalidInteger),
		errors.Is(err, ber.ErrInvalidNull),
		errors.Is(err, ber.ErrInvalidOID):
		return "invalid_value"
	default:
		return "other"
	}
}

// Monitor returns a digester.Monitor that counts rule failures on m.
func (m *Metrics) Monitor() digester.Monitor {
	return ruleMonitor{m: m}
}

type ruleMonitor struct {
	m *Metrics
}

func (rm ruleMonitor) RuleCompleted(digester.Pattern, digester.Rule) {}

func (rm ruleMonitor) RuleFailed(err *digester.RuleError) {
	rm.m.RecordRuleFailure(err.Phase)
}

// Handler returns an HTTP handler serving the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// NewHTTPServer returns an HTTP server exposing g at path on addr.
func NewHTTPServer(addr, path string, g prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, Handler(g))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
