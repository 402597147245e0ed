package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StoreOperation identifies the entity-store method being instrumented.
type StoreOperation string

const (
	// StoreOperationPut records store writes issued by upserts.
	StoreOperationPut StoreOperation = "put"
	// StoreOperationGet records single-record reads.
	StoreOperationGet StoreOperation = "get"
	// StoreOperationDelete records administrative evictions.
	StoreOperationDelete StoreOperation = "delete"
	// StoreOperationScan records full-keyspace scans backing list queries.
	StoreOperationScan StoreOperation = "scan"
)

// StoreOutcome captures the result of a store operation.
type StoreOutcome string

const (
	// StoreOutcomeOK indicates the operation completed.
	StoreOutcomeOK StoreOutcome = "ok"
	// StoreOutcomeMiss indicates the key held no record.
	StoreOutcomeMiss StoreOutcome = "miss"
	// StoreOutcomeError indicates the store failed or timed out.
	StoreOutcomeError StoreOutcome = "error"
)

// Recorder publishes Prometheus metrics for engine and query activity.
type Recorder struct {
	gatherer prometheus.Gatherer
	handler  http.Handler

	upserts      *prometheus.CounterVec
	storeOps     *prometheus.CounterVec
	storeLatency *prometheus.HistogramVec

	queryRequests *prometheus.CounterVec
	queryLatency  *prometheus.HistogramVec
	gateDenials   *prometheus.CounterVec
}

// NewRecorder constructs a Prometheus-backed Recorder. When reg is nil a
// dedicated registry is created so multiple recorders can coexist without
// conflicting with the global default registerer.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	reg.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	upserts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipgate",
		Subsystem: "engine",
		Name:      "upserts_total",
		Help:      "Prediction upserts processed by the cache engine.",
	}, []string{"sport", "category", "result"})

	storeOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipgate",
		Subsystem: "store",
		Name:      "operations_total",
		Help:      "Entity store operations executed by the engine.",
	}, []string{"operation", "result"})

	storeLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tipgate",
		Subsystem: "store",
		Name:      "operation_duration_seconds",
		Help:      "Latency distribution for entity store operations.",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "result"})

	queryRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipgate",
		Subsystem: "query",
		Name:      "requests_total",
		Help:      "List and detail queries answered by the query service.",
	}, []string{"route", "tier", "result"})

	queryLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tipgate",
		Subsystem: "query",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for completed queries.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"route", "tier"})

	gateDenials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipgate",
		Subsystem: "gate",
		Name:      "denials_total",
		Help:      "Detail lookups the access gate denied by viewer tier.",
	}, []string{"tier", "category"})

	reg.MustRegister(upserts, storeOps, storeLatency, queryRequests, queryLatency, gateDenials)

	handler := promhttp.HandlerFor(reg, promhttp.HandlerOpts{})

	return &Recorder{
		gatherer:      reg,
		handler:       handler,
		upserts:       upserts,
		storeOps:      storeOps,
		storeLatency:  storeLatency,
		queryRequests: queryRequests,
		queryLatency:  queryLatency,
		gateDenials:   gateDenials,
	}
}

// Handler exposes the Prometheus HTTP handler for the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "metrics unavailable", http.StatusServiceUnavailable)
		})
	}
	return r.handler
}

// Gatherer returns the underlying Prometheus gatherer for tests and
// advanced integrations.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	if r == nil {
		return prometheus.NewRegistry()
	}
	return r.gatherer
}

// ObserveUpsert records the outcome of a single upsert attempt.
func (r *Recorder) ObserveUpsert(sport, category, result string) {
	if r == nil {
		return
	}
	r.upserts.WithLabelValues(normalizeLabel(sport), normalizeLabel(category), normalizeLabel(result)).Inc()
}

// ObserveStoreOp records the result and latency of an entity store call.
func (r *Recorder) ObserveStoreOp(op StoreOperation, result StoreOutcome, duration time.Duration) {
	if r == nil {
		return
	}
	opLabel := string(op)
	if opLabel == "" {
		opLabel = "unknown"
	}
	resLabel := string(result)
	if resLabel == "" {
		resLabel = string(StoreOutcomeError)
	}
	r.storeOps.WithLabelValues(opLabel, resLabel).Inc()
	r.storeLatency.WithLabelValues(opLabel, resLabel).Observe(duration.Seconds())
}

// ObserveQuery records a completed list or detail query.
func (r *Recorder) ObserveQuery(route, tier, result string, duration time.Duration) {
	if r == nil {
		return
	}
	routeLabel := normalizeLabel(route)
	tierLabel := normalizeLabel(tier)
	r.queryRequests.WithLabelValues(routeLabel, tierLabel, normalizeLabel(result)).Inc()
	r.queryLatency.WithLabelValues(routeLabel, tierLabel).Observe(duration.Seconds())
}

// ObserveGateDenial records a detail lookup rejected by the access gate.
func (r *Recorder) ObserveGateDenial(tier, category string) {
	if r == nil {
		return
	}
	r.gateDenials.WithLabelValues(normalizeLabel(tier), normalizeLabel(category)).Inc()
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
