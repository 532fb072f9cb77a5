package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP surface,
// the idempotency cache and the ledger itself.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	txDuration      *prometheus.HistogramVec

	paymentsApplied     *prometheus.CounterVec
	settlementConflicts prometheus.Counter
	underpayments       prometheus.Counter
	reversals           *prometheus.CounterVec
	installmentsCreated prometheus.Counter
	enrollmentsCreated  prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	txDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_tx_duration_seconds",
		Help:    "Duration of ledger transactions",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	paymentsApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payments_applied_total",
		Help: "Installments settled, by settlement path",
	}, []string{"path"})

	settlementConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_settlement_conflicts_total",
		Help: "Settlement attempts rejected because the installment was already paid",
	})

	underpayments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_underpayments_total",
		Help: "Arbitrary-amount settlements below the installment amount",
	})

	reversals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_payment_reversals_total",
		Help: "Payments reversed, by resulting installment status",
	}, []string{"status"})

	installmentsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_installments_scheduled_total",
		Help: "Installments written by the scheduler",
	})

	enrollmentsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_enrollments_total",
		Help: "Enrollments created",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses, txDuration,
		paymentsApplied, settlementConflicts, underpayments, reversals, installmentsCreated, enrollmentsCreated, goroutines,
	)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		txDuration:          txDuration,
		paymentsApplied:     paymentsApplied,
		settlementConflicts: settlementConflicts,
		underpayments:       underpayments,
		reversals:           reversals,
		installmentsCreated: installmentsCreated,
		enrollmentsCreated:  enrollmentsCreated,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveTx records how long a ledger transaction took.
func (m *MetricsService) ObserveTx(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.txDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSettlement counts a settled installment; path is "full" or "arbitrary".
func (m *MetricsService) RecordSettlement(path string, underpaid bool) {
	if m == nil {
		return
	}
	m.paymentsApplied.WithLabelValues(path).Inc()
	if underpaid {
		m.underpayments.Inc()
	}
}

// RecordSettlementConflict counts a lost settlement race or a repeat payment.
func (m *MetricsService) RecordSettlementConflict() {
	if m == nil {
		return
	}
	m.settlementConflicts.Inc()
}

// RecordReversal counts a reversed payment.
func (m *MetricsService) RecordReversal(resulting string) {
	if m == nil {
		return
	}
	m.reversals.WithLabelValues(resulting).Inc()
}

// RecordEnrollment counts an enrollment and the installments scheduled for it.
// Scheduling onto an existing enrollment passes created=false.
func (m *MetricsService) RecordEnrollment(created bool, installments int) {
	if m == nil {
		return
	}
	if created {
		m.enrollmentsCreated.Inc()
	}
	m.installmentsCreated.Add(float64(installments))
}
