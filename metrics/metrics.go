// Package metrics bundles the Prometheus collectors shared by the fetch,
// scrape and reconcile paths.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all collectors on a dedicated registry so tests and the
// /metrics endpoint never touch the global default registry.
type Metrics struct {
	Registry              *prometheus.Registry
	FetchRequestsTotal    *prometheus.CounterVec
	FetchDuration         prometheus.Histogram
	FetchRetriesTotal     prometheus.Counter
	FetchErrorsTotal      *prometheus.CounterVec
	ScrapesTotal          *prometheus.CounterVec
	ReconcilesTotal       *prometheus.CounterVec
	ReconcileBatchSeconds prometheus.Histogram
	PriceChangesTotal     prometheus.Counter
	PriceDropsTotal       prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	fetchRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_fetch_requests_total",
			Help: "Total page fetch attempts by result.",
		},
		[]string{"result"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_fetch_duration_seconds",
			Help:    "Latency of individual page fetch attempts.",
			Buckets: prometheus.DefBuckets,
		},
	)
	fetchRetries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_fetch_retries_total",
			Help: "Total fetch retry attempts.",
		},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_fetch_errors_total",
			Help: "Total fetch errors by type.",
		},
		[]string{"error_type"},
	)
	scrapes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_scrapes_total",
			Help: "Total product scrapes by result.",
		},
		[]string{"result"},
	)
	reconciles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_reconciles_total",
			Help: "Total per-product reconciliations by result.",
		},
		[]string{"result"},
	)
	batchSeconds := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tracker_reconcile_batch_duration_seconds",
			Help:    "Wall-clock duration of reconcile batches.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)
	priceChanges := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_price_changes_total",
			Help: "Total observed price changes.",
		},
	)
	priceDrops := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tracker_price_drops_total",
			Help: "Total target-price drop signals raised.",
		},
	)

	registry.MustRegister(fetchRequests, fetchDuration, fetchRetries, fetchErrors,
		scrapes, reconciles, batchSeconds, priceChanges, priceDrops)

	return &Metrics{
		Registry:              registry,
		FetchRequestsTotal:    fetchRequests,
		FetchDuration:         fetchDuration,
		FetchRetriesTotal:     fetchRetries,
		FetchErrorsTotal:      fetchErrors,
		ScrapesTotal:          scrapes,
		ReconcilesTotal:       reconciles,
		ReconcileBatchSeconds: batchSeconds,
		PriceChangesTotal:     priceChanges,
		PriceDropsTotal:       priceDrops,
	}
}

// IncFetch increments the fetch attempts counter for a result label.
func (m *Metrics) IncFetch(result string) {
	if m == nil {
		return
	}
	m.FetchRequestsTotal.WithLabelValues(result).Inc()
}

// ObserveFetchDuration records one fetch attempt's latency.
func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncFetchRetries increments the retry counter.
func (m *Metrics) IncFetchRetries() {
	if m == nil {
		return
	}
	m.FetchRetriesTotal.Inc()
}

// IncFetchError increments the fetch error counter for a type label.
func (m *Metrics) IncFetchError(errorType string) {
	if m == nil {
		return
	}
	m.FetchErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncScrape increments the scrapes counter for a result label.
func (m *Metrics) IncScrape(result string) {
	if m == nil {
		return
	}
	m.ScrapesTotal.WithLabelValues(result).Inc()
}

// IncReconcile increments the reconciliations counter for a result label.
func (m *Metrics) IncReconcile(result string) {
	if m == nil {
		return
	}
	m.ReconcilesTotal.WithLabelValues(result).Inc()
}

// ObserveBatchDuration records one reconcile batch's wall-clock time.
func (m *Metrics) ObserveBatchDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.ReconcileBatchSeconds.Observe(d.Seconds())
}

// IncPriceChange increments the price change counter.
func (m *Metrics) IncPriceChange() {
	if m == nil {
		return
	}
	m.PriceChangesTotal.Inc()
}

// IncPriceDrop increments the target-price signal counter.
func (m *Metrics) IncPriceDrop() {
	if m == nil {
		return
	}
	m.PriceDropsTotal.Inc()
}
