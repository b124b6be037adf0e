package ssp

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink abstracts the concrete metrics backend (Prometheus vs noop)
// so the hot path never pays for metric updates when metrics are disabled.
type metricsSink interface {
	incRead(rank int)
	incWrite(rank int)
	incCacheHit(rank int)
	incCacheMiss(rank int)
	incPrefetchFulfilled(rank int)
	incPrefetchDropped(rank int)
}

type noopMetrics struct{}

func (noopMetrics) incRead(int)              {}
func (noopMetrics) incWrite(int)              {}
func (noopMetrics) incCacheHit(int)           {}
func (noopMetrics) incCacheMiss(int)          {}
func (noopMetrics) incPrefetchFulfilled(int)  {}
func (noopMetrics) incPrefetchDropped(int)    {}

type promMetrics struct {
	reads              *prometheus.CounterVec
	writes             *prometheus.CounterVec
	cacheHits          *prometheus.CounterVec
	cacheMisses        *prometheus.CounterVec
	prefetchFulfilled  *prometheus.CounterVec
	prefetchDropped    *prometheus.CounterVec
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"rank"}
	pm := &promMetrics{
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyssp", Name: "reads_total", Help: "Number of Read calls.",
		}, label),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyssp", Name: "writes_total", Help: "Number of Write calls.",
		}, label),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyssp", Name: "cache_hits_total", Help: "Reads satisfied by the local cache without a remote pull.",
		}, label),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyssp", Name: "cache_misses_total", Help: "Reads that required at least one remote pull.",
		}, label),
		prefetchFulfilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyssp", Name: "prefetch_fulfilled_total", Help: "Prefetch requests satisfied by a fulfillment sweep.",
		}, label),
		prefetchDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lazyssp", Name: "prefetch_dropped_total", Help: "Prefetch requests dropped as understale during a sweep.",
		}, label),
	}
	reg.MustRegister(pm.reads, pm.writes, pm.cacheHits, pm.cacheMisses, pm.prefetchFulfilled, pm.prefetchDropped)
	return pm
}

func (m *promMetrics) incRead(rank int)  { m.reads.WithLabelValues(strconv.Itoa(rank)).Inc() }
func (m *promMetrics) incWrite(rank int) { m.writes.WithLabelValues(strconv.Itoa(rank)).Inc() }
func (m *promMetrics) incCacheHit(rank int) {
	m.cacheHits.WithLabelValues(strconv.Itoa(rank)).Inc()
}
func (m *promMetrics) incCacheMiss(rank int) {
	m.cacheMisses.WithLabelValues(strconv.Itoa(rank)).Inc()
}
func (m *promMetrics) incPrefetchFulfilled(rank int) {
	m.prefetchFulfilled.WithLabelValues(strconv.Itoa(rank)).Inc()
}
func (m *promMetrics) incPrefetchDropped(rank int) {
	m.prefetchDropped.WithLabelValues(strconv.Itoa(rank)).Inc()
}

func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
