package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by the session client and media generators.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
	fallbacks *prometheus.CounterVec
	cache     *prometheus.CounterVec
	reg       prometheus.Registerer
}

// New creates the collectors and registers them with reg when reg is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		reg: reg,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyteller",
			Name:      "backend_requests_total",
			Help:      "Backend requests by operation and outcome.",
		}, []string{"op", "outcome"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storyteller",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request latency by operation.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"op"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyteller",
			Name:      "fallback_segments_total",
			Help:      "Fallback segments produced instead of backend segments.",
		}, []string{"op"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storyteller",
			Name:      "media_cache_total",
			Help:      "Media reference cache lookups by kind and result.",
		}, []string{"kind", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.durations, m.fallbacks, m.cache)
	}
	return m
}

// ObserveRequest records one backend call.
func (m *Metrics) ObserveRequest(op string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.durations.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

// Fallback records a fallback segment for op.
func (m *Metrics) Fallback(op string) {
	if m == nil {
		return
	}
	m.fallbacks.WithLabelValues(op).Inc()
}

// CacheLookup records a media cache hit or miss.
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(kind, result).Inc()
}

// WatchQueue exports the media queue's depth and running workers.
func (m *Metrics) WatchQueue(depth, workers func() int) {
	if m == nil || m.reg == nil {
		return
	}
	m.reg.MustRegister(
		gaugeFunc("media_queue_depth", "Media jobs waiting for a worker.", depth),
		gaugeFunc("media_queue_workers", "Running media queue workers.", workers),
	)
}

// WatchCache exports the number of entries in the in-process media cache.
func (m *Metrics) WatchCache(entries func() int) {
	if m == nil || m.reg == nil {
		return
	}
	m.reg.MustRegister(gaugeFunc("media_cache_entries", "Entries in the in-process media cache.", entries))
}

func gaugeFunc(name, help string, f func() int) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "storyteller",
		Name:      name,
		Help:      help,
	}, func() float64 { return float64(f()) })
}
