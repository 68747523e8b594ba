package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Counts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveRequest("create", time.Now(), nil)
	m.ObserveRequest("create", time.Now(), errors.New("down"))
	m.Fallback("create")
	m.CacheLookup("audio", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("create", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fallbacks.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cache.WithLabelValues("audio", "hit")))
}

func TestMetrics_Watch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.WatchQueue(func() int { return 3 }, func() int { return 2 })
	m.WatchCache(func() int { return 7 })

	families, err := reg.Gather()
	assert.NoError(t, err)
	values := map[string]float64{}
	for _, f := range families {
		if f.GetType().String() == "GAUGE" {
			values[f.GetName()] = f.GetMetric()[0].GetGauge().GetValue()
		}
	}
	assert.Equal(t, 3.0, values["storyteller_media_queue_depth"])
	assert.Equal(t, 2.0, values["storyteller_media_queue_workers"])
	assert.Equal(t, 7.0, values["storyteller_media_cache_entries"])

	n, err := testutil.GatherAndCount(reg, "storyteller_media_queue_depth")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("choose", time.Now(), nil)
		m.Fallback("choose")
		m.CacheLookup("image", false)
		m.WatchQueue(func() int { return 0 }, func() int { return 0 })
		m.WatchCache(func() int { return 0 })
	})
}
