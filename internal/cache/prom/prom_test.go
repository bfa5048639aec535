package prom

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshdurbin/newsfeed/internal/cache"
)

func TestAdapter_RecordsCacheActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := New(reg, "newsfeed", "details")

	c := cache.New(cache.Options[string]{Capacity: 1, Metrics: metrics})
	c.Set("a", cache.Ready("1"))
	c.Set("b", cache.Ready("2"))

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("b")
	assert.True(t, ok)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.misses))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.evicts.WithLabelValues("capacity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.sizeEnt))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "newsfeed_cache_hits_total")
	assert.Contains(t, names, "newsfeed_cache_coalesced_total")
}

func TestNew_SeparateCachesShareRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NotPanics(t, func() {
		New(reg, "newsfeed", "details")
		New(reg, "newsfeed", "media")
	})
}
