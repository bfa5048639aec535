package cache

// Options configures an EntryCache. Zero values are usable: no limits and
// NoopMetrics.
type Options[V any] struct {
	// Capacity is the maximum number of entries; 0 disables the count limit.
	Capacity int

	// MaxCost limits the total cost of ready entries; 0 disables it.
	MaxCost int64

	// Cost returns the cost of a ready value. Nil means every value costs 0.
	Cost func(v V) int64

	// OnEvict is called for every ready entry evicted under pressure. It runs
	// with the cache lock held and must not call back into the cache.
	OnEvict func(key string, v V, reason EvictReason)

	Metrics Metrics
}
