package cache

// EvictReason explains why a ready entry left the cache
type EvictReason int

const (
	// EvictCapacity is removal to satisfy the entry count limit
	EvictCapacity EvictReason = iota
	// EvictCost is removal to satisfy the total cost limit
	EvictCost
)

func (r EvictReason) String() string {
	switch r {
	case EvictCapacity:
		return "capacity"
	case EvictCost:
		return "cost"
	default:
		return "unknown"
	}
}

// Metrics receives cache observability events
type Metrics interface {
	// Hit is a lookup that found an entry, ready or in progress
	Hit()

	// Miss is a lookup that found nothing
	Miss()

	// Coalesced is a caller that joined an in-flight load instead of starting one
	Coalesced()

	// Evict is a ready entry dropped under capacity or cost pressure
	Evict(reason EvictReason)

	// Size reports resident entries and their total cost after a mutation
	Size(entries int, cost int64)
}
