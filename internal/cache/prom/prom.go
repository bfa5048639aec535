// Package prom exports cache.Metrics as Prometheus counters and gauges.
package prom

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshdurbin/newsfeed/internal/cache"
)

// Adapter implements cache.Metrics. All Prometheus metric types are
// goroutine-safe so the adapter is too.
type Adapter struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	coalesced prometheus.Counter
	evicts    *prometheus.CounterVec
	sizeEnt   prometheus.Gauge
	sizeCost  prometheus.Gauge
}

// New registers the metrics of one logical cache, labelled cache=name.
// A nil reg registers with prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace, name string) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	labels := prometheus.Labels{"cache": name}

	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "hits_total",
			Help:        "Lookups that found a ready or in-flight entry",
			ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "misses_total",
			Help:        "Lookups that found nothing",
			ConstLabels: labels,
		}),
		coalesced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "coalesced_total",
			Help:        "Callers that joined an in-flight load",
			ConstLabels: labels,
		}),
		evicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "evictions_total",
			Help:        "Ready entries evicted by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		sizeEnt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "size_entries",
			Help:        "Resident entries",
			ConstLabels: labels,
		}),
		sizeCost: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "size_cost",
			Help:        "Total cost of resident ready entries",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.coalesced, a.evicts, a.sizeEnt, a.sizeCost)
	return a
}

func (a *Adapter) Hit()       { a.hits.Inc() }
func (a *Adapter) Miss()      { a.misses.Inc() }
func (a *Adapter) Coalesced() { a.coalesced.Inc() }

func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(r.String()).Inc()
}

func (a *Adapter) Size(entries int, cost int64) {
	a.sizeEnt.Set(float64(entries))
	a.sizeCost.Set(float64(cost))
}

var _ cache.Metrics = (*Adapter)(nil)
