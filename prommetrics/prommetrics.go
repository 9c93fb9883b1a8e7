// Package prommetrics exports quadtree operation metrics to Prometheus.
package prommetrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	quadtree "github.com/blakemr/quadindex"
)

var _ quadtree.MetricsCollector = (*Collector)(nil)

// Collector implements quadtree.MetricsCollector with Prometheus counters
// and histograms.
type Collector struct {
	inserts          *prometheus.CounterVec
	insertLatency    prometheus.Histogram
	splits           prometheus.Counter
	splitDepth       prometheus.Histogram
	splitOrphans     prometheus.Histogram
	searches         prometheus.Counter
	searchCandidates prometheus.Histogram
	searchMatches    prometheus.Histogram
	searchLatency    prometheus.Histogram
	removes          *prometheus.CounterVec
	reinserts        *prometheus.CounterVec
	reinsertLatency  prometheus.Histogram
}

// New creates a Collector and registers it on reg. Metric names are
// prefixed with namespace.
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inserts_total",
			Help:      "Total inserts by outcome",
		}, []string{"result"}),
		insertLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "insert_duration_seconds",
			Help:      "Insert latency including cascaded reroutes",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		splits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "splits_total",
			Help:      "Total leaves subdivided",
		}),
		splitDepth: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "split_depth",
			Help:      "Depth of subdivided leaves",
			Buckets:   prometheus.LinearBuckets(0, 2, 12),
		}),
		splitOrphans: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "split_orphans",
			Help:      "Handles rerouted per split",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
		searches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "searches_total",
			Help:      "Total radius searches",
		}),
		searchCandidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_candidates",
			Help:      "Handles produced by the tree per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		searchMatches: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_matches",
			Help:      "Items returned per search",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		searchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Radius search latency",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
		removes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "removes_total",
			Help:      "Total removals by outcome",
		}, []string{"result"}),
		reinserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reinserts_total",
			Help:      "Total reinserts by outcome",
		}, []string{"result"}),
		reinsertLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reinsert_duration_seconds",
			Help:      "Reinsert latency",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 10),
		}),
	}

	for _, col := range []prometheus.Collector{
		c.inserts, c.insertLatency,
		c.splits, c.splitDepth, c.splitOrphans,
		c.searches, c.searchCandidates, c.searchMatches, c.searchLatency,
		c.removes,
		c.reinserts, c.reinsertLatency,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordInsert implements quadtree.MetricsCollector.
func (c *Collector) RecordInsert(d time.Duration, err error) {
	c.inserts.WithLabelValues(result(err)).Inc()
	c.insertLatency.Observe(d.Seconds())
}

// RecordSplit implements quadtree.MetricsCollector.
func (c *Collector) RecordSplit(depth, orphans int) {
	c.splits.Inc()
	c.splitDepth.Observe(float64(depth))
	c.splitOrphans.Observe(float64(orphans))
}

// RecordSearch implements quadtree.MetricsCollector.
func (c *Collector) RecordSearch(candidates, matches int, d time.Duration) {
	c.searches.Inc()
	c.searchCandidates.Observe(float64(candidates))
	c.searchMatches.Observe(float64(matches))
	c.searchLatency.Observe(d.Seconds())
}

// RecordRemove implements quadtree.MetricsCollector.
func (c *Collector) RecordRemove(_ time.Duration, found bool) {
	if found {
		c.removes.WithLabelValues("found").Inc()
		return
	}
	c.removes.WithLabelValues("missing").Inc()
}

// RecordReinsert implements quadtree.MetricsCollector.
func (c *Collector) RecordReinsert(d time.Duration, err error) {
	c.reinserts.WithLabelValues(result(err)).Inc()
	c.reinsertLatency.Observe(d.Seconds())
}
