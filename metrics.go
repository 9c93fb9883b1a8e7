package quadtree

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives one call per index operation.
// Implement it to feed a monitoring system; see package prommetrics.
type MetricsCollector interface {
	// RecordInsert is called after each Insert, err is nil on success.
	RecordInsert(duration time.Duration, err error)

	// RecordSplit is called whenever a leaf is subdivided.
	RecordSplit(depth, orphans int)

	// RecordSearch is called after each radius search. candidates is the
	// number of handles the tree produced, matches the number returned.
	RecordSearch(candidates, matches int, duration time.Duration)

	// RecordRemove is called after each Remove.
	RecordRemove(duration time.Duration, found bool)

	// RecordReinsert is called after each Reinsert.
	RecordReinsert(duration time.Duration, err error)
}

// NoopMetricsCollector drops everything.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordInsert(time.Duration, error)    {}
func (NoopMetricsCollector) RecordSplit(int, int)                 {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordRemove(time.Duration, bool)     {}
func (NoopMetricsCollector) RecordReinsert(time.Duration, error)  {}

// BasicMetricsCollector keeps in-memory counters.
// It is safe to share between indexes.
type BasicMetricsCollector struct {
	InsertCount      atomic.Int64
	InsertErrors     atomic.Int64
	InsertTotalNanos atomic.Int64
	SplitCount       atomic.Int64
	SplitOrphans     atomic.Int64
	MaxSplitDepth    atomic.Int64
	SearchCount      atomic.Int64
	SearchCandidates atomic.Int64
	SearchMatches    atomic.Int64
	SearchTotalNanos atomic.Int64
	RemoveCount      atomic.Int64
	RemoveMisses     atomic.Int64
	ReinsertCount    atomic.Int64
	ReinsertErrors   atomic.Int64
}

// RecordInsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordInsert(duration time.Duration, err error) {
	b.InsertCount.Add(1)
	b.InsertTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.InsertErrors.Add(1)
	}
}

// RecordSplit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSplit(depth, orphans int) {
	b.SplitCount.Add(1)
	b.SplitOrphans.Add(int64(orphans))
	for {
		cur := b.MaxSplitDepth.Load()
		if int64(depth) <= cur || b.MaxSplitDepth.CompareAndSwap(cur, int64(depth)) {
			return
		}
	}
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(candidates, matches int, duration time.Duration) {
	b.SearchCount.Add(1)
	b.SearchCandidates.Add(int64(candidates))
	b.SearchMatches.Add(int64(matches))
	b.SearchTotalNanos.Add(duration.Nanoseconds())
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(_ time.Duration, found bool) {
	b.RemoveCount.Add(1)
	if !found {
		b.RemoveMisses.Add(1)
	}
}

// RecordReinsert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordReinsert(_ time.Duration, err error) {
	b.ReinsertCount.Add(1)
	if err != nil {
		b.ReinsertErrors.Add(1)
	}
}

// Snapshot is a point-in-time copy of BasicMetricsCollector.
type Snapshot struct {
	Inserts          int64
	InsertErrors     int64
	AvgInsert        time.Duration
	Splits           int64
	SplitOrphans     int64
	MaxSplitDepth    int64
	Searches         int64
	SearchCandidates int64
	SearchMatches    int64
	AvgSearch        time.Duration
	Removes          int64
	RemoveMisses     int64
	Reinserts        int64
	ReinsertErrors   int64
}

// Snapshot returns the current counters with averages computed.
func (b *BasicMetricsCollector) Snapshot() Snapshot {
	s := Snapshot{
		Inserts:          b.InsertCount.Load(),
		InsertErrors:     b.InsertErrors.Load(),
		Splits:           b.SplitCount.Load(),
		SplitOrphans:     b.SplitOrphans.Load(),
		MaxSplitDepth:    b.MaxSplitDepth.Load(),
		Searches:         b.SearchCount.Load(),
		SearchCandidates: b.SearchCandidates.Load(),
		SearchMatches:    b.SearchMatches.Load(),
		Removes:          b.RemoveCount.Load(),
		RemoveMisses:     b.RemoveMisses.Load(),
		Reinserts:        b.ReinsertCount.Load(),
		ReinsertErrors:   b.ReinsertErrors.Load(),
	}
	if s.Inserts > 0 {
		s.AvgInsert = time.Duration(b.InsertTotalNanos.Load() / s.Inserts)
	}
	if s.Searches > 0 {
		s.AvgSearch = time.Duration(b.SearchTotalNanos.Load() / s.Searches)
	}
	return s
}
