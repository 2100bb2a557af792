package usearch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operation counters. Implementations must be
// safe for concurrent use.
type MetricsCollector interface {
	// RecordAdd is called after Add and AddBatch with the attempted and failed item counts.
	RecordAdd(count, failed int, duration time.Duration)

	// RecordSearch is called once per Search, SearchBuffer or SearchBatch call.
	RecordSearch(queries int, stats SearchStats, duration time.Duration, err error)

	// RecordRemove is called after Remove and RemoveBatch.
	RecordRemove(removed int, duration time.Duration, err error)

	// RecordJoin is called after Join.
	RecordJoin(matched int, duration time.Duration, err error)

	// RecordCluster is called after Cluster and Subcluster.
	RecordCluster(members, centroids int, duration time.Duration, err error)
}

// NoopMetricsCollector discards everything.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(int, int, time.Duration)                   {}
func (NoopMetricsCollector) RecordSearch(int, SearchStats, time.Duration, error) {}
func (NoopMetricsCollector) RecordRemove(int, time.Duration, error)              {}
func (NoopMetricsCollector) RecordJoin(int, time.Duration, error)                {}
func (NoopMetricsCollector) RecordCluster(int, int, time.Duration, error)        {}

// BasicMetricsCollector keeps in-memory counters.
type BasicMetricsCollector struct {
	AddCount          atomic.Int64
	AddFailed         atomic.Int64
	AddTotalNanos     atomic.Int64
	SearchCount       atomic.Int64
	SearchQueries     atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	VisitedMembers    atomic.Int64
	ComputedDistances atomic.Int64
	RemoveCount       atomic.Int64
	RemoveErrors      atomic.Int64
	JoinCount         atomic.Int64
	JoinMatched       atomic.Int64
	ClusterCount      atomic.Int64
	ClusterErrors     atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(count, failed int, duration time.Duration) {
	b.AddCount.Add(int64(count))
	b.AddFailed.Add(int64(failed))
	b.AddTotalNanos.Add(duration.Nanoseconds())
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(queries int, stats SearchStats, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchQueries.Add(int64(queries))
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	b.VisitedMembers.Add(int64(stats.VisitedMembers))
	b.ComputedDistances.Add(int64(stats.ComputedDistances))
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordRemove implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRemove(removed int, _ time.Duration, err error) {
	b.RemoveCount.Add(int64(removed))
	if err != nil {
		b.RemoveErrors.Add(1)
	}
}

// RecordJoin implements MetricsCollector.
func (b *BasicMetricsCollector) RecordJoin(matched int, _ time.Duration, err error) {
	if err == nil {
		b.JoinCount.Add(1)
		b.JoinMatched.Add(int64(matched))
	}
}

// RecordCluster implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCluster(_, _ int, _ time.Duration, err error) {
	b.ClusterCount.Add(1)
	if err != nil {
		b.ClusterErrors.Add(1)
	}
}

// Snapshot returns the current counter values.
func (b *BasicMetricsCollector) Snapshot() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:          b.AddCount.Load(),
		AddFailed:         b.AddFailed.Load(),
		AddAvgNanos:       average(b.AddTotalNanos.Load(), b.AddCount.Load()),
		SearchCount:       b.SearchCount.Load(),
		SearchQueries:     b.SearchQueries.Load(),
		SearchErrors:      b.SearchErrors.Load(),
		SearchAvgNanos:    average(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		VisitedMembers:    b.VisitedMembers.Load(),
		ComputedDistances: b.ComputedDistances.Load(),
		RemoveCount:       b.RemoveCount.Load(),
		RemoveErrors:      b.RemoveErrors.Load(),
		JoinCount:         b.JoinCount.Load(),
		JoinMatched:       b.JoinMatched.Load(),
		ClusterCount:      b.ClusterCount.Load(),
		ClusterErrors:     b.ClusterErrors.Load(),
	}
}

func average(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a point-in-time copy of BasicMetricsCollector.
type BasicMetricsStats struct {
	AddCount          int64
	AddFailed         int64
	AddAvgNanos       int64
	SearchCount       int64
	SearchQueries     int64
	SearchErrors      int64
	SearchAvgNanos    int64
	VisitedMembers    int64
	ComputedDistances int64
	RemoveCount       int64
	RemoveErrors      int64
	JoinCount         int64
	JoinMatched       int64
	ClusterCount      int64
	ClusterErrors     int64
}
