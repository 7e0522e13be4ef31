package vecsearch

import (
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics from a Searcher.
// server.PrometheusCollector exports them to Prometheus.
type MetricsCollector interface {
	// RecordAdd is called after each AddText.
	RecordAdd(duration time.Duration, err error)

	// RecordBatchAdd is called after each AddTexts. count is the number of
	// texts attempted, failed the number skipped.
	RecordBatchAdd(count, failed int, duration time.Duration)

	// RecordSearch is called after each search. topn is the number of
	// results requested.
	RecordSearch(topn int, duration time.Duration, err error)

	// RecordDelete is called after each Delete with the number of ids.
	RecordDelete(count int)

	// RecordStore is called after each Store or Load.
	RecordStore(duration time.Duration, err error)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordAdd(time.Duration, error)         {}
func (NoopMetricsCollector) RecordBatchAdd(int, int, time.Duration) {}
func (NoopMetricsCollector) RecordSearch(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordDelete(int)                       {}
func (NoopMetricsCollector) RecordStore(time.Duration, error)       {}

// BasicMetricsCollector keeps simple in-memory counters.
type BasicMetricsCollector struct {
	AddCount         atomic.Int64
	AddErrors        atomic.Int64
	BatchAddCount    atomic.Int64
	BatchAddItems    atomic.Int64
	BatchAddFailed   atomic.Int64
	SearchCount      atomic.Int64
	SearchErrors     atomic.Int64
	SearchTotalNanos atomic.Int64
	DeleteCount      atomic.Int64
	StoreCount       atomic.Int64
	StoreErrors      atomic.Int64
}

// RecordAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAdd(_ time.Duration, err error) {
	b.AddCount.Add(1)
	if err != nil {
		b.AddErrors.Add(1)
	}
}

// RecordBatchAdd implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatchAdd(count, failed int, _ time.Duration) {
	b.BatchAddCount.Add(1)
	b.BatchAddItems.Add(int64(count))
	b.BatchAddFailed.Add(int64(failed))
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(_ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(count int) {
	b.DeleteCount.Add(int64(count))
}

// RecordStore implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStore(_ time.Duration, err error) {
	b.StoreCount.Add(1)
	if err != nil {
		b.StoreErrors.Add(1)
	}
}

// GetStats returns a snapshot of the counters.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		AddCount:       b.AddCount.Load(),
		AddErrors:      b.AddErrors.Load(),
		BatchAddCount:  b.BatchAddCount.Load(),
		BatchAddItems:  b.BatchAddItems.Load(),
		BatchAddFailed: b.BatchAddFailed.Load(),
		SearchCount:    b.SearchCount.Load(),
		SearchErrors:   b.SearchErrors.Load(),
		SearchAvgNanos: b.avgSearchNanos(),
		DeleteCount:    b.DeleteCount.Load(),
		StoreCount:     b.StoreCount.Load(),
		StoreErrors:    b.StoreErrors.Load(),
	}
}

func (b *BasicMetricsCollector) avgSearchNanos() int64 {
	count := b.SearchCount.Load()
	if count == 0 {
		return 0
	}
	return b.SearchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector.
type BasicMetricsStats struct {
	AddCount       int64
	AddErrors      int64
	BatchAddCount  int64
	BatchAddItems  int64
	BatchAddFailed int64
	SearchCount    int64
	SearchErrors   int64
	SearchAvgNanos int64
	DeleteCount    int64
	StoreCount     int64
	StoreErrors    int64
}
