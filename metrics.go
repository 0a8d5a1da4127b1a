package docluster

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// observability package ships a Prometheus implementation.
type MetricsCollector interface {
	// RecordRun is called once per Run or RunBatched call.
	RecordRun(docs int, duration time.Duration, err error)

	// RecordAlgorithm is called after each algorithm invocation.
	RecordAlgorithm(algorithm string, duration time.Duration, err error)

	// RecordFallback is called when execution moves to a fallback.
	RecordFallback(from, to string)

	// RecordDegraded is called when every algorithm failed.
	RecordDegraded()

	// RecordFusion is called after each fusion step.
	RecordFusion(method string, clusters int, duration time.Duration, err error)

	// RecordBatch is called after each batch of a batched run.
	RecordBatch(docs int, duration time.Duration, err error)

	// RecordCache is called after each result cache lookup.
	RecordCache(hit bool)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRun(int, time.Duration, error)            {}
func (NoopMetricsCollector) RecordAlgorithm(string, time.Duration, error)   {}
func (NoopMetricsCollector) RecordFallback(string, string)                  {}
func (NoopMetricsCollector) RecordDegraded()                                {}
func (NoopMetricsCollector) RecordFusion(string, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordBatch(int, time.Duration, error)          {}
func (NoopMetricsCollector) RecordCache(bool)                               {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests.
type BasicMetricsCollector struct {
	RunCount        atomic.Int64
	RunErrors       atomic.Int64
	RunDocuments    atomic.Int64
	RunTotalNanos   atomic.Int64
	AlgorithmCount  atomic.Int64
	AlgorithmErrors atomic.Int64
	FallbackCount   atomic.Int64
	DegradedCount   atomic.Int64
	FusionCount     atomic.Int64
	FusionErrors    atomic.Int64
	BatchCount      atomic.Int64
	BatchErrors     atomic.Int64
	CacheHits       atomic.Int64
	CacheMisses     atomic.Int64
}

// RecordRun implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRun(docs int, duration time.Duration, err error) {
	b.RunCount.Add(1)
	b.RunDocuments.Add(int64(docs))
	b.RunTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RunErrors.Add(1)
	}
}

// RecordAlgorithm implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAlgorithm(_ string, _ time.Duration, err error) {
	b.AlgorithmCount.Add(1)
	if err != nil {
		b.AlgorithmErrors.Add(1)
	}
}

// RecordFallback implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFallback(string, string) {
	b.FallbackCount.Add(1)
}

// RecordDegraded implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDegraded() {
	b.DegradedCount.Add(1)
}

// RecordFusion implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFusion(_ string, _ int, _ time.Duration, err error) {
	b.FusionCount.Add(1)
	if err != nil {
		b.FusionErrors.Add(1)
	}
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(_ int, _ time.Duration, err error) {
	b.BatchCount.Add(1)
	if err != nil {
		b.BatchErrors.Add(1)
	}
}

// RecordCache implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCache(hit bool) {
	if hit {
		b.CacheHits.Add(1)
	} else {
		b.CacheMisses.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		RunCount:        b.RunCount.Load(),
		RunErrors:       b.RunErrors.Load(),
		RunDocuments:    b.RunDocuments.Load(),
		AlgorithmCount:  b.AlgorithmCount.Load(),
		AlgorithmErrors: b.AlgorithmErrors.Load(),
		FallbackCount:   b.FallbackCount.Load(),
		DegradedCount:   b.DegradedCount.Load(),
		FusionCount:     b.FusionCount.Load(),
		FusionErrors:    b.FusionErrors.Load(),
		BatchCount:      b.BatchCount.Load(),
		BatchErrors:     b.BatchErrors.Load(),
		CacheHits:       b.CacheHits.Load(),
		CacheMisses:     b.CacheMisses.Load(),
	}
	if s.RunCount > 0 {
		s.RunAvgNanos = b.RunTotalNanos.Load() / s.RunCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	RunCount        int64
	RunErrors       int64
	RunDocuments    int64
	RunAvgNanos     int64
	AlgorithmCount  int64
	AlgorithmErrors int64
	FallbackCount   int64
	DegradedCount   int64
	FusionCount     int64
	FusionErrors    int64
	BatchCount      int64
	BatchErrors     int64
	CacheHits       int64
	CacheMisses     int64
}
