// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package analyzer

import (
	"runtime"
	"sync"
	"time"

	"go.uber.org/atomic"
)

// RuleMetrics is the per-rule slice of a metrics snapshot.
type RuleMetrics struct {
	MatchCount    int64
	ProcessTime   time.Duration
	ErrorCount    int64
	LastMatchTime time.Time
}

// MetricsSnapshot is the point-in-time view returned by GetMetrics.
type MetricsSnapshot struct {
	TotalRecords     int64
	PendingRecords   int
	ErrorRecords     int64
	TotalProcessTime time.Duration
	PeakMemoryUsage  uint64
	Rules            map[string]RuleMetrics
}

// analyzerMetrics accumulates counters during analysis. Scalars are atomic,
// the per-rule map sits under one mutex.
type analyzerMetrics struct {
	totalRecords     *atomic.Int64
	errorRecords     *atomic.Int64
	totalProcessTime *atomic.Int64 // microseconds
	peakMemoryUsage  *atomic.Uint64

	mu    sync.Mutex
	rules map[string]*RuleMetrics
}

func newAnalyzerMetrics() *analyzerMetrics {
	return &analyzerMetrics{
		totalRecords:     atomic.NewInt64(0),
		errorRecords:     atomic.NewInt64(0),
		totalProcessTime: atomic.NewInt64(0),
		peakMemoryUsage:  atomic.NewUint64(0),
		rules:            make(map[string]*RuleMetrics),
	}
}

func (m *analyzerMetrics) recordRule(name string, elapsed time.Duration, matched bool, failed bool) {
	m.totalProcessTime.Add(elapsed.Microseconds())

	m.mu.Lock()
	defer m.mu.Unlock()
	rm, ok := m.rules[name]
	if !ok {
		rm = &RuleMetrics{}
		m.rules[name] = rm
	}
	rm.ProcessTime += elapsed
	if matched {
		rm.MatchCount++
		rm.LastMatchTime = time.Now()
	}
	if failed {
		rm.ErrorCount++
	}
}

// sampleMemory tracks the high-water mark of the heap.
func (m *analyzerMetrics) sampleMemory() {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	for {
		peak := m.peakMemoryUsage.Load()
		if stats.HeapAlloc <= peak || m.peakMemoryUsage.CompareAndSwap(peak, stats.HeapAlloc) {
			return
		}
	}
}

func (m *analyzerMetrics) snapshot(pending int) MetricsSnapshot {
	snap := MetricsSnapshot{
		TotalRecords:     m.totalRecords.Load(),
		PendingRecords:   pending,
		ErrorRecords:     m.errorRecords.Load(),
		TotalProcessTime: time.Duration(m.totalProcessTime.Load()) * time.Microsecond,
		PeakMemoryUsage:  m.peakMemoryUsage.Load(),
		Rules:            make(map[string]RuleMetrics),
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, rm := range m.rules {
		snap.Rules[name] = *rm
	}
	return snap
}
