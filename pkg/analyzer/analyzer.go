// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package analyzer runs a prioritized, grouped ruleset over parsed records
// and fans results out to a callback and optionally to storage.
package analyzer

import (
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/metrics"
	"github.com/DataDog/logpipe/pkg/storage/cache"
	"github.com/DataDog/logpipe/pkg/storage/relational"
	"github.com/DataDog/logpipe/pkg/util/log"
)

// AnalysisCallback receives one result per enabled rule per record.
type AnalysisCallback func(record *message.LogRecord, result Result)

// Analyzer owns the rule store and the worker pool evaluating it.
type Analyzer struct {
	cfg config.AnalyzerConfig

	rulesMu sync.Mutex
	rules   []Rule
	groups  map[string][]Rule

	callbackMu sync.Mutex
	callback   AnalysisCallback

	cache cache.Cache
	store *relational.Store

	queue   chan *message.LogRecord
	tasks   chan *message.LogRecord
	workers sync.WaitGroup

	running    *atomic.Bool
	stop       chan struct{}
	drainerOut chan struct{}

	metrics *analyzerMetrics
}

// New returns an analyzer ready to be started. Cache and store may be nil
// when storeResults is disabled.
func New(cfg config.AnalyzerConfig, cacheStore cache.Cache, store *relational.Store) *Analyzer {
	return &Analyzer{
		cfg:        cfg,
		groups:     make(map[string][]Rule),
		cache:      cacheStore,
		store:      store,
		queue:      make(chan *message.LogRecord, cfg.MaxQueueSize),
		tasks:      make(chan *message.LogRecord),
		running:    atomic.NewBool(false),
		stop:       make(chan struct{}),
		drainerOut: make(chan struct{}),
		metrics:    newAnalyzerMetrics(),
	}
}

// AddRule appends a rule, indexes its group and re-sorts the list by
// priority, highest first.
func (a *Analyzer) AddRule(rule Rule) {
	a.rulesMu.Lock()
	defer a.rulesMu.Unlock()
	a.rules = append(a.rules, rule)
	group := rule.Config().Group
	a.groups[group] = append(a.groups[group], rule)
	sort.SliceStable(a.rules, func(i, j int) bool {
		return a.rules[i].Config().Priority > a.rules[j].Config().Priority
	})
}

// ClearRules removes all rules.
func (a *Analyzer) ClearRules() {
	a.rulesMu.Lock()
	defer a.rulesMu.Unlock()
	a.rules = nil
	a.groups = make(map[string][]Rule)
}

// EnableGroup enables every rule in the group.
func (a *Analyzer) EnableGroup(group string) { a.setGroupEnabled(group, true) }

// DisableGroup disables every rule in the group.
func (a *Analyzer) DisableGroup(group string) { a.setGroupEnabled(group, false) }

func (a *Analyzer) setGroupEnabled(group string, enabled bool) {
	a.rulesMu.Lock()
	defer a.rulesMu.Unlock()
	for _, rule := range a.groups[group] {
		rule.Config().Enabled = enabled
	}
}

// SetAnalysisCallback registers the per-rule result callback.
func (a *Analyzer) SetAnalysisCallback(callback AnalysisCallback) {
	a.callbackMu.Lock()
	defer a.callbackMu.Unlock()
	a.callback = callback
}

// SubmitRecord enqueues one record. It returns false when the analyzer is
// stopped or the queue is full.
func (a *Analyzer) SubmitRecord(record *message.LogRecord) bool {
	if !a.running.Load() {
		return false
	}
	select {
	case a.queue <- record:
		return true
	default:
		metrics.LogsDropped.Add(1)
		metrics.TlmLogsDropped.Inc()
		return false
	}
}

// SubmitRecords enqueues a batch and returns the number accepted.
func (a *Analyzer) SubmitRecords(records []*message.LogRecord) int {
	accepted := 0
	for _, record := range records {
		if a.SubmitRecord(record) {
			accepted++
		}
	}
	return accepted
}

// Start launches the worker pool and the drainer.
func (a *Analyzer) Start() {
	if !a.running.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < a.cfg.ThreadPoolSize; i++ {
		a.workers.Add(1)
		go a.worker()
	}
	go a.drain()
	log.Infof("Analyzer started with %d workers", a.cfg.ThreadPoolSize)
}

// Stop drains in-flight records and joins the worker pool.
func (a *Analyzer) Stop() {
	if !a.running.CompareAndSwap(true, false) {
		return
	}
	a.stop <- struct{}{}
	<-a.drainerOut
	close(a.tasks)
	a.workers.Wait()
	log.Info("Analyzer stopped")
}

// GetMetrics returns a snapshot of the analyzer counters.
func (a *Analyzer) GetMetrics() MetricsSnapshot {
	return a.metrics.snapshot(len(a.queue))
}

// drain lifts up to batchSize records per tick and schedules them on the
// pool.
func (a *Analyzer) drain() {
	ticker := time.NewTicker(a.cfg.AnalyzeInterval)
	defer func() {
		ticker.Stop()
		close(a.drainerOut)
	}()
	for {
		select {
		case <-ticker.C:
			a.drainBatch()
		case <-a.stop:
			a.drainBatch()
			return
		}
	}
}

func (a *Analyzer) drainBatch() {
	for i := 0; i < a.cfg.BatchSize; i++ {
		select {
		case record := <-a.queue:
			a.tasks <- record
		default:
			return
		}
	}
}

func (a *Analyzer) worker() {
	defer a.workers.Done()
	for record := range a.tasks {
		a.analyze(record)
	}
}

// analyze traverses the ruleset in priority order for one record. The
// enabled set is snapshotted under rulesMu so concurrent group toggles
// never race with evaluation.
func (a *Analyzer) analyze(record *message.LogRecord) {
	a.rulesMu.Lock()
	rules := make([]Rule, 0, len(a.rules))
	for _, rule := range a.rules {
		if rule.Config().Enabled {
			rules = append(rules, rule)
		}
	}
	a.rulesMu.Unlock()

	a.metrics.totalRecords.Inc()
	metrics.RecordsAnalyzed.Add(1)
	metrics.TlmRecordsAnalyzed.Inc()

	merged := make(Result)
	erred := false
	for _, rule := range rules {
		cfg := rule.Config()
		deadline := time.Time{}
		if cfg.Timeout > 0 {
			deadline = time.Now().Add(cfg.Timeout)
		}

		start := time.Now()
		result, err := rule.Evaluate(record, deadline)
		elapsed := time.Since(start)

		if result == nil {
			result = make(Result)
		}
		if err != nil {
			result["error"] = err.Error()
			result["matched"] = "false"
			erred = true
		}
		result["rule"] = rule.Name()
		result["group"] = cfg.Group
		a.metrics.recordRule(rule.Name(), elapsed, result["matched"] == "true", err != nil)

		a.callbackMu.Lock()
		callback := a.callback
		a.callbackMu.Unlock()
		if callback != nil {
			callback(record, result)
		}
		for k, v := range result {
			merged[k] = v
		}
	}
	if erred {
		a.metrics.errorRecords.Inc()
	}
	if a.cfg.EnableMetrics {
		a.metrics.sampleMemory()
	}
	if a.cfg.StoreResults {
		a.persist(record, merged)
	}
}

// persist writes the merged results to the cache and the relational store.
// Storage failures are logged and never abort analysis.
func (a *Analyzer) persist(record *message.LogRecord, merged Result) {
	if len(merged) == 0 {
		return
	}
	if a.cache != nil {
		key := cache.AnalysisResultKey(record.ID)
		if err := a.cache.HSet(key, merged, cache.AnalysisResultTTL); err != nil {
			log.Warnf("Unable to cache analysis results for %s: %v", record.ID, err)
		} else if err := a.cache.SAdd(cache.RecentAnalysisResultsKey, record.ID); err != nil {
			log.Warnf("Unable to track recent result %s: %v", record.ID, err)
		}
	}
	if a.store != nil {
		row := &message.LogRecord{
			ID:        record.ID,
			Timestamp: record.Timestamp,
			Level:     record.Level,
			Source:    record.Source,
			Message:   record.Message,
			Fields:    make(map[string]string),
		}
		for k, v := range record.Fields {
			row.Fields[k] = v
		}
		for k, v := range merged {
			// results may override row columns through record.* keys
			switch k {
			case "record.level":
				row.Level = v
			case "record.source":
				row.Source = v
			case "record.message":
				row.Message = v
			default:
				row.Fields["analysis."+sanitizeFieldName(k)] = v
			}
		}
		if err := a.store.InsertRecord(row); err != nil {
			log.Warnf("Unable to archive analysis results for %s: %v", record.ID, err)
		}
	}
}

func sanitizeFieldName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
			return r
		}
		return '_'
	}, name)
}
