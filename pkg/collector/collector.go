// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package collector gathers log lines from direct submissions and tailed
// files, filters and batches them, and hands batches to a sink with bounded
// retries.
package collector

import (
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/metrics"
	"github.com/DataDog/logpipe/pkg/util/compression"
	"github.com/DataDog/logpipe/pkg/util/log"
)

// SubmitResult reports what happened to a submitted entry.
type SubmitResult int

// Submit outcomes.
const (
	SubmitOK SubmitResult = iota
	SubmitFiltered
	SubmitFull
)

// Sink receives flushed batches. A non-nil error triggers the retry policy.
type Sink func(batch []*Entry) error

// Collector filters, batches and forwards log entries. The queue bound is
// soft: submissions above it schedule a background flush but are still
// accepted, trading precision for producer throughput.
type Collector struct {
	cfg  config.CollectorConfig
	sink Sink

	queue *entryQueue

	filtersMu sync.Mutex
	filters   []Filter

	errorCallbackMu sync.Mutex
	errorCallback   func(error)

	tasksMu sync.RWMutex
	tasks   chan func()
	workers sync.WaitGroup

	tailersMu sync.Mutex
	tailers   []*Tailer

	clk     clock.Clock
	running *atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// New returns a collector pushing batches to sink, ready to be started.
func New(cfg config.CollectorConfig, sink Sink) *Collector {
	return &Collector{
		cfg:     cfg,
		sink:    sink,
		queue:   newEntryQueue(),
		tasks:   make(chan func(), cfg.MaxQueueSize),
		clk:     clock.New(),
		running: atomic.NewBool(false),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the worker pool and the periodic flusher.
func (c *Collector) Start() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	for i := 0; i < c.cfg.ThreadPoolSize; i++ {
		c.workers.Add(1)
		go c.worker()
	}
	go c.flushPeriodically()
	log.Infof("Collector started, flushing every %s", c.cfg.FlushInterval)
}

// Shutdown stops all background work and performs a final flush.
func (c *Collector) Shutdown() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	c.tailersMu.Lock()
	tailers := c.tailers
	c.tailers = nil
	c.tailersMu.Unlock()
	for _, t := range tailers {
		t.Stop()
	}

	c.stop <- struct{}{}
	<-c.done

	// drain whatever is left
	for c.queue.Size() > 0 {
		if err := c.Flush(); err != nil {
			log.Errorf("Final flush failed: %v", err)
			break
		}
	}
	c.tasksMu.Lock()
	close(c.tasks)
	c.tasksMu.Unlock()
	c.workers.Wait()
	log.Info("Collector stopped")
}

// AddFilter appends a filter.
func (c *Collector) AddFilter(filter Filter) {
	c.filtersMu.Lock()
	defer c.filtersMu.Unlock()
	c.filters = append(c.filters, filter)
}

// ClearFilters removes all filters.
func (c *Collector) ClearFilters() {
	c.filtersMu.Lock()
	defer c.filtersMu.Unlock()
	c.filters = nil
}

// SetErrorCallback registers the callback invoked when a batch is dropped
// after retry exhaustion or a tailer fails.
func (c *Collector) SetErrorCallback(callback func(error)) {
	c.errorCallbackMu.Lock()
	defer c.errorCallbackMu.Unlock()
	c.errorCallback = callback
}

func (c *Collector) reportError(err error) {
	c.errorCallbackMu.Lock()
	callback := c.errorCallback
	c.errorCallbackMu.Unlock()
	if callback != nil {
		callback(err)
	}
}

// Submit applies all filters and enqueues one entry. The content is replaced
// by its zlib form when compression is enabled.
func (c *Collector) Submit(content []byte, level message.Level) SubmitResult {
	if c.shouldDrop(content, level) {
		return SubmitFiltered
	}

	if c.cfg.StrictQueue && c.queue.Size() >= c.cfg.MaxQueueSize {
		metrics.LogsDropped.Add(1)
		metrics.TlmLogsDropped.Inc()
		c.schedule(func() {
			if err := c.Flush(); err != nil {
				log.Errorf("Overflow flush failed: %v", err)
			}
		})
		return SubmitFull
	}

	entry := &Entry{
		Content:   content,
		Level:     level,
		Timestamp: time.Now(),
	}
	if c.cfg.CompressLogs {
		if compressed, err := compression.Compress(content); err == nil {
			entry.Content = compressed
			entry.Compressed = true
		} else {
			log.Warnf("Compression failed, keeping original content: %v", err)
		}
	}

	if size := c.queue.Push(entry); size > c.cfg.MaxQueueSize {
		// soft bound: accept the entry but flush in the background
		c.schedule(func() {
			if err := c.Flush(); err != nil {
				log.Errorf("Overflow flush failed: %v", err)
			}
		})
	}
	return SubmitOK
}

// SubmitBatch submits each content and returns the number accepted.
func (c *Collector) SubmitBatch(contents [][]byte, level message.Level) int {
	accepted := 0
	for _, content := range contents {
		if c.Submit(content, level) == SubmitOK {
			accepted++
		}
	}
	return accepted
}

// Size returns the number of queued entries.
func (c *Collector) Size() int {
	return c.queue.Size()
}

// Flush drains up to batchSize entries and hands them to the sink. Sink
// failures are retried on worker tasks so the flusher is never blocked.
func (c *Collector) Flush() error {
	batch := c.queue.PopBatch(c.cfg.BatchSize)
	if len(batch) == 0 {
		return nil
	}
	if err := c.sink(batch); err != nil {
		if c.cfg.EnableRetry {
			c.schedule(func() { c.retry(batch, err) })
			return nil
		}
		c.reportError(fmt.Errorf("batch of %d entries dropped: %w", len(batch), err))
		return err
	}
	return nil
}

// retry re-pushes a failed batch with a fixed interval until it succeeds or
// the retry budget is exhausted.
func (c *Collector) retry(batch []*Entry, lastErr error) {
	for attempt := 1; attempt <= c.cfg.MaxRetryCount; attempt++ {
		metrics.RetryCount.Add(1)
		metrics.TlmRetryCount.Inc()
		c.clk.Sleep(c.cfg.RetryInterval)
		if err := c.sink(batch); err == nil {
			return
		} else {
			lastErr = err
		}
	}
	c.reportError(fmt.Errorf("batch of %d entries dropped after %d retries: %w",
		len(batch), c.cfg.MaxRetryCount, lastErr))
}

func (c *Collector) shouldDrop(content []byte, level message.Level) bool {
	c.filtersMu.Lock()
	filters := make([]Filter, len(c.filters))
	copy(filters, c.filters)
	c.filtersMu.Unlock()

	for _, filter := range filters {
		if filter.ShouldDrop(content, level) {
			return true
		}
	}
	return false
}

// schedule queues work on the pool, falling back to a goroutine when the
// pool backlog is full. Late calls racing a shutdown are dropped instead of
// sending on the closed task channel.
func (c *Collector) schedule(task func()) {
	c.tasksMu.RLock()
	defer c.tasksMu.RUnlock()
	if !c.running.Load() {
		return
	}
	select {
	case c.tasks <- task:
	default:
		go task()
	}
}

func (c *Collector) worker() {
	defer c.workers.Done()
	for task := range c.tasks {
		task()
	}
}

// flushPeriodically drives the periodic flush, and the backup sidecar
// cleanup when backups are enabled, until shutdown.
func (c *Collector) flushPeriodically() {
	ticker := c.clk.Ticker(c.cfg.FlushInterval)
	cleaner := c.clk.Ticker(c.cleanInterval())
	defer func() {
		ticker.Stop()
		cleaner.Stop()
		close(c.done)
	}()
	for {
		select {
		case <-ticker.C:
			if err := c.Flush(); err != nil {
				log.Errorf("Periodic flush failed: %v", err)
			}
		case <-cleaner.C:
			if c.cfg.EnableBackup {
				c.cleanBackups()
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Collector) cleanInterval() time.Duration {
	if c.cfg.CleanInterval > 0 {
		return c.cfg.CleanInterval
	}
	return time.Hour
}

// cleanBackups drops backup sidecars older than the clean interval on every
// tailed file.
func (c *Collector) cleanBackups() {
	c.tailersMu.Lock()
	tailers := make([]*Tailer, len(c.tailers))
	copy(tailers, c.tailers)
	c.tailersMu.Unlock()
	for _, t := range tailers {
		t.cleanBackups(c.cleanInterval())
	}
}

// CollectFromFile spawns a tailer submitting each line of the file at path
// with the given level. The tailer truncates consumed bytes in place to
// bound disk usage.
func (c *Collector) CollectFromFile(path string, level message.Level, interval time.Duration, maxLinesPerRound int) (*Tailer, error) {
	tailer, err := NewTailer(c, path, level, interval, maxLinesPerRound, c.cfg.EnableBackup)
	if err != nil {
		c.reportError(fmt.Errorf("unable to tail %s: %w", path, err))
		return nil, err
	}
	c.tailersMu.Lock()
	c.tailers = append(c.tailers, tailer)
	c.tailersMu.Unlock()
	tailer.Start()
	return tailer, nil
}
