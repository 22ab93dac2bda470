// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package processor drains raw log payloads from the intake, parses them
// into records, archives both forms and forwards the records downstream.
package processor

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/metrics"
	"github.com/DataDog/logpipe/pkg/parsers"
	servertcp "github.com/DataDog/logpipe/pkg/server/tcp"
	"github.com/DataDog/logpipe/pkg/storage/cache"
	"github.com/DataDog/logpipe/pkg/storage/relational"
	"github.com/DataDog/logpipe/pkg/util/compression"
	"github.com/DataDog/logpipe/pkg/util/log"
)

// ProcessCallback is invoked after a payload has been parsed, archived and
// forwarded.
type ProcessCallback func(id string, success bool)

// RecordSink receives parsed records, typically the analyzer's submit. A
// false return means the record was rejected downstream.
type RecordSink func(record *message.LogRecord) bool

// connState tracks one producer connection.
type connState struct {
	addr string
	seq  uint64
}

// Processor owns the intake listener, the parser registry and the worker
// pool draining the payload queue.
type Processor struct {
	cfg      config.ProcessorConfig
	registry *parsers.Registry

	cache cache.Cache
	store *relational.Store
	sink  RecordSink

	callbackMu sync.Mutex
	callback   ProcessCallback

	listener *servertcp.Listener

	connsMu sync.Mutex
	conns   map[uint64]*connState

	queue   chan *message.LogData
	tasks   chan *message.LogData
	workers sync.WaitGroup

	running    *atomic.Bool
	stop       chan struct{}
	drainerOut chan struct{}
}

// New returns a processor forwarding parsed records to sink. Cache and
// store may be nil, in which case archiving is skipped.
func New(cfg config.ProcessorConfig, cacheStore cache.Cache, store *relational.Store, sink RecordSink) *Processor {
	p := &Processor{
		cfg:        cfg,
		registry:   parsers.NewRegistry(),
		cache:      cacheStore,
		store:      store,
		sink:       sink,
		conns:      make(map[uint64]*connState),
		queue:      make(chan *message.LogData, cfg.MaxQueueSize),
		tasks:      make(chan *message.LogData),
		running:    atomic.NewBool(false),
		stop:       make(chan struct{}),
		drainerOut: make(chan struct{}),
	}
	p.listener = servertcp.NewListener(cfg.TCPPort, servertcp.Handlers{
		OnConnect:    p.onConnect,
		OnFrame:      p.onFrame,
		OnDisconnect: p.onDisconnect,
	})
	return p
}

// AddParser appends a parser to the registry.
func (p *Processor) AddParser(parser parsers.Parser) {
	p.registry.Add(parser)
}

// ClearParsers removes all parsers.
func (p *Processor) ClearParsers() {
	p.registry.Clear()
}

// SetProcessCallback registers the completion callback.
func (p *Processor) SetProcessCallback(callback ProcessCallback) {
	p.callbackMu.Lock()
	defer p.callbackMu.Unlock()
	p.callback = callback
}

// Start launches the worker pool, the drainer and the intake listener.
func (p *Processor) Start() error {
	if !p.running.CompareAndSwap(false, true) {
		return nil
	}
	for i := 0; i < p.cfg.WorkerThreads; i++ {
		p.workers.Add(1)
		go p.worker()
	}
	go p.drain()
	if err := p.listener.Start(); err != nil {
		p.running.Store(false)
		return err
	}
	log.Infof("Processor started on port %d with %d workers", p.cfg.TCPPort, p.cfg.WorkerThreads)
	return nil
}

// Stop closes the intake, drains in-flight payloads and joins the pool.
func (p *Processor) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.listener.Stop()
	p.stop <- struct{}{}
	<-p.drainerOut
	close(p.tasks)
	p.workers.Wait()
	log.Info("Processor stopped")
}

// Addr returns the bound intake address.
func (p *Processor) Addr() string {
	return p.listener.Addr().String()
}

// SubmitLogData enqueues one payload, rejecting when the queue is full or
// the processor is stopped.
func (p *Processor) SubmitLogData(data *message.LogData) bool {
	if !p.running.Load() {
		return false
	}
	select {
	case p.queue <- data:
		return true
	default:
		metrics.LogsDropped.Add(1)
		metrics.TlmLogsDropped.Inc()
		return false
	}
}

func (p *Processor) onConnect(connID uint64, addr string) {
	p.connsMu.Lock()
	p.conns[connID] = &connState{addr: addr}
	p.connsMu.Unlock()
	log.Debugf("Producer %s connected (conn %d)", addr, connID)
}

func (p *Processor) onDisconnect(connID uint64) {
	p.connsMu.Lock()
	delete(p.conns, connID)
	p.connsMu.Unlock()
}

func (p *Processor) onFrame(connID uint64, addr string, frame []byte) {
	metrics.FramesReceived.Add(1)
	metrics.TlmFramesReceived.Inc()

	p.connsMu.Lock()
	state, ok := p.conns[connID]
	if !ok {
		state = &connState{addr: addr}
		p.conns[connID] = state
	}
	state.seq++
	id := fmt.Sprintf("tcp-%d-%d", connID, state.seq)
	p.connsMu.Unlock()

	payload := make([]byte, len(frame))
	copy(payload, frame)
	if !p.SubmitLogData(message.NewLogData(id, payload, addr)) {
		log.Warnf("Payload %s rejected, processor queue is full", id)
	}
}

// drain pulls up to batchSize payloads per tick and schedules them on the
// pool.
func (p *Processor) drain() {
	ticker := time.NewTicker(p.cfg.ProcessInterval)
	defer func() {
		ticker.Stop()
		close(p.drainerOut)
	}()
	for {
		select {
		case <-ticker.C:
			p.drainBatch()
		case <-p.stop:
			p.drainBatch()
			return
		}
	}
}

func (p *Processor) drainBatch() {
	for i := 0; i < p.cfg.BatchSize; i++ {
		select {
		case data := <-p.queue:
			p.tasks <- data
		default:
			return
		}
	}
}

func (p *Processor) worker() {
	defer p.workers.Done()
	for data := range p.tasks {
		p.process(data)
	}
}

// process parses, archives and forwards one payload.
func (p *Processor) process(data *message.LogData) {
	record := p.registry.Parse(data)
	metrics.LogsProcessed.Add(1)
	metrics.TlmLogsProcessed.Inc()

	success := p.archive(data, record)
	if p.sink != nil && !p.sink(record) {
		log.Warnf("Record %s rejected by the analyzer", record.ID)
		success = false
	}

	p.callbackMu.Lock()
	callback := p.callback
	p.callbackMu.Unlock()
	if callback != nil {
		callback(record.ID, success)
	}
}

// archive stores the raw payload in the cache and the parsed record in the
// relational store. Both destinations are best-effort; failures are logged
// and reported through the callback.
func (p *Processor) archive(data *message.LogData, record *message.LogRecord) bool {
	success := true
	if p.cache != nil {
		payload := data.Payload
		compressed := data.Compressed
		if p.cfg.CompressArchive && !compressed {
			if squeezed, err := compression.Compress(payload); err == nil {
				payload = squeezed
				compressed = true
			}
		}
		if err := p.cache.Set(cache.RawLogKey(record.ID), payload, cache.RawLogTTL); err != nil {
			log.Warnf("Unable to cache raw payload %s: %v", record.ID, err)
			success = false
		} else {
			info := map[string]string{
				"timestamp":  message.FormatTimestamp(data.Timestamp),
				"source":     data.Source,
				"compressed": strconv.FormatBool(compressed),
			}
			for k, v := range data.Metadata {
				info[k] = v
			}
			if err := p.cache.HSet(cache.RawLogInfoKey(record.ID), info, cache.RawLogTTL); err != nil {
				log.Warnf("Unable to cache payload info %s: %v", record.ID, err)
				success = false
			}
		}
	}
	if p.store != nil {
		if err := p.store.InsertRecord(record); err != nil {
			log.Warnf("Unable to archive record %s: %v", record.ID, err)
			success = false
		} else {
			metrics.LogsArchived.Add(1)
			metrics.TlmLogsArchived.Inc()
		}
	}
	return success
}
