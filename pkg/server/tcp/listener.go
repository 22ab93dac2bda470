// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package tcp implements the intake listener. Producers hold long-lived
// connections and send one log line per CRLF-terminated frame.
package tcp

import (
	"fmt"
	"net"
	"sync"

	"go.uber.org/atomic"

	"github.com/DataDog/logpipe/pkg/util/log"
)

// Handlers are the callbacks a Listener invokes. OnFrame receives each
// decoded frame without its CRLF terminator.
type Handlers struct {
	OnConnect    func(connID uint64, addr string)
	OnFrame      func(connID uint64, addr string, frame []byte)
	OnDisconnect func(connID uint64)
}

// Listener accepts producer connections and spawns one worker per
// connection.
type Listener struct {
	port     int
	handlers Handlers

	listener net.Listener
	nextID   *atomic.Uint64

	mu      sync.Mutex
	workers map[uint64]*worker

	stopped *atomic.Bool
	wg      sync.WaitGroup
}

// NewListener returns a listener for the given port.
func NewListener(port int, handlers Handlers) *Listener {
	return &Listener{
		port:     port,
		handlers: handlers,
		nextID:   atomic.NewUint64(0),
		workers:  make(map[uint64]*worker),
		stopped:  atomic.NewBool(false),
	}
}

// Start binds the port and begins accepting connections.
func (l *Listener) Start() error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", l.port))
	if err != nil {
		return fmt.Errorf("unable to listen on port %d: %w", l.port, err)
	}
	l.listener = listener
	l.wg.Add(1)
	go l.run()
	log.Infof("Listening for log frames on %s", listener.Addr())
	return nil
}

// Addr returns the bound address, useful when port 0 was requested.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Stop closes the listener and every open connection, then waits for all
// workers to exit.
func (l *Listener) Stop() {
	l.stopped.Store(true)
	if l.listener != nil {
		l.listener.Close()
	}
	l.mu.Lock()
	workers := make([]*worker, 0, len(l.workers))
	for _, w := range l.workers {
		workers = append(workers, w)
	}
	l.mu.Unlock()
	for _, w := range workers {
		w.Stop()
	}
	l.wg.Wait()
}

// run accepts new connections until the listener closes.
func (l *Listener) run() {
	defer l.wg.Done()
	for {
		conn, err := l.listener.Accept()
		if err != nil {
			if !l.stopped.Load() {
				log.Errorf("Accept failed: %v", err)
			}
			return
		}
		connID := l.nextID.Inc()
		w := newWorker(connID, conn, l.handlers, l.release)

		l.mu.Lock()
		l.workers[connID] = w
		l.mu.Unlock()

		l.wg.Add(1)
		go func() {
			defer l.wg.Done()
			w.run()
		}()
	}
}

func (l *Listener) release(connID uint64) {
	l.mu.Lock()
	delete(l.workers, connID)
	l.mu.Unlock()
}
