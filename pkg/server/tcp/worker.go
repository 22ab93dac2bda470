// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package tcp

import (
	"bufio"
	"bytes"
	"io"
	"net"
	"time"

	"github.com/DataDog/logpipe/pkg/util/log"
)

// readTimeout is the idle time after which a producer connection is closed.
const readTimeout = 60 * time.Second

// maxFrameSize bounds a single frame; longer lines are truncated.
const maxFrameSize = 1024 * 1024

// worker reads CRLF frames from one connection.
type worker struct {
	connID   uint64
	conn     net.Conn
	handlers Handlers
	release  func(uint64)
	stop     chan struct{}
}

func newWorker(connID uint64, conn net.Conn, handlers Handlers, release func(uint64)) *worker {
	return &worker{
		connID:   connID,
		conn:     conn,
		handlers: handlers,
		release:  release,
		stop:     make(chan struct{}, 1),
	}
}

// Stop closes the connection, which unblocks the read loop.
func (w *worker) Stop() {
	select {
	case w.stop <- struct{}{}:
	default:
	}
	w.conn.Close()
}

// run reads frames until the connection closes or times out.
func (w *worker) run() {
	addr := w.conn.RemoteAddr().String()
	if w.handlers.OnConnect != nil {
		w.handlers.OnConnect(w.connID, addr)
	}
	defer func() {
		w.conn.Close()
		if w.handlers.OnDisconnect != nil {
			w.handlers.OnDisconnect(w.connID)
		}
		w.release(w.connID)
	}()

	reader := bufio.NewReaderSize(w.conn, 64*1024)
	for {
		select {
		case <-w.stop:
			return
		default:
		}
		w.conn.SetReadDeadline(time.Now().Add(readTimeout)) //nolint:errcheck
		line, err := readFrame(reader)
		if len(line) > 0 {
			frame := bytes.TrimRight(line, "\r\n")
			if len(frame) > 0 && w.handlers.OnFrame != nil {
				w.handlers.OnFrame(w.connID, addr, frame)
			}
		}
		if err == io.EOF {
			return
		}
		if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
			log.Debugf("Connection %d idle for %s, closing", w.connID, readTimeout)
			return
		}
		if err != nil {
			log.Warnf("Couldn't read frame from connection %d: %v", w.connID, err)
			return
		}
	}
}

// readFrame reads one newline-terminated frame, keeping at most maxFrameSize
// bytes. The remainder of an overlong line is consumed and discarded, so a
// producer that never sends a newline cannot grow memory unboundedly.
func readFrame(reader *bufio.Reader) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(chunk) > 0 && len(frame) < maxFrameSize {
			keep := maxFrameSize - len(frame)
			if keep > len(chunk) {
				keep = len(chunk)
			}
			frame = append(frame, chunk[:keep]...)
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		return frame, err
	}
}
