// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/util/log"
)

// Tailer polls a file for new lines and submits them to its collector.
//
// Consumed bytes are truncated from the file after each round: the unread
// suffix is kept and rewritten at offset zero, so the file only ever holds
// the bytes not yet delivered to Submit. Producers appending to the file and
// the tailer rewriting it are serialized by truncateMu.
type Tailer struct {
	collector *Collector
	path      string
	level     message.Level
	interval  time.Duration
	maxLines  int
	backup    bool

	file    *os.File
	lastPos int64

	truncateMu sync.Mutex
	isFinished *atomic.Bool
	stop       chan struct{}
	done       chan struct{}
}

// NewTailer opens the file at path and returns a tailer ready to be started.
func NewTailer(c *Collector, path string, level message.Level, interval time.Duration, maxLines int, backup bool) (*Tailer, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if maxLines <= 0 {
		maxLines = 1000
	}
	return &Tailer{
		collector:  c,
		path:       path,
		level:      level,
		interval:   interval,
		maxLines:   maxLines,
		backup:     backup,
		file:       file,
		isFinished: atomic.NewBool(false),
		stop:       make(chan struct{}, 1),
		done:       make(chan struct{}),
	}, nil
}

// Start begins polling in a dedicated goroutine.
func (t *Tailer) Start() {
	go t.readForever()
}

// Stop stops the tailer and waits for the current round to finish.
func (t *Tailer) Stop() {
	t.stop <- struct{}{}
	<-t.done
}

// IsFinished returns true once the tailer has exited.
func (t *Tailer) IsFinished() bool {
	return t.isFinished.Load()
}

func (t *Tailer) readForever() {
	defer func() {
		t.file.Close()
		t.isFinished.Store(true)
		close(t.done)
		log.Infof("Closed %s, tailer exiting", t.path)
	}()
	for {
		select {
		case <-t.stop:
			return
		case <-time.After(t.interval):
			if err := t.round(); err != nil {
				t.collector.reportError(fmt.Errorf("tailer round on %s: %w", t.path, err))
				return
			}
		}
	}
}

// round reads up to maxLines new lines, submits them, then truncates the
// consumed prefix.
func (t *Tailer) round() error {
	info, err := t.file.Stat()
	if err != nil {
		return err
	}
	end := info.Size()
	if end <= t.lastPos {
		return nil
	}

	if _, err := t.file.Seek(t.lastPos, io.SeekStart); err != nil {
		return err
	}
	reader := bufio.NewReader(io.LimitReader(t.file, end-t.lastPos))

	consumed := int64(0)
	for lines := 0; lines < t.maxLines; lines++ {
		line, err := reader.ReadString('\n')
		if err != nil {
			// keep a trailing partial line in the file for the next round
			break
		}
		consumed += int64(len(line))
		if trimmed := strings.TrimRight(line, "\r\n"); trimmed != "" {
			t.collector.Submit([]byte(trimmed), t.level)
		}
	}

	lastReadPos := t.lastPos + consumed
	if consumed > 0 {
		if err := t.truncate(lastReadPos); err != nil {
			return err
		}
		t.lastPos = 0
	} else {
		t.lastPos = lastReadPos
	}
	return nil
}

// truncate rewrites the file to contain only the bytes at and after upTo.
func (t *Tailer) truncate(upTo int64) error {
	t.truncateMu.Lock()
	defer t.truncateMu.Unlock()

	if t.backup {
		if err := t.backupPrefix(upTo); err != nil {
			log.Warnf("Unable to back up consumed bytes of %s: %v", t.path, err)
		}
	}

	if _, err := t.file.Seek(upTo, io.SeekStart); err != nil {
		return err
	}
	suffix, err := io.ReadAll(t.file)
	if err != nil {
		return err
	}
	if err := t.file.Truncate(0); err != nil {
		return err
	}
	if len(suffix) > 0 {
		if _, err := t.file.WriteAt(suffix, 0); err != nil {
			return err
		}
	}
	return nil
}

// backupPrefix copies the consumed prefix to a timestamped sidecar before it
// is truncated away.
func (t *Tailer) backupPrefix(upTo int64) error {
	prefix := make([]byte, upTo)
	if _, err := t.file.ReadAt(prefix, 0); err != nil && err != io.EOF {
		return err
	}
	sidecar := fmt.Sprintf("%s.%d.bak", t.path, time.Now().Unix())
	return os.WriteFile(sidecar, prefix, 0644)
}

// cleanBackups removes sidecar files older than maxAge.
func (t *Tailer) cleanBackups(maxAge time.Duration) {
	sidecars, err := filepath.Glob(t.path + ".*.bak")
	if err != nil {
		return
	}
	cutoff := time.Now().Add(-maxAge)
	for _, sidecar := range sidecars {
		info, err := os.Stat(sidecar)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(sidecar); err != nil {
			log.Warnf("Unable to remove backup %s: %v", sidecar, err)
		}
	}
}
