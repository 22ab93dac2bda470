// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"sync"
	"time"

	"github.com/DataDog/logpipe/pkg/message"
)

// Entry is one collected log line waiting to be flushed.
type Entry struct {
	Content    []byte
	Level      message.Level
	Timestamp  time.Time
	Compressed bool
}

// entryQueue is a mutex-guarded FIFO. Multiple producers push, the flusher
// is the single consumer.
type entryQueue struct {
	mu      sync.Mutex
	entries []*Entry
}

func newEntryQueue() *entryQueue {
	return &entryQueue{}
}

// Push appends an entry and returns the new size.
func (q *entryQueue) Push(entry *Entry) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = append(q.entries, entry)
	return len(q.entries)
}

// PopBatch removes and returns up to max entries from the head.
func (q *entryQueue) PopBatch(max int) []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return nil
	}
	n := max
	if n > len(q.entries) {
		n = len(q.entries)
	}
	batch := make([]*Entry, n)
	copy(batch, q.entries[:n])
	q.entries = q.entries[n:]
	return batch
}

// Size returns the precise number of queued entries.
func (q *entryQueue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}
