// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/util/compression"
)

func testConfig() config.CollectorConfig {
	return config.CollectorConfig{
		BatchSize:      10,
		FlushInterval:  time.Hour, // flush manually in tests
		MaxQueueSize:   100,
		ThreadPoolSize: 2,
		MinLevel:       "INFO",
		EnableRetry:    true,
		MaxRetryCount:  2,
		RetryInterval:  5 * time.Millisecond,
	}
}

// recordingSink collects flushed batches and optionally fails the first
// attempts.
type recordingSink struct {
	mu       sync.Mutex
	batches  [][]*Entry
	failures int
}

func (s *recordingSink) push(batch []*Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.batches = append(s.batches, batch)
	return nil
}

func (s *recordingSink) batchCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *recordingSink) lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, batch := range s.batches {
		for _, entry := range batch {
			out = append(out, string(entry.Content))
		}
	}
	return out
}

func TestSubmitAndFlush(t *testing.T) {
	sink := &recordingSink{}
	c := New(testConfig(), sink.push)

	assert.Equal(t, SubmitOK, c.Submit([]byte("line 1"), message.LevelInfo))
	assert.Equal(t, SubmitOK, c.Submit([]byte("line 2"), message.LevelError))
	assert.Equal(t, 2, c.Size())

	require.NoError(t, c.Flush())
	assert.Equal(t, 0, c.Size())
	assert.Equal(t, []string{"line 1", "line 2"}, sink.lines())
}

func TestSubmitBatchCountsAccepted(t *testing.T) {
	c := New(testConfig(), (&recordingSink{}).push)
	c.AddFilter(NewLevelFilter(message.LevelWarning))

	accepted := c.SubmitBatch([][]byte{[]byte("a"), []byte("b")}, message.LevelDebug)
	assert.Equal(t, 0, accepted)

	accepted = c.SubmitBatch([][]byte{[]byte("a"), []byte("b")}, message.LevelError)
	assert.Equal(t, 2, accepted)
}

func TestLevelFilter(t *testing.T) {
	c := New(testConfig(), (&recordingSink{}).push)
	c.AddFilter(NewLevelFilter(message.LevelWarning))

	assert.Equal(t, SubmitFiltered, c.Submit([]byte("debug line"), message.LevelDebug))
	assert.Equal(t, SubmitOK, c.Submit([]byte("warning line"), message.LevelWarning))

	c.ClearFilters()
	assert.Equal(t, SubmitOK, c.Submit([]byte("debug line"), message.LevelDebug))
}

func TestKeywordFilterInclusive(t *testing.T) {
	f := NewKeywordFilter([]string{"healthcheck", "ping"}, true)
	assert.True(t, f.ShouldDrop([]byte("GET /healthcheck 200"), message.LevelInfo))
	assert.False(t, f.ShouldDrop([]byte("GET /users 200"), message.LevelInfo))
}

func TestKeywordFilterExclusive(t *testing.T) {
	f := NewKeywordFilter([]string{"payment"}, false)
	assert.False(t, f.ShouldDrop([]byte("payment accepted"), message.LevelInfo))
	assert.True(t, f.ShouldDrop([]byte("unrelated line"), message.LevelInfo))
}

func TestAnyFilterDrops(t *testing.T) {
	c := New(testConfig(), (&recordingSink{}).push)
	c.AddFilter(NewLevelFilter(message.LevelTrace))
	c.AddFilter(NewKeywordFilter([]string{"noise"}, true))

	assert.Equal(t, SubmitFiltered, c.Submit([]byte("some noise here"), message.LevelError))
}

func TestCompressedSubmit(t *testing.T) {
	cfg := testConfig()
	cfg.CompressLogs = true
	sink := &recordingSink{}
	c := New(cfg, sink.push)

	c.Submit([]byte("squeeze this content"), message.LevelInfo)
	require.NoError(t, c.Flush())

	require.Len(t, sink.lines(), 1)
	entry := sink.batches[0][0]
	assert.True(t, entry.Compressed)
	raw, err := compression.Decompress(entry.Content)
	require.NoError(t, err)
	assert.Equal(t, "squeeze this content", string(raw))
}

func TestRetryEventuallySucceeds(t *testing.T) {
	sink := &recordingSink{failures: 2}
	c := New(testConfig(), sink.push)
	c.Start()
	defer c.Shutdown()

	c.Submit([]byte("retry me"), message.LevelInfo)
	require.NoError(t, c.Flush())

	assert.Eventually(t, func() bool { return sink.batchCount() == 1 },
		time.Second, 10*time.Millisecond)
}

func TestRetryExhaustionReportsError(t *testing.T) {
	sink := &recordingSink{failures: 10}
	c := New(testConfig(), sink.push)

	errs := make(chan error, 1)
	c.SetErrorCallback(func(err error) { errs <- err })
	c.Start()
	defer c.Shutdown()

	c.Submit([]byte("doomed"), message.LevelInfo)
	require.NoError(t, c.Flush())

	select {
	case err := <-errs:
		assert.Contains(t, err.Error(), "dropped after 2 retries")
	case <-time.After(time.Second):
		t.Fatal("error callback was never invoked")
	}
}

func TestStrictQueueRejects(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 2
	cfg.StrictQueue = true
	c := New(cfg, (&recordingSink{}).push)

	assert.Equal(t, SubmitOK, c.Submit([]byte("1"), message.LevelInfo))
	assert.Equal(t, SubmitOK, c.Submit([]byte("2"), message.LevelInfo))
	assert.Equal(t, SubmitFull, c.Submit([]byte("3"), message.LevelInfo))
	assert.Equal(t, 2, c.Size())
}

func TestSoftQueueAcceptsUnderOverload(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 2
	sink := &recordingSink{}
	c := New(cfg, sink.push)
	c.Start()
	defer c.Shutdown()

	for i := 0; i < 10; i++ {
		assert.Equal(t, SubmitOK, c.Submit([]byte("burst"), message.LevelInfo))
	}
	// the overflow flush drains the queue in the background
	assert.Eventually(t, func() bool { return c.Size() == 0 },
		time.Second, 10*time.Millisecond)
}

func TestSubmitAfterShutdownDoesNotPanic(t *testing.T) {
	cfg := testConfig()
	cfg.MaxQueueSize = 1
	c := New(cfg, (&recordingSink{}).push)
	c.Start()
	c.Shutdown()

	// overflowing submissions after shutdown must not reach the closed
	// task channel
	for i := 0; i < 5; i++ {
		assert.Equal(t, SubmitOK, c.Submit([]byte("late"), message.LevelInfo))
	}
}

func TestShutdownFlushesRemainder(t *testing.T) {
	sink := &recordingSink{}
	c := New(testConfig(), sink.push)
	c.Start()

	c.Submit([]byte("pending"), message.LevelInfo)
	c.Shutdown()

	assert.Equal(t, []string{"pending"}, sink.lines())
}
