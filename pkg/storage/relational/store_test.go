// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package relational

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/message"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(config.DatabaseConfig{
		Path:         filepath.Join(t.TempDir(), "archive.db"),
		MaxOpenConns: 1,
		Timeout:      5 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func archivedRecord(id, ts, level, msg string) *message.LogRecord {
	return &message.LogRecord{
		ID:        id,
		Timestamp: ts,
		Level:     level,
		Source:    "api",
		Message:   msg,
		Fields:    map[string]string{"request_id": "req-" + id},
	}
}

func TestInsertAndGetRecord(t *testing.T) {
	store := openTestStore(t)

	record := archivedRecord("log-1", "2026-08-25 10:00:00", "ERROR", "disk full")
	require.NoError(t, store.InsertRecord(record))

	got, err := store.GetRecord("log-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, record.Timestamp, got.Timestamp)
	assert.Equal(t, "ERROR", got.Level)
	assert.Equal(t, "disk full", got.Message)
	assert.Equal(t, "req-log-1", got.Fields["request_id"])
}

func TestGetRecordNotFound(t *testing.T) {
	store := openTestStore(t)

	got, err := store.GetRecord("log-missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInsertRecordReplacesExisting(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.InsertRecord(archivedRecord("log-1", "2026-08-25 10:00:00", "INFO", "first")))
	require.NoError(t, store.InsertRecord(archivedRecord("log-1", "2026-08-25 10:05:00", "ERROR", "second")))

	got, err := store.GetRecord("log-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "second", got.Message)
	assert.Equal(t, "ERROR", got.Level)
}

func TestQueryFieldValues(t *testing.T) {
	store := openTestStore(t)

	for i, ts := range []string{"2026-08-25 10:00:00", "2026-08-25 11:00:00", "2026-08-25 12:00:00"} {
		record := archivedRecord("log-"+string(rune('a'+i)), ts, "INFO", "entry")
		require.NoError(t, store.InsertRecord(record))
	}

	// newest first, range excludes the last entry
	values, err := store.QueryFieldValues("request_id", "2026-08-25 09:00:00", "2026-08-25 11:30:00", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-log-b", "req-log-a"}, values)

	values, err = store.QueryFieldValues("request_id", "2026-08-25 09:00:00", "2026-08-25 23:00:00", 2, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-log-b", "req-log-a"}, values)
}

func TestCountByLevel(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.InsertRecord(archivedRecord("log-1", "2026-08-25 10:00:00", "ERROR", "one")))
	require.NoError(t, store.InsertRecord(archivedRecord("log-2", "2026-08-25 10:01:00", "ERROR", "two")))
	require.NoError(t, store.InsertRecord(archivedRecord("log-3", "2026-08-25 10:02:00", "INFO", "three")))

	counts, err := store.CountByLevel("2026-08-25 00:00:00", "2026-08-25 23:59:59")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ERROR": 2, "INFO": 1}, counts)
}
