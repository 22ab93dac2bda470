// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package message

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLevelOrdering(t *testing.T) {
	assert.True(t, LevelTrace < LevelDebug)
	assert.True(t, LevelDebug < LevelInfo)
	assert.True(t, LevelInfo < LevelWarning)
	assert.True(t, LevelWarning < LevelError)
	assert.True(t, LevelError < LevelCritical)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"TRACE", LevelTrace},
		{"debug", LevelDebug},
		{"Info", LevelInfo},
		{"WARN", LevelWarning},
		{"warning", LevelWarning},
		{"ERR", LevelError},
		{"fatal", LevelCritical},
		{" critical ", LevelCritical},
		{"whatever", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), "parsing %q", tt.in)
	}
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "WARNING", LevelWarning.String())
	assert.Equal(t, "INFO", Level(42).String())
}

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)

	for _, in := range []string{
		"2026-08-25 10:30:00",
		"2026-08-25T10:30:00Z",
		"2026-08-25T10:30:00",
		"2026/08/25 10:30:00",
	} {
		got, ok := ParseTimestamp(in)
		assert.True(t, ok, "parsing %q", in)
		assert.Equal(t, want, got.UTC(), "parsing %q", in)
	}

	got, ok := ParseTimestamp("1787308200")
	assert.True(t, ok)
	assert.Equal(t, int64(1787308200), got.Unix())

	_, ok = ParseTimestamp("not a time")
	assert.False(t, ok)
}

func TestNormalizeTimestamp(t *testing.T) {
	assert.Equal(t, "2026-08-25 10:30:00", NormalizeTimestamp("2026-08-25T10:30:00"))

	// unparseable input falls back to now in canonical form
	normalized := NormalizeTimestamp("garbage")
	_, ok := ParseTimestamp(normalized)
	assert.True(t, ok)
}

func TestNewLogRecordDefaults(t *testing.T) {
	record := NewLogRecord()
	assert.NotEmpty(t, record.ID)
	assert.Equal(t, "INFO", record.Level)
	assert.NotNil(t, record.Fields)
	_, ok := ParseTimestamp(record.Timestamp)
	assert.True(t, ok)
}

func TestEnsureID(t *testing.T) {
	record := &LogRecord{}
	record.EnsureID()
	first := record.ID
	assert.NotEmpty(t, first)

	record.EnsureID()
	assert.Equal(t, first, record.ID)
}
