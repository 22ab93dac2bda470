// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package message holds the data types exchanged between the intake, the
// processor and the analyzer, together with the level and timestamp
// conventions shared by every component.
package message

import (
	"time"

	"github.com/google/uuid"
)

// LogData is one raw log payload as received by the processor, before
// parsing. It carries everything needed to archive the raw line and to pick
// a parser.
type LogData struct {
	// ID identifies the payload. It is assigned on arrival when the
	// producer did not provide one.
	ID string

	// Payload is the raw frame content, without the trailing CRLF.
	Payload []byte

	// Source identifies the producer, usually the remote address of the
	// connection the frame was read from.
	Source string

	// Timestamp is the arrival time.
	Timestamp time.Time

	// Compressed is true when Payload holds zlib-compressed content.
	Compressed bool

	// Metadata holds arbitrary producer-supplied key/value pairs.
	Metadata map[string]string
}

// NewLogData returns a LogData for a raw payload, stamped with the current
// time.
func NewLogData(id string, payload []byte, source string) *LogData {
	return &LogData{
		ID:        id,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now(),
		Metadata:  make(map[string]string),
	}
}

// LogRecord is the parsed, structured form of a LogData. Records are
// immutable once produced by a parser.
type LogRecord struct {
	ID        string            `json:"id"`
	Timestamp string            `json:"timestamp"`
	Level     string            `json:"level"`
	Source    string            `json:"source"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// NewLogRecord returns a LogRecord with a generated id and the current
// canonical timestamp.
func NewLogRecord() *LogRecord {
	return &LogRecord{
		ID:        uuid.NewString(),
		Timestamp: FormatTimestamp(time.Now()),
		Level:     LevelInfo.String(),
		Fields:    make(map[string]string),
	}
}

// EnsureID generates an id for records that arrived without one.
func (r *LogRecord) EnsureID() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
}
