// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package parsers turns raw log payloads into structured records. Parsers
// never fail the pipeline: malformed input yields a degraded ERROR record
// that preserves the parser error and the raw content.
package parsers

import (
	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/util/compression"
	"github.com/DataDog/logpipe/pkg/util/log"
)

// Parser converts one LogData into a LogRecord.
type Parser interface {
	// Name identifies the parser in logs and registries.
	Name() string
	// CanParse reports whether the payload looks like this parser's format.
	CanParse(data *message.LogData) bool
	// Parse produces a record from the payload. Implementations handle
	// malformed input locally and always return a record.
	Parse(data *message.LogData) *message.LogRecord
}

// payloadBytes returns the decompressed payload of data.
func payloadBytes(data *message.LogData) []byte {
	if !data.Compressed {
		return data.Payload
	}
	raw, err := compression.Decompress(data.Payload)
	if err != nil {
		log.Warnf("Unable to decompress payload %s: %v", data.ID, err)
		return data.Payload
	}
	return raw
}

// baseRecord returns a record seeded from the payload envelope: id, arrival
// timestamp and source. Parsers overwrite what the content provides.
func baseRecord(data *message.LogData) *message.LogRecord {
	record := message.NewLogRecord()
	if data.ID != "" {
		record.ID = data.ID
	}
	record.Timestamp = message.FormatTimestamp(data.Timestamp)
	record.Source = data.Source
	return record
}

// errorRecord returns the degraded record produced for malformed input.
func errorRecord(data *message.LogData, parserName string, parseErr error, raw []byte) *message.LogRecord {
	record := baseRecord(data)
	record.Level = message.LevelError.String()
	record.Message = parserName + " parse error: " + parseErr.Error() + "; raw: " + string(raw)
	record.Fields["parse_error"] = parseErr.Error()
	return record
}
