// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/util/compression"
)

func newData(payload string) *message.LogData {
	return message.NewLogData("test-id", []byte(payload), "127.0.0.1:4242")
}

func TestJSONParserFieldRemap(t *testing.T) {
	parser := NewJSONParser(map[string]string{"msg": "message", "lvl": "level"})
	data := newData(`{"msg":"hi","lvl":"WARNING","extra":42}`)

	assert.True(t, parser.CanParse(data))
	record := parser.Parse(data)

	assert.Equal(t, "WARNING", record.Level)
	assert.Equal(t, "hi", record.Message)
	assert.Equal(t, "42", record.Fields["json.extra"])
}

func TestJSONParserDefaults(t *testing.T) {
	parser := NewJSONParser(nil)
	record := parser.Parse(newData(`{"source":"app-1"}`))

	assert.Equal(t, "INFO", record.Level)
	assert.Equal(t, "app-1", record.Source)
	// no message field: the whole payload is kept
	assert.Equal(t, `{"source":"app-1"}`, record.Message)
	assert.Equal(t, "test-id", record.ID)
}

func TestJSONParserNormalizesTimestamp(t *testing.T) {
	parser := NewJSONParser(nil)
	record := parser.Parse(newData(`{"timestamp":"2024-03-01T12:30:45Z","message":"x"}`))
	assert.Equal(t, "2024-03-01 12:30:45", record.Timestamp)
}

func TestJSONParserMalformedInput(t *testing.T) {
	parser := NewJSONParser(nil)
	data := newData(`{"broken`)

	assert.False(t, parser.CanParse(data))
	record := parser.Parse(data)

	assert.Equal(t, "ERROR", record.Level)
	assert.Contains(t, record.Message, `{"broken`)
	assert.NotEmpty(t, record.Fields["parse_error"])
}

func TestJSONParserCompressedPayload(t *testing.T) {
	compressed, err := compression.Compress([]byte(`{"message":"inflate me"}`))
	require.NoError(t, err)

	data := newData("")
	data.Payload = compressed
	data.Compressed = true

	parser := NewJSONParser(nil)
	assert.True(t, parser.CanParse(data))
	assert.Equal(t, "inflate me", parser.Parse(data).Message)
}

func TestRegexParserExtraction(t *testing.T) {
	parser, err := NewRegexParser(`^(\S+) (\w+) (.*)$`, map[int]string{
		1: "timestamp",
		2: "level",
		3: "message",
	})
	require.NoError(t, err)

	data := newData("2024-03-01T10:00:00Z ERROR something broke")
	require.True(t, parser.CanParse(data))
	record := parser.Parse(data)

	assert.Equal(t, "2024-03-01 10:00:00", record.Timestamp)
	assert.Equal(t, "ERROR", record.Level)
	assert.Equal(t, "something broke", record.Message)
}

func TestRegexParserGroupZeroMessageFallback(t *testing.T) {
	parser, err := NewRegexParser(`code=(\d+)`, map[int]string{1: "code"})
	require.NoError(t, err)

	record := parser.Parse(newData("code=502"))
	assert.Equal(t, "code=502", record.Message)
	assert.Equal(t, "502", record.Fields["code"])
}

func TestRegexParserInvalidPattern(t *testing.T) {
	_, err := NewRegexParser(`([`, nil)
	assert.Error(t, err)
}

func TestTextParser(t *testing.T) {
	parser := NewTextParser([]string{"timeout"})
	data := newData("[2024-03-01 10:00:00] [warning] request timeout from 10.1.2.3")

	require.True(t, parser.CanParse(data))
	record := parser.Parse(data)

	assert.Equal(t, "WARNING", record.Level)
	assert.Equal(t, "2024-03-01 10:00:00", record.Timestamp)
	assert.Equal(t, "10.1.2.3", record.Fields["text.client_ip"])
	assert.Equal(t, "true", record.Fields["text.contains.timeout"])
}

func TestRegistryFirstMatchWins(t *testing.T) {
	registry := NewRegistry()
	registry.Add(NewJSONParser(nil))
	registry.Add(NewTextParser(nil))

	record := registry.Parse(newData("[2024-03-01 10:00:00] [info] plain line"))
	assert.Equal(t, "plain line", record.Message)

	record = registry.Parse(newData(`{"message":"json line"}`))
	assert.Equal(t, "json line", record.Message)
}

func TestRegistryFallsBackToFirstParser(t *testing.T) {
	registry := NewRegistry()
	registry.Add(NewJSONParser(nil))

	// not JSON: the first parser still runs and degrades gracefully
	record := registry.Parse(newData("not json at all"))
	assert.Equal(t, "ERROR", record.Level)
}

func TestRegistrySynthesizesWithoutParsers(t *testing.T) {
	registry := NewRegistry()
	data := newData("bare payload")
	data.Metadata["origin"] = "syslog"

	record := registry.Parse(data)
	assert.Equal(t, "INFO", record.Level)
	assert.Equal(t, "bare payload", record.Message)
	assert.Equal(t, "syslog", record.Fields["metadata.origin"])
	assert.Equal(t, "127.0.0.1:4242", record.Source)
}
