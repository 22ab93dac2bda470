// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/DataDog/logpipe/pkg/message"
)

// JSONParser parses one JSON object per payload. A configurable name map
// redirects JSON keys to record fields; unmapped top-level keys are kept as
// `json.<key>` fields holding the JSON text of the value.
type JSONParser struct {
	// fieldMap maps a JSON key to a record field name ("message", "level",
	// "timestamp", "source", "id", or any fields key).
	fieldMap map[string]string
}

// NewJSONParser returns a JSONParser with the given key remapping. A nil map
// keeps the identity mapping.
func NewJSONParser(fieldMap map[string]string) *JSONParser {
	if fieldMap == nil {
		fieldMap = make(map[string]string)
	}
	return &JSONParser{fieldMap: fieldMap}
}

// Name implements Parser.
func (p *JSONParser) Name() string { return "json" }

// CanParse implements Parser.
func (p *JSONParser) CanParse(data *message.LogData) bool {
	raw := bytes.TrimSpace(payloadBytes(data))
	return len(raw) > 0 && raw[0] == '{' && json.Valid(raw)
}

// Parse implements Parser.
func (p *JSONParser) Parse(data *message.LogData) *message.LogRecord {
	raw := payloadBytes(data)

	var payload map[string]interface{}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return errorRecord(data, p.Name(), err, raw)
	}

	record := baseRecord(data)
	for key, value := range payload {
		target, mapped := p.fieldMap[key]
		if !mapped {
			target = key
		}
		switch target {
		case "id":
			record.ID = asString(value)
		case "timestamp":
			record.Timestamp = message.NormalizeTimestamp(asString(value))
		case "level":
			record.Level = message.ParseLevel(asString(value)).String()
		case "source":
			record.Source = asString(value)
		case "message":
			record.Message = asString(value)
		default:
			if mapped {
				record.Fields[target] = asString(value)
			} else {
				record.Fields["json."+key] = jsonText(value)
			}
		}
	}
	if record.Message == "" {
		record.Message = string(raw)
	}
	record.EnsureID()
	return record
}

// asString renders a JSON value as a plain string, without quotes for
// scalars.
func asString(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return trimFloat(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case nil:
		return ""
	}
	return jsonText(value)
}

// jsonText renders a JSON value back to its JSON text.
func jsonText(value interface{}) string {
	text, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(text)
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%g", f)
}
