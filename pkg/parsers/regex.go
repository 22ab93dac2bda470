// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package parsers

import (
	"fmt"
	"regexp"

	"github.com/DataDog/logpipe/pkg/message"
)

// RegexParser extracts record fields from numbered capture groups. The
// capture map routes a group index to a record field name; group 0 becomes
// the message when the pattern does not fill one.
type RegexParser struct {
	pattern  *regexp.Regexp
	captures map[int]string
}

// NewRegexParser compiles pattern and returns a parser routing capture
// groups through the given index map.
func NewRegexParser(pattern string, captures map[int]string) (*RegexParser, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid parser pattern %q: %w", pattern, err)
	}
	if captures == nil {
		captures = make(map[int]string)
	}
	return &RegexParser{pattern: re, captures: captures}, nil
}

// Name implements Parser.
func (p *RegexParser) Name() string { return "regex" }

// CanParse implements Parser.
func (p *RegexParser) CanParse(data *message.LogData) bool {
	return p.pattern.Match(payloadBytes(data))
}

// Parse implements Parser.
func (p *RegexParser) Parse(data *message.LogData) *message.LogRecord {
	raw := payloadBytes(data)

	groups := p.pattern.FindSubmatch(raw)
	if groups == nil {
		return errorRecord(data, p.Name(), fmt.Errorf("pattern %q did not match", p.pattern.String()), raw)
	}

	record := baseRecord(data)
	for idx, field := range p.captures {
		if idx < 0 || idx >= len(groups) {
			continue
		}
		value := string(groups[idx])
		switch field {
		case "id":
			record.ID = value
		case "timestamp":
			record.Timestamp = message.NormalizeTimestamp(value)
		case "level":
			record.Level = message.ParseLevel(value).String()
		case "source":
			record.Source = value
		case "message":
			record.Message = value
		default:
			record.Fields[field] = value
		}
	}
	if record.Message == "" {
		record.Message = string(groups[0])
	}
	record.EnsureID()
	return record
}
