// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package parsers

import (
	"regexp"
	"strings"

	"github.com/DataDog/logpipe/pkg/message"
)

var (
	bracketedLine = regexp.MustCompile(`^\[([^\]]+)\]\s*\[([^\]]+)\]\s*(.*)$`)
	ipAddress     = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})\b`)
)

// TextParser handles plain `[time] [level] message` lines, extracting a
// client IP when one appears in the message and flagging configured
// keywords as `text.contains.<kw>` fields.
type TextParser struct {
	keywords []string
}

// NewTextParser returns a TextParser flagging the given keywords.
func NewTextParser(keywords []string) *TextParser {
	return &TextParser{keywords: keywords}
}

// Name implements Parser.
func (p *TextParser) Name() string { return "text" }

// CanParse implements Parser.
func (p *TextParser) CanParse(data *message.LogData) bool {
	return bracketedLine.Match(payloadBytes(data))
}

// Parse implements Parser.
func (p *TextParser) Parse(data *message.LogData) *message.LogRecord {
	raw := payloadBytes(data)
	record := baseRecord(data)

	if groups := bracketedLine.FindStringSubmatch(string(raw)); groups != nil {
		record.Timestamp = message.NormalizeTimestamp(groups[1])
		record.Level = message.ParseLevel(groups[2]).String()
		record.Message = groups[3]
	} else {
		record.Message = string(raw)
	}

	if ip := ipAddress.FindString(record.Message); ip != "" {
		record.Fields["text.client_ip"] = ip
	}
	for _, kw := range p.keywords {
		if strings.Contains(record.Message, kw) {
			record.Fields["text.contains."+kw] = "true"
		}
	}
	record.EnsureID()
	return record
}
