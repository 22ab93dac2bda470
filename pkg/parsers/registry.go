// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package parsers

import (
	"sync"

	"github.com/DataDog/logpipe/pkg/message"
)

// Registry holds an ordered set of parsers. Selection tries each parser in
// insertion order; the first CanParse wins, falling back to the first parser
// when none accepts.
type Registry struct {
	mu      sync.Mutex
	parsers []Parser
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add appends a parser.
func (r *Registry) Add(parser Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers = append(r.parsers, parser)
}

// Clear removes all parsers.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers = nil
}

// snapshot copies the parser list so that selection iterates outside the
// lock.
func (r *Registry) snapshot() []Parser {
	r.mu.Lock()
	defer r.mu.Unlock()
	parsers := make([]Parser, len(r.parsers))
	copy(parsers, r.parsers)
	return parsers
}

// Parse selects a parser for data and runs it. With no parsers registered a
// minimal record is synthesized from the payload envelope.
func (r *Registry) Parse(data *message.LogData) *message.LogRecord {
	parsers := r.snapshot()
	if len(parsers) == 0 {
		return synthesize(data)
	}
	for _, parser := range parsers {
		if parser.CanParse(data) {
			return parser.Parse(data)
		}
	}
	return parsers[0].Parse(data)
}

// synthesize builds the minimal record used when no parser is registered:
// INFO level, the decompressed payload as message, and the payload metadata
// copied into fields.
func synthesize(data *message.LogData) *message.LogRecord {
	record := baseRecord(data)
	record.Message = string(payloadBytes(data))
	for k, v := range data.Metadata {
		record.Fields["metadata."+k] = v
	}
	record.EnsureID()
	return record
}
