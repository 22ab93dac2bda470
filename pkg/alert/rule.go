// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package alert

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/DataDog/logpipe/pkg/message"
)

// Rule decides whether a record and its analysis results warrant an alert.
type Rule interface {
	Name() string
	Description() string
	// Check reports whether the rule fires for record with the given
	// analysis results.
	Check(record *message.LogRecord, results map[string]string) bool
	// GenerateAlert builds the PENDING alert for a firing rule. It is only
	// called after Check returned true.
	GenerateAlert(record *message.LogRecord, results map[string]string) *Alert
}

// Comparators accepted by ThresholdRule.
const (
	CompareGT = ">"
	CompareGE = ">="
	CompareLT = "<"
	CompareLE = "<="
	CompareEQ = "=="
	CompareNE = "!="
)

// ThresholdRule fires when a numeric field crosses a threshold. The field is
// looked up in the analysis results first and falls back to the record
// fields. Missing or non-numeric values never fire.
type ThresholdRule struct {
	name        string
	description string
	field       string
	threshold   float64
	compareType string
	level       string
}

// NewThresholdRule returns a threshold rule. compareType must be one of the
// Compare* constants.
func NewThresholdRule(name, description, field string, threshold float64, compareType, level string) (*ThresholdRule, error) {
	switch compareType {
	case CompareGT, CompareGE, CompareLT, CompareLE, CompareEQ, CompareNE:
	default:
		return nil, fmt.Errorf("invalid comparator %q for rule %s", compareType, name)
	}
	return &ThresholdRule{
		name:        name,
		description: description,
		field:       field,
		threshold:   threshold,
		compareType: compareType,
		level:       level,
	}, nil
}

// Name implements Rule.
func (r *ThresholdRule) Name() string { return r.name }

// Description implements Rule.
func (r *ThresholdRule) Description() string { return r.description }

// Check implements Rule.
func (r *ThresholdRule) Check(record *message.LogRecord, results map[string]string) bool {
	raw, ok := results[r.field]
	if !ok && record != nil {
		raw, ok = record.Fields[r.field]
	}
	if !ok {
		return false
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false
	}
	switch r.compareType {
	case CompareGT:
		return value > r.threshold
	case CompareGE:
		return value >= r.threshold
	case CompareLT:
		return value < r.threshold
	case CompareLE:
		return value <= r.threshold
	case CompareEQ:
		return value == r.threshold
	case CompareNE:
		return value != r.threshold
	}
	return false
}

// GenerateAlert implements Rule.
func (r *ThresholdRule) GenerateAlert(record *message.LogRecord, results map[string]string) *Alert {
	a := NewAlert(r.name, r.description, r.level)
	a.Labels["rule"] = r.name
	a.Labels["field"] = r.field
	if record != nil {
		a.Source = record.Source
		a.RelatedLogIDs = append(a.RelatedLogIDs, record.ID)
	}
	value := results[r.field]
	if value == "" && record != nil {
		value = record.Fields[r.field]
	}
	a.Annotations["field"] = r.field
	a.Annotations["value"] = value
	a.Annotations["threshold"] = strconv.FormatFloat(r.threshold, 'f', -1, 64)
	a.Annotations["compare"] = r.compareType
	return a
}

// KeywordRule fires when keywords appear in the watched field,
// case-insensitively. With matchAll set every keyword must be present,
// otherwise any one suffices.
type KeywordRule struct {
	name        string
	description string
	field       string
	keywords    []string
	matchAll    bool
	level       string
}

// NewKeywordRule returns a keyword alert rule. An empty field, or "message",
// watches the record message; any other field is looked up in the analysis
// results first, then in the record fields.
func NewKeywordRule(name, description, field string, keywords []string, matchAll bool, level string) *KeywordRule {
	return &KeywordRule{
		name:        name,
		description: description,
		field:       field,
		keywords:    keywords,
		matchAll:    matchAll,
		level:       level,
	}
}

func (r *KeywordRule) lookup(record *message.LogRecord, results map[string]string) string {
	if r.field == "" || r.field == "message" {
		if record == nil {
			return ""
		}
		return record.Message
	}
	if value, ok := results[r.field]; ok {
		return value
	}
	if record != nil {
		return record.Fields[r.field]
	}
	return ""
}

// Name implements Rule.
func (r *KeywordRule) Name() string { return r.name }

// Description implements Rule.
func (r *KeywordRule) Description() string { return r.description }

// Check implements Rule.
func (r *KeywordRule) Check(record *message.LogRecord, results map[string]string) bool {
	if len(r.keywords) == 0 {
		return false
	}
	haystack := strings.ToLower(r.lookup(record, results))
	if haystack == "" {
		return false
	}
	for _, kw := range r.keywords {
		found := strings.Contains(haystack, strings.ToLower(kw))
		if r.matchAll && !found {
			return false
		}
		if !r.matchAll && found {
			return true
		}
	}
	return r.matchAll
}

// GenerateAlert implements Rule.
func (r *KeywordRule) GenerateAlert(record *message.LogRecord, results map[string]string) *Alert {
	a := NewAlert(r.name, r.description, r.level)
	a.Labels["rule"] = r.name
	if record != nil {
		a.Source = record.Source
		a.RelatedLogIDs = append(a.RelatedLogIDs, record.ID)
		a.Annotations["message"] = record.Message
	}
	a.Annotations["keywords"] = strings.Join(r.keywords, ", ")
	return a
}
