// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package analyzer

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/DataDog/logpipe/pkg/message"
)

// Result is the key/value map produced by evaluating one rule on one
// record. Well-known keys: "matched", "rule", "group", and "error" when the
// evaluation failed.
type Result map[string]string

// RuleConfig carries the settings common to every rule variant.
type RuleConfig struct {
	Priority   int
	Group      string
	Enabled    bool
	MaxRetries int
	Timeout    time.Duration
}

// DefaultRuleConfig returns an enabled config in the default group.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		Group:      "default",
		Enabled:    true,
		MaxRetries: 3,
		Timeout:    5 * time.Second,
	}
}

// Rule evaluates one record. Evaluation errors never abort the pipeline;
// they are captured in the result map by the analyzer.
type Rule interface {
	Name() string
	Config() *RuleConfig
	// Evaluate runs the rule against record. Implementations check the
	// deadline cooperatively and return an error once it has passed.
	Evaluate(record *message.LogRecord, deadline time.Time) (Result, error)
}

// errTimeout is returned when a rule ran past its configured timeout.
var errTimeout = fmt.Errorf("rule evaluation timed out")

// RegexRule matches a compiled pattern against the record message and maps
// capture groups to named result fields. The pattern is compiled once and
// cached on the rule.
type RegexRule struct {
	name       string
	config     RuleConfig
	pattern    *regexp.Regexp
	fieldNames []string
}

// NewRegexRule compiles pattern and returns a rule mapping capture group i+1
// to fieldNames[i].
func NewRegexRule(name, pattern string, fieldNames []string, config RuleConfig) (*RegexRule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern for rule %s: %w", name, err)
	}
	if config.Group == "" {
		config.Group = "default"
	}
	return &RegexRule{
		name:       name,
		config:     config,
		pattern:    re,
		fieldNames: fieldNames,
	}, nil
}

// Name implements Rule.
func (r *RegexRule) Name() string { return r.name }

// Config implements Rule.
func (r *RegexRule) Config() *RuleConfig { return &r.config }

// Evaluate implements Rule.
func (r *RegexRule) Evaluate(record *message.LogRecord, deadline time.Time) (Result, error) {
	if !deadline.IsZero() && time.Now().After(deadline) {
		return nil, errTimeout
	}
	result := Result{"matched": "false"}
	groups := r.pattern.FindStringSubmatch(record.Message)
	if groups == nil {
		return result, nil
	}
	result["matched"] = "true"
	for i, field := range r.fieldNames {
		if i+1 < len(groups) {
			result[field] = groups[i+1]
		}
	}
	return result, nil
}

// KeywordRule counts keyword hits in the record message. With scoring
// enabled the result carries score = 100*matched/len(keywords).
type KeywordRule struct {
	name     string
	config   RuleConfig
	keywords []string
	scoring  bool
}

// NewKeywordRule returns a keyword rule.
func NewKeywordRule(name string, keywords []string, scoring bool, config RuleConfig) *KeywordRule {
	if config.Group == "" {
		config.Group = "default"
	}
	return &KeywordRule{
		name:     name,
		config:   config,
		keywords: keywords,
		scoring:  scoring,
	}
}

// Name implements Rule.
func (r *KeywordRule) Name() string { return r.name }

// Config implements Rule.
func (r *KeywordRule) Config() *RuleConfig { return &r.config }

// Evaluate implements Rule.
func (r *KeywordRule) Evaluate(record *message.LogRecord, deadline time.Time) (Result, error) {
	haystack := strings.ToLower(record.Message)
	var matched []string
	for i, kw := range r.keywords {
		// the deadline is checked between keywords so that huge keyword
		// lists cannot stall a worker past the rule timeout
		if i%64 == 0 && !deadline.IsZero() && time.Now().After(deadline) {
			return nil, errTimeout
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	result := Result{
		"matched":     strconv.FormatBool(len(matched) > 0),
		"match_count": strconv.Itoa(len(matched)),
	}
	if len(matched) > 0 {
		result["matched_keywords"] = strings.Join(matched, ", ")
	}
	if r.scoring && len(r.keywords) > 0 {
		result["score"] = strconv.Itoa(100 * len(matched) / len(r.keywords))
	}
	return result, nil
}
