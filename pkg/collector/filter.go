// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package collector

import (
	"bytes"

	"github.com/DataDog/logpipe/pkg/message"
)

// Filter decides whether an entry is dropped before it enters the queue. An
// entry is dropped as soon as any filter reports a drop.
type Filter interface {
	Name() string
	ShouldDrop(content []byte, level message.Level) bool
}

// LevelFilter drops entries below a minimum level.
type LevelFilter struct {
	min message.Level
}

// NewLevelFilter returns a filter dropping entries below min.
func NewLevelFilter(min message.Level) *LevelFilter {
	return &LevelFilter{min: min}
}

// Name implements Filter.
func (f *LevelFilter) Name() string { return "level" }

// ShouldDrop implements Filter.
func (f *LevelFilter) ShouldDrop(_ []byte, level message.Level) bool {
	return level < f.min
}

// KeywordFilter drops entries based on keyword substrings. In inclusive mode
// an entry is dropped when any keyword is present; in exclusive mode it is
// dropped when no keyword is present.
type KeywordFilter struct {
	keywords  [][]byte
	inclusive bool
}

// NewKeywordFilter returns a keyword filter.
func NewKeywordFilter(keywords []string, inclusive bool) *KeywordFilter {
	kws := make([][]byte, len(keywords))
	for i, kw := range keywords {
		kws[i] = []byte(kw)
	}
	return &KeywordFilter{keywords: kws, inclusive: inclusive}
}

// Name implements Filter.
func (f *KeywordFilter) Name() string { return "keyword" }

// ShouldDrop implements Filter.
func (f *KeywordFilter) ShouldDrop(content []byte, _ message.Level) bool {
	found := false
	for _, kw := range f.keywords {
		if bytes.Contains(content, kw) {
			found = true
			break
		}
	}
	if f.inclusive {
		return found
	}
	return !found
}
