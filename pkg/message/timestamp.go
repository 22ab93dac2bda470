// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package message

import (
	"strconv"
	"time"
)

// TimestampFormat is the canonical fixed-width timestamp representation used
// at every storage boundary.
const TimestampFormat = "2006-01-02 15:04:05"

// timestampLayouts are the input layouts accepted from producers, tried in
// order.
var timestampLayouts = []string{
	TimestampFormat,
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
}

// FormatTimestamp renders t in the canonical format.
func FormatTimestamp(t time.Time) string {
	return t.Format(TimestampFormat)
}

// ParseTimestamp parses a producer-supplied timestamp, accepting the
// canonical format, RFC3339 variants and epoch seconds. The zero time and
// false are returned when nothing matches.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if epoch, err := strconv.ParseInt(s, 10, 64); err == nil && epoch > 0 {
		return time.Unix(epoch, 0), true
	}
	return time.Time{}, false
}

// NormalizeTimestamp reformats a producer-supplied timestamp to the canonical
// format, falling back to now when the input cannot be parsed.
func NormalizeTimestamp(s string) string {
	if t, ok := ParseTimestamp(s); ok {
		return FormatTimestamp(t)
	}
	return FormatTimestamp(time.Now())
}
