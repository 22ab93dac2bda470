// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package alert evaluates threshold and keyword rules against analysis
// results, drives the alert state machine and dispatches notifications.
package alert

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/DataDog/logpipe/pkg/message"
)

// Status is the lifecycle state of an alert. RESOLVED and IGNORED are
// terminal.
type Status string

// All alert statuses.
const (
	StatusPending  Status = "PENDING"
	StatusActive   Status = "ACTIVE"
	StatusResolved Status = "RESOLVED"
	StatusIgnored  Status = "IGNORED"
)

// Alert is one raised alert with its dedup bookkeeping.
type Alert struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Level         string            `json:"level"`
	Status        Status            `json:"status"`
	Source        string            `json:"source"`
	Timestamp     string            `json:"timestamp"`
	UpdateTime    string            `json:"updateTime"`
	Count         int               `json:"count"`
	Labels        map[string]string `json:"labels"`
	Annotations   map[string]string `json:"annotations"`
	RelatedLogIDs []string          `json:"relatedLogIds"`
}

// NewAlert returns a PENDING alert with count 1 and both timestamps set to
// now.
func NewAlert(name, description, level string) *Alert {
	now := message.FormatTimestamp(time.Now())
	return &Alert{
		Name:        name,
		Description: description,
		Level:       level,
		Status:      StatusPending,
		Timestamp:   now,
		UpdateTime:  now,
		Count:       1,
		Labels:      make(map[string]string),
		Annotations: make(map[string]string),
	}
}

// newAlertID returns a fresh alert id.
func newAlertID() string {
	return "alert-" + uuid.NewString()
}

// JSON renders the canonical alert JSON used for webhooks and the cache.
func (a *Alert) JSON() ([]byte, error) {
	return json.Marshal(a)
}

// FromJSON decodes a canonical alert JSON.
func FromJSON(data []byte) (*Alert, error) {
	var a Alert
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// sameLabels reports whether two label maps are identical, the dedup
// criterion together with the alert name.
func sameLabels(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

// Channel delivers alerts to an external system.
type Channel interface {
	Name() string
	Type() string
	Send(alert *Alert) error
}
