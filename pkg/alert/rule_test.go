// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DataDog/logpipe/pkg/message"
)

func alertTestRecord(msg string) *message.LogRecord {
	record := message.NewLogRecord()
	record.Message = msg
	record.Source = "api"
	return record
}

func TestThresholdRuleComparators(t *testing.T) {
	tests := []struct {
		compare   string
		threshold float64
		value     string
		fires     bool
	}{
		{CompareGT, 90, "95.5", true},
		{CompareGT, 90, "90", false},
		{CompareGE, 90, "90", true},
		{CompareLT, 10, "9", true},
		{CompareLE, 10, "10", true},
		{CompareEQ, 42, "42", true},
		{CompareNE, 42, "41", true},
		{CompareNE, 42, "42", false},
	}
	for _, tt := range tests {
		rule, err := NewThresholdRule("cpu", "cpu usage", "cpu_usage", tt.threshold, tt.compare, "WARNING")
		require.NoError(t, err)
		got := rule.Check(nil, map[string]string{"cpu_usage": tt.value})
		assert.Equal(t, tt.fires, got, "%s %v against %s", tt.compare, tt.threshold, tt.value)
	}
}

func TestThresholdRuleInvalidComparator(t *testing.T) {
	_, err := NewThresholdRule("cpu", "cpu usage", "cpu_usage", 90, "~", "WARNING")
	assert.Error(t, err)
}

func TestThresholdRuleMissingOrBadValue(t *testing.T) {
	rule, err := NewThresholdRule("cpu", "cpu usage", "cpu_usage", 90, CompareGT, "WARNING")
	require.NoError(t, err)

	assert.False(t, rule.Check(nil, map[string]string{}))
	assert.False(t, rule.Check(nil, map[string]string{"cpu_usage": "not a number"}))
}

func TestThresholdRuleFallsBackToRecordFields(t *testing.T) {
	rule, err := NewThresholdRule("cpu", "cpu usage", "cpu_usage", 90, CompareGT, "WARNING")
	require.NoError(t, err)

	record := alertTestRecord("cpu report")
	record.Fields["cpu_usage"] = "99"
	assert.True(t, rule.Check(record, map[string]string{}))
}

func TestThresholdRuleGenerateAlert(t *testing.T) {
	rule, err := NewThresholdRule("cpu", "cpu too high", "cpu_usage", 90, CompareGT, "WARNING")
	require.NoError(t, err)

	record := alertTestRecord("cpu report")
	a := rule.GenerateAlert(record, map[string]string{"cpu_usage": "95.5"})
	assert.Equal(t, "cpu", a.Name)
	assert.Equal(t, "WARNING", a.Level)
	assert.Equal(t, StatusPending, a.Status)
	assert.Equal(t, "api", a.Source)
	assert.Equal(t, 1, a.Count)
	assert.Equal(t, []string{record.ID}, a.RelatedLogIDs)
	assert.Equal(t, "95.5", a.Annotations["value"])
	assert.Equal(t, "90", a.Annotations["threshold"])
	assert.Equal(t, ">", a.Annotations["compare"])
}

func TestKeywordRuleAnyMatch(t *testing.T) {
	rule := NewKeywordRule("errors", "error keywords seen", "message", []string{"failure", "error"}, false, "ERROR")

	assert.True(t, rule.Check(alertTestRecord("request ERROR in handler"), nil))
	assert.True(t, rule.Check(alertTestRecord("total FAILURE"), nil))
	assert.False(t, rule.Check(alertTestRecord("all good"), nil))
}

func TestKeywordRuleMatchAll(t *testing.T) {
	rule := NewKeywordRule("errors", "error keywords seen", "message", []string{"failure", "error"}, true, "ERROR")

	assert.True(t, rule.Check(alertTestRecord("error after failure"), nil))
	assert.False(t, rule.Check(alertTestRecord("just an error"), nil))
}

func TestKeywordRuleWatchesField(t *testing.T) {
	rule := NewKeywordRule("oom", "oom kills", "error_type", []string{"oom"}, false, "CRITICAL")

	record := alertTestRecord("all quiet")
	assert.True(t, rule.Check(record, map[string]string{"error_type": "OOMKilled"}))
	assert.False(t, rule.Check(record, map[string]string{"error_type": "Evicted"}))
	assert.False(t, rule.Check(record, nil))

	// record fields back the lookup when the results lack the field
	record.Fields["error_type"] = "oom"
	assert.True(t, rule.Check(record, nil))
}

func TestKeywordRuleGenerateAlert(t *testing.T) {
	rule := NewKeywordRule("errors", "error keywords seen", "message", []string{"failure", "error"}, false, "ERROR")

	record := alertTestRecord("request error in handler")
	a := rule.GenerateAlert(record, nil)
	assert.Equal(t, "errors", a.Name)
	assert.Equal(t, "ERROR", a.Level)
	assert.Equal(t, "failure, error", a.Annotations["keywords"])
	assert.Equal(t, "request error in handler", a.Annotations["message"])
	assert.Equal(t, []string{record.ID}, a.RelatedLogIDs)
}

func TestAlertJSONRoundTrip(t *testing.T) {
	a := NewAlert("disk", "disk almost full", "CRITICAL")
	a.ID = "alert-test"
	a.Source = "db-1"
	a.Labels["rule"] = "disk"
	a.RelatedLogIDs = []string{"log-1"}

	data, err := a.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"relatedLogIds":["log-1"]`)
	assert.Contains(t, string(data), `"updateTime"`)

	restored, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, a, restored)
}
