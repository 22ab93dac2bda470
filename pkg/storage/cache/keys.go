// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package cache

import "time"

// TTLs applied to the archive keys.
const (
	RawLogTTL         = 7 * 24 * time.Hour
	AnalysisResultTTL = 24 * time.Hour
	AlertTTL          = 7 * 24 * time.Hour
)

// Well-known set keys.
const (
	RecentAnalysisResultsKey = "recent_analysis_results"
	ActiveAlertsKey          = "alerts:active"
)

// RawLogKey returns the key holding the raw payload of a log.
func RawLogKey(id string) string { return "raw_log:" + id }

// RawLogInfoKey returns the key of the hash describing a raw payload.
func RawLogInfoKey(id string) string { return "raw_log:" + id + ":info" }

// AnalysisResultKey returns the key of the hash holding analysis results.
func AnalysisResultKey(id string) string { return "analysis_result:" + id }

// AlertKey returns the key holding the JSON form of an alert.
func AlertKey(id string) string { return "alert:" + id }

// AlertStatusSetKey returns the membership set for an alert status.
func AlertStatusSetKey(status string) string { return "alerts:" + status }
