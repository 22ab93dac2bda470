// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package metrics holds the pipeline-wide counters, exposed both through
// expvar and through the prometheus default registry.
package metrics

import (
	"expvar"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PipelineExpvars groups all pipeline counters.
	PipelineExpvars = expvar.NewMap("logpipe")

	// FramesReceived is the total number of frames read from TCP producers.
	FramesReceived = expvar.Int{}
	// TlmFramesReceived is the total number of frames read from TCP producers.
	TlmFramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logpipe", Name: "frames_received",
		Help: "Total number of frames read from TCP producers"})

	// LogsProcessed is the total number of payloads parsed by the processor.
	LogsProcessed = expvar.Int{}
	// TlmLogsProcessed is the total number of payloads parsed by the processor.
	TlmLogsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logpipe", Name: "logs_processed",
		Help: "Total number of payloads parsed by the processor"})

	// LogsArchived is the total number of records archived to storage.
	LogsArchived = expvar.Int{}
	// TlmLogsArchived is the total number of records archived to storage.
	TlmLogsArchived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logpipe", Name: "logs_archived",
		Help: "Total number of records archived to storage"})

	// LogsDropped is the total number of payloads rejected by full queues.
	LogsDropped = expvar.Int{}
	// TlmLogsDropped is the total number of payloads rejected by full queues.
	TlmLogsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logpipe", Name: "logs_dropped",
		Help: "Total number of payloads rejected by full queues"})

	// RecordsAnalyzed is the total number of records run through the ruleset.
	RecordsAnalyzed = expvar.Int{}
	// TlmRecordsAnalyzed is the total number of records run through the ruleset.
	TlmRecordsAnalyzed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logpipe", Name: "records_analyzed",
		Help: "Total number of records run through the ruleset"})

	// AlertsTriggered is the total number of alerts raised.
	AlertsTriggered = expvar.Int{}
	// TlmAlertsTriggered is the total number of alerts raised.
	TlmAlertsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logpipe", Name: "alerts_triggered",
		Help: "Total number of alerts raised"})

	// NotificationErrors is the total number of failed channel deliveries.
	NotificationErrors = expvar.Int{}
	// TlmNotificationErrors is the total number of failed channel deliveries.
	TlmNotificationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logpipe", Name: "notification_errors",
		Help: "Total number of failed channel deliveries"})

	// RetryCount is the total number of batch pushes that were retried.
	RetryCount = expvar.Int{}
	// TlmRetryCount is the total number of batch pushes that were retried.
	TlmRetryCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "logpipe", Name: "retry_count",
		Help: "Total number of batch pushes that were retried"})
)

func init() {
	PipelineExpvars.Set("FramesReceived", &FramesReceived)
	PipelineExpvars.Set("LogsProcessed", &LogsProcessed)
	PipelineExpvars.Set("LogsArchived", &LogsArchived)
	PipelineExpvars.Set("LogsDropped", &LogsDropped)
	PipelineExpvars.Set("RecordsAnalyzed", &RecordsAnalyzed)
	PipelineExpvars.Set("AlertsTriggered", &AlertsTriggered)
	PipelineExpvars.Set("NotificationErrors", &NotificationErrors)
	PipelineExpvars.Set("RetryCount", &RetryCount)
}
