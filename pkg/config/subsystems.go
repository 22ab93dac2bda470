// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

package config

import "time"

// CollectorConfig holds the collector settings.
type CollectorConfig struct {
	BatchSize      int
	FlushInterval  time.Duration
	MaxQueueSize   int
	StrictQueue    bool
	ThreadPoolSize int
	MinLevel       string
	CompressLogs   bool
	EnableRetry    bool
	MaxRetryCount  int
	RetryInterval  time.Duration
	CleanInterval  time.Duration
	EnableBackup   bool
}

// GetCollectorConfig returns the collector settings from the global config.
func GetCollectorConfig() CollectorConfig {
	return CollectorConfig{
		BatchSize:      Pipe.GetInt("collector.batch_size"),
		FlushInterval:  Pipe.GetDuration("collector.flush_interval"),
		MaxQueueSize:   Pipe.GetInt("collector.max_queue_size"),
		StrictQueue:    Pipe.GetBool("collector.strict_queue"),
		ThreadPoolSize: Pipe.GetInt("collector.thread_pool_size"),
		MinLevel:       Pipe.GetString("collector.min_level"),
		CompressLogs:   Pipe.GetBool("collector.compress_logs"),
		EnableRetry:    Pipe.GetBool("collector.enable_retry"),
		MaxRetryCount:  Pipe.GetInt("collector.max_retry_count"),
		RetryInterval:  Pipe.GetDuration("collector.retry_interval"),
		CleanInterval:  Pipe.GetDuration("collector.clean_interval"),
		EnableBackup:   Pipe.GetBool("collector.enable_backup"),
	}
}

// ProcessorConfig holds the processor settings.
type ProcessorConfig struct {
	TCPPort         int
	WorkerThreads   int
	MaxQueueSize    int
	BatchSize       int
	ProcessInterval time.Duration
	CompressArchive bool
}

// GetProcessorConfig returns the processor settings from the global config.
func GetProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		TCPPort:         Pipe.GetInt("processor.tcp_port"),
		WorkerThreads:   Pipe.GetInt("processor.worker_threads"),
		MaxQueueSize:    Pipe.GetInt("processor.max_queue_size"),
		BatchSize:       Pipe.GetInt("processor.batch_size"),
		ProcessInterval: Pipe.GetDuration("processor.process_interval"),
		CompressArchive: Pipe.GetBool("processor.compress_archive"),
	}
}

// AnalyzerConfig holds the analyzer settings.
type AnalyzerConfig struct {
	ThreadPoolSize  int
	AnalyzeInterval time.Duration
	BatchSize       int
	MaxQueueSize    int
	StoreResults    bool
	EnableMetrics   bool
	MaxRetries      int
	RuleTimeout     time.Duration
}

// GetAnalyzerConfig returns the analyzer settings from the global config.
func GetAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		ThreadPoolSize:  Pipe.GetInt("analyzer.thread_pool_size"),
		AnalyzeInterval: Pipe.GetDuration("analyzer.analyze_interval"),
		BatchSize:       Pipe.GetInt("analyzer.batch_size"),
		MaxQueueSize:    Pipe.GetInt("analyzer.max_queue_size"),
		StoreResults:    Pipe.GetBool("analyzer.store_results"),
		EnableMetrics:   Pipe.GetBool("analyzer.enable_metrics"),
		MaxRetries:      Pipe.GetInt("analyzer.max_retries"),
		RuleTimeout:     Pipe.GetDuration("analyzer.rule_timeout"),
	}
}

// AlertConfig holds the alert manager settings.
type AlertConfig struct {
	ThreadPoolSize     int
	CheckInterval      time.Duration
	ResendInterval     time.Duration
	BatchSize          int
	MaxQueueSize       int
	SuppressDuplicates bool
	GroupInterval      time.Duration
}

// GetAlertConfig returns the alert manager settings from the global config.
func GetAlertConfig() AlertConfig {
	return AlertConfig{
		ThreadPoolSize:     Pipe.GetInt("alerts.thread_pool_size"),
		CheckInterval:      Pipe.GetDuration("alerts.check_interval"),
		ResendInterval:     Pipe.GetDuration("alerts.resend_interval"),
		BatchSize:          Pipe.GetInt("alerts.batch_size"),
		MaxQueueSize:       Pipe.GetInt("alerts.max_queue_size"),
		SuppressDuplicates: Pipe.GetBool("alerts.suppress_duplicates"),
		GroupInterval:      Pipe.GetDuration("alerts.group_interval"),
	}
}

// CacheConfig holds the cache store settings.
type CacheConfig struct {
	InMemory bool
	Addr     string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// GetCacheConfig returns the cache store settings from the global config.
func GetCacheConfig() CacheConfig {
	return CacheConfig{
		InMemory: Pipe.GetBool("cache.in_memory"),
		Addr:     Pipe.GetString("cache.addr"),
		Password: Pipe.GetString("cache.password"),
		DB:       Pipe.GetInt("cache.db"),
		PoolSize: Pipe.GetInt("cache.pool_size"),
		Timeout:  Pipe.GetDuration("cache.timeout"),
	}
}

// DatabaseConfig holds the relational store settings.
type DatabaseConfig struct {
	Path         string
	MaxOpenConns int
	Timeout      time.Duration
}

// GetDatabaseConfig returns the relational store settings from the global
// config.
func GetDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Path:         Pipe.GetString("database.path"),
		MaxOpenConns: Pipe.GetInt("database.max_open_conns"),
		Timeout:      Pipe.GetDuration("database.timeout"),
	}
}
