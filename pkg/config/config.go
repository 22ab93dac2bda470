// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package config holds the global configuration object and the typed views
// each subsystem takes on it.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Pipe is the global configuration object.
var Pipe *viper.Viper

func init() {
	Pipe = viper.New()
	Pipe.SetConfigName("logpipe")
	Pipe.SetEnvPrefix("LOGPIPE")
	Pipe.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	Pipe.AutomaticEnv()
	initDefaults(Pipe)
}

// initDefaults initializes the config defaults on a config.
func initDefaults(config *viper.Viper) {
	config.SetDefault("log_level", "info")
	config.SetDefault("telemetry.port", 0)

	// collector
	config.SetDefault("collector.batch_size", 100)
	config.SetDefault("collector.flush_interval", 1*time.Second)
	config.SetDefault("collector.max_queue_size", 10000)
	config.SetDefault("collector.strict_queue", false)
	config.SetDefault("collector.thread_pool_size", 4)
	config.SetDefault("collector.min_level", "INFO")
	config.SetDefault("collector.compress_logs", false)
	config.SetDefault("collector.enable_retry", true)
	config.SetDefault("collector.max_retry_count", 3)
	config.SetDefault("collector.retry_interval", 1*time.Second)
	config.SetDefault("collector.clean_interval", 60*time.Second)
	config.SetDefault("collector.enable_backup", false)

	// processor
	config.SetDefault("processor.tcp_port", 9000)
	config.SetDefault("processor.worker_threads", 4)
	config.SetDefault("processor.max_queue_size", 10000)
	config.SetDefault("processor.batch_size", 100)
	config.SetDefault("processor.process_interval", 100*time.Millisecond)
	config.SetDefault("processor.compress_archive", true)

	// analyzer
	config.SetDefault("analyzer.thread_pool_size", 4)
	config.SetDefault("analyzer.analyze_interval", 100*time.Millisecond)
	config.SetDefault("analyzer.batch_size", 100)
	config.SetDefault("analyzer.max_queue_size", 10000)
	config.SetDefault("analyzer.store_results", true)
	config.SetDefault("analyzer.enable_metrics", true)
	config.SetDefault("analyzer.max_retries", 3)
	config.SetDefault("analyzer.rule_timeout", 5*time.Second)

	// alerts
	config.SetDefault("alerts.thread_pool_size", 2)
	config.SetDefault("alerts.check_interval", 10*time.Second)
	config.SetDefault("alerts.resend_interval", 5*time.Minute)
	config.SetDefault("alerts.batch_size", 50)
	config.SetDefault("alerts.max_queue_size", 1000)
	config.SetDefault("alerts.suppress_duplicates", true)
	config.SetDefault("alerts.group_interval", 30*time.Second)

	// cache store
	config.SetDefault("cache.in_memory", false)
	config.SetDefault("cache.addr", "127.0.0.1:6379")
	config.SetDefault("cache.password", "")
	config.SetDefault("cache.db", 0)
	config.SetDefault("cache.pool_size", 8)
	config.SetDefault("cache.timeout", 2*time.Second)

	// relational store
	config.SetDefault("database.path", "logpipe.db")
	config.SetDefault("database.max_open_conns", 8)
	config.SetDefault("database.timeout", 5*time.Second)
}

// Load reads the configuration file at the given path. An empty path falls
// back to the working directory and /etc/logpipe.
func Load(path string) error {
	if path != "" {
		Pipe.SetConfigFile(path)
	} else {
		Pipe.AddConfigPath(".")
		Pipe.AddConfigPath("/etc/logpipe")
	}
	if err := Pipe.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// defaults and env only
			return nil
		}
		return fmt.Errorf("unable to load config: %w", err)
	}
	return nil
}
