// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package start implements 'logpipe start'.
package start

import (
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/pipeline"
	"github.com/DataDog/logpipe/pkg/util/log"
	"github.com/DataDog/logpipe/pkg/version"
)

// MakeCommand returns the start subcommand. confFilePath resolves the config
// flag lazily so the root command can own it.
func MakeCommand(confFilePath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the pipeline",
		Long:  `Runs the TCP intake, the processor, the analyzer and the alert manager until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(confFilePath())
		},
	}
}

func run(confFilePath string) error {
	if err := config.Load(confFilePath); err != nil {
		return err
	}
	log.SetupDefaultLogger(config.Pipe.GetString("log_level"))
	defer log.Flush()
	log.Infof("Starting logpipe %s", version.Version)

	provider, err := pipeline.NewProvider()
	if err != nil {
		return fmt.Errorf("unable to build the pipeline: %w", err)
	}
	if err := provider.Start(); err != nil {
		return fmt.Errorf("unable to start the pipeline: %w", err)
	}

	startTelemetryServer()

	// block until a termination signal comes in
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	sig := <-signalCh
	log.Infof("Received signal %q, shutting down", sig)

	if err := provider.Stop(); err != nil {
		log.Warnf("Shutdown reported errors: %v", err)
	}
	log.Info("Shutdown complete")
	return nil
}

// startTelemetryServer exposes the expvar and prometheus counters when
// telemetry.port is set.
func startTelemetryServer() {
	port := config.Pipe.GetInt("telemetry.port")
	if port <= 0 {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/debug/vars", expvar.Handler())
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		addr := fmt.Sprintf("127.0.0.1:%d", port)
		log.Infof("Telemetry server listening on %s", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Errorf("Telemetry server stopped: %v", err)
		}
	}()
}
