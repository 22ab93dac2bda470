// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package collect implements 'logpipe collect', the producer-side agent
// shipping local log files to a remote intake.
package collect

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	clienttcp "github.com/DataDog/logpipe/pkg/client/tcp"
	"github.com/DataDog/logpipe/pkg/collector"
	"github.com/DataDog/logpipe/pkg/config"
	"github.com/DataDog/logpipe/pkg/message"
	"github.com/DataDog/logpipe/pkg/util/log"
)

type cliParams struct {
	files        []string
	intakeAddr   string
	minLevel     string
	tailInterval time.Duration
	maxLines     int
}

// MakeCommand returns the collect subcommand. confFilePath resolves the
// config flag lazily so the root command can own it.
func MakeCommand(confFilePath func() string) *cobra.Command {
	params := &cliParams{}

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Tail local files and forward them to an intake",
		Long:  `Tails the given files, batches their lines and ships them to the intake over TCP until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(confFilePath(), params)
		},
	}
	cmd.Flags().StringSliceVarP(&params.files, "file", "f", nil, "file to tail, repeatable")
	cmd.Flags().StringVarP(&params.intakeAddr, "intake", "i", "127.0.0.1:9000", "intake address")
	cmd.Flags().StringVarP(&params.minLevel, "level", "l", "INFO", "level assigned to collected lines")
	cmd.Flags().DurationVar(&params.tailInterval, "tail-interval", time.Second, "file poll interval")
	cmd.Flags().IntVar(&params.maxLines, "max-lines", 1000, "max lines consumed per poll")
	return cmd
}

func run(confFilePath string, params *cliParams) error {
	if err := config.Load(confFilePath); err != nil {
		return err
	}
	log.SetupDefaultLogger(config.Pipe.GetString("log_level"))
	defer log.Flush()

	if len(params.files) == 0 {
		return fmt.Errorf("no files to tail, pass at least one --file")
	}

	destination := clienttcp.NewDestination(params.intakeAddr)
	defer destination.Close()

	c := collector.New(config.GetCollectorConfig(), func(batch []*collector.Entry) error {
		for _, entry := range batch {
			if err := destination.Send(entry.Content); err != nil {
				return err
			}
		}
		return nil
	})
	c.SetErrorCallback(func(err error) {
		log.Errorf("Collector error: %v", err)
	})
	c.Start()

	level := message.ParseLevel(params.minLevel)
	for _, path := range params.files {
		if _, err := c.CollectFromFile(path, level, params.tailInterval, params.maxLines); err != nil {
			c.Shutdown()
			return fmt.Errorf("unable to tail %s: %w", path, err)
		}
		log.Infof("Tailing %s", path)
	}

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)
	sig := <-signalCh
	log.Infof("Received signal %q, shutting down", sig)

	c.Shutdown()
	return nil
}
