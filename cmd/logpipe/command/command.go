// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package command builds the logpipe root command.
package command

import (
	"github.com/spf13/cobra"

	"github.com/DataDog/logpipe/cmd/logpipe/subcommands/collect"
	"github.com/DataDog/logpipe/cmd/logpipe/subcommands/start"
	"github.com/DataDog/logpipe/cmd/logpipe/subcommands/version"
)

// GlobalParams holds the flags shared by every subcommand.
type GlobalParams struct {
	// ConfFilePath is the path to the logpipe.yaml config file.
	ConfFilePath string
}

// MakeCommand returns the root command with all subcommands attached.
func MakeCommand() *cobra.Command {
	globalParams := &GlobalParams{}

	cmd := &cobra.Command{
		Use:          "logpipe [command]",
		Short:        "Log ingestion, analysis and alerting pipeline.",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&globalParams.ConfFilePath, "cfgpath", "c", "",
		"path to the logpipe.yaml configuration file")

	cmd.AddCommand(start.MakeCommand(func() string { return globalParams.ConfFilePath }))
	cmd.AddCommand(collect.MakeCommand(func() string { return globalParams.ConfFilePath }))
	cmd.AddCommand(version.MakeCommand())
	return cmd
}
