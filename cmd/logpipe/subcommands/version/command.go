// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package version implements 'logpipe version'.
package version

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/DataDog/logpipe/pkg/version"
)

// MakeCommand returns the version subcommand.
func MakeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version info",
		RunE: func(cmd *cobra.Command, args []string) error {
			commit := version.Commit
			if commit == "" {
				commit = "unknown"
			}
			fmt.Printf("logpipe %s - Commit: %s - Go version: %s\n",
				version.Version, commit, runtime.Version())
			return nil
		},
	}
}
