// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016-present Datadog, Inc.

// Package main is the entrypoint of the logpipe binary.
package main

import (
	"os"

	"github.com/DataDog/logpipe/cmd/logpipe/command"
)

func main() {
	if err := command.MakeCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
