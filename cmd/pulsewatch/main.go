// Pulsewatch
// Copyright (c) 2026 The Pulsewatch Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Pulsewatch.
//
// Pulsewatch is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Pulsewatch is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Pulsewatch.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/pulsewatch/pulsewatch/internal/telemetry"
	"github.com/pulsewatch/pulsewatch/pkg/api/client"
	"github.com/pulsewatch/pulsewatch/pkg/cli"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/helpers"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	exit, err := flags.Pre(os.Args[1:], os.Stdout)
	if err != nil || exit {
		return err
	}

	paths := helpers.DefaultPaths()

	var logWriters []io.Writer
	if *flags.Daemon {
		logWriters = []io.Writer{helpers.ConsoleWriter(os.Stderr)}
	}

	cfg, err := cli.Setup(paths, config.BaseDefaults, logWriters)
	if err != nil {
		return err
	}
	defer telemetry.Close()

	ctx := context.Background()
	handled, err := flags.Post(ctx, client.NewLocal(cfg), nil, os.Stdout)
	if handled {
		return err
	}

	return cli.RunApp(ctx, cfg, cli.RunOptions{
		Paths: paths,
		Port:  *flags.Port,
		Mode:  flags.Mode(cfg),
	})
}
