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

// Package cli holds the command line flags and startup shared by every
// build of the binary.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/pulsewatch/pulsewatch/internal/telemetry"
	"github.com/pulsewatch/pulsewatch/pkg/api/client"
	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/helpers"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Mode selects the front end.
type Mode int

const (
	ModeDashboard Mode = iota
	ModeTray
	ModeDaemon
)

func (m Mode) String() string {
	switch m {
	case ModeDashboard:
		return "dashboard"
	case ModeTray:
		return "tray"
	case ModeDaemon:
		return "daemon"
	default:
		return "unknown"
	}
}

var ErrNotRunning = errors.New("pulsewatch is not running")

type Flags struct {
	Version   *bool
	Daemon    *bool
	Tray      *bool
	Dashboard *bool
	Port      *string
	ListPorts *bool
	Status    *bool
	Start     *string
	Stop      *bool
	Watch     *bool
	fs        *flag.FlagSet
}

// SetupFlags defines every flag on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		fs: fs,
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Daemon: fs.Bool(
			"daemon",
			false,
			"run in the foreground with no UI, logging to stderr",
		),
		Tray: fs.Bool(
			"tray",
			false,
			"run minimized to the system tray",
		),
		Dashboard: fs.Bool(
			"dashboard",
			false,
			"show the terminal dashboard even if start_minimized is set",
		),
		Port: fs.String(
			"port",
			"",
			"serial port to start monitoring on launch",
		),
		ListPorts: fs.Bool(
			"list-ports",
			false,
			"print the serial ports a sensor could be on and exit",
		),
		Status: fs.Bool(
			"status",
			false,
			"print the status of the running instance and exit",
		),
		Start: fs.String(
			"start",
			"",
			"ask the running instance to start monitoring a port",
		),
		Stop: fs.Bool(
			"stop",
			false,
			"ask the running instance to stop monitoring",
		),
		Watch: fs.Bool(
			"watch",
			false,
			"print readings and alerts from the running instance",
		),
	}
}

func (f *Flags) isFlagPassed(name string) bool {
	found := false
	f.fs.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

// Pre parses args and handles flags that need no setup. It reports whether
// the program should exit.
func (f *Flags) Pre(args []string, out io.Writer) (exit bool, err error) {
	if err := f.fs.Parse(args); err != nil {
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}
	if *f.Version {
		_, _ = fmt.Fprintf(out, "Pulsewatch v%s\n", config.AppVersion)
		return true, nil
	}
	return false, nil
}

// Mode picks the front end from the flags and the start_minimized setting.
func (f *Flags) Mode(cfg *config.Instance) Mode {
	switch {
	case *f.Daemon:
		return ModeDaemon
	case *f.Tray:
		return ModeTray
	case *f.Dashboard:
		return ModeDashboard
	case cfg.StartMinimized():
		return ModeTray
	default:
		return ModeDashboard
	}
}

// Post handles flags that act on the running instance or the system and
// then exit. It reports whether one was handled.
func (f *Flags) Post(
	ctx context.Context,
	c *client.Client,
	enum helpers.PortEnumerator,
	out io.Writer,
) (handled bool, err error) {
	switch {
	case *f.ListPorts:
		ports, err := helpers.ListSerialPorts(enum)
		if err != nil {
			return true, fmt.Errorf("failed to list ports: %w", err)
		}
		if len(ports) == 0 {
			_, _ = fmt.Fprintln(out, "No serial ports found")
			return true, nil
		}
		for _, p := range ports {
			_, _ = fmt.Fprintln(out, formatPort(p))
		}
		return true, nil
	case *f.Status:
		st, err := c.Status(ctx)
		if err != nil {
			return true, notRunning(err)
		}
		return true, printJSON(out, st)
	case f.isFlagPassed("start"):
		if *f.Start == "" {
			return true, errors.New("start flag requires a port")
		}
		if err := c.StartMonitor(ctx, *f.Start); err != nil {
			return true, notRunning(err)
		}
		_, _ = fmt.Fprintf(out, "Monitoring %s\n", *f.Start)
		return true, nil
	case *f.Stop:
		if err := c.StopMonitor(ctx); err != nil {
			return true, notRunning(err)
		}
		_, _ = fmt.Fprintln(out, "Monitoring stopped")
		return true, nil
	case *f.Watch:
		err := c.Watch(ctx, func(n models.Notification) {
			if line := formatNotification(n); line != "" {
				_, _ = fmt.Fprintln(out, line)
			}
		},
			models.NotificationReadingsUpdated,
			models.NotificationAlertsRaised,
			models.NotificationMonitorStarted,
			models.NotificationMonitorStopped,
			models.NotificationMonitorFailed,
		)
		if err != nil {
			return true, notRunning(err)
		}
		return true, nil
	default:
		return false, nil
	}
}

func notRunning(err error) error {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) || errors.Is(err, client.ErrRequestCancelled) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNotRunning, err)
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, _ = fmt.Fprintln(out, string(data))
	return nil
}

func formatPort(p helpers.SerialPortInfo) string {
	var sb strings.Builder
	sb.WriteString(p.Name)
	if p.IsUSB {
		_, _ = fmt.Fprintf(&sb, "\tUSB %s:%s", p.VID, p.PID)
	}
	if p.Product != "" {
		sb.WriteString("\t" + p.Product)
	}
	return sb.String()
}

func formatNotification(n models.Notification) string {
	switch n.Method {
	case models.NotificationReadingsUpdated:
		var p models.ReadingParams
		if json.Unmarshal(n.Params, &p) != nil {
			return ""
		}
		return fmt.Sprintf("%s HR %s SpO2 %s", p.Time.Format("15:04:05"), p.HeartRateText, p.SpO2Text)
	case models.NotificationAlertsRaised:
		var p models.AlertParams
		if json.Unmarshal(n.Params, &p) != nil {
			return ""
		}
		return fmt.Sprintf("%s ALERT %s abnormal for %d readings (HR %d, SpO2 %d)",
			p.Time.Format("15:04:05"), p.Kind, p.Run, p.HeartRate, p.SpO2)
	case models.NotificationMonitorStarted, models.NotificationMonitorStopped,
		models.NotificationMonitorFailed:
		var p models.MonitorParams
		if json.Unmarshal(n.Params, &p) != nil {
			return ""
		}
		line := n.Method + " " + p.Port
		if p.Error != "" {
			line += ": " + p.Error
		}
		return line
	default:
		return ""
	}
}

// Setup creates the directories, starts logging and loads the config.
//
//nolint:gocritic // config struct copied for immutability
func Setup(
	paths helpers.Paths,
	defaults config.Values,
	writers []io.Writer,
) (*config.Instance, error) {
	if err := helpers.EnsureDirectories(paths); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	if err := helpers.InitLogging(paths.LogDir, writers...); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	cfg, err := config.NewConfig(paths.ConfigDir, defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.DebugLogging() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if err := telemetry.Init(telemetry.Options{
		Enabled:  cfg.ErrorReporting(),
		DSN:      cfg.ErrorReportingDSN(),
		DeviceID: cfg.DeviceID(),
		Version:  config.AppVersion,
	}); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg, nil
}
