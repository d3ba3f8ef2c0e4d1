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

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/pulsewatch/pulsewatch/internal/telemetry"
	"github.com/pulsewatch/pulsewatch/pkg/api"
	"github.com/pulsewatch/pulsewatch/pkg/api/client"
	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/pulsewatch/pulsewatch/pkg/audio"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/helpers"
	"github.com/pulsewatch/pulsewatch/pkg/helpers/command"
	"github.com/pulsewatch/pulsewatch/pkg/lockscreen"
	"github.com/pulsewatch/pulsewatch/pkg/service"
	"github.com/pulsewatch/pulsewatch/pkg/service/discovery"
	"github.com/pulsewatch/pulsewatch/pkg/service/publishers"
	"github.com/pulsewatch/pulsewatch/pkg/ui/systray"
	"github.com/pulsewatch/pulsewatch/pkg/ui/tui"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const subscriberBuffer = 32

var ErrAlreadyRunning = errors.New("pulsewatch is already running")

type RunOptions struct {
	Paths helpers.Paths
	// Port overrides the configured serial port to start on launch.
	Port string
	Mode Mode
}

// AutoStartPort returns the port to open on launch, if any.
func AutoStartPort(cfg *config.Instance, override string) string {
	if override != "" {
		return override
	}
	return cfg.SerialPort()
}

// RunApp runs the service with the API and the selected front end until
// the user exits or the process is signalled.
func RunApp(ctx context.Context, cfg *config.Instance, opts RunOptions) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("recovered from panic")
			telemetry.Flush()
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if client.NewLocal(cfg).IsRunning(ctx) {
		if opts.Mode == ModeDaemon {
			log.Info().Msg("another instance is already running, exiting")
			return nil
		}
		return ErrAlreadyRunning
	}

	log.Info().
		Str("version", config.AppVersion).
		Str("mode", opts.Mode.String()).
		Str("config", cfg.Path()).
		Msg("starting pulsewatch")

	clock := clockwork.NewRealClock()
	exec := &command.RealExecutor{}
	svc := service.New(ctx, service.Options{
		Config: cfg,
		Clock:  clock,
		Locker: lockscreen.New(exec),
		Player: audio.NewMalgoPlayer(),
	})

	apiNotifs, _ := svc.Broker().Subscribe(subscriberBuffer)
	var uiNotifs <-chan models.Notification
	if opts.Mode != ModeDaemon {
		uiNotifs, _ = svc.Broker().Subscribe(subscriberBuffer)
	}

	var mqtt *publishers.MQTTPublisher
	if mqttCfg := cfg.MQTT(); mqttCfg.Broker != "" {
		mqttNotifs, _ := svc.Broker().Subscribe(subscriberBuffer)
		mqtt = publishers.NewMQTTPublisher(mqttCfg, cfg.DeviceID())
		if err := mqtt.Start(mqttNotifs); err != nil {
			log.Error().Err(err).Msg("failed to start MQTT publisher")
			mqtt = nil
		}
	}
	defer func() {
		if mqtt != nil {
			mqtt.Stop()
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return svc.Run(gctx)
	})
	g.Go(func() error {
		return api.NewServer(cfg, svc).Serve(gctx, apiNotifs)
	})
	g.Go(func() error {
		return cfg.Watch(gctx, svc.ApplyConfig)
	})

	if cfg.DiscoveryEnabled() {
		disc := discovery.New(discovery.SettingsFromConfig(cfg), clock)
		if err := disc.Start(); err != nil {
			log.Warn().Err(err).Msg("failed to start mDNS discovery")
		}
		defer disc.Stop()
	}

	if port := AutoStartPort(cfg, opts.Port); port != "" {
		if err := svc.StartMonitor(port); err != nil {
			log.Warn().Err(err).Str("port", port).Msg("failed to start monitoring on launch")
		}
	}

	switch opts.Mode {
	case ModeDashboard:
		if err := tui.Run(gctx, cfg, svc, uiNotifs); err != nil {
			log.Error().Err(err).Msg("dashboard exited with error")
		}
	case ModeTray:
		systray.New(cfg, svc, exec, opts.Paths.LogDir).Run(gctx, uiNotifs)
	case ModeDaemon:
		<-gctx.Done()
	}

	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("service error: %w", err)
	}
	return nil
}
