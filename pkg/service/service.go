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

// Package service wires the poll loop, idle lock, alert sounds and
// notification broker together. Service.Run is the only consumer of the
// poller's updates and the only writer of the status snapshot.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/pulsewatch/pulsewatch/pkg/api/notifications"
	"github.com/pulsewatch/pulsewatch/pkg/audio"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/helpers"
	"github.com/pulsewatch/pulsewatch/pkg/helpers/syncutil"
	"github.com/pulsewatch/pulsewatch/pkg/monitor"
	"github.com/pulsewatch/pulsewatch/pkg/readings"
	"github.com/pulsewatch/pulsewatch/pkg/sensor"
	"github.com/pulsewatch/pulsewatch/pkg/service/broker"
	"github.com/pulsewatch/pulsewatch/pkg/service/idlelock"
	"github.com/pulsewatch/pulsewatch/pkg/service/poller"
	"github.com/rs/zerolog/log"
)

const notificationBuffer = 64

// Options configures a Service. Only Config is required.
type Options struct {
	Config  *config.Instance
	Clock   clockwork.Clock
	Factory sensor.PortFactory
	Locker  idlelock.Locker
	Player  audio.Player
	Ports   helpers.PortEnumerator
}

type snapshot struct {
	lastReading *models.ReadingParams
	lastError   string
	counters    monitor.Counters
}

// Service is the application core shared by the dashboard, the tray and
// the API.
type Service struct {
	cfg           *config.Instance
	clock         clockwork.Clock
	poller        *poller.Poller
	idle          *idlelock.Timer
	player        audio.Player
	ports         helpers.PortEnumerator
	notifications chan models.Notification
	broker        *broker.Broker
	snap          snapshot
	mu            syncutil.RWMutex
}

// New builds a Service from opts. Nothing runs until Run is called.
func New(ctx context.Context, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	cfg := opts.Config

	s := &Service{
		cfg:    cfg,
		clock:  opts.Clock,
		player: opts.Player,
		ports:  opts.Ports,
		poller: poller.New(poller.Options{
			Clock:           opts.Clock,
			Factory:         opts.Factory,
			Interval:        cfg.PollInterval(),
			FingerDetection: cfg.FingerDetection(),
		}),
		idle:          idlelock.New(opts.Clock, opts.Locker),
		notifications: make(chan models.Notification, notificationBuffer),
	}
	s.broker = broker.NewBroker(ctx, s.notifications)

	s.idle.OnStateChange(func(st idlelock.State) {
		notifications.IdleLockState(s.notifications, s.idleLockParams(st))
	})
	s.idle.OnLock(func(err error) {
		notifications.IdleLockLocked(s.notifications, err)
	})

	return s
}

// Broker returns the notification broker. Subscribe before calling Run to
// see every notification.
func (s *Service) Broker() *broker.Broker {
	return s.broker
}

// Run starts the broker, applies the idle lock settings and consumes poller
// updates until ctx is cancelled. On return the port is closed and all
// timers are stopped.
func (s *Service) Run(ctx context.Context) error {
	s.broker.Start()
	s.applyIdleLock()

	defer func() {
		if err := s.poller.Stop(); err != nil {
			log.Warn().Err(err).Msg("error closing serial port on shutdown")
		}
		s.idle.Close()
		log.Info().Msg("service stopped")
	}()

	updates := s.poller.Updates()
	for {
		select {
		case <-ctx.Done():
			return nil
		case u := <-updates:
			s.handleUpdate(u)
		}
	}
}

func (s *Service) handleUpdate(u poller.Update) {
	switch u.Kind {
	case poller.KindReading:
		s.handleReading(u)
	case poller.KindStreamFailed:
		// a newer session was started before this failure was seen
		if cur := s.poller.Session(); cur != 0 && cur != u.Session {
			return
		}
		log.Error().Err(u.Err).Str("port", u.Path).Msg("sensor stream failed")
		s.mu.Lock()
		s.snap = snapshot{lastError: u.Err.Error()}
		s.mu.Unlock()
		s.idle.ObserveFinger(false)
		notifications.MonitorFailed(s.notifications, u.Path, u.Err)
	default:
		log.Warn().Stringer("kind", u.Kind).Msg("ignoring unknown poller update")
	}
}

func (s *Service) handleReading(u poller.Update) {
	// left over from a session that has since been stopped
	if s.poller.Session() != u.Session {
		return
	}

	params := readingParams(u.Time, u.Reading)

	s.mu.Lock()
	s.snap.lastReading = &params
	s.snap.counters = u.Counters
	s.mu.Unlock()

	// without finger detection the sensor can't tell us the finger left
	present := u.Reading.FingerPresent || !s.poller.FingerDetection()
	s.idle.ObserveFinger(present)

	notifications.ReadingsUpdated(s.notifications, params)

	for _, a := range u.Alerts {
		log.Warn().
			Stringer("kind", a.Kind).
			Int("hr", a.Reading.HeartRate).
			Int("spo2", a.Reading.SpO2).
			Int("run", a.Run).
			Msg("abnormal reading alert")
		notifications.AlertsRaised(s.notifications, models.AlertParams{
			Time:      u.Time,
			Kind:      a.Kind.String(),
			HeartRate: a.Reading.HeartRate,
			SpO2:      a.Reading.SpO2,
			Run:       a.Run,
		})
		s.playAlert(a.Kind)
	}
}

func readingParams(t time.Time, r readings.Reading) models.ReadingParams {
	return models.ReadingParams{
		Time:          t,
		HeartRate:     r.HeartRate,
		SpO2:          r.SpO2,
		HeartRateText: r.HeartRateText(),
		SpO2Text:      r.SpO2Text(),
		FingerPresent: r.FingerPresent,
	}
}

func (s *Service) playAlert(kind monitor.Kind) {
	if s.player == nil || !s.cfg.AlertSound() {
		return
	}

	if path := s.cfg.AlertSoundPath(); path != "" {
		err := s.player.PlayFile(path)
		if err == nil {
			return
		}
		log.Warn().Err(err).Str("path", path).Msg("failed to play alert sound file, using tone")
	}

	tone := audio.HRAlertTone
	if kind == monitor.KindSpO2 {
		tone = audio.SpO2AlertTone
	}
	if err := s.player.PlayTone(tone); err != nil {
		log.Warn().Err(err).Msg("failed to play alert tone")
	}
}

// Status returns a copy of the current state for display.
func (s *Service) Status() models.StatusResponse {
	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	port := s.poller.Path()
	if port == "" {
		port = s.cfg.SerialPort()
	}

	resp := models.StatusResponse{
		Version:         config.AppVersion,
		State:           s.poller.State().String(),
		Port:            port,
		HeartRateText:   readings.Placeholder,
		SpO2Text:        readings.Placeholder,
		LastError:       snap.lastError,
		FingerDetection: s.poller.FingerDetection(),
		IdleLock:        s.idleLockParams(s.idle.State()),
		Counters: models.CountersResponse{
			HRAbnormalRun:   snap.counters.HRAbnormalRun,
			SpO2AbnormalRun: snap.counters.SpO2AbnormalRun,
		},
	}
	if snap.lastReading != nil {
		r := *snap.lastReading
		resp.LastReading = &r
		resp.HeartRateText = r.HeartRateText
		resp.SpO2Text = r.SpO2Text
	}
	return resp
}

func (s *Service) idleLockParams(st idlelock.State) models.IdleLockParams {
	return models.IdleLockParams{
		State:   st.String(),
		Enabled: s.cfg.IdleLockEnabled(),
		Timeout: s.cfg.IdleTimeout(),
	}
}

// Ports lists the serial ports a sensor could be on.
func (s *Service) Ports() ([]helpers.SerialPortInfo, error) {
	ports, err := helpers.ListSerialPorts(s.ports)
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}
	return ports, nil
}

// StartMonitor opens port and starts polling it. The port is remembered in
// the config on success. Failures are *poller.StreamError values and leave
// the previous state in place.
func (s *Service) StartMonitor(port string) error {
	if err := s.poller.Start(port); err != nil {
		log.Error().Err(err).Str("port", port).Msg("failed to start monitor")
		s.mu.Lock()
		s.snap.lastError = err.Error()
		s.mu.Unlock()
		notifications.MonitorFailed(s.notifications, port, err)
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	s.mu.Lock()
	s.snap = snapshot{}
	s.mu.Unlock()

	if s.cfg.SerialPort() != port {
		s.cfg.SetSerialPort(port)
		if err := s.cfg.Save(); err != nil {
			log.Warn().Err(err).Msg("failed to save serial port to config")
		}
	}

	notifications.MonitorStarted(s.notifications, port)
	return nil
}

// StopMonitor stops polling and resets the displayed values.
func (s *Service) StopMonitor() error {
	port := s.poller.Path()
	err := s.poller.Stop()

	s.mu.Lock()
	s.snap = snapshot{}
	if err != nil {
		s.snap.lastError = err.Error()
	}
	s.mu.Unlock()

	if port != "" {
		notifications.MonitorStopped(s.notifications, port)
	}
	if err != nil {
		return fmt.Errorf("failed to stop monitor: %w", err)
	}
	return nil
}

// Running reports whether the poll loop is running.
func (s *Service) Running() bool {
	return s.poller.State() == poller.StateRunning
}

// ApplySettings updates and saves the settings named in req. An invalid
// idle timeout is replaced by the default and reported in the response,
// not as an error.
func (s *Service) ApplySettings(req models.SettingsRequest) (models.SettingsResponse, error) {
	var resp models.SettingsResponse

	if req.FingerDetection != nil {
		s.cfg.SetFingerDetection(*req.FingerDetection)
	}
	if req.IdleTimeoutUnit != nil {
		if err := s.cfg.SetIdleTimeoutUnit(*req.IdleTimeoutUnit); err != nil {
			return resp, fmt.Errorf("failed to set idle timeout unit: %w", err)
		}
	}
	if req.IdleLock != nil || req.IdleTimeout != nil {
		enabled := s.cfg.IdleLockEnabled()
		if req.IdleLock != nil {
			enabled = *req.IdleLock
		}
		text := strconv.Itoa(s.cfg.IdleTimeout())
		if req.IdleTimeout != nil {
			text = *req.IdleTimeout
		}
		_, err := s.cfg.SetIdleLock(enabled, text)
		switch {
		case errors.Is(err, config.ErrInvalidTimeout):
			log.Warn().Str("input", text).Msg("invalid idle timeout, reverted to default")
			resp.IdleTimeoutReverted = true
		case err != nil:
			return resp, fmt.Errorf("failed to set idle lock: %w", err)
		}
	}

	if err := s.cfg.Save(); err != nil {
		return resp, fmt.Errorf("failed to save settings: %w", err)
	}
	s.ApplyConfig()

	resp.FingerDetection = s.cfg.FingerDetection()
	resp.IdleLock = s.cfg.IdleLockEnabled()
	resp.IdleTimeout = s.cfg.IdleTimeout()
	resp.IdleTimeoutUnit = s.cfg.IdleTimeoutUnit()
	notifications.SettingsUpdated(s.notifications, resp)
	return resp, nil
}

// ApplyConfig pushes the current config values into the running
// components. It is also the config watcher's reload callback.
func (s *Service) ApplyConfig() {
	s.poller.SetFingerDetection(s.cfg.FingerDetection())
	s.applyIdleLock()
	if s.player != nil {
		s.player.ClearFileCache()
	}
}

// applyIdleLock re-arms the timer only when the switch or the timeout
// actually changed, so a config reload doesn't restart the countdown.
func (s *Service) applyIdleLock() {
	enabled := s.cfg.IdleLockEnabled()
	timeout := s.cfg.IdleTimeoutDuration()

	switch {
	case !enabled && s.idle.Enabled():
		s.idle.Disable()
	case enabled && (!s.idle.Enabled() || s.idle.Timeout() != timeout):
		s.idle.Enable(timeout)
	}
}

// IdleLockState returns the idle lock timer state.
func (s *Service) IdleLockState() idlelock.State {
	return s.idle.State()
}
