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

package config

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPollIntervalMS = 100
	DefaultIdleTimeout    = 60
	UnitSeconds           = "seconds"
	UnitMinutes           = "minutes"

	maxIdleTimeoutDigits = 3
)

// ErrInvalidTimeout is returned when idle timeout text can't be used. The
// accompanying value is always DefaultIdleTimeout.
var ErrInvalidTimeout = errors.New("invalid idle timeout")

type Serial struct {
	Port           string `toml:"port"`
	PollIntervalMS int    `toml:"poll_interval_ms" validate:"gte=10,lte=1000"`
}

type IdleLock struct {
	Unit    string `toml:"unit" validate:"oneof=seconds minutes"`
	Timeout int    `toml:"timeout" validate:"gte=1,lte=999"`
	Enabled bool   `toml:"enabled"`
}

type Monitor struct {
	FingerDetection bool `toml:"finger_detection"`
}

type Audio struct {
	AlertSoundPath string `toml:"alert_sound_path,omitempty"`
	AlertSound     bool   `toml:"alert_sound"`
}

// ParseIdleTimeout converts user input into an idle timeout count. Input
// that isn't a positive integer of at most three digits yields
// DefaultIdleTimeout and ErrInvalidTimeout.
func ParseIdleTimeout(text string) (int, error) {
	text = strings.TrimSpace(text)
	if text == "" || len(text) > maxIdleTimeoutDigits {
		return DefaultIdleTimeout, ErrInvalidTimeout
	}

	n, err := strconv.Atoi(text)
	if err != nil || n <= 0 {
		return DefaultIdleTimeout, ErrInvalidTimeout
	}
	return n, nil
}

func unitDuration(unit string) time.Duration {
	if unit == UnitMinutes {
		return time.Minute
	}
	return time.Second
}

func (c *Instance) SerialPort() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Serial.Port
}

func (c *Instance) SetSerialPort(port string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Serial.Port = port
}

func (c *Instance) PollInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Serial.PollIntervalMS <= 0 {
		return DefaultPollIntervalMS * time.Millisecond
	}
	return time.Duration(c.vals.Serial.PollIntervalMS) * time.Millisecond
}

func (c *Instance) IdleLockEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.IdleLock.Enabled
}

// IdleTimeout returns the configured timeout count, which is measured in
// IdleTimeoutUnit.
func (c *Instance) IdleTimeout() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.IdleLock.Timeout <= 0 {
		return DefaultIdleTimeout
	}
	return c.vals.IdleLock.Timeout
}

func (c *Instance) IdleTimeoutUnit() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.IdleLock.Unit == UnitMinutes {
		return UnitMinutes
	}
	return UnitSeconds
}

// IdleTimeoutDuration returns the idle timeout in wall-clock time.
func (c *Instance) IdleTimeoutDuration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	timeout := c.vals.IdleLock.Timeout
	if timeout <= 0 {
		timeout = DefaultIdleTimeout
	}
	return time.Duration(timeout) * unitDuration(c.vals.IdleLock.Unit)
}

// SetIdleLock stores the idle lock switch and timeout text. Invalid text
// stores DefaultIdleTimeout and returns ErrInvalidTimeout along with it.
func (c *Instance) SetIdleLock(enabled bool, timeoutText string) (int, error) {
	timeout, err := ParseIdleTimeout(timeoutText)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.IdleLock.Enabled = enabled
	c.vals.IdleLock.Timeout = timeout
	return timeout, err
}

func (c *Instance) SetIdleTimeoutUnit(unit string) error {
	if unit != UnitSeconds && unit != UnitMinutes {
		return errors.New("unknown idle timeout unit: " + unit)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.IdleLock.Unit = unit
	return nil
}

func (c *Instance) FingerDetection() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Monitor.FingerDetection
}

func (c *Instance) SetFingerDetection(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Monitor.FingerDetection = enabled
}

func (c *Instance) AlertSound() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Audio.AlertSound
}

func (c *Instance) SetAlertSound(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Audio.AlertSound = enabled
}

// AlertSoundPath returns a custom alert sound file, or an empty string to
// use the generated tones.
func (c *Instance) AlertSoundPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Audio.AlertSoundPath
}
