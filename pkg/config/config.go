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

// Package config loads and saves the TOML settings file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/pulsewatch/pulsewatch/pkg/helpers/syncutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

const (
	SchemaVersion = 1
	CfgEnv        = "PULSEWATCH_CFG"
)

var ErrSchemaMismatch = errors.New("schema version mismatch")

type Values struct {
	ErrorReporting ErrorReporting `toml:"error_reporting"`
	DeviceID       string         `toml:"device_id"`
	Audio          Audio          `toml:"audio"`
	MQTT           MQTT           `toml:"mqtt,omitempty"`
	IdleLock       IdleLock       `toml:"idle_lock"`
	Discovery      Discovery      `toml:"discovery"`
	Serial         Serial         `toml:"serial"`
	API            API            `toml:"api"`
	Monitor        Monitor        `toml:"monitor"`
	UI             UI             `toml:"ui"`
	ConfigSchema   int            `toml:"config_schema"`
	StartMinimized bool           `toml:"start_minimized"`
	DebugLogging   bool           `toml:"debug_logging"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Serial: Serial{
		PollIntervalMS: DefaultPollIntervalMS,
	},
	IdleLock: IdleLock{
		Timeout: DefaultIdleTimeout,
		Unit:    UnitSeconds,
	},
	Monitor: Monitor{
		FingerDetection: true,
	},
	Audio: Audio{
		AlertSound: true,
	},
	API: API{
		Port: DefaultAPIPort,
	},
	Discovery: Discovery{
		Enabled: true,
	},
	MQTT: MQTT{
		Topic: DefaultMQTTTopic,
	},
}

type UI struct {
	Theme string `toml:"theme,omitempty" validate:"omitempty,oneof=default high_contrast"`
}

type Instance struct {
	fs       afero.Fs
	clock    clockwork.Clock
	validate *validator.Validate
	cfgPath  string
	written  []byte
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

type Option func(*Instance)

// WithClock sets the clock used to debounce file change events.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Instance) {
		c.clock = clock
	}
}

// WithFs replaces the file system the config is read from and written to.
func WithFs(fs afero.Fs) Option {
	return func(c *Instance) {
		c.fs = fs
	}
}

// NewConfig loads the config file in configDir, writing one with the given
// defaults first if none exists. PULSEWATCH_CFG overrides the file path.
//
//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values, opts ...Option) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := &Instance{
		fs:       afero.NewOsFs(),
		clock:    clockwork.NewRealClock(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	exists, err := afero.Exists(cfg.fs, cfgPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !exists {
		log.Info().Msg("saving new default config to disk")

		if err := cfg.fs.MkdirAll(filepath.Dir(cfgPath), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		if err := cfg.Save(); err != nil {
			return nil, err
		}
	}

	if err := cfg.Load(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the location of the config file.
func (c *Instance) Path() string {
	return c.cfgPath
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := afero.ReadFile(c.fs, c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// File values are unmarshalled over the defaults so missing keys keep
	// their default value.
	newVals := c.defaults
	if err := toml.Unmarshal(data, &newVals); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return ErrSchemaMismatch
	}

	if err := c.validator().Struct(&newVals); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c.vals = newVals
	c.written = data
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	if c.vals.DeviceID == "" {
		newID := uuid.New().String()
		c.vals.DeviceID = newID
		log.Info().Msgf("generated new device id: %s", newID)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(c.fs, c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	c.written = data
	return nil
}

// Snapshot returns a copy of the current values.
func (c *Instance) Snapshot() Values {
	c.mu.RLock()
	defer c.mu.RUnlock()
	vals := c.vals
	vals.MQTT.Filter = append([]string(nil), c.vals.MQTT.Filter...)
	vals.API.AllowedOrigins = append([]string(nil), c.vals.API.AllowedOrigins...)
	return vals
}

func (c *Instance) validator() *validator.Validate {
	if c.validate == nil {
		c.validate = validator.New(validator.WithRequiredStructEnabled())
	}
	return c.validate
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
	if enabled {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func (c *Instance) StartMinimized() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.StartMinimized
}

func (c *Instance) SetStartMinimized(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.StartMinimized = enabled
}

func (c *Instance) DeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DeviceID
}

// UITheme is the dashboard colour theme name. Empty means the default.
func (c *Instance) UITheme() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.UI.Theme
}
