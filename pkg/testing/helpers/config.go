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

package helpers

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pelletier/go-toml/v2"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

// TestConfigDir is where NewTestConfig puts the config file.
const TestConfigDir = "/pulsewatch"

// NewTestConfig creates a config backed by an in-memory filesystem. Any
// values are written as the initial config file.
func NewTestConfig(t *testing.T, vals *config.Values) (*config.Instance, afero.Fs) {
	t.Helper()

	fs := afero.NewMemMapFs()
	if vals != nil {
		require.NoError(t, WriteConfigFile(fs, filepath.Join(TestConfigDir, config.CfgFile), vals))
	}

	cfg, err := config.NewConfig(TestConfigDir, config.BaseDefaults, config.WithFs(fs))
	require.NoError(t, err)
	return cfg, fs
}

// WriteConfigFile encodes vals as TOML at path.
func WriteConfigFile(fs afero.Fs, path string, vals *config.Values) error {
	data, err := toml.Marshal(vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
