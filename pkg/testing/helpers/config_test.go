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
	"testing"

	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTestConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, fs := NewTestConfig(t, nil)
	assert.Equal(t, config.DefaultAPIPort, cfg.APIPort())

	exists, err := afero.Exists(fs, cfg.Path())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewTestConfig_Values(t *testing.T) {
	t.Parallel()

	vals := config.BaseDefaults
	vals.Serial.Port = "/dev/ttyACM0"
	vals.StartMinimized = true

	cfg, _ := NewTestConfig(t, &vals)
	assert.Equal(t, "/dev/ttyACM0", cfg.SerialPort())
	assert.True(t, cfg.StartMinimized())
}
