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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogging(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "logs")
	var extra bytes.Buffer

	original := log.Logger
	t.Cleanup(func() { log.Logger = original })

	require.NoError(t, InitLogging(logDir, &extra))
	log.Info().Msg("sensor connected")

	assert.Contains(t, extra.String(), "sensor connected")

	data, err := os.ReadFile(filepath.Join(logDir, config.LogFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "sensor connected")
	assert.Contains(t, string(data), `"caller"`)

	_, err = LogWriter().Write([]byte("raw line\n"))
	require.NoError(t, err)
	assert.Contains(t, extra.String(), "raw line")
}

func TestInitLogging_BadDir(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	require.Error(t, InitLogging(filepath.Join(blocker, "logs")))
}
