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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindUserDir(t *testing.T) {
	t.Parallel()

	t.Run("present", func(t *testing.T) {
		t.Parallel()

		exeDir := t.TempDir()
		require.NoError(t, os.Mkdir(filepath.Join(exeDir, UserDir), 0o750))

		dir, ok := findUserDir(exeDir)
		assert.True(t, ok)
		assert.Equal(t, filepath.Join(exeDir, UserDir), dir)
	})

	t.Run("missing", func(t *testing.T) {
		t.Parallel()

		_, ok := findUserDir(t.TempDir())
		assert.False(t, ok)
	})

	t.Run("file not dir", func(t *testing.T) {
		t.Parallel()

		exeDir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(exeDir, UserDir), nil, 0o600))

		_, ok := findUserDir(exeDir)
		assert.False(t, ok)
	})
}

func TestDefaultPaths(t *testing.T) {
	t.Parallel()

	p := DefaultPaths()
	assert.NotEmpty(t, p.ConfigDir)
	assert.NotEmpty(t, p.DataDir)
	assert.NotEmpty(t, p.LogDir)
}

func TestEnsureDirectories(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	p := Paths{
		ConfigDir: filepath.Join(base, "config"),
		DataDir:   filepath.Join(base, "data"),
		LogDir:    filepath.Join(base, "state", "logs"),
	}
	require.NoError(t, EnsureDirectories(p))

	for _, dir := range []string{p.ConfigDir, p.DataDir, p.LogDir} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestEnsureDirectories_Error(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	blocker := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	err := EnsureDirectories(Paths{ConfigDir: filepath.Join(blocker, "config")})
	require.Error(t, err)
}
