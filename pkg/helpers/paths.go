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
	"os"
	"path/filepath"
	"sync"

	"github.com/adrg/xdg"
	"github.com/pulsewatch/pulsewatch/pkg/config"
)

// UserDir is checked for next to the executable. When present it holds
// every file the app writes, for a portable install.
const UserDir = "user"

// Paths are the directories the app reads from and writes to.
type Paths struct {
	ConfigDir string
	DataDir   string
	LogDir    string
}

var (
	userDirOnce        sync.Once
	userDirCache       string
	userDirCacheExists bool
)

// HasUserDir reports whether a portable user directory exists next to the
// executable. The result is cached after the first call.
func HasUserDir() (string, bool) {
	userDirOnce.Do(func() {
		exe, err := os.Executable()
		if err != nil {
			return
		}
		userDirCache, userDirCacheExists = findUserDir(filepath.Dir(exe))
	})
	return userDirCache, userDirCacheExists
}

func findUserDir(exeDir string) (string, bool) {
	userDir := filepath.Join(exeDir, UserDir)
	info, err := os.Stat(userDir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return userDir, true
}

// DefaultPaths returns the portable user directory if there is one, or the
// XDG base directories otherwise.
func DefaultPaths() Paths {
	if dir, ok := HasUserDir(); ok {
		return Paths{
			ConfigDir: dir,
			DataDir:   dir,
			LogDir:    dir,
		}
	}
	return Paths{
		ConfigDir: filepath.Join(xdg.ConfigHome, config.AppName),
		DataDir:   filepath.Join(xdg.DataHome, config.AppName),
		LogDir:    filepath.Join(xdg.StateHome, config.AppName),
	}
}

// EnsureDirectories creates every directory in p.
func EnsureDirectories(p Paths) error {
	for _, dir := range []string{p.ConfigDir, p.DataDir, p.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

func ExeDir() string {
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	return filepath.Dir(exe)
}
