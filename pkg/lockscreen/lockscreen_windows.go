//go:build windows

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

package lockscreen

import (
	"context"
	"fmt"

	"github.com/pulsewatch/pulsewatch/pkg/helpers/command"
	"golang.org/x/sys/windows"
)

var procLockWorkStation = windows.NewLazySystemDLL("user32.dll").NewProc("LockWorkStation")

type windowsLocker struct{}

// New returns a Locker backed by user32 LockWorkStation. The executor is
// unused on Windows.
func New(_ command.Executor) Locker {
	return windowsLocker{}
}

func (windowsLocker) Lock(_ context.Context) error {
	if err := procLockWorkStation.Find(); err != nil {
		return fmt.Errorf("LockWorkStation unavailable: %w", err)
	}
	r, _, err := procLockWorkStation.Call()
	if r == 0 {
		return fmt.Errorf("LockWorkStation failed: %w", err)
	}
	return nil
}
