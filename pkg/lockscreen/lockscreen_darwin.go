//go:build darwin

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
)

type darwinLocker struct {
	exec command.Executor
}

// New returns a Locker that sleeps the display, which locks the session
// when the password-on-wake setting is on.
func New(exec command.Executor) Locker {
	if exec == nil {
		exec = &command.RealExecutor{}
	}
	return &darwinLocker{exec: exec}
}

func (l *darwinLocker) Lock(ctx context.Context) error {
	if err := l.exec.Run(ctx, "pmset", "displaysleepnow"); err != nil {
		return fmt.Errorf("failed to sleep display: %w", err)
	}
	return nil
}
