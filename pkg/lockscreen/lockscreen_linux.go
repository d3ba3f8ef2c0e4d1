//go:build linux

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
	"errors"
	"fmt"
	"os"

	"github.com/godbus/dbus/v5"
	"github.com/pulsewatch/pulsewatch/pkg/helpers/command"
	"github.com/rs/zerolog/log"
)

const (
	logindService   = "org.freedesktop.login1"
	logindPath      = "/org/freedesktop/login1"
	logindManager   = logindService + ".Manager"
	logindSessionIF = logindService + ".Session"
)

type linuxLocker struct {
	exec       command.Executor
	logindLock func(ctx context.Context) error
}

// New returns a Locker that asks logind to lock the current session and
// falls back to loginctl when the system bus is unavailable.
func New(exec command.Executor) Locker {
	if exec == nil {
		exec = &command.RealExecutor{}
	}
	return &linuxLocker{
		exec:       exec,
		logindLock: lockLogindSession,
	}
}

func (l *linuxLocker) Lock(ctx context.Context) error {
	dbusErr := l.logindLock(ctx)
	if dbusErr == nil {
		return nil
	}
	log.Debug().Err(dbusErr).Msg("logind lock failed, trying loginctl")

	if _, err := l.exec.LookPath("loginctl"); err != nil {
		return fmt.Errorf("failed to lock session: %w", errors.Join(dbusErr, err))
	}
	if err := l.exec.Run(ctx, "loginctl", "lock-session"); err != nil {
		return fmt.Errorf("failed to lock session: %w", errors.Join(dbusErr, err))
	}
	return nil
}

func lockLogindSession(ctx context.Context) error {
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to connect to system bus: %w", err)
	}
	defer func() {
		if closeErr := conn.Close(); closeErr != nil {
			log.Debug().Err(closeErr).Msg("failed to close system bus connection")
		}
	}()

	manager := conn.Object(logindService, logindPath)

	var session dbus.ObjectPath
	if id := os.Getenv("XDG_SESSION_ID"); id != "" {
		err = manager.CallWithContext(ctx, logindManager+".GetSession", 0, id).Store(&session)
	} else {
		//nolint:gosec // pids fit in uint32
		pid := uint32(os.Getpid())
		err = manager.CallWithContext(ctx, logindManager+".GetSessionByPID", 0, pid).Store(&session)
	}
	if err != nil {
		return fmt.Errorf("failed to find logind session: %w", err)
	}

	call := conn.Object(logindService, session).CallWithContext(ctx, logindSessionIF+".Lock", 0)
	if call.Err != nil {
		return fmt.Errorf("failed to lock logind session %s: %w", session, call.Err)
	}
	return nil
}
