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

// Package lockscreen locks the current desktop session.
package lockscreen

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on platforms without a lock implementation.
var ErrUnsupported = errors.New("screen locking not supported on this platform")

// Locker locks the workstation.
type Locker interface {
	Lock(ctx context.Context) error
}

// Func adapts a function to the Locker interface.
type Func func(ctx context.Context) error

// Lock calls f(ctx).
func (f Func) Lock(ctx context.Context) error {
	return f(ctx)
}
