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

package poller

import (
	"errors"
	"fmt"
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/monitor"
	"github.com/pulsewatch/pulsewatch/pkg/readings"
)

// ErrStream is wrapped by every failure to open, read or close the sensor port.
var ErrStream = errors.New("serial stream error")

// StreamError describes a sensor port failure.
type StreamError struct {
	Err  error
	Op   string
	Path string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap lets errors.Is match both ErrStream and the underlying cause.
func (e *StreamError) Unwrap() []error {
	return []error{ErrStream, e.Err}
}

// Kind identifies what an Update carries.
type Kind int

const (
	// KindReading carries a parsed reading and any alerts it raised.
	KindReading Kind = iota + 1
	// KindStreamFailed reports that the port failed and polling stopped.
	KindStreamFailed
)

func (k Kind) String() string {
	switch k {
	case KindReading:
		return "reading"
	case KindStreamFailed:
		return "stream_failed"
	default:
		return "unknown"
	}
}

// Update is posted by the poll goroutine once per useful tick. Values are
// never modified after they are sent.
type Update struct {
	Time    time.Time
	Err     error
	Path    string
	Alerts  []monitor.Alert
	Reading readings.Reading
	// Session identifies the Start call that produced the update. It
	// increases with every successful Start.
	Session  uint64
	Counters monitor.Counters
	Kind     Kind
}
