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

// Package monitor tracks runs of abnormal heart rate and oxygen readings and
// raises an alert once a run grows past RunLimit.
package monitor

import (
	"github.com/pulsewatch/pulsewatch/pkg/readings"
)

// Thresholds as the sensor firmware's companion app shipped them. The SpO2
// upper bound is kept as observed, see DESIGN.md before changing it.
const (
	HRHigh   = 120
	HRLow    = 72
	SpO2High = 95
	SpO2Low  = 90

	// RunLimit is the number of consecutive abnormal readings tolerated
	// before an alert fires. The alert fires on the reading that exceeds it.
	RunLimit = 30
)

// Kind identifies which metric raised an alert.
type Kind int

const (
	KindHR Kind = iota + 1
	KindSpO2
)

func (k Kind) String() string {
	switch k {
	case KindHR:
		return "hr"
	case KindSpO2:
		return "spo2"
	default:
		return "unknown"
	}
}

// Alert is raised when a metric's abnormal run exceeds RunLimit.
type Alert struct {
	Kind    Kind
	Reading readings.Reading
	// Run is the counter value that tripped the alert, before it was reset.
	Run int
}

// Counters are the consecutive abnormal reading counts. They only go back
// to zero when their alert fires; a normal reading leaves them alone.
type Counters struct {
	HRAbnormalRun   int
	SpO2AbnormalRun int
}

// HRAbnormal reports whether a heart rate is outside the normal band.
func HRAbnormal(hr int) bool {
	return hr >= HRHigh || hr <= HRLow
}

// SpO2Abnormal reports whether an oxygen saturation is outside the normal band.
func SpO2Abnormal(spo2 int) bool {
	return spo2 > SpO2High || spo2 <= SpO2Low
}

// Evaluate applies one reading to the counters and returns at most one alert.
// When both runs cross the limit on the same reading, only the SpO2 alert
// fires and the HR run carries over to a later reading. With finger
// detection enabled, readings taken with no finger on the sensor are ignored.
func Evaluate(r readings.Reading, c *Counters, fingerDetection bool) []Alert {
	if fingerDetection && !r.FingerPresent {
		return nil
	}

	if HRAbnormal(r.HeartRate) {
		c.HRAbnormalRun++
	}
	if SpO2Abnormal(r.SpO2) {
		c.SpO2AbnormalRun++
	}

	switch {
	case c.SpO2AbnormalRun > RunLimit:
		a := Alert{Kind: KindSpO2, Reading: r, Run: c.SpO2AbnormalRun}
		c.SpO2AbnormalRun = 0
		return []Alert{a}
	case c.HRAbnormalRun > RunLimit:
		a := Alert{Kind: KindHR, Reading: r, Run: c.HRAbnormalRun}
		c.HRAbnormalRun = 0
		return []Alert{a}
	default:
		return nil
	}
}

// Monitor owns a set of counters. It is not safe for concurrent use; the
// poll loop goroutine is its only caller.
type Monitor struct {
	counters Counters
}

// New returns a Monitor with zeroed counters.
func New() *Monitor {
	return &Monitor{}
}

// Evaluate applies a reading to the monitor's counters.
func (m *Monitor) Evaluate(r readings.Reading, fingerDetection bool) []Alert {
	return Evaluate(r, &m.counters, fingerDetection)
}

// Counters returns a copy of the current counters.
func (m *Monitor) Counters() Counters {
	return m.counters
}
