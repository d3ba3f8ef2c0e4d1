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

package monitor

import (
	"testing"

	"github.com/pulsewatch/pulsewatch/pkg/readings"
	"pgregory.net/rapid"
)

func drawReading(t *rapid.T) readings.Reading {
	hr := rapid.IntRange(0, 250).Draw(t, "hr")
	spo2 := rapid.IntRange(0, 100).Draw(t, "spo2")
	return readings.Reading{HeartRate: hr, SpO2: spo2, FingerPresent: hr != 0}
}

// TestPropertyCountersStayInRange verifies counters are never negative and
// the SpO2 run never sits above the limit after an evaluation returns. The HR
// run can, for as long as SpO2 keeps winning the priority rule.
func TestPropertyCountersStayInRange(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		fingerDetection := rapid.Bool().Draw(t, "fingerDetection")
		var c Counters

		n := rapid.IntRange(1, 200).Draw(t, "n")
		for range n {
			Evaluate(drawReading(t), &c, fingerDetection)

			if c.SpO2AbnormalRun < 0 || c.SpO2AbnormalRun > RunLimit {
				t.Fatalf("spo2 run out of range: %d", c.SpO2AbnormalRun)
			}
			if c.HRAbnormalRun < 0 {
				t.Fatalf("hr run out of range: %d", c.HRAbnormalRun)
			}
		}
	})
}

// TestPropertyAtMostOneAlert verifies the mutually exclusive alert rule and
// that a fired counter is reset on the same evaluation.
func TestPropertyAtMostOneAlert(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		c := Counters{
			HRAbnormalRun:   rapid.IntRange(0, RunLimit+1).Draw(t, "hrRun"),
			SpO2AbnormalRun: rapid.IntRange(0, RunLimit).Draw(t, "spo2Run"),
		}
		r := drawReading(t)

		alerts := Evaluate(r, &c, true)
		if len(alerts) > 1 {
			t.Fatalf("got %d alerts, want at most 1", len(alerts))
		}
		if len(alerts) == 1 {
			switch alerts[0].Kind {
			case KindSpO2:
				if c.SpO2AbnormalRun != 0 {
					t.Fatalf("spo2 run not reset: %d", c.SpO2AbnormalRun)
				}
			case KindHR:
				if c.HRAbnormalRun != 0 {
					t.Fatalf("hr run not reset: %d", c.HRAbnormalRun)
				}
			}
		}
	})
}

// TestPropertyNormalReadingsAreIdempotent verifies a normal reading leaves
// counters unchanged whatever their starting values.
func TestPropertyNormalReadingsAreIdempotent(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		hr := rapid.IntRange(HRLow+1, HRHigh-1).Draw(t, "hr")
		spo2 := rapid.IntRange(SpO2Low+1, SpO2High).Draw(t, "spo2")
		before := Counters{
			HRAbnormalRun:   rapid.IntRange(0, RunLimit).Draw(t, "hrRun"),
			SpO2AbnormalRun: rapid.IntRange(0, RunLimit).Draw(t, "spo2Run"),
		}
		c := before

		r := readings.Reading{HeartRate: hr, SpO2: spo2, FingerPresent: true}
		if alerts := Evaluate(r, &c, rapid.Bool().Draw(t, "fingerDetection")); len(alerts) != 0 {
			t.Fatalf("normal reading raised %v", alerts)
		}
		if c != before {
			t.Fatalf("counters changed: %+v -> %+v", before, c)
		}
	})
}
