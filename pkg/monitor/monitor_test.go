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
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	normal        = readings.Reading{HeartRate: 80, SpO2: 93, FingerPresent: true}
	lowOxygenHigh = readings.Reading{HeartRate: 80, SpO2: 96, FingerPresent: true}
	bothAbnormal  = readings.Reading{HeartRate: 130, SpO2: 96, FingerPresent: true}
	fastHeart     = readings.Reading{HeartRate: 130, SpO2: 93, FingerPresent: true}
	noFinger      = readings.Reading{HeartRate: 0, SpO2: 0, FingerPresent: false}
)

func TestPredicates(t *testing.T) {
	t.Parallel()

	hrTests := []struct {
		hr   int
		want bool
	}{
		{hr: 0, want: true},
		{hr: 72, want: true},
		{hr: 73, want: false},
		{hr: 119, want: false},
		{hr: 120, want: true},
		{hr: 180, want: true},
	}
	for _, tt := range hrTests {
		assert.Equal(t, tt.want, HRAbnormal(tt.hr), "hr=%d", tt.hr)
	}

	spo2Tests := []struct {
		spo2 int
		want bool
	}{
		{spo2: 85, want: true},
		{spo2: 90, want: true},
		{spo2: 91, want: false},
		{spo2: 95, want: false},
		{spo2: 96, want: true},
		{spo2: 100, want: true},
	}
	for _, tt := range spo2Tests {
		assert.Equal(t, tt.want, SpO2Abnormal(tt.spo2), "spo2=%d", tt.spo2)
	}
}

func TestEvaluate_NormalReadingsNeverCount(t *testing.T) {
	t.Parallel()

	c := Counters{HRAbnormalRun: 5, SpO2AbnormalRun: 7}
	for range 100 {
		alerts := Evaluate(normal, &c, true)
		assert.Empty(t, alerts)
	}

	assert.Equal(t, Counters{HRAbnormalRun: 5, SpO2AbnormalRun: 7}, c)
}

func TestEvaluate_SpO2AlertOnThirtyFirstReading(t *testing.T) {
	t.Parallel()

	var c Counters
	for i := 1; i <= RunLimit; i++ {
		alerts := Evaluate(lowOxygenHigh, &c, true)
		require.Empty(t, alerts, "reading %d should not alert", i)
		require.Equal(t, i, c.SpO2AbnormalRun)
	}

	alerts := Evaluate(lowOxygenHigh, &c, true)
	require.Len(t, alerts, 1)
	assert.Equal(t, KindSpO2, alerts[0].Kind)
	assert.Equal(t, RunLimit+1, alerts[0].Run)
	assert.Equal(t, lowOxygenHigh, alerts[0].Reading)
	assert.Equal(t, 0, c.SpO2AbnormalRun)
	assert.Equal(t, 0, c.HRAbnormalRun, "HR counter should be untouched")
}

func TestEvaluate_SpO2TakesPriority(t *testing.T) {
	t.Parallel()

	var c Counters
	for range RunLimit {
		require.Empty(t, Evaluate(bothAbnormal, &c, true))
	}

	alerts := Evaluate(bothAbnormal, &c, true)
	require.Len(t, alerts, 1)
	assert.Equal(t, KindSpO2, alerts[0].Kind)
	assert.Equal(t, 0, c.SpO2AbnormalRun)
	assert.Equal(t, RunLimit+1, c.HRAbnormalRun, "HR run carries over")

	alerts = Evaluate(fastHeart, &c, true)
	require.Len(t, alerts, 1)
	assert.Equal(t, KindHR, alerts[0].Kind)
	assert.Equal(t, RunLimit+2, alerts[0].Run)
	assert.Equal(t, 0, c.HRAbnormalRun)
}

func TestEvaluate_FingerDetection(t *testing.T) {
	t.Parallel()

	t.Run("enabled skips no-finger readings", func(t *testing.T) {
		t.Parallel()

		var c Counters
		for range 100 {
			assert.Empty(t, Evaluate(noFinger, &c, true))
		}
		assert.Equal(t, Counters{}, c)
	})

	t.Run("disabled counts zero readings as abnormal", func(t *testing.T) {
		t.Parallel()

		var c Counters
		for range RunLimit {
			require.Empty(t, Evaluate(noFinger, &c, false))
		}
		assert.Equal(t, RunLimit, c.HRAbnormalRun)
		assert.Equal(t, RunLimit, c.SpO2AbnormalRun)

		alerts := Evaluate(noFinger, &c, false)
		require.Len(t, alerts, 1)
		assert.Equal(t, KindSpO2, alerts[0].Kind)
	})
}

func TestMonitor(t *testing.T) {
	t.Parallel()

	m := New()
	m.Evaluate(fastHeart, true)
	m.Evaluate(fastHeart, true)
	m.Evaluate(normal, true)

	assert.Equal(t, Counters{HRAbnormalRun: 2}, m.Counters())
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "hr", KindHR.String())
	assert.Equal(t, "spo2", KindSpO2.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
