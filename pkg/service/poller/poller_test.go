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
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pulsewatch/pulsewatch/pkg/monitor"
	"github.com/pulsewatch/pulsewatch/pkg/sensor"
	"github.com/pulsewatch/pulsewatch/pkg/sensor/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

type testEnv struct {
	clock  *clockwork.FakeClock
	port   *testutils.MockSerialPort
	poller *Poller
}

func newTestEnv(t *testing.T, fingerDetection bool) *testEnv {
	t.Helper()

	env := &testEnv{
		clock: clockwork.NewFakeClock(),
		port:  testutils.NewMockSerialPort(),
	}
	env.poller = New(Options{
		Clock:           env.clock,
		Factory:         testutils.Factory(env.port, nil),
		FingerDetection: fingerDetection,
	})
	t.Cleanup(func() {
		_ = env.poller.Stop()
	})
	return env
}

func (env *testEnv) start(t *testing.T) {
	t.Helper()

	require.NoError(t, env.poller.Start("/dev/ttyUSB0"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.clock.BlockUntilContext(ctx, 1))
}

// nextUpdate advances the clock one interval at a time until an update
// arrives. Fake tickers drop ticks nobody has received yet, so the clock is
// only moved again after the previous tick had a chance to run.
func (env *testEnv) nextUpdate(t *testing.T) Update {
	t.Helper()

	for range 50 {
		env.clock.Advance(DefaultInterval)
		select {
		case u := <-env.poller.Updates():
			return u
		case <-time.After(20 * time.Millisecond):
		}
	}
	require.FailNow(t, "no update received")
	return Update{}
}

func TestPoller_EndToEndReading(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.start(t)
	env.port.Feed("HR=75,SPO2=98%\n")

	u := env.nextUpdate(t)
	require.Equal(t, KindReading, u.Kind)
	assert.Equal(t, "75bpm", u.Reading.HeartRateText())
	assert.Equal(t, "98", u.Reading.SpO2Text())
	assert.True(t, u.Reading.FingerPresent)
	assert.Empty(t, u.Alerts)
	assert.Equal(t, "/dev/ttyUSB0", u.Path)
	assert.False(t, u.Time.IsZero())
}

func TestPoller_SkipsMalformedLines(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, false)
	env.start(t)
	env.port.Feed("garbage\nHR=,SPO2=\nHR=80,SPO2=93%\n")

	u := env.nextUpdate(t)
	require.Equal(t, KindReading, u.Kind)
	assert.Equal(t, 80, u.Reading.HeartRate)
	assert.Equal(t, 93, u.Reading.SpO2)
}

func TestPoller_AlertAfterSustainedAbnormalSpO2(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.start(t)
	env.port.Feed(strings.Repeat("HR=80,SPO2=96%\n", monitor.RunLimit+1))

	for i := 1; i <= monitor.RunLimit; i++ {
		u := env.nextUpdate(t)
		require.Empty(t, u.Alerts, "reading %d", i)
		assert.Equal(t, i, u.Counters.SpO2AbnormalRun)
	}

	u := env.nextUpdate(t)
	require.Len(t, u.Alerts, 1)
	assert.Equal(t, monitor.KindSpO2, u.Alerts[0].Kind)
	assert.Equal(t, 0, u.Counters.SpO2AbnormalRun)
	assert.Equal(t, 0, u.Counters.HRAbnormalRun)
}

func TestPoller_FingerDetectionToggle(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.start(t)
	assert.True(t, env.poller.FingerDetection())

	env.port.Feed("HR=0,SPO2=0%\n")
	u := env.nextUpdate(t)
	assert.False(t, u.Reading.FingerPresent)
	assert.Equal(t, monitor.Counters{}, u.Counters)

	env.poller.SetFingerDetection(false)
	env.port.Feed("HR=0,SPO2=0%\n")
	u = env.nextUpdate(t)
	assert.Equal(t, 1, u.Counters.HRAbnormalRun)
	assert.Equal(t, 1, u.Counters.SpO2AbnormalRun)
}

func TestPoller_StartIsIdempotent(t *testing.T) {
	t.Parallel()

	port := testutils.NewMockSerialPort()
	var opens atomic.Int32
	p := New(Options{
		Clock: clockwork.NewFakeClock(),
		Factory: func(string, *serial.Mode) (sensor.SerialPort, error) {
			opens.Add(1)
			return port, nil
		},
	})
	t.Cleanup(func() { _ = p.Stop() })

	require.NoError(t, p.Start("/dev/ttyUSB0"))
	require.NoError(t, p.Start("/dev/ttyUSB1"))

	assert.Equal(t, int32(1), opens.Load())
	assert.Equal(t, StateRunning, p.State())
	assert.Equal(t, "/dev/ttyUSB0", p.Path())
}

func TestPoller_StartFailure(t *testing.T) {
	t.Parallel()

	p := New(Options{
		Clock:   clockwork.NewFakeClock(),
		Factory: testutils.FailingFactory(assert.AnError),
	})

	err := p.Start("/dev/missing")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrStream)
	require.ErrorIs(t, err, assert.AnError)

	var streamErr *StreamError
	require.ErrorAs(t, err, &streamErr)
	assert.Equal(t, "open", streamErr.Op)
	assert.Equal(t, "/dev/missing", streamErr.Path)

	assert.Equal(t, StateStopped, p.State())
	assert.Empty(t, p.Path())
}

func TestPoller_StopClosesPort(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.start(t)
	require.Equal(t, StateRunning, env.poller.State())

	require.NoError(t, env.poller.Stop())
	assert.True(t, env.port.IsClosed())
	assert.Equal(t, StateStopped, env.poller.State())
	assert.Empty(t, env.poller.Path())

	require.NoError(t, env.poller.Stop(), "stop on a stopped poller is a no-op")
}

func TestPoller_StopReportsCloseError(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.port.CloseError = assert.AnError
	env.start(t)

	err := env.poller.Stop()
	require.ErrorIs(t, err, ErrStream)
	require.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, StateStopped, env.poller.State())
}

func TestPoller_StopWithoutStart(t *testing.T) {
	t.Parallel()

	p := New(Options{Clock: clockwork.NewFakeClock()})
	require.NoError(t, p.Stop())
	assert.Equal(t, StateStopped, p.State())
}

func TestPoller_ReadFailureStopsPolling(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.start(t)
	env.port.SetReadError(errors.New("device unplugged"))

	u := env.nextUpdate(t)
	require.Equal(t, KindStreamFailed, u.Kind)
	require.ErrorIs(t, u.Err, ErrStream)
	assert.Contains(t, u.Err.Error(), "device unplugged")
	assert.Equal(t, StateStopped, env.poller.State())
	assert.True(t, env.port.IsClosed())

	require.NoError(t, env.poller.Stop())
}

func TestPoller_RestartAfterStop(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.start(t)
	require.NoError(t, env.poller.Stop())

	env.port = testutils.NewMockSerialPort()
	env.poller.factory = testutils.Factory(env.port, nil)
	env.start(t)
	env.port.Feed("HR=90,SPO2=94%\n")

	u := env.nextUpdate(t)
	assert.Equal(t, 90, u.Reading.HeartRate)
}

func TestPoller_RestartKeepsCounters(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, true)
	env.start(t)
	assert.Equal(t, uint64(1), env.poller.Session())
	env.port.Feed("HR=130,SPO2=93%\n")

	u := env.nextUpdate(t)
	assert.Equal(t, uint64(1), u.Session)
	assert.Equal(t, 1, u.Counters.HRAbnormalRun)

	require.NoError(t, env.poller.Stop())
	assert.Zero(t, env.poller.Session())

	env.port = testutils.NewMockSerialPort()
	env.poller.factory = testutils.Factory(env.port, nil)
	env.start(t)
	assert.Equal(t, uint64(2), env.poller.Session())
	env.port.Feed("HR=130,SPO2=93%\n")

	u = env.nextUpdate(t)
	assert.Equal(t, uint64(2), u.Session)
	assert.Equal(t, 2, u.Counters.HRAbnormalRun)
	assert.Zero(t, u.Counters.SpO2AbnormalRun)
}

func TestPoller_ReadFailureWithFullQueue(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	port := testutils.NewMockSerialPort()
	p := New(Options{
		Clock:      clock,
		Factory:    testutils.Factory(port, nil),
		BufferSize: 1,
	})

	require.NoError(t, p.Start("/dev/ttyUSB0"))
	p.mu.Lock()
	s := p.current
	p.mu.Unlock()

	port.Feed("HR=80,SPO2=93%\n")
	require.Eventually(t, func() bool {
		clock.Advance(DefaultInterval)
		return len(p.updates) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// nothing drains the queue, so the failure has nowhere to go
	port.SetReadError(errors.New("device unplugged"))
	require.Eventually(t, func() bool {
		clock.Advance(DefaultInterval)
		return p.State() == StateStopped
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, p.Stop())
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("poll goroutine still blocked after stop")
	}
	assert.True(t, port.IsClosed())

	u := <-p.Updates()
	assert.Equal(t, KindReading, u.Kind)
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	assert.Equal(t, DefaultInterval, p.interval)
	assert.Equal(t, DefaultBufferSize, cap(p.updates))
	assert.NotNil(t, p.clock)
	assert.NotNil(t, p.factory)
	assert.False(t, p.FingerDetection())
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "reading", KindReading.String())
	assert.Equal(t, "stream_failed", KindStreamFailed.String())
	assert.Equal(t, "unknown", Kind(0).String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
}
