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

package tui

import (
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/helpers/syncutil"
	"github.com/rivo/tview"
)

// testAppRunner runs a tview application on a simulation screen in the
// background so tests can inject keys and read the screen.
type testAppRunner struct {
	runErr  error
	app     *tview.Application
	screen  *testScreen
	stopMu  syncutil.Mutex
	stopped bool
}

func newTestAppRunner(t *testing.T, width, height int) *testAppRunner {
	t.Helper()

	screen := newTestScreen(t, width, height)
	app := tview.NewApplication()
	app.SetScreen(screen.SimulationScreen)

	r := &testAppRunner{app: app, screen: screen}
	t.Cleanup(r.stop)
	return r
}

func (r *testAppRunner) start(root tview.Primitive) {
	r.app.SetRoot(root, true)
	go func() {
		err := r.app.Run()
		r.stopMu.Lock()
		r.runErr = err
		r.stopped = true
		r.stopMu.Unlock()
	}()
	time.Sleep(20 * time.Millisecond)
}

// stop is safe to call after the app has already exited. Application.Stop
// finalizes the screen itself.
func (r *testAppRunner) stop() {
	r.stopMu.Lock()
	stopped := r.stopped
	r.stopMu.Unlock()
	if !stopped {
		r.app.Stop()
		time.Sleep(20 * time.Millisecond)
	}
}

func (r *testAppRunner) isStopped() bool {
	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	return r.stopped
}

func (*testAppRunner) waitFor(condition func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

// waitForText redraws until text appears on screen.
func (r *testAppRunner) waitForText(text string, timeout time.Duration) bool {
	return r.waitFor(func() bool {
		r.app.Draw()
		return r.screen.containsText(text)
	}, timeout)
}
