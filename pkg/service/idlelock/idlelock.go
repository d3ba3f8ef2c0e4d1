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

// Package idlelock locks the workstation once the configured idle timeout
// passes while the monitor is armed. Removing the finger from the sensor
// suppresses the countdown, and if the finger does not come back within
// AssistTimeout the timer disarms without locking.
package idlelock

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pulsewatch/pulsewatch/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

const (
	// AssistTimeout is how long a missing finger may stay missing before the
	// idle lock gives up.
	AssistTimeout = 5 * time.Second

	lockCallTimeout = 10 * time.Second
)

// Locker locks the workstation.
type Locker interface {
	Lock(ctx context.Context) error
}

// State of the idle-lock timer.
type State int

const (
	StateDisarmed State = iota
	StateArmed
	StateSuppressed
)

func (s State) String() string {
	switch s {
	case StateDisarmed:
		return "disarmed"
	case StateArmed:
		return "armed"
	case StateSuppressed:
		return "suppressed"
	default:
		return "unknown"
	}
}

// Timer is safe for concurrent use. Listeners run outside the internal lock
// and may call back into the Timer.
type Timer struct {
	clock         clockwork.Clock
	locker        Locker
	main          clockwork.Timer
	assist        clockwork.Timer
	stateHandlers []func(State)
	lockHandlers  []func(error)
	timeout       time.Duration
	gen           uint64
	mu            syncutil.Mutex
	state         State
	enabled       bool
	fingerSeen    bool
}

// New returns a disarmed timer. A nil clock uses the real clock.
func New(clock clockwork.Clock, locker Locker) *Timer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Timer{
		clock:  clock,
		locker: locker,
	}
}

// OnStateChange registers fn to be called with the new state after every
// transition.
func (t *Timer) OnStateChange(fn func(State)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandlers = append(t.stateHandlers, fn)
}

// OnLock registers fn to be called after each lock attempt with its result.
func (t *Timer) OnLock(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lockHandlers = append(t.lockHandlers, fn)
}

// State returns the current state.
func (t *Timer) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Enabled reports whether the idle lock is switched on.
func (t *Timer) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

// Timeout returns the configured idle timeout.
func (t *Timer) Timeout() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeout
}

// Enable switches the idle lock on and arms it with a fresh timeout.
func (t *Timer) Enable(timeout time.Duration) {
	t.mu.Lock()
	t.enabled = true
	t.timeout = timeout
	old := t.state
	t.armLocked()
	handlers := t.transitionHandlers(old)
	t.mu.Unlock()

	log.Info().Dur("timeout", timeout).Msg("idle lock enabled")
	notify(handlers, StateArmed)
}

// Disable switches the idle lock off and stops every pending timer.
func (t *Timer) Disable() {
	t.mu.Lock()
	t.enabled = false
	old := t.state
	t.disarmLocked()
	handlers := t.transitionHandlers(old)
	t.mu.Unlock()

	log.Info().Msg("idle lock disabled")
	notify(handlers, StateDisarmed)
}

// Reset restarts the main countdown. It does nothing unless armed.
func (t *Timer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateArmed {
		return
	}
	t.armLocked()
}

// ObserveFinger feeds the latest finger presence into the timer.
func (t *Timer) ObserveFinger(present bool) {
	t.mu.Lock()
	prev := t.fingerSeen
	t.fingerSeen = present
	old := t.state

	switch {
	case !present && t.state == StateArmed:
		t.suppressLocked()
	case present && t.state == StateSuppressed:
		t.armLocked()
	case present && !prev && t.state == StateDisarmed && t.enabled:
		t.armLocked()
	}

	next := t.state
	handlers := t.transitionHandlers(old)
	t.mu.Unlock()

	notify(handlers, next)
}

// Close stops all timers without notifying listeners.
func (t *Timer) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopTimersLocked()
}

func (t *Timer) stopTimersLocked() {
	t.gen++
	if t.main != nil {
		t.main.Stop()
		t.main = nil
	}
	if t.assist != nil {
		t.assist.Stop()
		t.assist = nil
	}
}

func (t *Timer) armLocked() {
	t.stopTimersLocked()
	t.state = StateArmed
	gen := t.gen
	t.main = t.clock.AfterFunc(t.timeout, func() { t.mainExpired(gen) })
}

func (t *Timer) suppressLocked() {
	t.stopTimersLocked()
	t.state = StateSuppressed
	gen := t.gen
	t.assist = t.clock.AfterFunc(AssistTimeout, func() { t.assistExpired(gen) })
	log.Debug().Msg("finger removed, idle lock suppressed")
}

func (t *Timer) disarmLocked() {
	t.stopTimersLocked()
	t.state = StateDisarmed
}

func (t *Timer) mainExpired(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != StateArmed {
		t.mu.Unlock()
		return
	}
	t.disarmLocked()
	handlers := append([]func(State){}, t.stateHandlers...)
	lockHandlers := append([]func(error){}, t.lockHandlers...)
	locker := t.locker
	t.mu.Unlock()

	notify(handlers, StateDisarmed)

	var err error
	if locker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), lockCallTimeout)
		err = locker.Lock(ctx)
		cancel()
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to lock workstation")
	} else {
		log.Info().Msg("idle timeout reached, workstation locked")
	}
	for _, fn := range lockHandlers {
		fn(err)
	}
}

func (t *Timer) assistExpired(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != StateSuppressed {
		t.mu.Unlock()
		return
	}
	t.disarmLocked()
	handlers := append([]func(State){}, t.stateHandlers...)
	t.mu.Unlock()

	log.Info().Msg("finger not restored, idle lock disarmed")
	notify(handlers, StateDisarmed)
}

// transitionHandlers returns a copy of the state listeners if the state
// moved away from old, or nil otherwise.
func (t *Timer) transitionHandlers(old State) []func(State) {
	if t.state == old {
		return nil
	}
	return append([]func(State){}, t.stateHandlers...)
}

func notify(handlers []func(State), s State) {
	for _, fn := range handlers {
		fn(s)
	}
}
