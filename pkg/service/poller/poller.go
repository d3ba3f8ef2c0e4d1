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

// Package poller runs the serial poll loop: read one line per tick, parse
// it, run the threshold monitor and hand the result to a single consumer.
package poller

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pulsewatch/pulsewatch/pkg/helpers/syncutil"
	"github.com/pulsewatch/pulsewatch/pkg/monitor"
	"github.com/pulsewatch/pulsewatch/pkg/readings"
	"github.com/pulsewatch/pulsewatch/pkg/sensor"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultInterval is the poll period used when none is configured.
	DefaultInterval = 100 * time.Millisecond
	// DefaultBufferSize is the capacity of the updates channel.
	DefaultBufferSize = 32
)

// State of the poll loop.
type State int

const (
	StateStopped State = iota
	StateRunning
)

func (s State) String() string {
	if s == StateRunning {
		return "running"
	}
	return "stopped"
}

// Options configures a Poller. Zero values fall back to defaults.
type Options struct {
	Clock           clockwork.Clock
	Factory         sensor.PortFactory
	Interval        time.Duration
	BufferSize      int
	FingerDetection bool
}

type session struct {
	reader   *sensor.LineReader
	cancel   context.CancelFunc
	done     chan struct{}
	closeErr error
	path     string
	id       uint64
}

// Poller owns the sensor port while running. Start and Stop may be called
// from any goroutine; Updates must be drained by exactly one consumer.
type Poller struct {
	clock   clockwork.Clock
	factory sensor.PortFactory
	updates chan Update
	current *session
	// mon is only touched by the poll goroutine of the current session and
	// keeps its counters across Stop and Start.
	mon             *monitor.Monitor
	interval        time.Duration
	sessions        uint64
	fingerDetection atomic.Bool
	mu              syncutil.Mutex
	state           State
}

// New returns a stopped Poller.
func New(opts Options) *Poller {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Factory == nil {
		opts.Factory = sensor.DefaultPortFactory
	}
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = DefaultBufferSize
	}

	p := &Poller{
		clock:    opts.Clock,
		factory:  opts.Factory,
		interval: opts.Interval,
		updates:  make(chan Update, opts.BufferSize),
		mon:      monitor.New(),
	}
	p.fingerDetection.Store(opts.FingerDetection)
	return p
}

// Updates returns the channel readings and stream failures are posted to.
func (p *Poller) Updates() <-chan Update {
	return p.updates
}

// SetFingerDetection changes whether readings without a finger are
// evaluated. It takes effect on the next tick.
func (p *Poller) SetFingerDetection(enabled bool) {
	p.fingerDetection.Store(enabled)
}

// FingerDetection reports the current finger detection setting.
func (p *Poller) FingerDetection() bool {
	return p.fingerDetection.Load()
}

// State returns the current state of the poll loop.
func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Path returns the port being polled, or an empty string when stopped.
func (p *Poller) Path() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.path
}

// Session returns the id of the running session, or 0 when stopped. Updates
// carry the id of the session that produced them.
func (p *Poller) Session() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return 0
	}
	return p.current.id
}

// Start opens the port at path and begins polling. Starting an already
// running poller is a no-op. On failure the poller stays stopped and the
// error is a *StreamError.
func (p *Poller) Start(path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateRunning {
		log.Debug().Str("path", p.current.path).Msg("poller already running")
		return nil
	}

	port, err := sensor.Open(p.factory, path)
	if err != nil {
		return &StreamError{Op: "open", Path: path, Err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.sessions++
	s := &session{
		reader: sensor.NewLineReader(port),
		cancel: cancel,
		done:   make(chan struct{}),
		path:   path,
		id:     p.sessions,
	}
	p.current = s
	p.state = StateRunning

	log.Info().Str("path", path).Dur("interval", p.interval).Msg("serial port opened")
	go p.run(ctx, s)
	return nil
}

// Stop cancels polling, waits for the poll goroutine to exit and closes the
// port. Stopping a stopped poller is a no-op.
func (p *Poller) Stop() error {
	p.mu.Lock()
	s := p.current
	if p.state != StateRunning || s == nil {
		p.mu.Unlock()
		return nil
	}
	s.cancel()
	p.mu.Unlock()

	<-s.done

	p.mu.Lock()
	if p.current == s {
		p.current = nil
		p.state = StateStopped
	}
	p.mu.Unlock()

	log.Info().Str("path", s.path).Msg("serial port closed")
	if s.closeErr != nil {
		return &StreamError{Op: "close", Path: s.path, Err: s.closeErr}
	}
	return nil
}

func (p *Poller) run(ctx context.Context, s *session) {
	defer close(s.done)
	defer func() {
		if err := s.reader.Close(); err != nil {
			s.closeErr = err
		}
	}()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
		}

		if ctx.Err() != nil {
			return
		}

		if !p.tick(ctx, s) {
			return
		}
	}
}

// tick reads at most one line. It returns false when polling must end.
func (p *Poller) tick(ctx context.Context, s *session) bool {
	line, ok, err := s.reader.ReadLine()
	if err != nil {
		p.fail(s, err)
		return false
	}
	if !ok {
		return true
	}

	reading, err := readings.Parse(line)
	if errors.Is(err, readings.ErrMalformed) {
		log.Debug().Err(err).Str("line", line).Msg("skipping malformed reading")
		return true
	} else if err != nil {
		log.Error().Err(err).Msg("unexpected parse error")
		return true
	}

	alerts := p.mon.Evaluate(reading, p.fingerDetection.Load())
	p.post(ctx, Update{
		Kind:     KindReading,
		Time:     p.clock.Now(),
		Session:  s.id,
		Path:     s.path,
		Reading:  reading,
		Alerts:   alerts,
		Counters: p.mon.Counters(),
	})
	return true
}

func (p *Poller) fail(s *session, readErr error) {
	log.Error().Err(readErr).Str("path", s.path).Msg("serial stream failed")

	if err := s.reader.Close(); err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("failed to close serial port after stream error")
	}

	u := Update{
		Kind:    KindStreamFailed,
		Time:    p.clock.Now(),
		Session: s.id,
		Path:    s.path,
		Err:     &StreamError{Op: "read", Path: s.path, Err: readErr},
	}

	// Once the poller reads as stopped, Stop no longer cancels this
	// session, so the failure must be posted without blocking.
	p.mu.Lock()
	if p.current == s {
		p.current = nil
		p.state = StateStopped
	}
	s.cancel()
	p.mu.Unlock()

	select {
	case p.updates <- u:
	default:
		log.Warn().Str("path", s.path).Msg("update queue full, dropping stream failure")
	}
}

func (p *Poller) post(ctx context.Context, u Update) {
	select {
	case p.updates <- u:
	case <-ctx.Done():
	}
}
