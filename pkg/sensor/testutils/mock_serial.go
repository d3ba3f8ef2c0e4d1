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

package testutils

import (
	"errors"
	"time"

	"github.com/pulsewatch/pulsewatch/pkg/helpers/syncutil"
	"github.com/pulsewatch/pulsewatch/pkg/sensor"
	"go.bug.st/serial"
)

// ErrPortClosed is returned by reads on a closed MockSerialPort.
var ErrPortClosed = errors.New("port closed")

// MockSerialPort is an in-memory sensor.SerialPort. Data can be fed in while
// a reader is running.
type MockSerialPort struct {
	ReadError   error
	CloseError  error
	TimeoutErr  error
	ResetErr    error
	ReadFunc    func(p []byte) (n int, err error)
	ReadData    []byte
	ReadIndex   int
	Closed      bool
	Timeout     time.Duration
	InputResets int
	mu          syncutil.RWMutex
}

var _ sensor.SerialPort = (*MockSerialPort)(nil)

// NewMockSerialPort creates a new mock serial port for testing.
func NewMockSerialPort() *MockSerialPort {
	return &MockSerialPort{}
}

// Feed appends bytes to the data the port will return.
func (m *MockSerialPort) Feed(data string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadData = append(m.ReadData, data...)
}

// SetReadError makes every following read fail with err.
func (m *MockSerialPort) SetReadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadError = err
}

// Read returns fed data, the injected error or, once drained, nothing after
// a short delay the way a port with a read timeout does.
func (m *MockSerialPort) Read(p []byte) (n int, err error) {
	m.mu.Lock()
	if m.Closed {
		m.mu.Unlock()
		return 0, ErrPortClosed
	}
	if m.ReadFunc != nil {
		fn := m.ReadFunc
		m.mu.Unlock()
		return fn(p)
	}
	if m.ReadError != nil {
		readErr := m.ReadError
		m.mu.Unlock()
		return 0, readErr
	}
	if m.ReadIndex >= len(m.ReadData) {
		m.mu.Unlock()
		time.Sleep(time.Millisecond)
		return 0, nil
	}
	n = copy(p, m.ReadData[m.ReadIndex:])
	m.ReadIndex += n
	m.mu.Unlock()
	return n, nil
}

// Close implements the Close method for serial ports.
func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return m.CloseError
}

// SetReadTimeout records the timeout and returns TimeoutErr.
func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Timeout = t
	return m.TimeoutErr
}

// ResetInputBuffer drops any data not yet read.
func (m *MockSerialPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ResetErr != nil {
		return m.ResetErr
	}
	m.ReadData = nil
	m.ReadIndex = 0
	m.InputResets++
	return nil
}

// ResetOutputBuffer implements the ResetOutputBuffer method for serial ports.
func (m *MockSerialPort) ResetOutputBuffer() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ResetErr
}

// IsClosed returns true if the port has been closed (thread-safe).
func (m *MockSerialPort) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Closed
}

// Factory returns a sensor.PortFactory that always hands out port and
// records the path it was asked to open.
func Factory(port *MockSerialPort, opened *string) sensor.PortFactory {
	return func(path string, _ *serial.Mode) (sensor.SerialPort, error) {
		if opened != nil {
			*opened = path
		}
		return port, nil
	}
}

// FailingFactory returns a sensor.PortFactory that always fails with err.
func FailingFactory(err error) sensor.PortFactory {
	return func(string, *serial.Mode) (sensor.SerialPort, error) {
		return nil, err
	}
}
