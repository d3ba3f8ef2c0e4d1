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

// Package sensor reads newline-framed telemetry from the pulse oximeter's
// serial bridge.
package sensor

import (
	"bytes"
	"fmt"
	"time"

	"go.bug.st/serial"
)

const (
	// BaudRate is fixed by the sensor bridge firmware.
	BaudRate = 115200

	// ReadTimeout bounds how long a single ReadLine call can wait on the port.
	ReadTimeout = 10 * time.Millisecond

	// maxPending caps buffered bytes with no newline in sight.
	maxPending = 4096
	readChunk  = 256
)

// SerialPort defines the interface for serial port operations (for mocking in tests).
type SerialPort interface {
	Read(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
	ResetOutputBuffer() error
}

// PortFactory opens a serial port connection.
type PortFactory func(path string, mode *serial.Mode) (SerialPort, error)

// DefaultPortFactory opens real serial ports.
func DefaultPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// Mode returns the serial settings the sensor bridge expects.
func Mode() *serial.Mode {
	return &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// Open opens path with the sensor's mode, sets the short read timeout ReadLine
// relies on and throws away anything already sitting in the port buffers.
func Open(factory PortFactory, path string) (SerialPort, error) {
	if factory == nil {
		factory = DefaultPortFactory
	}

	port, err := factory(path, Mode())
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on serial port: %w", err)
	}

	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to discard serial input buffer: %w", err)
	}
	if err := port.ResetOutputBuffer(); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to discard serial output buffer: %w", err)
	}

	return port, nil
}

// LineReader pulls complete lines out of a serial port. It is not safe for
// concurrent use.
type LineReader struct {
	port    SerialPort
	pending []byte
	buf     []byte
	closed  bool
}

// NewLineReader wraps an open port. A nil port behaves as closed.
func NewLineReader(port SerialPort) *LineReader {
	return &LineReader{
		port: port,
		buf:  make([]byte, readChunk),
	}
}

// Open reports whether the reader still has a port to read from.
func (lr *LineReader) Open() bool {
	return lr.port != nil && !lr.closed
}

// ReadLine returns the next complete line with its line ending stripped. If
// no complete line is buffered after one bounded read, ok is false. A closed
// reader returns ok false and no error; only a failing port returns an error.
func (lr *LineReader) ReadLine() (line string, ok bool, err error) {
	if !lr.Open() {
		return "", false, nil
	}

	if line, ok := lr.next(); ok {
		return line, true, nil
	}

	n, err := lr.port.Read(lr.buf)
	if err != nil {
		return "", false, fmt.Errorf("failed to read from serial port: %w", err)
	}
	lr.pending = append(lr.pending, lr.buf[:n]...)

	line, ok = lr.next()
	if !ok && len(lr.pending) > maxPending {
		lr.pending = lr.pending[:0]
	}
	return line, ok, nil
}

func (lr *LineReader) next() (string, bool) {
	i := bytes.IndexByte(lr.pending, '\n')
	if i < 0 {
		return "", false
	}

	line := string(bytes.TrimSpace(lr.pending[:i]))
	lr.pending = lr.pending[i+1:]
	return line, true
}

// Close closes the underlying port. Later reads report no data.
func (lr *LineReader) Close() error {
	if lr.closed || lr.port == nil {
		lr.closed = true
		return nil
	}
	lr.closed = true
	lr.pending = nil
	if err := lr.port.Close(); err != nil {
		return fmt.Errorf("failed to close serial port: %w", err)
	}
	return nil
}
