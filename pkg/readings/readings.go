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

// Package readings parses the MAX30105 bridge's line telemetry into heart
// rate and blood oxygen readings.
package readings

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	hrKey   = "HR"
	spo2Key = "SPO2"

	// Placeholder is shown in place of a value when no reading is available.
	Placeholder = "--"
)

// ErrMalformed is wrapped by every parse failure. A malformed line is
// dropped by the poll loop without touching the display or alert counters.
var ErrMalformed = errors.New("malformed telemetry line")

// Reading is one parsed telemetry line.
type Reading struct {
	HeartRate     int  `json:"heartRate"`
	SpO2          int  `json:"spo2"`
	FingerPresent bool `json:"fingerPresent"`
}

// HeartRateText formats the heart rate for display, e.g. "75bpm".
func (r Reading) HeartRateText() string {
	return strconv.Itoa(r.HeartRate) + "bpm"
}

// SpO2Text formats the oxygen saturation for display, e.g. "98".
func (r Reading) SpO2Text() string {
	return strconv.Itoa(r.SpO2)
}

// Parse parses a line of the form "HR=<int>,SPO2=<int>%". Fields after the
// second comma are ignored. The sensor reports HR=0 when nothing is on it,
// which is how FingerPresent is derived.
func Parse(line string) (Reading, error) {
	line = strings.TrimSpace(line)

	// cheap reject for boot banners and partial lines
	if !strings.Contains(line, hrKey+"=") {
		return Reading{}, fmt.Errorf("%w: no %s= field", ErrMalformed, hrKey)
	}

	fields := strings.Split(line, ",")
	if len(fields) < 2 {
		return Reading{}, fmt.Errorf("%w: expected 2 fields, got %d", ErrMalformed, len(fields))
	}

	hr, err := parseField(fields[0], hrKey, "")
	if err != nil {
		return Reading{}, err
	}

	spo2, err := parseField(fields[1], spo2Key, "%")
	if err != nil {
		return Reading{}, err
	}

	return Reading{
		HeartRate:     hr,
		SpO2:          spo2,
		FingerPresent: hr != 0,
	}, nil
}

func parseField(field, key, suffix string) (int, error) {
	k, v, ok := strings.Cut(strings.TrimSpace(field), "=")
	if !ok {
		return 0, fmt.Errorf("%w: field %q has no '='", ErrMalformed, field)
	}
	if strings.TrimSpace(k) != key {
		return 0, fmt.Errorf("%w: expected key %s, got %q", ErrMalformed, key, k)
	}

	v = strings.TrimSpace(v)
	if suffix != "" {
		v = strings.TrimSuffix(v, suffix)
	}
	if v == "" {
		return 0, fmt.Errorf("%w: empty %s value", ErrMalformed, key)
	}

	// Atoi would also take a sign
	if strings.IndexFunc(v, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, fmt.Errorf("%w: %s value %q is not a number", ErrMalformed, key, v)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s value %q: %w", ErrMalformed, key, v, err)
	}

	return n, nil
}
