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

package readings

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"pgregory.net/rapid"
)

// TestPropertyWellFormedLinesParse verifies every well-formed line parses to
// its own values, with finger presence following the heart rate.
func TestPropertyWellFormedLinesParse(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		hr := rapid.IntRange(0, 300).Draw(t, "hr")
		spo2 := rapid.IntRange(0, 100).Draw(t, "spo2")

		line := fmt.Sprintf("HR=%d,SPO2=%d%%", hr, spo2)
		got, err := Parse(line)
		if err != nil {
			t.Fatalf("Parse(%q) returned error: %v", line, err)
		}

		want := Reading{HeartRate: hr, SpO2: spo2, FingerPresent: hr != 0}
		if got != want {
			t.Fatalf("Parse(%q) = %+v, want %+v", line, got, want)
		}
	})
}

// TestPropertyLinesWithoutHRKeyRejected verifies the fast-reject path.
func TestPropertyLinesWithoutHRKeyRejected(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.StringMatching(`[A-Za-z0-9=,%. ]{0,40}`).Draw(t, "line")
		if strings.Contains(line, "HR=") {
			t.Skip("contains HR=")
		}

		_, err := Parse(line)
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("Parse(%q) error = %v, want ErrMalformed", line, err)
		}
	})
}

// TestPropertyParseNeverPanics feeds arbitrary bytes, as a noisy serial link
// would, and checks only that the result is either a reading or ErrMalformed.
func TestPropertyParseNeverPanics(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		line := rapid.String().Draw(t, "line")

		r, err := Parse(line)
		if err != nil {
			if !errors.Is(err, ErrMalformed) {
				t.Fatalf("unexpected error type for %q: %v", line, err)
			}
			return
		}
		if r.HeartRate < 0 || r.SpO2 < 0 {
			t.Fatalf("negative reading from %q: %+v", line, r)
		}
	})
}
