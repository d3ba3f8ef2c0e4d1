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

package assets

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrayIcon_PNG(t *testing.T) {
	t.Parallel()

	img, err := png.Decode(bytes.NewReader(TrayIcon("linux")))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())
}

func TestTrayIcon_ICO(t *testing.T) {
	t.Parallel()

	ico := TrayIcon("windows")
	require.Greater(t, len(ico), 22)
	// reserved 0, type 1 (icon), one image
	assert.Equal(t, []byte{0, 0, 1, 0, 1, 0}, ico[:6])
	assert.Equal(t, TrayIcon("darwin"), ico[22:])
}
