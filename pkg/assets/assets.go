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

// Package assets holds files embedded in the binary.
package assets

import (
	_ "embed"
	"runtime"
)

//go:embed icon.png
var iconPNG []byte

// Windows tray icons must be ICO.
//
//go:embed icon.ico
var iconICO []byte

// TrayIcon returns the tray icon in the format goos expects.
func TrayIcon(goos string) []byte {
	if goos == "windows" {
		return iconICO
	}
	return iconPNG
}

// DefaultTrayIcon is TrayIcon for the running OS.
func DefaultTrayIcon() []byte {
	return TrayIcon(runtime.GOOS)
}
