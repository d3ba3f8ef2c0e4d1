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

package mocks

import (
	"github.com/pulsewatch/pulsewatch/pkg/audio"
	"github.com/stretchr/testify/mock"
)

// MockPlayer is a testify mock for audio.Player.
type MockPlayer struct {
	mock.Mock
}

var _ audio.Player = (*MockPlayer)(nil)

func (m *MockPlayer) PlayTone(tone audio.Tone) error {
	//nolint:wrapcheck // mock returns are wrapped by the caller
	return m.Called(tone).Error(0)
}

func (m *MockPlayer) PlayFile(path string) error {
	//nolint:wrapcheck // mock returns are wrapped by the caller
	return m.Called(path).Error(0)
}

func (m *MockPlayer) ClearFileCache() {
	m.Called()
}
