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
	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/pulsewatch/pulsewatch/pkg/helpers"
	"github.com/stretchr/testify/mock"
)

// MockController is a testify mock for api.Controller.
type MockController struct {
	mock.Mock
}

func (m *MockController) Status() models.StatusResponse {
	args := m.Called()
	if s, ok := args.Get(0).(models.StatusResponse); ok {
		return s
	}
	return models.StatusResponse{}
}

func (m *MockController) Ports() ([]helpers.SerialPortInfo, error) {
	args := m.Called()
	ports, _ := args.Get(0).([]helpers.SerialPortInfo)
	//nolint:wrapcheck // mock returns are wrapped by the caller
	return ports, args.Error(1)
}

func (m *MockController) StartMonitor(port string) error {
	//nolint:wrapcheck // mock returns are wrapped by the caller
	return m.Called(port).Error(0)
}

func (m *MockController) StopMonitor() error {
	//nolint:wrapcheck // mock returns are wrapped by the caller
	return m.Called().Error(0)
}

func (m *MockController) ApplySettings(req models.SettingsRequest) (models.SettingsResponse, error) {
	args := m.Called(req)
	resp, _ := args.Get(0).(models.SettingsResponse)
	//nolint:wrapcheck // mock returns are wrapped by the caller
	return resp, args.Error(1)
}
