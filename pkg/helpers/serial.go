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

package helpers

import (
	"fmt"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

// SerialPortInfo describes an attached serial device.
type SerialPortInfo struct {
	Name         string `json:"name"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
	Product      string `json:"product,omitempty"`
	IsUSB        bool   `json:"isUsb"`
}

// PortEnumerator lists the serial ports present on the system.
type PortEnumerator func() ([]*enumerator.PortDetails, error)

// ListSerialPorts returns the ports a sensor bridge could be attached to,
// sorted by name. A nil enumerator uses the system one.
func ListSerialPorts(enum PortEnumerator) ([]SerialPortInfo, error) {
	if enum == nil {
		enum = enumerator.GetDetailedPortsList
	}

	details, err := enum()
	if err != nil {
		return nil, fmt.Errorf("failed to get serial ports list: %w", err)
	}

	ports := filterPorts(runtime.GOOS, details)
	log.Debug().Int("count", len(ports)).Msg("enumerated serial ports")
	return ports, nil
}

// SerialPortNames returns just the device names of ports.
func SerialPortNames(ports []SerialPortInfo) []string {
	names := make([]string, 0, len(ports))
	for _, p := range ports {
		names = append(names, p.Name)
	}
	return names
}

func filterPorts(goos string, details []*enumerator.PortDetails) []SerialPortInfo {
	ports := make([]SerialPortInfo, 0, len(details))
	for _, d := range details {
		if d == nil || !candidatePort(goos, d.Name) {
			continue
		}
		ports = append(ports, SerialPortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          strings.ToLower(d.VID),
			PID:          strings.ToLower(d.PID),
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}

	slices.SortFunc(ports, func(a, b SerialPortInfo) int {
		return strings.Compare(a.Name, b.Name)
	})
	return ports
}

func candidatePort(goos, name string) bool {
	switch goos {
	case "linux":
		base := filepath.Base(name)
		return strings.HasPrefix(base, "ttyUSB") || strings.HasPrefix(base, "ttyACM")
	case "darwin":
		return strings.HasPrefix(name, "/dev/tty.usbserial") ||
			strings.HasPrefix(name, "/dev/tty.usbmodem") ||
			strings.HasPrefix(name, "/dev/cu.usbserial") ||
			strings.HasPrefix(name, "/dev/cu.usbmodem")
	case "windows":
		return strings.HasPrefix(name, "COM")
	default:
		return name != ""
	}
}
