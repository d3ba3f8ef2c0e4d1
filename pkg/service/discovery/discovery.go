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

// Package discovery advertises the local API over mDNS so dashboards on the
// same network can find a running monitor.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/jonboulle/clockwork"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

// ServiceType is the DNS-SD service type of the Pulsewatch API.
const ServiceType = "_pulsewatch._tcp"

const (
	retryInterval    = 30 * time.Second
	maxRetryDuration = 5 * time.Minute
	fallbackName     = "pulsewatch"
)

var virtualInterfacePrefixes = []string{
	"docker", "br-", "veth", "virbr", "lxc", "lxd",
	"cni", "flannel", "cali", "tunl", "wg",
}

// Settings is what gets advertised.
type Settings struct {
	InstanceName string
	DeviceID     string
	Port         int
	Enabled      bool
}

// SettingsFromConfig reads the discovery settings from cfg.
func SettingsFromConfig(cfg *config.Instance) Settings {
	return Settings{
		Enabled:      cfg.DiscoveryEnabled(),
		InstanceName: cfg.DiscoveryInstanceName(),
		DeviceID:     cfg.DeviceID(),
		Port:         cfg.APIPort(),
	}
}

type shutdowner interface {
	Shutdown()
}

type registerFunc func(instance, service string, port int, txt []string, ifaces []net.Interface) (shutdowner, error)

func zeroconfRegister(instance, service string, port int, txt []string, ifaces []net.Interface) (shutdowner, error) {
	server, err := zeroconf.Register(instance, service, "local.", port, txt, ifaces)
	if err != nil {
		return nil, fmt.Errorf("zeroconf register: %w", err)
	}
	return server, nil
}

func filterInterfaces(ifaces []net.Interface) []net.Interface {
	var preferred []net.Interface
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagLoopback != 0 ||
			iface.Flags&net.FlagMulticast == 0 {
			continue
		}
		if isVirtualInterface(iface.Name) {
			continue
		}
		preferred = append(preferred, iface)
	}
	return preferred
}

func isVirtualInterface(name string) bool {
	lowerName := strings.ToLower(name)
	for _, prefix := range virtualInterfacePrefixes {
		if strings.HasPrefix(lowerName, prefix) {
			return true
		}
	}
	return false
}

// Service keeps the API advertised. If the network isn't up yet it retries
// in the background for a while.
type Service struct {
	server       shutdowner
	clock        clockwork.Clock
	register     registerFunc
	interfaces   func() ([]net.Interface, error)
	cancelFunc   context.CancelFunc
	done         chan struct{}
	instanceName string
	settings     Settings
	mu           syncutil.Mutex
	stopped      bool
}

// New creates a discovery service. A nil clock uses the real clock.
func New(settings Settings, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{
		settings:   settings,
		clock:      clock,
		register:   zeroconfRegister,
		interfaces: net.Interfaces,
	}
}

// Start registers the service, falling back to a background retry loop when
// registration fails. It only returns an error for problems retrying can't
// fix.
func (s *Service) Start() error {
	if !s.settings.Enabled {
		log.Info().Msg("mDNS discovery disabled by configuration")
		return nil
	}
	if s.settings.Port <= 0 {
		return fmt.Errorf("invalid api port for discovery: %d", s.settings.Port)
	}

	s.mu.Lock()
	s.instanceName = resolveInstanceName(s.settings, os.Hostname)
	s.mu.Unlock()

	if s.tryRegister() {
		return nil
	}

	log.Info().
		Dur("retryInterval", retryInterval).
		Dur("maxDuration", maxRetryDuration).
		Msg("mDNS registration failed, retrying in background")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.mu.Lock()
	s.cancelFunc = cancel
	s.done = done
	s.mu.Unlock()

	go s.retryLoop(ctx, done)
	return nil
}

func (s *Service) txtRecords() []string {
	return []string{
		"id=" + s.settings.DeviceID,
		"version=" + config.AppVersion,
		"os=" + runtime.GOOS,
		"api=/api",
		"ws=/api/ws",
	}
}

func (s *Service) tryRegister() bool {
	all, err := s.interfaces()
	if err != nil {
		log.Debug().Err(err).Msg("failed to list network interfaces")
		return false
	}

	ifaces := filterInterfaces(all)
	if len(ifaces) == 0 {
		log.Debug().Msg("no suitable network interfaces found for mDNS")
		return false
	}

	ifaceNames := make([]string, len(ifaces))
	for i, iface := range ifaces {
		ifaceNames[i] = iface.Name
	}

	s.mu.Lock()
	name := s.instanceName
	s.mu.Unlock()

	server, err := s.register(name, ServiceType, s.settings.Port, s.txtRecords(), ifaces)
	if err != nil {
		log.Debug().Err(err).Msg("mDNS registration attempt failed")
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		server.Shutdown()
		return false
	}
	s.server = server
	s.mu.Unlock()

	log.Info().
		Str("instance", name).
		Int("port", s.settings.Port).
		Str("type", ServiceType).
		Strs("interfaces", ifaceNames).
		Msg("mDNS service advertising started")
	return true
}

func (s *Service) retryLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(retryInterval)
	defer ticker.Stop()
	deadline := s.clock.NewTimer(maxRetryDuration)
	defer deadline.Stop()

	for {
		select {
		case <-ticker.Chan():
			if s.tryRegister() {
				log.Info().Msg("mDNS registration succeeded after retry")
				return
			}
		case <-deadline.Chan():
			log.Warn().Msg("mDNS registration retry timed out, discovery will not be available")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop withdraws the advertisement and ends any retry loop. It is safe to
// call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	cancel := s.cancelFunc
	done := s.done
	s.cancelFunc = nil
	server := s.server
	s.server = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if server != nil {
		log.Debug().Msg("stopping mDNS service advertising")
		server.Shutdown()
	}
}

// Registered reports whether the service is currently advertised.
func (s *Service) Registered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.server != nil
}

// InstanceName returns the advertised name, or an empty string before Start.
func (s *Service) InstanceName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceName
}

func resolveInstanceName(settings Settings, hostname func() (string, error)) string {
	if settings.InstanceName != "" {
		return settings.InstanceName
	}

	host, err := hostname()
	if err != nil || host == "" {
		log.Warn().Err(err).Msg("failed to get hostname, using fallback")
		if len(settings.DeviceID) >= 8 {
			return fallbackName + "-" + settings.DeviceID[:8]
		}
		return fallbackName
	}
	return host
}
