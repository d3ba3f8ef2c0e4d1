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

// Package client talks to a running instance's HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/helpers"
	"github.com/rs/zerolog/log"
)

const (
	DefaultTimeout = 10 * time.Second
	pingTimeout    = time.Second
)

var ErrRequestCancelled = errors.New("request cancelled")

// APIError is a non-2xx response from the API.
type APIError struct {
	Message    string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

var defaultTransport = &http.Transport{
	DialContext: (&net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}).DialContext,
	ResponseHeaderTimeout: DefaultTimeout,
	MaxIdleConns:          4,
	IdleConnTimeout:       90 * time.Second,
}

type Client struct {
	http    *http.Client
	baseURL url.URL
}

// New creates a client for the API at host, for example "localhost:7498".
func New(host string, timeout time.Duration) *Client {
	return &Client{
		http: &http.Client{
			Transport: defaultTransport,
			Timeout:   timeout,
		},
		baseURL: url.URL{Scheme: "http", Host: host},
	}
}

// NewLocal creates a client for the instance on this machine.
func NewLocal(cfg *config.Instance) *Client {
	return New("localhost:"+strconv.Itoa(cfg.APIPort()), DefaultTimeout)
}

func (c *Client) url(path string) string {
	u := c.baseURL
	u.Path = path
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ErrRequestCancelled
		}
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("error closing response body")
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr models.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: apiErr.Error}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) Status(ctx context.Context) (models.StatusResponse, error) {
	var resp models.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}

func (c *Client) Ports(ctx context.Context) ([]helpers.SerialPortInfo, error) {
	var resp models.PortsResponse
	if err := c.do(ctx, http.MethodGet, "/api/ports", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Ports, nil
}

func (c *Client) StartMonitor(ctx context.Context, port string) error {
	return c.do(ctx, http.MethodPost, "/api/monitor/start", models.StartMonitorRequest{Port: port}, nil)
}

func (c *Client) StopMonitor(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/monitor/stop", nil, nil)
}

func (c *Client) ApplySettings(
	ctx context.Context,
	req models.SettingsRequest,
) (models.SettingsResponse, error) {
	var resp models.SettingsResponse
	err := c.do(ctx, http.MethodPut, "/api/settings", req, &resp)
	return resp, err
}

// IsRunning reports whether an instance answers on the API port.
func (c *Client) IsRunning(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if _, err := c.Status(ctx); err != nil {
		log.Debug().Err(err).Msg("no running instance found")
		return false
	}
	return true
}

// Watch streams notifications from the websocket to fn until ctx is
// cancelled or the connection drops. Only the named methods are passed on,
// or every method when none are given.
func (c *Client) Watch(ctx context.Context, fn func(models.Notification), methods ...string) error {
	u := c.baseURL
	u.Scheme = "ws"
	u.Path = "/api/ws"

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to connect to notification stream: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer func() {
		stop()
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Debug().Err(err).Msg("error closing websocket")
		}
	}()

	want := make(map[string]struct{}, len(methods))
	for _, m := range methods {
		want[m] = struct{}{}
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("notification stream closed: %w", err)
		}

		var n models.Notification
		if err := json.Unmarshal(msg, &n); err != nil {
			log.Warn().Err(err).Msg("ignoring malformed notification")
			continue
		}
		if len(want) > 0 {
			if _, ok := want[n.Method]; !ok {
				continue
			}
		}
		fn(n)
	}
}
