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

package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pulsewatch/pulsewatch/pkg/api"
	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/pulsewatch/pulsewatch/pkg/helpers"
	"github.com/pulsewatch/pulsewatch/pkg/service/poller"
	testhelpers "github.com/pulsewatch/pulsewatch/pkg/testing/helpers"
	"github.com/pulsewatch/pulsewatch/pkg/testing/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *mocks.MockController) {
	t.Helper()
	cfg, _ := testhelpers.NewTestConfig(t, nil)
	ctrl := &mocks.MockController{}
	srv := httptest.NewServer(api.NewServer(cfg, ctrl).Handler())
	t.Cleanup(srv.Close)
	return New(strings.TrimPrefix(srv.URL, "http://"), time.Second), ctrl
}

func TestClient_Status(t *testing.T) {
	t.Parallel()

	c, ctrl := newTestClient(t)
	ctrl.On("Status").Return(models.StatusResponse{State: "running", HeartRateText: "75bpm"})

	st, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "running", st.State)
	assert.Equal(t, "75bpm", st.HeartRateText)
	assert.True(t, c.IsRunning(context.Background()))
}

func TestClient_Ports(t *testing.T) {
	t.Parallel()

	c, ctrl := newTestClient(t)
	ctrl.On("Ports").Return([]helpers.SerialPortInfo{{Name: "/dev/ttyUSB0", VID: "10c4"}}, nil)

	ports, err := c.Ports(context.Background())
	require.NoError(t, err)
	require.Len(t, ports, 1)
	assert.Equal(t, "/dev/ttyUSB0", ports[0].Name)
}

func TestClient_StartMonitor(t *testing.T) {
	t.Parallel()

	c, ctrl := newTestClient(t)
	ctrl.On("StartMonitor", "/dev/ttyUSB0").Return(nil).Once()
	ctrl.On("Status").Return(models.StatusResponse{State: "running"})

	require.NoError(t, c.StartMonitor(context.Background(), "/dev/ttyUSB0"))
	ctrl.AssertExpectations(t)
}

func TestClient_StartMonitor_StreamError(t *testing.T) {
	t.Parallel()

	c, ctrl := newTestClient(t)
	streamErr := &poller.StreamError{Op: "open", Path: "/dev/ttyUSB9", Err: assert.AnError}
	ctrl.On("StartMonitor", "/dev/ttyUSB9").Return(streamErr).Once()

	err := c.StartMonitor(context.Background(), "/dev/ttyUSB9")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "/dev/ttyUSB9")
}

func TestClient_StartMonitor_Invalid(t *testing.T) {
	t.Parallel()

	c, ctrl := newTestClient(t)

	err := c.StartMonitor(context.Background(), "")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	ctrl.AssertNotCalled(t, "StartMonitor", mock.Anything)
}

func TestClient_StopMonitor(t *testing.T) {
	t.Parallel()

	c, ctrl := newTestClient(t)
	ctrl.On("StopMonitor").Return(nil).Once()
	ctrl.On("Status").Return(models.StatusResponse{State: "stopped"})

	require.NoError(t, c.StopMonitor(context.Background()))
	ctrl.AssertExpectations(t)
}

func TestClient_ApplySettings(t *testing.T) {
	t.Parallel()

	c, ctrl := newTestClient(t)
	timeout := "abc"
	ctrl.On("ApplySettings", mock.MatchedBy(func(req models.SettingsRequest) bool {
		return req.IdleTimeout != nil && *req.IdleTimeout == "abc"
	})).Return(models.SettingsResponse{IdleTimeout: 60, IdleTimeoutReverted: true}, nil).Once()

	resp, err := c.ApplySettings(context.Background(), models.SettingsRequest{IdleTimeout: &timeout})
	require.NoError(t, err)
	assert.True(t, resp.IdleTimeoutReverted)
	assert.Equal(t, 60, resp.IdleTimeout)
}

func TestClient_NotRunning(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	c := New(addr, time.Second)
	assert.False(t, c.IsRunning(context.Background()))
	_, err := c.Status(context.Background())
	require.Error(t, err)
}

func TestClient_Cancelled(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Status(ctx)
	require.ErrorIs(t, err, ErrRequestCancelled)
}

func TestClient_Watch(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ws", r.URL.Path)
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer func() { _ = conn.Close() }()
		for _, msg := range []string{
			`{"method":"readings.updated","params":{"heartRate":70}}`,
			`not json`,
			`{"method":"alerts.raised","params":{"kind":"spo2"}}`,
			`{"method":"readings.updated","params":{"heartRate":71}}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	t.Cleanup(srv.Close)

	c := New(strings.TrimPrefix(srv.URL, "http://"), time.Second)
	var got []models.Notification
	err := c.Watch(context.Background(), func(n models.Notification) {
		got = append(got, n)
	}, models.NotificationReadingsUpdated)

	require.Error(t, err)
	require.Len(t, got, 2)
	assert.JSONEq(t, `{"heartRate":70}`, string(got[0].Params))
	assert.JSONEq(t, `{"heartRate":71}`, string(got[1].Params))
}

func TestClient_Watch_Cancel(t *testing.T) {
	t.Parallel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	c := New(strings.TrimPrefix(srv.URL, "http://"), time.Second)

	done := make(chan error, 1)
	go func() {
		done <- c.Watch(ctx, func(models.Notification) {})
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
