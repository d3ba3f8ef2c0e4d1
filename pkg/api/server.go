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

// Package api serves the local HTTP control API and the websocket stream of
// notifications.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/olahol/melody"
	"github.com/pulsewatch/pulsewatch/pkg/api/middleware"
	"github.com/pulsewatch/pulsewatch/pkg/api/models"
	"github.com/pulsewatch/pulsewatch/pkg/api/validation"
	"github.com/pulsewatch/pulsewatch/pkg/config"
	"github.com/pulsewatch/pulsewatch/pkg/helpers"
	"github.com/pulsewatch/pulsewatch/pkg/service/poller"
	"github.com/rs/zerolog/log"
)

const (
	maxBodyBytes    = 4 << 10
	shutdownTimeout = 5 * time.Second
)

// Controller is the part of the service the API drives.
type Controller interface {
	Status() models.StatusResponse
	Ports() ([]helpers.SerialPortInfo, error)
	StartMonitor(port string) error
	StopMonitor() error
	ApplySettings(req models.SettingsRequest) (models.SettingsResponse, error)
}

// Server owns the router and the websocket hub.
type Server struct {
	ctrl    Controller
	cfg     *config.Instance
	ws      *melody.Melody
	limiter *middleware.IPRateLimiter
	router  chi.Router
}

// NewServer builds the router. Notifications are not forwarded until
// Serve or Broadcast runs.
func NewServer(cfg *config.Instance, ctrl Controller) *Server {
	s := &Server{
		ctrl:    ctrl,
		cfg:     cfg,
		ws:      melody.New(),
		limiter: middleware.NewIPRateLimiter(nil),
	}

	// Any origin may open the stream; CORS below governs the REST routes.
	s.ws.Upgrader.CheckOrigin = func(*http.Request) bool { return true }
	s.ws.HandleConnect(func(session *melody.Session) {
		log.Debug().Str("remote", session.Request.RemoteAddr).Msg("websocket client connected")
	})
	s.ws.HandleDisconnect(func(session *melody.Session) {
		log.Debug().Str("remote", session.Request.RemoteAddr).Msg("websocket client disconnected")
	})

	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.NoCache)
	r.Use(middleware.HTTPRateLimitMiddleware(s.limiter))

	origins := s.cfg.AllowedOrigins()
	if len(origins) == 0 {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/api/ws", s.handleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimiddleware.Timeout(config.APIRequestTimeout))
		r.Get("/api/status", s.handleStatus)
		r.Get("/api/ports", s.handlePorts)
		r.Post("/api/monitor/start", s.handleStart)
		r.Post("/api/monitor/stop", s.handleStop)
		r.Put("/api/settings", s.handleSettings)
	})

	return r
}

// Handler returns the HTTP handler for the API.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Broadcast forwards notifications to every websocket client until the
// channel closes or ctx is cancelled.
func (s *Server) Broadcast(ctx context.Context, notifications <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-notifications:
			if !ok {
				return
			}
			data, err := json.Marshal(notif)
			if err != nil {
				log.Error().Err(err).Msg("failed to marshal notification")
				continue
			}
			if err := s.ws.Broadcast(data); err != nil {
				log.Error().Err(err).Msg("failed to broadcast notification")
			}
		}
	}
}

// Serve listens on the configured address until ctx is cancelled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context, notifications <-chan models.Notification) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", s.cfg.APIListen())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.APIListen(), err)
	}
	return s.serveListener(ctx, ln, notifications)
}

func (s *Server) serveListener(ctx context.Context, ln net.Listener, notifications <-chan models.Notification) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	s.limiter.StartCleanup(ctx)
	go s.Broadcast(ctx, notifications)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("api server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		_ = s.ws.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	log.Debug().Msg("shutting down api server")
	if err := s.ws.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing websocket hub")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, models.ErrorResponse{Error: err.Error()})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	return body, nil
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if err := s.ws.HandleRequest(w, r); err != nil {
		log.Error().Err(err).Msg("failed to handle websocket request")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handlePorts(w http.ResponseWriter, _ *http.Request) {
	ports, err := s.ctrl.Ports()
	if err != nil {
		log.Error().Err(err).Msg("failed to list serial ports")
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if ports == nil {
		ports = []helpers.SerialPortInfo{}
	}
	writeJSON(w, http.StatusOK, models.PortsResponse{Ports: ports})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	var req models.StartMonitorRequest
	if err := validation.ValidateAndUnmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := s.ctrl.StartMonitor(req.Port); err != nil {
		if errors.Is(err, poller.ErrStream) {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctrl.StopMonitor(); err != nil {
		if errors.Is(err, poller.ErrStream) {
			writeError(w, http.StatusBadGateway, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}

	var req models.SettingsRequest
	if err := validation.ValidateAndUnmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := s.ctrl.ApplySettings(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
