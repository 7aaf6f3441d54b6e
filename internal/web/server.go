// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package web serves the browser viewport: a websocket stream of camera
// poses plus a small JSON API over the running session.
package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relabs-tech/cube_tracker/internal/session"
)

//go:embed assets/*
var embeddedAssets embed.FS

// StatusFunc returns the live session snapshot, or false between sessions.
type StatusFunc func() (session.Snapshot, bool)

// PortsFunc lists the serial ports that could be opened.
type PortsFunc func() ([]string, error)

type Server struct {
	hub    *Hub
	status StatusFunc
	ports  PortsFunc
	log    *logrus.Entry
}

func NewServer(hub *Hub, status StatusFunc, ports PortsFunc, log *logrus.Entry) *Server {
	return &Server{hub: hub, status: status, ports: ports, log: log.WithField("component", "web")}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.hub.ServeWS)
	mux.HandleFunc("/api/orientation", s.handleOrientation)
	mux.HandleFunc("/api/ports", s.handlePorts)

	assets, err := fs.Sub(embeddedAssets, "assets")
	if err != nil {
		s.log.Warnf("web: embedded assets unavailable: %v", err)
		return mux
	}
	mux.Handle("/", http.FileServer(http.FS(assets)))
	return mux
}

func (s *Server) handleOrientation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap, ok := s.status()
	if !ok {
		http.Error(w, "no session", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, snap)
}

func (s *Server) handlePorts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ports, err := s.ports()
	if err != nil {
		s.log.Warnf("web: list ports: %v", err)
		http.Error(w, "cannot list ports", http.StatusInternalServerError)
		return
	}
	if ports == nil {
		ports = []string{}
	}
	s.writeJSON(w, map[string]any{"ports": ports})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warnf("web: json encode error: %v", err)
	}
}

// Serve listens on addr until ctx ends, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("web: listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
