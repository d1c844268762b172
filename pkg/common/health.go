// Package common provides shared infrastructure helpers for service binaries.
package common

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"
)

// HealthServer exposes liveness and readiness endpoints for orchestrators.
type HealthServer struct {
	server *http.Server
	ready  *atomic.Bool
}

// NewHealthServer starts an HTTP server on :8081 serving /v1/health and
// /v1/readiness. Readiness flips when the supplied flag does.
func NewHealthServer(ready *atomic.Bool) *HealthServer {
	hs := &HealthServer{ready: ready}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/health", hs.handleHealth)
	mux.HandleFunc("/v1/readiness", hs.handleReadiness)

	hs.server = &http.Server{
		Addr:         ":8081",
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() { _ = hs.server.ListenAndServe() }()

	return hs
}

// Server returns the underlying HTTP server for shutdown control.
func (h *HealthServer) Server() *http.Server { return h.server }

func (h *HealthServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, "ok")
}

func (h *HealthServer) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		writeStatus(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeStatus(w, http.StatusOK, "ready")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
