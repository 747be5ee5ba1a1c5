package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"proctor/internal/logging"
	"proctor/internal/store"
)

type adminServer struct {
	logger *slog.Logger
	daemon *Daemon
	server *http.Server
}

func newAdminServer(d *Daemon) *adminServer {
	return &adminServer{
		logger: d.logger,
		daemon: d,
		server: &http.Server{
			Handler:           d.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

func (s *adminServer) serve(listener net.Listener) error {
	if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin server: %w", err)
	}
	return nil
}

func (s *adminServer) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Warn("admin server shutdown", logging.Error(err))
	}
	return nil
}

// Handler serves the admin endpoints: /metrics, /healthz, /api/status and
// /api/interviews/{id}.
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", d.handleHealth)
	mux.HandleFunc("/api/status", d.handleStatus)
	mux.HandleFunc("/api/interviews/", d.handleInterview)
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	for _, worker := range d.coordinator.Stats() {
		if !worker.Alive {
			writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("%s analyzer down", worker.Kind))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (d *Daemon) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, d.Status())
}

func (d *Daemon) handleInterview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/interviews/")
	if idStr == "" || strings.Contains(idStr, "/") {
		writeError(w, http.StatusNotFound, "interview not found")
		return
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid interview id")
		return
	}
	summary, err := d.manager.StatusSummary(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "interview not found")
	case err != nil:
		d.logger.Error("status summary failed", logging.Int64(logging.FieldInterviewID, id), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "status summary failed")
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
