package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"calfeed/internal/config"
	appLog "calfeed/internal/log"
	"calfeed/internal/model"
)

// Server exposes the latest normalized records over HTTP. It implements
// feed.Sink, so the feed service can publish straight into it; downstream
// consumers (e.g. a home-automation scheduler) poll /api/records.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	mu        sync.RWMutex
	records   map[string][]model.Record // latest batch per source ID
	updatedAt time.Time
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		records: make(map[string][]model.Record),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/records", s.handleRecords)
	return s
}

// Publish stores the latest records for a source, replacing the previous
// batch. Implements feed.Sink.
func (s *Server) Publish(_ context.Context, sourceID string, records []model.Record) error {
	s.mu.Lock()
	s.records[sourceID] = records
	s.updatedAt = time.Now()
	s.mu.Unlock()
	return nil
}

// Handler returns the HTTP handler, wrapped with basic auth when
// configured.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="calfeed", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// recordsResponse is the JSON response shape for /api/records.
type recordsResponse struct {
	Sources   map[string][]model.Record `json:"sources"`
	UpdatedAt time.Time                 `json:"updated_at"`
}

func (s *Server) handleRecords(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	resp := recordsResponse{
		Sources:   make(map[string][]model.Record, len(s.records)),
		UpdatedAt: s.updatedAt,
	}
	for id, recs := range s.records {
		resp.Sources[id] = recs
	}
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}
