// Package api serves the puzzle over HTTP.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token when an admin key is configured.
package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/red-eyes/internal/config"
	"github.com/talgya/red-eyes/internal/engine"
	"github.com/talgya/red-eyes/internal/persistence"
)

// Server serves the simulation state over HTTP.
type Server struct {
	Sim        *engine.Engine
	Clock      *engine.Clock       // optional autoplay, reported by /health
	DB         *persistence.DB     // optional run archive
	Gatherer   prometheus.Gatherer // optional; enables /metrics
	Simulation config.SimulationConfig
	LLMEnabled bool

	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST open.
	CORSOrigins []string
	RatePerHour int // POST requests per client IP; 0 disables
}

// Handler builds the routed, wrapped handler.
func (s *Server) Handler() http.Handler {
	var limiter *RateLimiter
	if s.RatePerHour > 0 {
		limiter = NewRateLimiter(s.RatePerHour, time.Hour)
	}
	post := func(h http.HandlerFunc) http.HandlerFunc {
		return RateLimitMiddleware(limiter, s.adminOnly(methodOnly(http.MethodPost, h)))
	}
	get := func(h http.HandlerFunc) http.HandlerFunc {
		return methodOnly(http.MethodGet, h)
	}

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/health", get(s.handleHealth))
	mux.HandleFunc("/api/v1/state", get(s.handleState))
	mux.HandleFunc("/api/v1/proof", get(s.handleProof))
	mux.HandleFunc("/api/v1/runs", get(s.handleRuns))
	mux.HandleFunc("/api/v1/runs/", get(s.handleRunDetail))

	// Control endpoints.
	mux.HandleFunc("/api/v1/init", post(s.handleInit))
	mux.HandleFunc("/api/v1/announce", post(s.handleAnnounce))
	mux.HandleFunc("/api/v1/next", post(s.handleNext))
	mux.HandleFunc("/api/v1/run_all", post(s.handleRunAll))
	mux.HandleFunc("/api/v1/reset", post(s.handleReset))

	if s.Gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}

	return logRequests(corsMiddleware(s.CORSOrigins, mux))
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	if s.AdminKey == "" {
		slog.Warn("no admin key set, control endpoints are open")
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "archive", s.DB != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		slog.Debug("request started", "method", r.Method, "path", r.URL.Path)
		next.ServeHTTP(rec, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "elapsed", time.Since(start))
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth when a key is set.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey != "" && !s.checkBearerToken(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func methodOnly(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.Header().Set("Allow", method)
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeStatus(w, http.StatusOK, data)
}

func writeStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeStatus(w, status, map[string]any{"ok": false, "error": msg})
}
