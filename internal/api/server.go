// Package api provides the read-only HTTP API for observing the world.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/blobworld/internal/blobs"
	"github.com/talgya/blobworld/internal/engine"
	"github.com/talgya/blobworld/internal/traffic"
)

// DefaultRequestsPerMinute is the per-client limit applied by Handler.
const DefaultRequestsPerMinute = 600

// Server serves the world state over HTTP.
type Server struct {
	Sim  *engine.Simulation
	Eng  *engine.Engine
	Port int

	// RequestsPerMinute caps each client. Zero uses the default; negative
	// disables limiting.
	RequestsPerMinute int
}

// Handler builds the routed, wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/status", getOnly(s.handleStatus))
	mux.HandleFunc("/api/v1/blobs", getOnly(s.handleBlobs))
	mux.HandleFunc("/api/v1/roads", getOnly(s.handleRoads))
	mux.HandleFunc("/api/v1/motives", getOnly(s.handleMotives))
	mux.HandleFunc("/api/v1/stats", getOnly(s.handleStats))

	var h http.Handler = mux
	rate := s.RequestsPerMinute
	if rate == 0 {
		rate = DefaultRequestsPerMinute
	}
	if rate > 0 {
		h = rateLimitMiddleware(NewRateLimiter(rate, time.Minute), h)
	}
	return corsMiddleware(h)
}

// Start serves the API until ctx is cancelled.
func (s *Server) Start(ctx context.Context) {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("HTTP server shutdown", "error", err)
		}
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra origins.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func getOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.Sim.Status()
	running := false
	if s.Eng != nil {
		running = s.Eng.Running()
	}
	writeJSON(w, map[string]any{
		"name":       "blobworld",
		"running":    running,
		"tick":       st.Tick,
		"uptime":     st.Uptime,
		"blobs":      st.Blobs,
		"roads":      st.Roads,
		"motives":    st.Motives,
		"score":      st.Score,
		"best_score": st.BestScore,
	})
}

// handleBlobs lists blobs. ?min_radius=N filters out smaller ones.
func (s *Server) handleBlobs(w http.ResponseWriter, r *http.Request) {
	minRadius, err := intParam(r, "min_radius", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	list := s.Sim.BlobSnapshot()
	out := make([]blobs.Blob, 0, len(list))
	for _, b := range list {
		if b.Radius >= minRadius {
			out = append(out, b)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleRoads(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.RoadSnapshot())
}

// handleMotives lists agents. ?kind=car|pedestrian filters by kind and
// ?limit=N caps the response.
func (s *Server) handleMotives(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	kind := r.URL.Query().Get("kind")
	if kind != "" && kind != traffic.KindCar.String() && kind != traffic.KindPedestrian.String() {
		http.Error(w, fmt.Sprintf("unknown kind %q", kind), http.StatusBadRequest)
		return
	}

	list := s.Sim.MotiveSnapshot()
	out := make([]traffic.Motive, 0, len(list))
	for _, m := range list {
		if kind != "" && m.Kind.String() != kind {
			continue
		}
		out = append(out, m)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Stats())
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		slog.Warn("write response", "error", err)
	}
}
