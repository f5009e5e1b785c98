// Package api provides the read-only HTTP API for observing a playback.
// Every island query goes through that island's worker.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/talgya/tausaga/internal/engine"
	"github.com/talgya/tausaga/internal/history"
	"github.com/talgya/tausaga/internal/island"
)

// Server serves playback state over HTTP.
type Server struct {
	Sim  *engine.Simulation
	Addr string

	srv *http.Server
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	// Reconstruction is the expensive path; cap it per client.
	queryLimiter := NewRateLimiter(120, time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/islands", s.handleIslands)
	mux.HandleFunc("GET /api/v1/islands/{name}/vital", RateLimitMiddleware(queryLimiter, s.handleVital))
	mux.HandleFunc("GET /api/v1/islands/{name}/growth", RateLimitMiddleware(queryLimiter, s.handleGrowth))
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.Sim.Metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	s.srv = &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.Sim.Stats()
	status := map[string]any{
		"name":       "tausaga",
		"year":       stats.Year,
		"year_label": engine.YearLabel(stats.Year),
		"running":    s.Sim.Engine.Running(),
		"population": stats.TotalPopulation,
		"births":     stats.Births,
		"deaths":     stats.Deaths,
		"islands":    len(s.Sim.Registry.Islands()),
	}
	writeJSON(w, status)
}

func (s *Server) handleIslands(w http.ResponseWriter, r *http.Request) {
	type islandSummary struct {
		ID     string   `json:"id"`
		Name   string   `json:"name"`
		Events []string `json:"events"`
	}
	out := make([]islandSummary, 0, len(s.Sim.Registry.Islands()))
	for _, is := range s.Sim.Registry.Islands() {
		sum := islandSummary{ID: is.ID.String(), Name: is.Name, Events: make([]string, 0, len(is.Events))}
		for _, ev := range is.Events {
			sum.Events = append(sum.Events, ev.Name)
		}
		out = append(out, sum)
	}
	writeJSON(w, out)
}

// handleVital reports size, births, deaths and villages at ?year=.
func (s *Server) handleVital(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		http.Error(w, "year query parameter must be an integer", http.StatusBadRequest)
		return
	}
	reply, err := s.Sim.Ask(r.Context(), r.PathValue("name"), engine.CmdDumpStatus, year)
	if err != nil {
		writeAskError(w, err)
		return
	}
	villages := reply.Villages
	if villages == nil {
		villages = map[string]int{}
	}
	writeJSON(w, map[string]any{
		"island":   reply.Island,
		"year":     year,
		"size":     reply.Size,
		"births":   reply.Births,
		"deaths":   reply.Deaths,
		"villages": villages,
	})
}

// handleGrowth returns net natural change per recorded year and its trend.
func (s *Server) handleGrowth(w http.ResponseWriter, r *http.Request) {
	reply, err := s.Sim.Ask(r.Context(), r.PathValue("name"), engine.CmdPlotRequest, 0)
	if err != nil {
		writeAskError(w, err)
		return
	}
	type point struct {
		Year int `json:"year"`
		Net  int `json:"net"`
	}
	series := make([]point, len(reply.Series))
	for i, p := range reply.Series {
		series[i] = point{Year: p.Year, Net: p.Net}
	}
	writeJSON(w, map[string]any{
		"island":    reply.Island,
		"intercept": reply.Intercept,
		"slope":     reply.Slope,
		"series":    series,
	})
}

func writeAskError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, island.ErrUnknownIsland):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrWorkerStopped), errors.Is(err, engine.ErrNotStarted):
		http.Error(w, "playback not running", http.StatusServiceUnavailable)
	case errors.Is(err, history.ErrNotEnoughData):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		slog.Error("island query failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
