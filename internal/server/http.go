package server

import (
	"encoding/json"
	"net/http"
	"time"
)

type health struct {
	Status     string `json:"status"`
	Entities   int    `json:"entities"`
	Regions    int    `json:"regions"`
	Ticks      uint64 `json:"ticks"`
	Migrations uint64 `json:"migrations"`
	TickErrors uint64 `json:"tick_errors"`
	LastTick   string `json:"last_tick,omitempty"`
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.collector != nil {
		mux.Handle("/metrics", s.collector.Handler())
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := s.world.Stats()
	body := health{
		Status:     "ok",
		Entities:   stats.Entities,
		Regions:    stats.Regions,
		Ticks:      stats.Ticks,
		Migrations: stats.Migrations,
		TickErrors: s.tickErrors.Load(),
	}
	if last := s.lastTick.Load(); last != 0 {
		body.LastTick = time.Unix(0, last).UTC().Format(time.RFC3339Nano)
	}
	status := http.StatusOK
	if !s.IsRunning() {
		body.Status = "stopped"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Debug("Failed to write health response")
	}
}
