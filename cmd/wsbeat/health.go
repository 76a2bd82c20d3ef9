package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/ws-heartbeat/internal/connection"
	"github.com/rickgao/ws-heartbeat/internal/monitor"
)

// pinger checks database reachability. *pgxpool.Pool satisfies it.
type pinger interface {
	Ping(ctx context.Context) error
}

type connectionHealth struct {
	Session    string `json:"session"`
	Target     string `json:"target"`
	Phase      string `json:"phase"`
	ReadyState string `json:"ready_state"`
	Attempts   int    `json:"attempts"`
	Reconnects int64  `json:"reconnects"`
	LastRTTMs  int64  `json:"last_rtt_ms"`
}

type healthResponse struct {
	Status      string             `json:"status"`
	Connections []connectionHealth `json:"connections"`
	Journal     string             `json:"journal,omitempty"`
}

// createHealthHandler reports every connection. Status is degraded while
// any connection is not open and unhealthy when the journal database is
// unreachable or every connection has stopped for good.
func createHealthHandler(sources []monitor.StatsSource, db pinger, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := healthResponse{
			Status:      "healthy",
			Connections: make([]connectionHealth, 0, len(sources)),
		}

		terminal := 0
		for _, src := range sources {
			s := src.Stats()
			health.Connections = append(health.Connections, connectionHealth{
				Session:    s.SessionID,
				Target:     s.Target,
				Phase:      s.Phase.String(),
				ReadyState: s.ReadyState.String(),
				Attempts:   s.Attempts,
				Reconnects: s.Reconnects,
				LastRTTMs:  s.LastRTT.Milliseconds(),
			})
			if s.Phase.Terminal() {
				terminal++
			}
			if s.Phase != connection.PhaseOpen && health.Status == "healthy" {
				health.Status = "degraded"
			}
		}
		if len(sources) > 0 && terminal == len(sources) {
			health.Status = "unhealthy"
		}

		if db != nil {
			if err := db.Ping(ctx); err != nil {
				logger.Warn("journal database unreachable", "error", err)
				health.Status = "unhealthy"
				health.Journal = "disconnected"
			} else {
				health.Journal = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
