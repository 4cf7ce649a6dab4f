package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vngold/quote-api/internal/obs"
	"github.com/vngold/quote-api/internal/source"
)

// Liveness is the bare process liveness probe.
func Liveness() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}

type healthResponse struct {
	OK                bool                     `json:"ok"`
	Version           string                   `json:"version"`
	StartedAt         time.Time                `json:"startedAt"`
	LastQuoteServedAt *time.Time               `json:"lastQuoteServedAt"`
	UpstreamStatus    map[string]source.Status `json:"upstreamStatus"`
}

// Health serves GET /api/health with the minimal observability view.
func Health(rec *obs.Recorder, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snap := rec.Health()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(healthResponse{
			OK:                true,
			Version:           version,
			StartedAt:         snap.StartedAt,
			LastQuoteServedAt: snap.LastQuoteServedAt,
			UpstreamStatus:    snap.UpstreamStatus,
		})
	}
}
