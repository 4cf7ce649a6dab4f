package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/vngold/quote-api/internal/obs"
	"github.com/vngold/quote-api/internal/source"
	"github.com/vngold/quote-api/internal/upstream"
)

const debugSecretHeader = "x-debug-secret"

type debugFetchTimes struct {
	AttemptAt     *time.Time `json:"attemptAt"`
	SuccessAt     *time.Time `json:"successAt"`
	ErrorAt       *time.Time `json:"errorAt"`
	StaleServedAt *time.Time `json:"staleServedAt"`
}

type debugServer struct {
	StartedAt         time.Time  `json:"startedAt"`
	LastQuoteServedAt *time.Time `json:"lastQuoteServedAt"`
}

type debugResponse struct {
	OK             bool                        `json:"ok"`
	GeneratedAt    time.Time                   `json:"generatedAt"`
	UpstreamStatus map[string]source.Status    `json:"upstreamStatus"`
	LastFetchTimes map[string]debugFetchTimes  `json:"lastFetchTimes"`
	Counters       obs.Counters                `json:"counters"`
	LastErrors     map[string]*upstream.Detail `json:"lastErrors"`
	Server         debugServer                 `json:"server"`
}

// Debug serves the verbose observability snapshot, gated by a shared secret
// compared for exact equality. Every call, authorized or not, is counted.
func Debug(rec *obs.Recorder, secret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get(debugSecretHeader)
		authorized := provided != "" && provided == secret
		rec.DebugAuth(authorized)

		w.Header().Set("Content-Type", "application/json")
		if !authorized {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}`))
			return
		}

		snap := rec.Debug()
		health := rec.Health()

		times := make(map[string]debugFetchTimes, len(snap.Upstreams))
		errs := make(map[string]*upstream.Detail, len(snap.Upstreams))
		for src, st := range snap.Upstreams {
			times[src] = debugFetchTimes{
				AttemptAt:     st.LastAttemptAt,
				SuccessAt:     st.LastSuccessAt,
				ErrorAt:       st.LastErrorAt,
				StaleServedAt: st.LastStaleServedAt,
			}
			errs[src] = st.LastError
		}

		_ = json.NewEncoder(w).Encode(debugResponse{
			OK:             true,
			GeneratedAt:    time.Now().UTC(),
			UpstreamStatus: health.UpstreamStatus,
			LastFetchTimes: times,
			Counters:       snap.Counters,
			LastErrors:     errs,
			Server: debugServer{
				StartedAt:         snap.StartedAt,
				LastQuoteServedAt: snap.LastQuoteServedAt,
			},
		})
	}
}
