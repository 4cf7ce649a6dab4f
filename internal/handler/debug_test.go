package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vngold/quote-api/internal/obs"
)

func TestDebugUnauthorized(t *testing.T) {
	rec := obs.NewRecorder()
	h := Debug(rec, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/debug", nil)
	req.Header.Set("x-debug-secret", "wrong")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if w.Body.String() != `{"error":"unauthorized"}` {
		t.Errorf("body = %q", w.Body.String())
	}
	if rec.Debug().Counters.DebugUnauthorized != 1 {
		t.Error("unauthorized call must be counted")
	}
}

func TestDebugMissingHeader(t *testing.T) {
	rec := obs.NewRecorder()
	h := Debug(rec, "")

	// Even with an empty configured secret, an empty header never passes.
	req := httptest.NewRequest(http.MethodGet, "/api/debug", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestDebugAuthorized(t *testing.T) {
	rec := obs.NewRecorder()
	rec.UpstreamAttempt(obs.SourceSpot)
	rec.UpstreamSuccess(obs.SourceSpot)
	h := Debug(rec, "s3cret")

	req := httptest.NewRequest(http.MethodGet, "/api/debug", nil)
	req.Header.Set("x-debug-secret", "s3cret")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	var body debugResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK {
		t.Error("ok should be true")
	}
	if body.LastFetchTimes["spot"].SuccessAt == nil {
		t.Error("spot successAt should be present")
	}
	if body.Counters.UpstreamFetches["spot"].Hits != 1 {
		t.Errorf("counters = %+v", body.Counters.UpstreamFetches)
	}
	if rec.Debug().Counters.DebugAuthorized != 1 {
		t.Error("authorized call must be counted")
	}
}

func TestHealthShape(t *testing.T) {
	rec := obs.NewRecorder()
	h := Health(rec, "1.2.3")

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.OK || body.Version != "1.2.3" {
		t.Errorf("body = %+v", body)
	}
	if body.UpstreamStatus["spot"] != "unknown" {
		t.Errorf("initial spot status = %q, want unknown", body.UpstreamStatus["spot"])
	}
	if body.LastQuoteServedAt != nil {
		t.Error("lastQuoteServedAt should start null")
	}
}

func TestLiveness(t *testing.T) {
	w := httptest.NewRecorder()
	Liveness().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
