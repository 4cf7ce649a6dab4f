package obs

import (
	"errors"
	"testing"

	"github.com/vngold/quote-api/internal/source"
	"github.com/vngold/quote-api/internal/upstream"
)

func TestInitialState(t *testing.T) {
	r := NewRecorder()
	h := r.Health()

	if h.LastQuoteServedAt != nil {
		t.Error("lastQuoteServedAt should start nil")
	}
	for _, src := range []string{SourceSpot, SourceFX, SourceRetail} {
		if h.UpstreamStatus[src] != source.StatusUnknown {
			t.Errorf("%s status = %q, want unknown", src, h.UpstreamStatus[src])
		}
	}
}

func TestCountersAccumulate(t *testing.T) {
	r := NewRecorder()
	r.QuoteRequest()
	r.QuoteRequest()
	r.QuoteCacheHit(TierMemory)
	r.QuoteCacheMiss(TierEdge)
	r.SourceCacheHit(SourceSpot)
	r.SourceCacheMiss(SourceSpot)
	r.StaleServe(SourceFX)

	d := r.Debug()
	if d.Counters.QuoteRequests != 2 {
		t.Errorf("QuoteRequests = %d", d.Counters.QuoteRequests)
	}
	if d.Counters.QuoteCache[TierMemory].Hits != 1 || d.Counters.QuoteCache[TierEdge].Misses != 1 {
		t.Errorf("quote cache counters: %+v", d.Counters.QuoteCache)
	}
	if d.Counters.SourceDataCache[SourceSpot].Hits != 1 || d.Counters.SourceDataCache[SourceSpot].Misses != 1 {
		t.Errorf("source cache counters: %+v", d.Counters.SourceDataCache[SourceSpot])
	}
	if d.Counters.StaleServes[SourceFX] != 1 {
		t.Errorf("StaleServes = %+v", d.Counters.StaleServes)
	}
	if d.Upstreams[SourceFX].LastStaleServedAt == nil {
		t.Error("LastStaleServedAt should be set after a stale serve")
	}
}

func TestUpstreamLifecycle(t *testing.T) {
	r := NewRecorder()
	r.UpstreamAttempt(SourceRetail)
	r.UpstreamFailure(SourceRetail, upstream.New("vnappmob", "fetchRetail", "", 502, "bad gateway", nil))

	d := r.Debug()
	st := d.Upstreams[SourceRetail]
	if st.LastAttemptAt == nil || st.LastErrorAt == nil {
		t.Fatal("attempt/error timestamps should be set")
	}
	if st.LastError == nil || st.LastError.Service != "vnappmob" {
		t.Errorf("LastError = %+v", st.LastError)
	}
	if d.Counters.UpstreamFetches[SourceRetail].Misses != 1 {
		t.Errorf("failure counter = %+v", d.Counters.UpstreamFetches[SourceRetail])
	}

	// A later success clears the stored error.
	r.UpstreamSuccess(SourceRetail)
	d = r.Debug()
	if d.Upstreams[SourceRetail].LastError != nil {
		t.Error("LastError should be cleared by a success")
	}
	if d.Counters.UpstreamFetches[SourceRetail].Hits != 1 {
		t.Errorf("success counter = %+v", d.Counters.UpstreamFetches[SourceRetail])
	}
}

func TestStatusSnapshot(t *testing.T) {
	r := NewRecorder()
	r.StatusSnapshot(map[string]source.Status{
		SourceSpot:   source.StatusOK,
		SourceFX:     source.StatusStale,
		SourceRetail: source.StatusError,
	})

	h := r.Health()
	if h.UpstreamStatus[SourceSpot] != source.StatusOK ||
		h.UpstreamStatus[SourceFX] != source.StatusStale ||
		h.UpstreamStatus[SourceRetail] != source.StatusError {
		t.Errorf("UpstreamStatus = %+v", h.UpstreamStatus)
	}
	if h.LastQuoteServedAt == nil {
		t.Error("LastQuoteServedAt should be set after a served quote")
	}
}

func TestDebugAuthCounters(t *testing.T) {
	r := NewRecorder()
	r.DebugAuth(true)
	r.DebugAuth(false)
	r.DebugAuth(false)

	d := r.Debug()
	if d.Counters.DebugAuthorized != 1 || d.Counters.DebugUnauthorized != 2 {
		t.Errorf("auth counters = %d/%d", d.Counters.DebugAuthorized, d.Counters.DebugUnauthorized)
	}
}

func TestDebugSnapshotIsACopy(t *testing.T) {
	r := NewRecorder()
	r.UpstreamFailure(SourceSpot, errors.New("boom"))

	d := r.Debug()
	d.Counters.UpstreamFetches[SourceSpot].Misses = 99
	d.Upstreams[SourceSpot].LastError.Message = "mutated"

	fresh := r.Debug()
	if fresh.Counters.UpstreamFetches[SourceSpot].Misses != 1 {
		t.Error("mutating a snapshot must not affect the recorder")
	}
	if fresh.Upstreams[SourceSpot].LastError.Message == "mutated" {
		t.Error("snapshot error detail must be a copy")
	}
}
