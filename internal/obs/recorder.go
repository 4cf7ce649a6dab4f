// Package obs tracks process-wide cache and upstream health: monotonic
// counters plus per-source last-seen timestamps. The recorder is a pure side
// channel; nothing in the pipeline reads its state to make decisions.
package obs

import (
	"sync"
	"time"

	"github.com/vngold/quote-api/internal/metrics"
	"github.com/vngold/quote-api/internal/source"
	"github.com/vngold/quote-api/internal/upstream"
)

// Source identifiers used as counter and metric labels.
const (
	SourceSpot   = "spot"
	SourceFX     = "fx"
	SourceRetail = "retail"
)

// Quote cache tiers.
const (
	TierMemory = "memory"
	TierEdge   = "edge"
)

var allSources = []string{SourceSpot, SourceFX, SourceRetail}

// Counter tallies hits and misses (or successes and failures) for one
// labelled thing.
type Counter struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// UpstreamState is the last-known runtime state of one source. Created at
// process start with status "unknown", updated on every fetch attempt, never
// deleted.
type UpstreamState struct {
	Status            source.Status    `json:"status"`
	LastAttemptAt     *time.Time       `json:"lastAttemptAt"`
	LastSuccessAt     *time.Time       `json:"lastSuccessAt"`
	LastErrorAt       *time.Time       `json:"lastErrorAt"`
	LastError         *upstream.Detail `json:"lastError"`
	LastStaleServedAt *time.Time       `json:"lastStaleServedAt"`
}

// Counters is the full monotonic tally set, reset only on process restart.
type Counters struct {
	QuoteRequests     int64               `json:"quoteRequests"`
	DebugAuthorized   int64               `json:"debugAuthorized"`
	DebugUnauthorized int64               `json:"debugUnauthorized"`
	QuoteCache        map[string]*Counter `json:"quoteCache"`
	SourceDataCache   map[string]*Counter `json:"sourceDataCache"`
	UpstreamFetches   map[string]*Counter `json:"upstreamFetches"`
	StaleServes       map[string]int64    `json:"staleServes"`
}

// Recorder holds one process instance's observability state. Construct it
// explicitly and inject it; tests get isolated instances.
type Recorder struct {
	mu                sync.Mutex
	startedAt         time.Time
	lastQuoteServedAt *time.Time
	counters          Counters
	upstreams         map[string]*UpstreamState
	now               func() time.Time
}

func NewRecorder() *Recorder {
	r := &Recorder{
		startedAt: time.Now().UTC(),
		counters: Counters{
			QuoteCache:      map[string]*Counter{TierMemory: {}, TierEdge: {}},
			SourceDataCache: map[string]*Counter{},
			UpstreamFetches: map[string]*Counter{},
			StaleServes:     map[string]int64{},
		},
		upstreams: map[string]*UpstreamState{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, s := range allSources {
		r.counters.SourceDataCache[s] = &Counter{}
		r.counters.UpstreamFetches[s] = &Counter{}
		r.counters.StaleServes[s] = 0
		r.upstreams[s] = &UpstreamState{Status: source.StatusUnknown}
	}
	return r
}

func (r *Recorder) QuoteRequest() {
	r.mu.Lock()
	r.counters.QuoteRequests++
	r.mu.Unlock()
}

func (r *Recorder) QuoteCacheHit(tier string) {
	r.mu.Lock()
	r.counters.QuoteCache[tier].Hits++
	r.mu.Unlock()
	metrics.QuoteCacheTotal.WithLabelValues(tier, "hit").Inc()
}

func (r *Recorder) QuoteCacheMiss(tier string) {
	r.mu.Lock()
	r.counters.QuoteCache[tier].Misses++
	r.mu.Unlock()
	metrics.QuoteCacheTotal.WithLabelValues(tier, "miss").Inc()
}

func (r *Recorder) SourceCacheHit(src string) {
	r.mu.Lock()
	r.counters.SourceDataCache[src].Hits++
	r.mu.Unlock()
	metrics.SourceCacheTotal.WithLabelValues(src, "hit").Inc()
}

func (r *Recorder) SourceCacheMiss(src string) {
	r.mu.Lock()
	r.counters.SourceDataCache[src].Misses++
	r.mu.Unlock()
	metrics.SourceCacheTotal.WithLabelValues(src, "miss").Inc()
}

func (r *Recorder) UpstreamAttempt(src string) {
	now := r.now()
	r.mu.Lock()
	r.upstreams[src].LastAttemptAt = &now
	r.mu.Unlock()
}

func (r *Recorder) UpstreamSuccess(src string) {
	now := r.now()
	r.mu.Lock()
	r.counters.UpstreamFetches[src].Hits++
	r.upstreams[src].LastSuccessAt = &now
	r.upstreams[src].LastError = nil
	r.mu.Unlock()
	metrics.UpstreamFetchTotal.WithLabelValues(src, "success").Inc()
	metrics.UpstreamLastSuccess.WithLabelValues(src).Set(float64(now.Unix()))
}

func (r *Recorder) UpstreamFailure(src string, err error) {
	now := r.now()
	r.mu.Lock()
	r.counters.UpstreamFetches[src].Misses++
	r.upstreams[src].LastErrorAt = &now
	r.upstreams[src].LastError = upstream.Serialize(err)
	r.mu.Unlock()
	metrics.UpstreamFetchTotal.WithLabelValues(src, "failure").Inc()
}

func (r *Recorder) StaleServe(src string) {
	now := r.now()
	r.mu.Lock()
	r.counters.StaleServes[src]++
	r.upstreams[src].LastStaleServedAt = &now
	r.mu.Unlock()
	metrics.StaleServesTotal.WithLabelValues(src).Inc()
}

// StatusSnapshot records the per-source statuses of a served quote and bumps
// the last-served marker.
func (r *Recorder) StatusSnapshot(statuses map[string]source.Status) {
	now := r.now()
	r.mu.Lock()
	for src, st := range statuses {
		if state, ok := r.upstreams[src]; ok {
			state.Status = st
		}
	}
	r.lastQuoteServedAt = &now
	r.mu.Unlock()
}

func (r *Recorder) DebugAuth(authorized bool) {
	r.mu.Lock()
	if authorized {
		r.counters.DebugAuthorized++
	} else {
		r.counters.DebugUnauthorized++
	}
	r.mu.Unlock()
}

// HealthSnapshot is the minimal read view exposed on the health endpoint.
type HealthSnapshot struct {
	StartedAt         time.Time                `json:"startedAt"`
	LastQuoteServedAt *time.Time               `json:"lastQuoteServedAt"`
	UpstreamStatus    map[string]source.Status `json:"upstreamStatus"`
}

func (r *Recorder) Health() HealthSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := make(map[string]source.Status, len(r.upstreams))
	for src, state := range r.upstreams {
		status[src] = state.Status
	}
	return HealthSnapshot{
		StartedAt:         r.startedAt,
		LastQuoteServedAt: copyTime(r.lastQuoteServedAt),
		UpstreamStatus:    status,
	}
}

// DebugSnapshot is the verbose read view gated behind the debug secret.
type DebugSnapshot struct {
	StartedAt         time.Time                 `json:"startedAt"`
	LastQuoteServedAt *time.Time                `json:"lastQuoteServedAt"`
	Counters          Counters                  `json:"counters"`
	Upstreams         map[string]*UpstreamState `json:"upstreams"`
}

// Debug returns a deep copy so callers can serialize it without holding the
// recorder's lock.
func (r *Recorder) Debug() DebugSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	counters := Counters{
		QuoteRequests:     r.counters.QuoteRequests,
		DebugAuthorized:   r.counters.DebugAuthorized,
		DebugUnauthorized: r.counters.DebugUnauthorized,
		QuoteCache:        copyCounters(r.counters.QuoteCache),
		SourceDataCache:   copyCounters(r.counters.SourceDataCache),
		UpstreamFetches:   copyCounters(r.counters.UpstreamFetches),
		StaleServes:       make(map[string]int64, len(r.counters.StaleServes)),
	}
	for k, v := range r.counters.StaleServes {
		counters.StaleServes[k] = v
	}

	ups := make(map[string]*UpstreamState, len(r.upstreams))
	for src, state := range r.upstreams {
		copied := *state
		copied.LastAttemptAt = copyTime(state.LastAttemptAt)
		copied.LastSuccessAt = copyTime(state.LastSuccessAt)
		copied.LastErrorAt = copyTime(state.LastErrorAt)
		copied.LastStaleServedAt = copyTime(state.LastStaleServedAt)
		if state.LastError != nil {
			detail := *state.LastError
			copied.LastError = &detail
		}
		ups[src] = &copied
	}

	return DebugSnapshot{
		StartedAt:         r.startedAt,
		LastQuoteServedAt: copyTime(r.lastQuoteServedAt),
		Counters:          counters,
		Upstreams:         ups,
	}
}

func copyCounters(in map[string]*Counter) map[string]*Counter {
	out := make(map[string]*Counter, len(in))
	for k, v := range in {
		c := *v
		out[k] = &c
	}
	return out
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
