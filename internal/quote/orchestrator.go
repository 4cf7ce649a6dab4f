package quote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/vngold/quote-api/internal/cache"
	"github.com/vngold/quote-api/internal/obs"
	"github.com/vngold/quote-api/internal/source"
)

// Fetch function types, injected so tests can stand in for the real
// fetchers.
type (
	SpotFunc   func(ctx context.Context) (source.SpotResult, error)
	FXFunc     func(ctx context.Context) (source.FXResult, error)
	RetailFunc func(ctx context.Context, brand, city string) (source.RetailResult, error)
)

// Config wires an Orchestrator. Edge may be nil when no shared cache is
// available; the pipeline then runs on the in-process tiers alone.
type Config struct {
	Memory   *cache.Memory
	Edge     *cache.Redis
	Recorder *obs.Recorder
	Logger   *slog.Logger

	QuoteTTL time.Duration
	FXTTL    time.Duration

	FetchSpot   SpotFunc
	FetchFX     FXFunc
	FetchRetail RetailFunc
}

// Orchestrator serves one derived value: the local-currency gold quote. Per
// request it checks the cache tiers, fans out to the three sources, merges
// whatever succeeded and decides cacheability and HTTP status.
type Orchestrator struct {
	cfg Config
	now func() time.Time
}

func New(cfg Config) *Orchestrator {
	return &Orchestrator{cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// TTLSeconds is the configured quote TTL, exposed for cache-control
// headers.
func (o *Orchestrator) TTLSeconds() int { return int(o.cfg.QuoteTTL / time.Second) }

func quoteKey(brand, city string) string {
	c := strings.TrimSpace(city)
	if c == "" {
		c = "-"
	}
	return "quote:" + brand + ":" + c
}

// Quote runs the full pipeline and returns the document plus the HTTP status
// to serve it with: 200 normally, 503 exactly when spot price, fx rate and
// both retail prices are all unresolved.
func (o *Orchestrator) Quote(ctx context.Context, brand, city string) (Quote, int) {
	rec := o.cfg.Recorder
	rec.QuoteRequest()

	ttlSeconds := int(o.cfg.QuoteTTL / time.Second)
	key := quoteKey(brand, city)

	if v, ok := o.cfg.Memory.Get(key); ok {
		if cached, ok := v.(CachedQuote); ok {
			rec.QuoteCacheHit(obs.TierMemory)
			return o.serveCached(cached, ttlSeconds), http.StatusOK
		}
	}
	rec.QuoteCacheMiss(obs.TierMemory)

	if o.cfg.Edge != nil {
		var cached CachedQuote
		found, err := o.cfg.Edge.GetJSON(ctx, key, &cached)
		if err != nil {
			o.cfg.Logger.Warn("edge cache read failed", "key", key, "error", err)
		}
		if found {
			rec.QuoteCacheHit(obs.TierEdge)
			o.cfg.Memory.Set(key, cached, o.cfg.QuoteTTL)
			return o.serveCached(cached, ttlSeconds), http.StatusOK
		}
		rec.QuoteCacheMiss(obs.TierEdge)
	}

	var (
		wg        sync.WaitGroup
		spotOut   outcome[source.SpotResult]
		fxOut     outcome[source.FXResult]
		retailOut outcome[source.RetailResult]
	)
	wg.Add(3)
	go func() {
		defer wg.Done()
		spotOut = fetchSource(o, ctx, obs.SourceSpot, "spot:latest", o.cfg.QuoteTTL, o.cfg.FetchSpot)
	}()
	go func() {
		defer wg.Done()
		fxOut = fetchSource(o, ctx, obs.SourceFX, "fx:latest", o.cfg.FXTTL, o.cfg.FetchFX)
	}()
	go func() {
		defer wg.Done()
		retailOut = fetchSource(o, ctx, obs.SourceRetail, "retail:"+brand+":"+cityOrDash(city), o.cfg.QuoteTTL,
			func(ctx context.Context) (source.RetailResult, error) {
				return o.cfg.FetchRetail(ctx, brand, city)
			})
	}()
	wg.Wait()

	q := o.merge(brand, ttlSeconds, spotOut, fxOut, retailOut)
	body := o.withFreshMeta(q, ttlSeconds)

	allCriticalMissing := q.Spot.PriceUsdOzt == nil &&
		q.FX.Rate == nil &&
		q.Retail.BuyVndLuong == nil &&
		q.Retail.SellVndLuong == nil

	// A total-outage response is never cached, so the next request retries
	// every upstream immediately.
	if !allCriticalMissing {
		cached := CachedQuote{Quote: q, TTLSeconds: ttlSeconds}
		o.cfg.Memory.Set(key, cached, o.cfg.QuoteTTL)
		if o.cfg.Edge != nil {
			if err := o.cfg.Edge.SetJSON(ctx, key, cached, o.cfg.QuoteTTL); err != nil {
				o.cfg.Logger.Warn("edge cache write failed", "key", key, "error", err)
			}
		}
	}

	rec.StatusSnapshot(map[string]source.Status{
		obs.SourceSpot:   q.Status.Spot,
		obs.SourceFX:     q.Status.FX,
		obs.SourceRetail: q.Status.Retail,
	})

	if allCriticalMissing {
		return body, http.StatusServiceUnavailable
	}
	return body, http.StatusOK
}

func (o *Orchestrator) serveCached(cached CachedQuote, ttlSeconds int) Quote {
	q := o.withFreshMeta(cached.Quote, ttlSeconds)
	o.cfg.Recorder.StatusSnapshot(map[string]source.Status{
		obs.SourceSpot:   q.Status.Spot,
		obs.SourceFX:     q.Status.FX,
		obs.SourceRetail: q.Status.Retail,
	})
	return q
}

// outcome is the transient result of one source fetch within a request.
type outcome[T any] struct {
	status source.Status
	data   *T
}

// fetchSource is the per-source resilience strategy: fresh cache, then live
// fetch (success feeds both the fresh and stale tiers), then stale fallback.
// A panic inside a fetcher is downgraded to a failed fetch.
func fetchSource[T any](o *Orchestrator, ctx context.Context, src, key string, ttl time.Duration, fetch func(context.Context) (T, error)) outcome[T] {
	rec := o.cfg.Recorder

	if v, ok := o.cfg.Memory.Get(key); ok {
		if data, ok := v.(T); ok {
			rec.SourceCacheHit(src)
			return outcome[T]{status: source.StatusOK, data: &data}
		}
	}
	rec.SourceCacheMiss(src)

	rec.UpstreamAttempt(src)
	data, err := func() (d T, err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("fetch panicked: %v", p)
			}
		}()
		return fetch(ctx)
	}()
	if err == nil {
		rec.UpstreamSuccess(src)
		o.cfg.Memory.Set(key, data, ttl)
		o.cfg.Memory.Set(cache.StaleKey(key), data, cache.StaleTTL)
		return outcome[T]{status: source.StatusOK, data: &data}
	}

	rec.UpstreamFailure(src, err)
	o.cfg.Logger.Error("upstream fetch failed", "source", src, "key", key, "error", err)

	if v, ok := o.cfg.Memory.Get(cache.StaleKey(key)); ok {
		if stale, ok := v.(T); ok {
			rec.StaleServe(src)
			return outcome[T]{status: source.StatusStale, data: &stale}
		}
	}
	return outcome[T]{status: source.StatusError}
}

func (o *Orchestrator) merge(brand string, ttlSeconds int, spotOut outcome[source.SpotResult], fxOut outcome[source.FXResult], retailOut outcome[source.RetailResult]) Quote {
	q := newBaseQuote(brand, ttlSeconds, o.now())
	q.Status.Spot = spotOut.status
	q.Status.FX = fxOut.status
	q.Status.Retail = retailOut.status

	if spotOut.data != nil {
		q.Spot.PriceUsdOzt = ptr(spotOut.data.PriceUsdOzt)
		q.Spot.ProviderTimestamp = ptr(spotOut.data.ProviderTimestamp)
	}
	if fxOut.data != nil {
		q.FX.Provider = "vnappmob:" + fxOut.data.Bank
		q.FX.ProviderName = ptr(fxOut.data.BankName)
		q.FX.Rate = ptr(fxOut.data.Rate)
		q.FX.ProviderTimestamp = ptr(fxOut.data.ProviderTimestamp)
	}
	if retailOut.data != nil {
		q.Retail.BuyVndLuong = ptr(retailOut.data.BuyVndLuong)
		q.Retail.SellVndLuong = ptr(retailOut.data.SellVndLuong)
		q.Retail.AsOf = ptr(retailOut.data.AsOf)
	}

	if q.Spot.PriceUsdOzt != nil && q.FX.Rate != nil {
		derived := *q.Spot.PriceUsdOzt * (LuongGrams / OztGrams) * *q.FX.Rate
		q.Computed.SpotVndLuong = &derived
	}

	if q.Computed.SpotVndLuong != nil {
		spot := *q.Computed.SpotVndLuong
		if q.Retail.BuyVndLuong != nil {
			abs := *q.Retail.BuyVndLuong - spot
			pct := abs / spot * 100
			q.Comparison.PremiumBuyVnd = &abs
			q.Comparison.PremiumBuyPct = &pct
		}
		if q.Retail.SellVndLuong != nil {
			abs := *q.Retail.SellVndLuong - spot
			pct := abs / spot * 100
			q.Comparison.PremiumSellVnd = &abs
			q.Comparison.PremiumSellPct = &pct
		}
	}

	return q
}

// withFreshMeta recomputes the time-derived meta fields against the serving
// clock. Cached documents must never carry a snapshot's server time.
func (o *Orchestrator) withFreshMeta(q Quote, ttlSeconds int) Quote {
	now := o.now()
	q.Meta = Meta{
		ServerTime:           now,
		CacheTTLSeconds:      ttlSeconds,
		DataFreshnessSeconds: freshnessSeconds(q, now),
	}
	return q
}

// freshnessSeconds is the age of the oldest present provider timestamp,
// floored at zero; zero when no timestamps are available.
func freshnessSeconds(q Quote, now time.Time) int64 {
	var max int64
	var seen bool
	for _, ts := range []*time.Time{q.Spot.ProviderTimestamp, q.FX.ProviderTimestamp, q.Retail.AsOf} {
		if ts == nil {
			continue
		}
		age := int64(now.Sub(*ts) / time.Second)
		if age < 0 {
			age = 0
		}
		if !seen || age > max {
			max = age
			seen = true
		}
	}
	return max
}

func cityOrDash(city string) string {
	if c := strings.TrimSpace(city); c != "" {
		return c
	}
	return "-"
}

func ptr[T any](v T) *T { return &v }
