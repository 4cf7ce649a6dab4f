// Package quote assembles the aggregate gold quote document and orchestrates
// the per-request pipeline that fills it.
package quote

import (
	"time"

	"github.com/vngold/quote-api/internal/source"
)

// Unit conversion constants. A lượng is the Vietnamese retail quoting unit;
// the spot market quotes per troy ounce.
const (
	LuongGrams = 37.5
	OztGrams   = 31.1034768
)

// DefaultBrand is used when the request names no retail brand.
const DefaultBrand = "sjc"

// Quote is the aggregate response document. Numeric fields are pointers so
// an unresolved value renders as explicit JSON null, never NaN or a zero
// masquerading as data.
type Quote struct {
	Meta       Meta       `json:"meta"`
	Spot       SpotDoc    `json:"spot"`
	FX         FXDoc      `json:"fx"`
	Computed   Computed   `json:"computed"`
	Retail     RetailDoc  `json:"retail"`
	Comparison Comparison `json:"comparison"`
	Status     StatusDoc  `json:"status"`
}

type Meta struct {
	ServerTime           time.Time `json:"serverTime"`
	CacheTTLSeconds      int       `json:"cacheTtlSeconds"`
	DataFreshnessSeconds int64     `json:"dataFreshnessSeconds"`
}

type SpotDoc struct {
	Provider          string     `json:"provider"`
	Symbol            string     `json:"symbol"`
	Currency          string     `json:"currency"`
	PriceUsdOzt       *float64   `json:"price_usd_ozt"`
	ProviderTimestamp *time.Time `json:"providerTimestamp"`
}

type FXDoc struct {
	Provider          string     `json:"provider"`
	ProviderName      *string    `json:"providerName"`
	Pair              string     `json:"pair"`
	Rate              *float64   `json:"rate"`
	ProviderTimestamp *time.Time `json:"providerTimestamp"`
}

type Computed struct {
	LuongGrams   float64  `json:"luong_grams"`
	OztGrams     float64  `json:"ozt_grams"`
	SpotVndLuong *float64 `json:"spot_vnd_luong"`
}

type RetailDoc struct {
	Provider     string     `json:"provider"`
	Brand        string     `json:"brand"`
	BuyVndLuong  *float64   `json:"buy_vnd_luong"`
	SellVndLuong *float64   `json:"sell_vnd_luong"`
	AsOf         *time.Time `json:"asOf"`
}

type Comparison struct {
	PremiumBuyVnd  *float64 `json:"premium_buy_vnd"`
	PremiumBuyPct  *float64 `json:"premium_buy_pct"`
	PremiumSellVnd *float64 `json:"premium_sell_vnd"`
	PremiumSellPct *float64 `json:"premium_sell_pct"`
}

type StatusDoc struct {
	Spot   source.Status `json:"spot"`
	FX     source.Status `json:"fx"`
	Retail source.Status `json:"retail"`
}

// CachedQuote wraps a quote for the cache tiers together with the TTL it was
// written under, so any replica can serve it with the right cache directive.
type CachedQuote struct {
	Quote      Quote `json:"quote"`
	TTLSeconds int   `json:"ttlSeconds"`
}

// newBaseQuote builds an all-null document with every provider label and
// constant filled in. Statuses start as error and are overwritten per source.
func newBaseQuote(brand string, ttlSeconds int, now time.Time) Quote {
	return Quote{
		Meta: Meta{
			ServerTime:           now,
			CacheTTLSeconds:      ttlSeconds,
			DataFreshnessSeconds: 0,
		},
		Spot: SpotDoc{
			Provider: "gold-api.com",
			Symbol:   "XAU",
			Currency: "USD",
		},
		FX: FXDoc{
			Provider: "vnappmob",
			Pair:     "USD/VND",
		},
		Computed: Computed{
			LuongGrams: LuongGrams,
			OztGrams:   OztGrams,
		},
		Retail: RetailDoc{
			Provider: "vnappmob",
			Brand:    brand,
		},
		Status: StatusDoc{
			Spot:   source.StatusError,
			FX:     source.StatusError,
			Retail: source.StatusError,
		},
	}
}
