package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/vngold/quote-api/internal/parse"
	"github.com/vngold/quote-api/internal/token"
	"github.com/vngold/quote-api/internal/upstream"
)

// Brands lists the supported retail gold brands in default fallback order.
var Brands = []string{"sjc", "doji", "pnj"}

// defaultCities are tried when the requested city yields no buy/sell pair.
var defaultCities = []string{"hcm", "hn"}

var retailTimeAliases = []string{"asOf", "as_of", "updated_at", "update_at", "datetime", "date", "timestamp", "time"}

// SupportedBrand reports whether brand is one of the known retail brands.
func SupportedBrand(brand string) bool {
	for _, b := range Brands {
		if b == brand {
			return true
		}
	}
	return false
}

// RetailResult is the parsed buy/sell price for one brand. SourceBrand is
// the brand that actually supplied the data; it differs from the requested
// brand when fallback occurred.
type RetailResult struct {
	SourceBrand  string    `json:"source_brand"`
	BuyVndLuong  float64   `json:"buy_vnd_luong"`
	SellVndLuong float64   `json:"sell_vnd_luong"`
	AsOf         time.Time `json:"as_of"`
}

// Retail fetches local retail gold prices from vnappmob, trying the
// requested brand first and the remaining brands as fallback.
type Retail struct {
	tokens  *token.Manager
	baseURL string
}

func NewRetail(tokens *token.Manager, baseURL string) *Retail {
	return &Retail{tokens: tokens, baseURL: baseURL}
}

func (r *Retail) Fetch(ctx context.Context, brand, city string) (RetailResult, error) {
	order := make([]string, 0, len(Brands))
	order = append(order, brand)
	for _, b := range Brands {
		if b != brand {
			order = append(order, b)
		}
	}

	return tryProviders(order, func(b string) (RetailResult, error) {
		return r.fetchBrand(ctx, b, city)
	})
}

func (r *Retail) fetchBrand(ctx context.Context, brand, city string) (RetailResult, error) {
	fetchedAt := time.Now().UTC()
	url := r.baseURL + "/api/v2/gold/" + brand

	resp, err := r.tokens.Get(ctx, token.ScopeGold, url)
	if err != nil {
		return RetailResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return RetailResult{}, upstream.New("vnappmob", "fetchRetail", url, resp.StatusCode, string(body), nil)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return RetailResult{}, upstream.New("vnappmob", "fetchRetail", url, resp.StatusCode, "", err)
	}

	records := resultRecords(payload)
	if len(records) == 0 {
		return RetailResult{}, upstream.New("vnappmob", "fetchRetail", url, resp.StatusCode, "response missing results", nil)
	}
	rec := records[0]

	var buy, sell float64
	var ok bool
	if brand == "sjc" {
		buy, sell, ok = sjcPrices(rec)
	} else {
		buy, sell, ok = cityPrices(rec, city)
	}
	if !ok {
		return RetailResult{}, upstream.New("vnappmob", "fetchRetail", url, resp.StatusCode, "response missing valid buy/sell for "+brand, nil)
	}

	return RetailResult{
		SourceBrand:  brand,
		BuyVndLuong:  buy,
		SellVndLuong: sell,
		AsOf:         parse.FirstTime(rec, fetchedAt, retailTimeAliases...),
	}, nil
}

// sjcPrices reads the 1-luong bar fields SJC quotes under fixed names.
func sjcPrices(rec map[string]any) (buy, sell float64, ok bool) {
	buy, buyOK := parse.PositiveNumber(rec["buy_1l"])
	sell, sellOK := parse.PositiveNumber(rec["sell_1l"])
	return buy, sell, buyOK && sellOK
}

// cityPrices reads buy_<city>/sell_<city> pairs: the requested city first,
// then the default city codes, then the first structurally matching pair.
func cityPrices(rec map[string]any, city string) (float64, float64, bool) {
	var cities []string
	if c := strings.ToLower(strings.TrimSpace(city)); c != "" {
		cities = append(cities, c)
	}
	cities = append(cities, defaultCities...)

	for _, c := range cities {
		buy, buyOK := parse.PositiveNumber(rec["buy_"+c])
		sell, sellOK := parse.PositiveNumber(rec["sell_"+c])
		if buyOK && sellOK {
			return buy, sell, true
		}
	}

	// Sorted for a deterministic pick; map iteration order is random.
	keys := make([]string, 0, len(rec))
	for key := range rec {
		if strings.HasPrefix(key, "buy_") {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		suffix := key[len("buy_"):]
		buy, buyOK := parse.PositiveNumber(rec[key])
		sell, sellOK := parse.PositiveNumber(rec["sell_"+suffix])
		if buyOK && sellOK {
			return buy, sell, true
		}
	}
	return 0, 0, false
}
