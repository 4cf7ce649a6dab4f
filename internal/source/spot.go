package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/vngold/quote-api/internal/parse"
	"github.com/vngold/quote-api/internal/upstream"
)

const goldAPIBase = "https://api.gold-api.com"

// SpotResult is the parsed global spot gold price in USD per troy ounce.
type SpotResult struct {
	PriceUsdOzt       float64   `json:"price_usd_ozt"`
	ProviderTimestamp time.Time `json:"provider_timestamp"`
}

// Spot fetches the XAU spot price from gold-api.com.
type Spot struct {
	client  *http.Client
	baseURL string
}

func NewSpot() *Spot {
	return &Spot{
		client:  &http.Client{Timeout: 10 * time.Second},
		baseURL: goldAPIBase,
	}
}

func (s *Spot) Fetch(ctx context.Context) (SpotResult, error) {
	return tryProviders([]string{"gold-api.com"}, func(string) (SpotResult, error) {
		return s.fetchGoldAPI(ctx)
	})
}

func (s *Spot) fetchGoldAPI(ctx context.Context) (SpotResult, error) {
	fetchedAt := time.Now().UTC()
	url := s.baseURL + "/price/XAU"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return SpotResult{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return SpotResult{}, upstream.New("gold-api", "fetchSpot", url, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return SpotResult{}, upstream.New("gold-api", "fetchSpot", url, resp.StatusCode, string(body), nil)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return SpotResult{}, upstream.New("gold-api", "fetchSpot", url, resp.StatusCode, "", err)
	}

	price, ok := parse.FirstNumber(payload, "price", "p")
	if !ok {
		return SpotResult{}, upstream.New("gold-api", "fetchSpot", url, resp.StatusCode, "response missing valid price", nil)
	}

	return SpotResult{
		PriceUsdOzt:       price,
		ProviderTimestamp: parse.FirstTime(payload, fetchedAt, "updatedAt", "timestamp"),
	}, nil
}
