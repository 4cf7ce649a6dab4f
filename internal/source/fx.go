package source

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vngold/quote-api/internal/parse"
	"github.com/vngold/quote-api/internal/token"
	"github.com/vngold/quote-api/internal/upstream"
)

// fxBanks is the bank-code priority order for the USD/VND rate. Vietcombank
// first: it publishes the reference retail rate most other quotes track.
var fxBanks = []string{"vcb", "ctg", "bid", "tcb", "stb"}

var bankNames = map[string]string{
	"vcb": "Vietcombank",
	"ctg": "VietinBank",
	"bid": "BIDV",
	"tcb": "Techcombank",
	"stb": "Sacombank",
}

// rate candidates in preference order; the sell rate is what a buyer of USD
// actually pays.
var rateAliases = []string{"sell", "transfer", "buy"}

var fxTimeAliases = []string{"asOf", "as_of", "updated_at", "update_at", "datetime", "date", "timestamp", "time"}

// FXResult is the parsed USD/VND rate from one bank.
type FXResult struct {
	Bank              string    `json:"bank"`
	BankName          string    `json:"bank_name"`
	Rate              float64   `json:"rate"`
	ProviderTimestamp time.Time `json:"provider_timestamp"`
}

// FX fetches the USD/VND exchange rate from vnappmob, trying banks in
// priority order.
type FX struct {
	tokens  *token.Manager
	baseURL string
}

func NewFX(tokens *token.Manager, baseURL string) *FX {
	return &FX{tokens: tokens, baseURL: baseURL}
}

func (f *FX) Fetch(ctx context.Context) (FXResult, error) {
	return tryProviders(fxBanks, func(bank string) (FXResult, error) {
		return f.fetchBank(ctx, bank)
	})
}

func (f *FX) fetchBank(ctx context.Context, bank string) (FXResult, error) {
	fetchedAt := time.Now().UTC()
	url := f.baseURL + "/api/v2/exchange_rate/" + bank

	resp, err := f.tokens.Get(ctx, token.ScopeExchangeRate, url)
	if err != nil {
		return FXResult{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return FXResult{}, upstream.New("vnappmob", "fetchFx", url, resp.StatusCode, string(body), nil)
	}

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return FXResult{}, upstream.New("vnappmob", "fetchFx", url, resp.StatusCode, "", err)
	}

	records := resultRecords(payload)
	if len(records) == 0 {
		return FXResult{}, upstream.New("vnappmob", "fetchFx", url, resp.StatusCode, "response missing results", nil)
	}

	rec := pickCurrency(records, "USD")
	rate, ok := parse.FirstNumber(rec, rateAliases...)
	if !ok {
		return FXResult{}, upstream.New("vnappmob", "fetchFx", url, resp.StatusCode, "response missing valid rate for "+bank, nil)
	}

	return FXResult{
		Bank:              bank,
		BankName:          bankNames[bank],
		Rate:              rate,
		ProviderTimestamp: parse.FirstTime(rec, fetchedAt, fxTimeAliases...),
	}, nil
}

// pickCurrency prefers the record quoting the requested currency, falling
// back to the first record.
func pickCurrency(records []map[string]any, currency string) map[string]any {
	for _, rec := range records {
		if c, ok := rec["currency"].(string); ok && strings.EqualFold(c, currency) {
			return rec
		}
	}
	return records[0]
}
