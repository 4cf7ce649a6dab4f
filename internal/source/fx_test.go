package source

import (
	"context"
	"io"
	"net/http"
	"testing"
)

func TestFXFetchPrefersUSDRecord(t *testing.T) {
	tokens, base := vnappmobServer(t, map[string]http.HandlerFunc{
		"/api/v2/exchange_rate/vcb": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"results":[
				{"currency":"EUR","sell":"27500"},
				{"currency":"USD","sell":"25452.5","buy":"25100","updated_at":"2024-06-01T03:00:00Z"}
			]}`)
		},
	})

	fx := NewFX(tokens, base)
	got, err := fx.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Bank != "vcb" || got.BankName != "Vietcombank" {
		t.Errorf("bank = %q/%q", got.Bank, got.BankName)
	}
	if got.Rate != 25452.5 {
		t.Errorf("Rate = %v, want the sell rate of the USD record", got.Rate)
	}
}

func TestFXRateAliasOrder(t *testing.T) {
	tokens, base := vnappmobServer(t, map[string]http.HandlerFunc{
		"/api/v2/exchange_rate/vcb": func(w http.ResponseWriter, r *http.Request) {
			// No sell field; transfer should win over buy.
			io.WriteString(w, `{"results":[{"currency":"USD","transfer":25300,"buy":25100}]}`)
		},
	})

	fx := NewFX(tokens, base)
	got, err := fx.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Rate != 25300 {
		t.Errorf("Rate = %v, want transfer rate 25300", got.Rate)
	}
}

func TestFXBankFallback(t *testing.T) {
	tokens, base := vnappmobServer(t, map[string]http.HandlerFunc{
		"/api/v2/exchange_rate/vcb": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"/api/v2/exchange_rate/ctg": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"results":[{"currency":"USD","sell":"25380"}]}`)
		},
	})

	fx := NewFX(tokens, base)
	got, err := fx.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if got.Bank != "ctg" || got.BankName != "VietinBank" {
		t.Errorf("fallback bank = %q/%q, want ctg/VietinBank", got.Bank, got.BankName)
	}
	if got.Rate != 25380 {
		t.Errorf("Rate = %v", got.Rate)
	}
}

func TestFXAllBanksDown(t *testing.T) {
	tokens, base := vnappmobServer(t, map[string]http.HandlerFunc{
		"/api/v2/exchange_rate/": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	})

	fx := NewFX(tokens, base)
	if _, err := fx.Fetch(context.Background()); err == nil {
		t.Error("expected aggregated error when every bank fails")
	}
}

func TestFXEmptyResults(t *testing.T) {
	tokens, base := vnappmobServer(t, map[string]http.HandlerFunc{
		"/api/v2/exchange_rate/": func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"results":[]}`)
		},
	})

	fx := NewFX(tokens, base)
	if _, err := fx.Fetch(context.Background()); err == nil {
		t.Error("expected error for empty results on all banks")
	}
}
