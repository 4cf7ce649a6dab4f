package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/vngold/quote-api/internal/quote"
	"github.com/vngold/quote-api/internal/source"
)

// Quote serves GET /api/quote. Brand validation happens before the
// orchestrator runs, so an unsupported brand never reaches an upstream.
func Quote(o *quote.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		brand := strings.ToLower(r.URL.Query().Get("retailBrand"))
		if brand == "" {
			brand = quote.DefaultBrand
		}
		city := r.URL.Query().Get("retailCity")

		if !source.SupportedBrand(brand) {
			http.Error(w, `{"error":"unsupported retailBrand"}`, http.StatusBadRequest)
			return
		}

		q, status := o.Quote(r.Context(), brand, city)

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		if status == http.StatusOK {
			w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=0, s-maxage=%d", o.TTLSeconds()))
		}
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(q)
	}
}
