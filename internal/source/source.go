// Package source implements the per-source fetch strategies. Each fetcher
// walks an ordered provider list and returns the first structurally valid
// record, so a single bad upstream never fails the whole fetch on its own.
package source

import (
	"fmt"
	"strings"
)

// Status classifies the outcome of one source fetch within a quote request.
type Status string

const (
	StatusOK      Status = "ok"
	StatusStale   Status = "stale"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// maxFailureReasons bounds the aggregated error when every provider fails.
const maxFailureReasons = 3

// tryProviders attempts each provider in order until one succeeds. A
// failed attempt is soft: the loop continues. When all providers fail the
// returned error aggregates at most maxFailureReasons individual reasons.
func tryProviders[T any](providers []string, attempt func(provider string) (T, error)) (T, error) {
	var zero T
	var reasons []string
	for _, p := range providers {
		v, err := attempt(p)
		if err == nil {
			return v, nil
		}
		if len(reasons) < maxFailureReasons {
			reasons = append(reasons, fmt.Sprintf("%s: %v", p, err))
		}
	}
	if len(reasons) < len(providers) {
		reasons = append(reasons, fmt.Sprintf("and %d more", len(providers)-len(reasons)))
	}
	return zero, fmt.Errorf("all providers failed: %s", strings.Join(reasons, "; "))
}

// resultRecords decodes the common vnappmob envelope {"results": [...]} and
// returns the record list.
func resultRecords(payload map[string]any) []map[string]any {
	raw, ok := payload["results"].([]any)
	if !ok {
		return nil
	}
	records := make([]map[string]any, 0, len(raw))
	for _, r := range raw {
		if rec, ok := r.(map[string]any); ok {
			records = append(records, rec)
		}
	}
	return records
}
