// Package parse coerces loosely-typed upstream payload fields into Go values.
// Upstream APIs in this domain return numbers as floats, integers or strings
// interchangeably, and timestamps as RFC3339, epoch seconds or epoch
// milliseconds, so every extraction goes through these helpers.
package parse

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Number coerces a decoded JSON value into a finite float64.
func Number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		if isFinite(n) {
			return n, true
		}
	case float32:
		f := float64(n)
		if isFinite(f) {
			return f, true
		}
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err == nil && isFinite(f) {
			return f, true
		}
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil && isFinite(f) {
			return f, true
		}
	}
	return 0, false
}

// PositiveNumber is Number restricted to values greater than zero, the shape
// every price and rate field must satisfy.
func PositiveNumber(v any) (float64, bool) {
	f, ok := Number(v)
	if !ok || f <= 0 {
		return 0, false
	}
	return f, true
}

// Time coerces an upstream timestamp into a time.Time. Strings are parsed as
// RFC3339 (with and without fractional seconds) or as a numeric epoch.
// Numeric values above 1e12 are treated as epoch milliseconds, otherwise as
// epoch seconds. Anything unparsable yields fallback.
func Time(v any, fallback time.Time) time.Time {
	switch t := v.(type) {
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC()
			}
		}
		if f, err := strconv.ParseFloat(t, 64); err == nil && isFinite(f) {
			return epochTime(f)
		}
	case float64:
		if isFinite(t) {
			return epochTime(t)
		}
	case json.Number:
		if f, err := t.Float64(); err == nil && isFinite(f) {
			return epochTime(f)
		}
	case int64:
		return epochTime(float64(t))
	case int:
		return epochTime(float64(t))
	}
	return fallback
}

// FirstNumber returns the first candidate key whose value parses to a finite
// positive number. Keys are tried in order.
func FirstNumber(rec map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := rec[k]; ok {
			if f, ok := PositiveNumber(v); ok {
				return f, true
			}
		}
	}
	return 0, false
}

// FirstTime returns the first candidate key whose value parses to a
// timestamp, or fallback if none does.
func FirstTime(rec map[string]any, fallback time.Time, keys ...string) time.Time {
	for _, k := range keys {
		v, ok := rec[k]
		if !ok {
			continue
		}
		zero := time.Time{}
		if parsed := Time(v, zero); !parsed.IsZero() {
			return parsed
		}
	}
	return fallback
}

func epochTime(v float64) time.Time {
	ms := v
	if v <= 1e12 {
		ms = v * 1000
	}
	return time.UnixMilli(int64(ms)).UTC()
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
