package parse

import (
	"math"
	"testing"
	"time"
)

func TestNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want float64
		ok   bool
	}{
		{"float", 42.5, 42.5, true},
		{"int", 7, 7, true},
		{"numeric string", "25400.75", 25400.75, true},
		{"garbage string", "abc", 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf", math.Inf(1), 0, false},
		{"nil", nil, 0, false},
		{"bool", true, 0, false},
	}
	for _, tt := range tests {
		got, ok := Number(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s: Number(%v) = (%v, %v), want (%v, %v)", tt.name, tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPositiveNumber(t *testing.T) {
	if _, ok := PositiveNumber(0.0); ok {
		t.Error("zero should not be positive")
	}
	if _, ok := PositiveNumber(-1.5); ok {
		t.Error("negative should not be positive")
	}
	if v, ok := PositiveNumber("2000"); !ok || v != 2000 {
		t.Errorf("PositiveNumber(\"2000\") = (%v, %v)", v, ok)
	}
}

func TestTimeEpochHeuristic(t *testing.T) {
	fallback := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Below 1e12 is epoch seconds.
	got := Time(float64(1700000000), fallback)
	if got.Unix() != 1700000000 {
		t.Errorf("epoch seconds: got %v", got)
	}

	// Above 1e12 is epoch milliseconds.
	got = Time(float64(1700000000000), fallback)
	if got.UnixMilli() != 1700000000000 {
		t.Errorf("epoch millis: got %v", got)
	}
}

func TestTimeString(t *testing.T) {
	fallback := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	got := Time("2024-03-01T10:30:00Z", fallback)
	want := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("rfc3339: got %v, want %v", got, want)
	}

	if got := Time("not a time", fallback); !got.Equal(fallback) {
		t.Errorf("unparsable string should yield fallback, got %v", got)
	}
	if got := Time(nil, fallback); !got.Equal(fallback) {
		t.Errorf("nil should yield fallback, got %v", got)
	}
}

func TestFirstNumber(t *testing.T) {
	rec := map[string]any{
		"sell":     "not a number",
		"transfer": "25450",
		"buy":      25300.0,
	}
	got, ok := FirstNumber(rec, "sell", "transfer", "buy")
	if !ok || got != 25450 {
		t.Errorf("FirstNumber = (%v, %v), want (25450, true)", got, ok)
	}

	if _, ok := FirstNumber(rec, "missing", "also_missing"); ok {
		t.Error("expected no match for absent keys")
	}
}

func TestFirstTime(t *testing.T) {
	fallback := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rec := map[string]any{
		"date":       "garbage",
		"updated_at": "2024-05-05T12:00:00Z",
	}
	got := FirstTime(rec, fallback, "date", "updated_at")
	want := time.Date(2024, 5, 5, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("FirstTime = %v, want %v", got, want)
	}

	if got := FirstTime(map[string]any{}, fallback, "x"); !got.Equal(fallback) {
		t.Errorf("empty record should yield fallback, got %v", got)
	}
}
