package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	r, err := NewRedis("redis://"+mr.Addr(), "")
	if err != nil {
		mr.Close()
		t.Fatalf("NewRedis: %v", err)
	}
	return r, mr
}

func TestJSONRoundTrip(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	ctx := context.Background()
	type doc struct {
		Rate float64 `json:"rate"`
		Bank string  `json:"bank"`
	}

	if err := r.SetJSON(ctx, "quote:sjc:-", doc{Rate: 25400, Bank: "vcb"}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	var got doc
	found, err := r.GetJSON(ctx, "quote:sjc:-", &got)
	if err != nil || !found {
		t.Fatalf("GetJSON = (%v, %v)", found, err)
	}
	if got.Rate != 25400 || got.Bank != "vcb" {
		t.Errorf("got %+v", got)
	}
}

func TestGetJSONAbsent(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	var got map[string]any
	found, err := r.GetJSON(context.Background(), "missing", &got)
	if err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if found {
		t.Error("expected not found for absent key")
	}
}

func TestJSONExpiry(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	ctx := context.Background()
	if err := r.SetJSON(ctx, "quote:doji:-", map[string]any{"x": 1}, 30*time.Second); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	mr.FastForward(31 * time.Second)

	var got map[string]any
	found, _ := r.GetJSON(ctx, "quote:doji:-", &got)
	if found {
		t.Error("entry should expire after TTL")
	}
}

func TestSetAllAndGet(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	ctx := context.Background()
	err := r.SetAll(ctx, map[string]string{
		"VNAPPMOB_TOKEN:gold":            "tok-abc",
		"VNAPPMOB_TOKEN:gold:EXPIRES_AT": "1700000000000",
	})
	if err != nil {
		t.Fatalf("SetAll: %v", err)
	}

	tok, found, err := r.Get(ctx, "VNAPPMOB_TOKEN:gold")
	if err != nil || !found || tok != "tok-abc" {
		t.Errorf("Get token = (%q, %v, %v)", tok, found, err)
	}
	exp, found, _ := r.Get(ctx, "VNAPPMOB_TOKEN:gold:EXPIRES_AT")
	if !found || exp != "1700000000000" {
		t.Errorf("Get expiry = (%q, %v)", exp, found)
	}
}

func TestGetAbsent(t *testing.T) {
	r, mr := setupTestRedis(t)
	defer mr.Close()
	defer r.Close()

	_, found, err := r.Get(context.Background(), "nope")
	if err != nil || found {
		t.Errorf("Get absent = (found=%v, err=%v)", found, err)
	}
}
