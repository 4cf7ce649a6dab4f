// Package token manages bearer credentials for scope-protected vnappmob
// APIs. Tokens are cached in process memory and mirrored to Redis so other
// replicas observe a refreshed credential without re-issuing.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/vngold/quote-api/internal/cache"
	"github.com/vngold/quote-api/internal/upstream"
)

const (
	// ScopeGold and ScopeExchangeRate are the two vnappmob permission
	// classes this service needs.
	ScopeGold         = "gold"
	ScopeExchangeRate = "exchange_rate"

	keyPrefix       = "VNAPPMOB_TOKEN"
	expirySkew      = 60 * time.Second
	conservativeTTL = 12 * time.Hour
)

// invalidKeyPattern matches the body vnappmob returns alongside a 403 when
// the presented token is no longer accepted. Pattern match rather than exact
// code: the upstream wording varies.
var invalidKeyPattern = regexp.MustCompile(`(?i)invalid[\s_-]*api[\s_-]*key`)

type record struct {
	token     string
	expiresAt time.Time
}

// Manager acquires, caches and refreshes one bearer token per scope. The
// Redis copy is authoritative across replicas; the in-process copy is a
// best-effort accelerator.
type Manager struct {
	store   *cache.Redis
	client  *http.Client
	baseURL string
	logger  *slog.Logger

	mu  sync.Mutex
	mem map[string]record
	now func() time.Time
}

func NewManager(store *cache.Redis, baseURL string, logger *slog.Logger) *Manager {
	return &Manager{
		store:   store,
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: baseURL,
		logger:  logger,
		mem:     make(map[string]record),
		now:     time.Now,
	}
}

func tokenKey(scope string) string  { return keyPrefix + ":" + scope }
func expiryKey(scope string) string { return tokenKey(scope) + ":EXPIRES_AT" }

func expired(expiresAt, now time.Time) bool {
	return !expiresAt.After(now.Add(expirySkew))
}

// Token returns a currently-valid bearer token for scope. Lookup order:
// unexpired memory record, unexpired Redis record, then fresh issuance.
// forceRefresh skips both caches.
func (m *Manager) Token(ctx context.Context, scope string, forceRefresh bool) (string, error) {
	now := m.now()

	if !forceRefresh {
		m.mu.Lock()
		rec, ok := m.mem[scope]
		m.mu.Unlock()
		if ok && !expired(rec.expiresAt, now) {
			return rec.token, nil
		}

		tok, found, err := m.store.Get(ctx, tokenKey(scope))
		if err != nil {
			return "", fmt.Errorf("read token store: %w", err)
		}
		if found {
			expRaw, expFound, err := m.store.Get(ctx, expiryKey(scope))
			if err != nil {
				return "", fmt.Errorf("read token store: %w", err)
			}
			if expFound {
				expMs, parseErr := strconv.ParseInt(expRaw, 10, 64)
				if parseErr == nil {
					expiresAt := time.UnixMilli(expMs)
					if !expired(expiresAt, now) {
						m.mu.Lock()
						m.mem[scope] = record{token: tok, expiresAt: expiresAt}
						m.mu.Unlock()
						return tok, nil
					}
				}
			}
		}
	}

	tok, err := m.requestToken(ctx, scope)
	if err != nil {
		return "", err
	}
	expiresAt := deriveExpiry(tok, now)

	// Persist before touching the memory record so a failed write never
	// leaves the two tiers disagreeing.
	err = m.store.SetAll(ctx, map[string]string{
		tokenKey(scope):  tok,
		expiryKey(scope): strconv.FormatInt(expiresAt.UnixMilli(), 10),
	})
	if err != nil {
		return "", fmt.Errorf("persist token for scope %s: %w", scope, err)
	}

	m.mu.Lock()
	m.mem[scope] = record{token: tok, expiresAt: expiresAt}
	m.mu.Unlock()

	m.logger.Info("issued vnappmob token", "scope", scope, "expires_at", expiresAt.UTC().Format(time.RFC3339))
	return tok, nil
}

// Get performs an authorized GET against url. A 403 whose body indicates an
// invalid token triggers exactly one forced re-issuance and one retry; a
// second such failure is returned to the caller as-is.
func (m *Manager) Get(ctx context.Context, scope, url string) (*http.Response, error) {
	resp, err := m.do(ctx, scope, url, false)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	if !invalidKeyPattern.Match(body) {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}

	m.logger.Warn("vnappmob token rejected, refreshing", "scope", scope)
	return m.do(ctx, scope, url, true)
}

func (m *Manager) do(ctx context.Context, scope, url string, forceRefresh bool) (*http.Response, error) {
	tok, err := m.Token(ctx, scope, forceRefresh)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	return m.client.Do(req)
}

func (m *Manager) requestToken(ctx context.Context, scope string) (string, error) {
	url := m.baseURL + "/api/request_api_key?scope=" + scope
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", upstream.New("vnappmob", "requestToken", url, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", upstream.New("vnappmob", "requestToken", url, resp.StatusCode, string(body), nil)
	}

	var payload struct {
		Results string `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", upstream.New("vnappmob", "requestToken", url, resp.StatusCode, "", err)
	}
	tok := strings.TrimSpace(payload.Results)
	if tok == "" {
		return "", upstream.New("vnappmob", "requestToken", url, resp.StatusCode, "response missing token", nil)
	}
	return tok, nil
}

// deriveExpiry reads the exp claim from the token when it is a JWT,
// otherwise assigns a conservative fixed TTL. Decoding only — the issuer is
// called directly over TLS, so the claim is trusted without verifying the
// signature (no key material is published for it).
func deriveExpiry(tok string, now time.Time) time.Time {
	claims := jwt.MapClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(tok, claims)
	if err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil && exp.Unix() > 0 {
			return exp.Time
		}
	}
	return now.Add(conservativeTTL)
}
