package daraja

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	domainErrors "github.com/polkiloo/marketplace/internal/domain/errors"
)

// Tokens within this margin of expiry are treated as already expired, so a
// request never goes out with a token about to lapse mid-flight.
const tokenSafetyMargin = 60 * time.Second

const defaultTokenTTL = time.Hour

// TokenSource obtains and caches the short-lived OAuth bearer token.
// Concurrent cache misses share a single upstream fetch. The cached value is
// process-local only: it is re-derivable from merchant credentials, so loss
// on restart is not a failure.
type TokenSource struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	group  singleflight.Group
	mu     sync.Mutex
	token  string
	expiry time.Time
}

// NewTokenSource builds a token source for the given merchant credentials.
func NewTokenSource(cfg Config, httpClient *http.Client, logger *slog.Logger) *TokenSource {
	return &TokenSource{cfg: cfg, httpClient: httpClient, logger: logger}
}

// Token returns a bearer token valid for at least the safety margin,
// fetching a fresh one from the provider when needed.
func (t *TokenSource) Token(ctx context.Context) (string, error) {
	if token, ok := t.cached(); ok {
		return token, nil
	}

	v, err, _ := t.group.Do("oauth", func() (any, error) {
		// A caller that queued behind the winning flight sees its result here.
		if token, ok := t.cached(); ok {
			return token, nil
		}

		token, ttl, err := t.fetch(ctx)
		if err != nil {
			return nil, err
		}

		t.mu.Lock()
		t.token = token
		t.expiry = time.Now().Add(ttl)
		t.mu.Unlock()

		return token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Invalidate drops the cached token, forcing the next call to refetch.
func (t *TokenSource) Invalidate() {
	t.mu.Lock()
	t.token = ""
	t.expiry = time.Time{}
	t.mu.Unlock()
}

func (t *TokenSource) cached() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.token != "" && time.Until(t.expiry) > tokenSafetyMargin {
		return t.token, true
	}
	return "", false
}

// tokenResponse mirrors the OAuth endpoint payload. Daraja returns
// expires_in as a string of seconds.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

func (t *TokenSource) fetch(ctx context.Context) (string, time.Duration, error) {
	endpoint := t.cfg.BaseURL + "/oauth/v1/generate?grant_type=client_credentials"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domainErrors.ErrCredentialFetch, err)
	}
	basic := base64.StdEncoding.EncodeToString([]byte(t.cfg.ConsumerKey + ":" + t.cfg.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", domainErrors.ErrCredentialFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		t.logger.Error("oauth request failed", slog.Int("status", resp.StatusCode), slog.String("body", string(body)))
		return "", 0, fmt.Errorf("%w: status %s", domainErrors.ErrCredentialFetch, resp.Status)
	}

	var data tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", 0, fmt.Errorf("%w: decode response: %v", domainErrors.ErrCredentialFetch, err)
	}
	if data.AccessToken == "" {
		return "", 0, fmt.Errorf("%w: empty access token", domainErrors.ErrCredentialFetch)
	}

	ttl := defaultTokenTTL
	if seconds, err := strconv.Atoi(data.ExpiresIn); err == nil && seconds > 0 {
		ttl = time.Duration(seconds) * time.Second
	}

	return data.AccessToken, ttl, nil
}
