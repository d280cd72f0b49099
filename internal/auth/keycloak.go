package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ticketsmith-io/ticketsmith/internal/config"
)

// expiryBuffer is subtracted from the token lifetime so a token is refreshed
// before it actually expires mid-request.
const expiryBuffer = 30 * time.Second

// Error is returned when credential acquisition or refresh fails. It carries
// the upstream response body when the identity provider rejected the grant.
type Error struct {
	Op   string // "password" or "refresh"
	Body string
	Err  error
}

func (e *Error) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("auth: %s grant failed: %s", e.Op, e.Body)
	}
	return fmt.Sprintf("auth: %s grant failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Keycloak obtains and caches a bearer token for the ticketing API using
// OAuth2 password and refresh_token grants. Safe for concurrent use; a
// redundant refresh under contention is tolerated.
type Keycloak struct {
	cfg        config.KeycloakConfig
	httpClient *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// NewKeycloak creates a token provider. No network call is made until the
// first AccessToken request.
func NewKeycloak(cfg config.KeycloakConfig) *Keycloak {
	return &Keycloak{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// AccessToken returns a valid bearer token, reusing the cached one while it
// has more than 30 seconds of life left. On cache miss it tries a refresh
// grant first and falls back to a password grant; a password-grant failure is
// returned as *Error. There is no retry beyond that single fallback.
func (k *Keycloak) AccessToken(ctx context.Context) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.accessToken != "" && time.Now().Add(expiryBuffer).Before(k.expiresAt) {
		return k.accessToken, nil
	}

	if k.refreshToken != "" {
		if token, err := k.refresh(ctx); err == nil {
			return token, nil
		}
		// fall through to password grant
	}

	return k.passwordGrant(ctx)
}

func (k *Keycloak) tokenURL() string {
	return fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token",
		strings.TrimSuffix(k.cfg.BaseURL, "/"), k.cfg.Realm)
}

func (k *Keycloak) passwordGrant(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "password")
	form.Set("client_id", k.cfg.ClientID)
	form.Set("username", k.cfg.Username)
	form.Set("password", k.cfg.Password)

	resp, err := k.postForm(ctx, form)
	if err != nil {
		return "", &Error{Op: "password", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &Error{Op: "password", Body: string(body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &Error{Op: "password", Err: err}
	}

	k.accessToken = tr.AccessToken
	k.refreshToken = tr.RefreshToken
	k.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return k.accessToken, nil
}

func (k *Keycloak) refresh(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", k.cfg.ClientID)
	form.Set("refresh_token", k.refreshToken)

	resp, err := k.postForm(ctx, form)
	if err != nil {
		return "", &Error{Op: "refresh", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drop the stale pair so the password grant starts clean.
		k.accessToken = ""
		k.refreshToken = ""
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &Error{Op: "refresh", Body: string(body)}
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", &Error{Op: "refresh", Err: err}
	}

	k.accessToken = tr.AccessToken
	if tr.RefreshToken != "" {
		k.refreshToken = tr.RefreshToken
	}
	k.expiresAt = time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	return k.accessToken, nil
}

func (k *Keycloak) postForm(ctx context.Context, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.tokenURL(), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return k.httpClient.Do(req)
}
