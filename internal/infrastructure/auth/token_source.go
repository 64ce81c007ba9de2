package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrRefreshUnavailable the token source cannot mint a new access token
var ErrRefreshUnavailable = errors.New("No refresh credential available")

// TokenSource supplies the bearer credential attached to every backend call.
// Refresh is invoked once when the backend answers 401; implementations that
// cannot refresh return ErrRefreshUnavailable and the 401 is surfaced.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Refresh(ctx context.Context) (string, error)
}

// StaticTokenSource wraps a fixed access token
type StaticTokenSource struct {
	access string
}

var _ TokenSource = &StaticTokenSource{}

func NewStaticTokenSource(access string) *StaticTokenSource {
	return &StaticTokenSource{access: access}
}

func (ts *StaticTokenSource) Token(ctx context.Context) (string, error) {
	return ts.access, nil
}

func (ts *StaticTokenSource) Refresh(ctx context.Context) (string, error) {
	return "", ErrRefreshUnavailable
}

// RefreshTokenSource holds an access/refresh token pair and renews the access
// token against the auth service when asked to
type RefreshTokenSource struct {
	mu      sync.Mutex
	access  string
	refresh string

	refreshURL string
	client     *http.Client
}

var _ TokenSource = &RefreshTokenSource{}

func NewRefreshTokenSource(access, refresh, refreshURL string, client *http.Client) *RefreshTokenSource {
	if client == nil {
		client = http.DefaultClient
	}
	return &RefreshTokenSource{
		access:     access,
		refresh:    refresh,
		refreshURL: refreshURL,
		client:     client,
	}
}

func (ts *RefreshTokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.access, nil
}

// Refresh exchange the refresh token for a new access token
func (ts *RefreshTokenSource) Refresh(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.refresh == "" || ts.refreshURL == "" {
		return "", ErrRefreshUnavailable
	}

	payload, err := json.Marshal(map[string]string{"refresh": ts.refresh})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.refreshURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := ts.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	var body struct {
		Access string `json:"access"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK || body.Access == "" {
		return "", fmt.Errorf("token refresh failed with status %d", res.StatusCode)
	}

	ts.access = body.Access
	return ts.access, nil
}
