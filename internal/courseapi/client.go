package courseapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	"github.com/educatodos/player-gateway/internal/infrastructure/auth"
	"go.uber.org/zap"
)

// RemoteError non-2xx answer from the course backend
type RemoteError struct {
	StatusCode int
	Detail     string
}

func (re *RemoteError) Error() string {
	if re.Detail != "" {
		return fmt.Sprintf("backend responded %d: %s", re.StatusCode, re.Detail)
	}
	return fmt.Sprintf("backend responded %d", re.StatusCode)
}

// IsNotFound missing-record class of responses
func (re *RemoteError) IsNotFound() bool {
	return re.StatusCode == http.StatusNotFound
}

// IsServerFault transient 5xx class of responses
func (re *RemoteError) IsServerFault() bool {
	return re.StatusCode >= http.StatusInternalServerError
}

// Client typed wrapper around the course backend REST API. It owns no state
// beyond the credential source; every call is synchronous.
type Client struct {
	baseURL string
	conn    *http.Client
	tokens  auth.TokenSource
	logger  *zap.Logger

	sleep func(time.Duration) // indirection for retry tests
}

// NewClient create a course backend client rooted at baseURL
func NewClient(baseURL string, timeout time.Duration, tokens auth.TokenSource, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		conn:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
		sleep:   time.Sleep,
	}
}

// do issue one call, refreshing the credential once on 401. The second 401 is
// returned as-is.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	res, err := c.send(ctx, method, path, payload, token)
	if err != nil {
		return err
	}
	if res.StatusCode == http.StatusUnauthorized {
		drain(res)
		token, err = c.tokens.Refresh(ctx)
		if err != nil {
			return &RemoteError{StatusCode: http.StatusUnauthorized, Detail: err.Error()}
		}
		res, err = c.send(ctx, method, path, payload, token)
		if err != nil {
			return err
		}
	}
	defer res.Body.Close()

	if res.StatusCode < http.StatusOK || res.StatusCode >= http.StatusMultipleChoices {
		return decodeError(res)
	}
	if out != nil {
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return fmt.Errorf("Failed to decode backend response: %w", err)
		}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, payload interface{}, token string) (*http.Response, error) {
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.conn.Do(req)
}

func decodeError(res *http.Response) error {
	re := &RemoteError{StatusCode: res.StatusCode}
	var body struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err == nil {
		if body.Detail != "" {
			re.Detail = body.Detail
		} else {
			re.Detail = body.Message
		}
	}
	return re
}

// drain read the body to the end so the connection can be reused for the
// retried call
func drain(res *http.Response) {
	io.Copy(ioutil.Discard, res.Body)
	res.Body.Close()
}
