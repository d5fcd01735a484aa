// Package remote provides an HTTP client for the reward API. It satisfies
// ledger.Backend, so a ledger client can run against a remote server the
// same way it runs against a local store.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/akinrinmade/jara-daily/internal/api"
	"github.com/akinrinmade/jara-daily/internal/store"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 5 * time.Second

// Client talks to the reward API as one signed-in user.
type Client struct {
	base  string
	token string
	http  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New creates a client for baseURL authenticating with token.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid remote url %q", baseURL)
	}
	c := &Client{
		base:  strings.TrimRight(baseURL, "/"),
		token: token,
		http:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// StatusError is a non-2xx response that maps to no known sentinel.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("status %d: %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("status %d", e.StatusCode)
}

// EarnCoins calls POST /rpc/earn_coins.
func (c *Client) EarnCoins(ctx context.Context, req store.EarnRequest) (store.EarnResult, error) {
	var res store.EarnResult
	err := c.do(ctx, http.MethodPost, "/rpc/earn_coins", req.IdempotencyKey, req, &res)
	return res, err
}

// AddXP calls POST /rpc/add_xp.
func (c *Client) AddXP(ctx context.Context, req store.XPRequest) (store.XPResult, error) {
	var res store.XPResult
	err := c.do(ctx, http.MethodPost, "/rpc/add_xp", req.IdempotencyKey, req, &res)
	return res, err
}

// GetProfile calls GET /profiles/{id}.
func (c *Client) GetProfile(ctx context.Context, userID string) (store.Profile, error) {
	var p store.Profile
	err := c.do(ctx, http.MethodGet, "/profiles/"+url.PathEscape(userID), "", nil, &p)
	return p, err
}

// SetSavedPosts calls PATCH /profiles/{id} with the full list.
func (c *Client) SetSavedPosts(ctx context.Context, userID string, postIDs []string) error {
	if postIDs == nil {
		postIDs = []string{}
	}
	body := api.ProfilePatch{SavedPosts: &postIDs}
	return c.do(ctx, http.MethodPatch, "/profiles/"+url.PathEscape(userID), "", body, nil)
}

// IncrementPostsRead calls POST /profiles/{id}/posts_read.
func (c *Client) IncrementPostsRead(ctx context.Context, userID string) (int, error) {
	var res api.PostsReadResponse
	err := c.do(ctx, http.MethodPost, "/profiles/"+url.PathEscape(userID)+"/posts_read", "", nil, &res)
	return res.PostsRead, err
}

// CoinPool calls GET /coin_pool.
func (c *Client) CoinPool(ctx context.Context) (store.CoinPool, error) {
	var p store.CoinPool
	err := c.do(ctx, http.MethodGet, "/coin_pool", "", nil, &p)
	return p, err
}

// Leaderboard calls GET /leaderboard.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]store.LeaderboardEntry, error) {
	path := "/leaderboard"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}
	var entries []store.LeaderboardEntry
	err := c.do(ctx, http.MethodGet, path, "", nil, &entries)
	return entries, err
}

func (c *Client) do(ctx context.Context, method, path, idemKey string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if idemKey != "" {
		req.Header.Set(api.IdempotencyHeader, idemKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %w", method, path, decodeError(resp.StatusCode, data))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}

// decodeError maps an error body back to a store sentinel when possible.
func decodeError(status int, data []byte) error {
	var body api.ErrorBody
	_ = json.Unmarshal(data, &body)

	var sentinel error
	switch body.Error.Code {
	case api.CodePoolExhausted:
		sentinel = store.ErrPoolExhausted
	case api.CodePoolNotInitialized:
		sentinel = store.ErrPoolNotInitialized
	case api.CodeProfileNotFound:
		sentinel = store.ErrProfileNotFound
	case api.CodeInvalidGrant:
		sentinel = store.ErrInvalidGrant
	}
	se := &StatusError{StatusCode: status, Code: body.Error.Code, Message: body.Error.Message}
	if sentinel != nil {
		return errors.Join(sentinel, se)
	}
	return se
}
