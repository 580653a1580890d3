// Package client talks to a joe-marks server over its JSON API and change
// stream. Client satisfies bookmarks.Backend; TokenIdentity satisfies
// bookmarks.IdentityProvider.
package client

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
	"sync"
	"time"

	"github.com/joestump/joe-marks/internal/bookmarks"
	"github.com/joestump/joe-marks/internal/logger"
)

const apiPrefix = "/api/v1"

// Options configures a Client.
type Options struct {
	// Timeout bounds each request. Zero means 10s. It does not apply to
	// change streams.
	Timeout    time.Duration
	HTTPClient *http.Client
	Log        logger.Logger
}

// Client is an API client authenticated with a personal access token.
type Client struct {
	baseURL string
	http    *http.Client
	log     logger.Logger

	mu    sync.RWMutex
	token string
}

var _ bookmarks.Backend = (*Client)(nil)

// New returns a Client for the server at baseURL.
func New(baseURL, token string, opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    opts.HTTPClient,
		log:     opts.Log,
		token:   token,
	}
}

// SetToken replaces the bearer token used for later requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the server URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

type listResponse struct {
	Bookmarks []bookmarks.Bookmark `json:"bookmarks"`
}

// Query returns the caller's bookmarks, newest first. The server scopes the
// list to the token's owner; ownerID only guards against a token that
// belongs to someone else.
func (c *Client) Query(ctx context.Context, ownerID string) ([]bookmarks.Bookmark, error) {
	var resp listResponse
	if err := c.do(ctx, c.currentToken(), http.MethodGet, "/bookmarks", nil, &resp); err != nil {
		return nil, err
	}
	items := resp.Bookmarks[:0]
	for _, b := range resp.Bookmarks {
		if ownerID == "" || b.OwnerID == ownerID {
			items = append(items, b)
		}
	}
	return items, nil
}

type createRequest struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Insert creates a bookmark. The server assigns id, owner and created_at.
func (c *Client) Insert(ctx context.Context, b bookmarks.NewBookmark) (*bookmarks.Bookmark, error) {
	var out bookmarks.Bookmark
	if err := c.do(ctx, c.currentToken(), http.MethodPost, "/bookmarks", createRequest{Title: b.Title, URL: b.URL}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a bookmark. A 404 means it is already gone and is not an
// error.
func (c *Client) Delete(ctx context.Context, id string) error {
	err := c.do(ctx, c.currentToken(), http.MethodDelete, "/bookmarks/"+url.PathEscape(id), nil, nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// Me resolves the identity that owns token.
func (c *Client) Me(ctx context.Context, token string) (*bookmarks.Identity, error) {
	var ident bookmarks.Identity
	if err := c.do(ctx, token, http.MethodGet, "/me", nil, &ident); err != nil {
		return nil, err
	}
	return &ident, nil
}

func (c *Client) do(ctx context.Context, token, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s: %w", method, path, err)
	}
	return nil
}
