// Package github implements provider.Provider against the GitHub REST
// API. The issue search goes through a raw HTTP call so the upstream
// payload can be cached and passed through byte for byte; the changed
// files and repository-name lookups use the typed go-github client.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/docstrack/docstrack/internal/provider"
	gogithub "github.com/google/go-github/v60/github"
	"golang.org/x/oauth2"
)

const (
	defaultBaseURL = "https://api.github.com"
	acceptHeader   = "application/vnd.github+json"

	// maxResponseBytes bounds how much of an upstream body is read.
	maxResponseBytes = 8 << 20
)

// Client talks to the GitHub API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithBaseURL points the client at a custom API root (for testing).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// New creates a GitHub client. The search fetcher deliberately does
// not retry; retry policy belongs to callers.
func New(userAgent string, opts ...Option) *Client {
	c := &Client{
		baseURL:   defaultBaseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SearchMergedPRs performs one issue-search call, sorted by update time
// descending. A non-2xx response comes back as *provider.FetchError
// with the upstream status and body preserved.
func (c *Client) SearchMergedPRs(ctx context.Context, query string, perPage int, token string) (*provider.SearchResult, error) {
	u, err := url.Parse(c.baseURL + "/search/issues")
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("sort", "updated")
	params.Set("order", "desc")
	params.Set("per_page", strconv.Itoa(perPage))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building search request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling search API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &provider.FetchError{StatusCode: resp.StatusCode, Body: body}
	}

	return &provider.SearchResult{
		Items: provider.DecodeItems(body),
		Raw:   body,
	}, nil
}

// ListChangedFiles returns the file-change-list JSON for one pull
// request, re-marshalled from the typed client so the shape matches
// the provider's own.
func (c *Client) ListChangedFiles(ctx context.Context, owner, repo string, number, perPage int, token string) ([]byte, error) {
	gc := c.apiClient(ctx, token)
	files, resp, err := gc.PullRequests.ListFiles(ctx, owner, repo, number, &gogithub.ListOptions{PerPage: perPage})
	if err != nil {
		if resp != nil {
			return nil, &provider.FetchError{StatusCode: resp.StatusCode, Body: []byte(err.Error())}
		}
		return nil, fmt.Errorf("listing changed files: %w", err)
	}

	b, err := json.Marshal(files)
	if err != nil {
		return nil, fmt.Errorf("encoding changed files: %w", err)
	}
	return b, nil
}

// SearchRepositories searches repository names within an org.
func (c *Client) SearchRepositories(ctx context.Context, org, text string, perPage int, token string) ([]string, error) {
	gc := c.apiClient(ctx, token)
	q := fmt.Sprintf("org:%s %s in:name", org, text)
	res, resp, err := gc.Search.Repositories(ctx, q, &gogithub.SearchOptions{
		ListOptions: gogithub.ListOptions{PerPage: perPage},
	})
	if err != nil {
		if resp != nil {
			return nil, &provider.FetchError{StatusCode: resp.StatusCode, Body: []byte(err.Error())}
		}
		return nil, fmt.Errorf("searching repositories: %w", err)
	}

	names := make([]string, 0, len(res.Repositories))
	for _, r := range res.Repositories {
		names = append(names, r.GetFullName())
	}
	return names, nil
}

// apiClient builds a typed client for one call, authenticated when a
// token is present.
func (c *Client) apiClient(ctx context.Context, token string) *gogithub.Client {
	hc := c.httpClient
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(ctx, ts)
	}
	gc := gogithub.NewClient(hc)
	gc.UserAgent = c.userAgent
	if c.baseURL != defaultBaseURL {
		gc.BaseURL, _ = gc.BaseURL.Parse(c.baseURL + "/")
	}
	return gc
}
