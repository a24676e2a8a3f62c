// Package crawl fetches the bounded page set behind the pages feed.
// It is deliberately not a general crawler: expansion is one hop, from
// the base page only, restricted to links under the base path.
package crawl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	// MaxPages is the hard cap on pages in one crawl.
	MaxPages = 200

	// DefaultLimit applies when the caller supplies no limit.
	DefaultLimit = 50

	// maxPageBytes bounds how much of a page body is read.
	maxPageBytes = 2 << 20
)

// Page is one fetched page.
type Page struct {
	URL          string
	Title        string
	LastModified time.Time
}

// Crawler fetches pages for the pages feed. A page fetch failure skips
// that page; it never aborts the crawl.
type Crawler struct {
	client    *retryablehttp.Client
	userAgent string
	now       func() time.Time
}

// New creates a Crawler. Page fetches retry transient failures a
// couple of times; contrast with the GitHub fetcher, which must not
// retry.
func New(userAgent string) *Crawler {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.Logger = nil
	client.HTTPClient.Timeout = 20 * time.Second
	return &Crawler{
		client:    client,
		userAgent: userAgent,
		now:       time.Now,
	}
}

var linkPattern = regexp.MustCompile(`(?i)<a\s[^>]*href=["']([^"']+)["']`)

// Crawl fetches base and, when expand is set, same-path links found on
// the base page, up to limit pages total. ua overrides the configured
// User-Agent when non-empty. The base page's own fetch failure yields
// an empty result, not an error.
func (c *Crawler) Crawl(ctx context.Context, base string, expand bool, limit int, ua string) []Page {
	if limit <= 0 || limit > MaxPages {
		limit = DefaultLimit
	}

	var pages []Page
	seen := map[string]bool{base: true}

	html, page, err := c.fetchPage(ctx, base, ua)
	if err != nil {
		return pages
	}
	pages = append(pages, page)
	if !expand || len(pages) >= limit {
		return pages
	}

	for _, link := range sameSiteLinks(html, base, limit*2) {
		if len(pages) >= limit {
			break
		}
		if seen[link] {
			continue
		}
		seen[link] = true
		if _, p, err := c.fetchPage(ctx, link, ua); err == nil {
			pages = append(pages, p)
		}
	}
	return pages
}

// fetchPage retrieves one page, returning its raw HTML alongside the
// feed-facing metadata.
func (c *Crawler) fetchPage(ctx context.Context, pageURL, ua string) (string, Page, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", Page{}, fmt.Errorf("building page request: %w", err)
	}
	if ua == "" {
		ua = c.userAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", Page{}, fmt.Errorf("fetching %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return "", Page{}, fmt.Errorf("HTTP %d for %s", resp.StatusCode, pageURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return "", Page{}, fmt.Errorf("reading %s: %w", pageURL, err)
	}

	html := string(body)
	title := pageTitle(html)
	if title == "" {
		title = pageURL
	}
	lastModified := c.now()
	if v := resp.Header.Get("Last-Modified"); v != "" {
		if t, err := http.ParseTime(v); err == nil {
			lastModified = t
		}
	}
	return html, Page{URL: pageURL, Title: title, LastModified: lastModified}, nil
}

// SamePath reports whether raw resolves to the same origin as base
// with the base path as a prefix of its path.
func SamePath(raw, base string) bool {
	b, err := url.Parse(base)
	if err != nil {
		return false
	}
	a, err := b.Parse(raw)
	if err != nil {
		return false
	}
	return a.Scheme == b.Scheme && a.Host == b.Host && strings.HasPrefix(a.Path, b.Path)
}

// sameSiteLinks extracts up to max same-path candidate links from the
// base page's HTML, skipping fragment links.
func sameSiteLinks(html, base string, max int) []string {
	b, err := url.Parse(base)
	if err != nil {
		return nil
	}
	var out []string
	for _, m := range linkPattern.FindAllStringSubmatch(html, -1) {
		if len(out) >= max {
			break
		}
		ref, err := b.Parse(m[1])
		if err != nil {
			continue
		}
		if ref.Fragment != "" {
			continue
		}
		abs := ref.String()
		if !SamePath(abs, base) {
			continue
		}
		out = append(out, abs)
	}
	return out
}

// pageTitle extracts the text of the first <title> element, the way a
// feed reader would label the page. Returns "" when absent.
func pageTitle(html string) string {
	start := strings.Index(html, "<title>")
	if start == -1 {
		return ""
	}
	rest := html[start+len("<title>"):]
	end := strings.Index(rest, "</title>")
	if end == -1 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}
