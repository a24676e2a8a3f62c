package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/docstrack/docstrack/internal/provider"
)

func TestRSS_MissingRepo(t *testing.T) {
	srv := newTestServer(t, nil, &fakeProvider{})

	rec := get(srv, "/api/rss")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "repo=owner/repo") {
		t.Errorf("body = %q, want a usage hint", rec.Body.String())
	}
}

func TestRSS_RendersFeed(t *testing.T) {
	p := &fakeProvider{search: func(ctx context.Context, q string, perPage int, token string) (*provider.SearchResult, error) {
		if perPage != 100 {
			t.Errorf("perPage = %d, want 100", perPage)
		}
		return &provider.SearchResult{Items: []provider.PullRequest{{
			ID:       1,
			Title:    "Update overview",
			HTMLURL:  "https://github.com/org/a/pull/12",
			MergedAt: "2024-03-10T08:30:00Z",
			User:     &provider.User{Login: "octocat"},
		}}}, nil
	}}
	srv := newTestServer(t, nil, p)

	rec := get(srv, "/api/rss?repo=org/a&since=2024-03-01")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != rssContentType {
		t.Errorf("Content-Type = %q", got)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<title>Docs Change Tracker - org/a</title>",
		"<title>Update overview</title>",
		"<link>https://github.com/org/a/pull/12/files</link>",
		`<guid isPermaLink="false">1</guid>`,
		"octocat",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("feed missing %q:\n%s", want, body)
		}
	}
}

func TestRSS_ChannelLinkUsesPublicURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.PublicURL = "https://tracker.example.com"
	srv := newTestServer(t, cfg, &fakeProvider{})

	rec := get(srv, "/api/rss?repo=org/a&since=2024-03-01")
	want := "https://tracker.example.com/?repo=" + url.QueryEscape("org/a")
	if !strings.Contains(rec.Body.String(), "<link>"+want+"</link>") {
		t.Errorf("feed missing channel link %q:\n%s", want, rec.Body.String())
	}
}

func TestRSS_UpstreamErrorStatus(t *testing.T) {
	p := &fakeProvider{search: func(ctx context.Context, q string, perPage int, token string) (*provider.SearchResult, error) {
		return nil, &provider.FetchError{StatusCode: 403, Body: []byte("rate limited")}
	}}
	srv := newTestServer(t, nil, p)

	rec := get(srv, "/api/rss?repo=org/a&since=2024-03-01")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "GitHub error 403") {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestRSSMany_PartialFailureHeader(t *testing.T) {
	p := &fakeProvider{search: func(ctx context.Context, q string, perPage int, token string) (*provider.SearchResult, error) {
		if strings.Contains(q, "repo:org/b") {
			return nil, &provider.FetchError{StatusCode: 503}
		}
		return &provider.SearchResult{Raw: []byte(`{"items":[
			{"id":1,"title":"keep","closed_at":"2024-03-01T10:00:00Z","repository_url":"https://api.github.com/repos/org/a"}]}`)}, nil
	}}
	srv := newTestServer(t, nil, p)

	rec := get(srv, "/api/rss-many?repos=org/a,org/b&since=2024-03-01")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite the failed repository", rec.Code)
	}
	if got := rec.Header().Get("X-Feed-Errors"); !strings.Contains(got, "org/b: GitHub 503") {
		t.Errorf("X-Feed-Errors = %q", got)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "<title>Docs Change Tracker - Combined Repos</title>") {
		t.Errorf("feed missing combined channel title:\n%s", body)
	}
	if !strings.Contains(body, "<title>keep</title>") {
		t.Errorf("feed missing surviving item:\n%s", body)
	}
}

func TestRSSMany_MissingRepos(t *testing.T) {
	srv := newTestServer(t, nil, &fakeProvider{})

	if rec := get(srv, "/api/rss-many"); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRSSPages_InvalidBase(t *testing.T) {
	srv := newTestServer(t, nil, &fakeProvider{})

	for _, target := range []string{
		"/api/rss-pages",
		"/api/rss-pages?base=ftp://example.com/docs",
		"/api/rss-pages?base=notaurl",
	} {
		if rec := get(srv, target); rec.Code != http.StatusBadRequest {
			t.Errorf("GET %s status = %d, want 400", target, rec.Code)
		}
	}
}

func TestRSSPages_RendersCrawledPages(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/docs/":
			w.Write([]byte(`<html><head><title>Home</title></head><body><a href="/docs/a">a</a></body></html>`))
		case "/docs/a":
			w.Write([]byte(`<html><head><title>Page A</title></head></html>`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer site.Close()

	srv := newTestServer(t, nil, &fakeProvider{})

	rec := get(srv, "/api/rss-pages?base="+url.QueryEscape(site.URL+"/docs/")+"&depth=1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Content-Type"); got != rssContentType {
		t.Errorf("Content-Type = %q", got)
	}
	body := rec.Body.String()
	for _, want := range []string{
		"<title>Docs Change Tracker - Pages Feed</title>",
		"<title>Home</title>",
		"<title>Page A</title>",
		`<guid isPermaLink="true">` + site.URL + "/docs/a</guid>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("feed missing %q:\n%s", want, body)
		}
	}
}

func TestRSSPages_DepthZeroFetchesBaseOnly(t *testing.T) {
	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head><title>Home</title></head><body><a href="/a">a</a></body></html>`))
	}))
	defer site.Close()

	srv := newTestServer(t, nil, &fakeProvider{})

	rec := get(srv, "/api/rss-pages?base="+url.QueryEscape(site.URL+"/"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.Count(rec.Body.String(), "<item>"); got != 1 {
		t.Errorf("items = %d, want just the base page", got)
	}
}
