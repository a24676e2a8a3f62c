package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/docstrack/docstrack/internal/aggregate"
	"github.com/docstrack/docstrack/internal/cachekey"
	"github.com/docstrack/docstrack/internal/crawl"
	"github.com/docstrack/docstrack/internal/edgecache"
	"github.com/docstrack/docstrack/internal/feed"
	"github.com/docstrack/docstrack/internal/metrics"
	"github.com/docstrack/docstrack/internal/provider"
	"github.com/docstrack/docstrack/internal/query"
)

// handleRSS serves the single-repository merged-PR feed. This is a
// single-target request: an upstream failure propagates with the
// upstream status code. The configured token takes precedence over
// ?token=.
func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	repo := q.Get("repo")
	if repo == "" {
		http.Error(w, "Missing ?repo=owner/repo", http.StatusBadRequest)
		return
	}
	since := q.Get("since")
	if since == "" {
		since = query.SinceDays(q.Get("days"), s.now())
	}
	filter := q.Get("q")
	token := s.envFirstToken(r)
	base := s.publicBase(r)

	expr := query.ForRepo(repo, since, filter)
	key := cachekey.Key(cachekey.Request{
		Endpoint: "rss",
		Repos:    []string{repo},
		Since:    since,
		Filter:   filter,
	})
	resp, err := s.cache.Fetch(r.Context(), key, s.searchPolicy, token != "", func(ctx context.Context) (edgecache.Entry, error) {
		res, err := s.provider.SearchMergedPRs(ctx, expr, query.MaxPerPage, token)
		if err != nil {
			return edgecache.Entry{}, err
		}
		ch := feed.Channel{
			Title:       fmt.Sprintf("Docs Change Tracker - %s", repo),
			Link:        base + "/?repo=" + url.QueryEscape(repo),
			Description: fmt.Sprintf("Merged PRs feed (files tab) for %s since %s", repo, since),
			TTL:         s.cfg.Cache.HitSeconds,
		}
		doc := feed.Render(ch, feed.PullRequestItems(res.Items), s.now())
		return edgecache.Entry{Payload: doc, ContentType: rssContentType}, nil
	})
	if err != nil {
		metrics.UpstreamError()
		var fe *provider.FetchError
		if errors.As(err, &fe) {
			http.Error(w, fmt.Sprintf("GitHub error %d: %s", fe.StatusCode, fe.Body), fe.StatusCode)
			return
		}
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}

	metrics.FeedServed()
	writeCached(w, resp)
}

// handleRSSMany serves the merged multi-repository feed via the
// fan-out aggregator. Failed repositories are omitted from the feed
// and reported in the X-Feed-Errors header; the request itself always
// succeeds.
func (s *Server) handleRSSMany(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	repos := query.ParseRepos(q.Get("repos"))
	if len(repos) == 0 {
		http.Error(w, "Missing ?repos=a/b,c/d", http.StatusBadRequest)
		return
	}
	since := q.Get("since")
	if since == "" {
		since = query.SinceDays(q.Get("days"), s.now())
	}
	filter := q.Get("q")
	token := s.envFirstToken(r)

	res := aggregate.New(s.repoSearchFunc(since, filter, token)).Aggregate(r.Context(), repos)
	if len(res.Errors) > 0 {
		metrics.PartialFailure()
		ledger := make([]string, len(res.Errors))
		for i, re := range res.Errors {
			ledger[i] = re.Repo + ": " + re.Message
		}
		w.Header().Set("X-Feed-Errors", strings.Join(ledger, "; "))
		log.Printf("rss-many: %d of %d repositories failed: %s", len(res.Errors), len(repos), strings.Join(ledger, "; "))
	}

	ch := feed.Channel{
		Title:       "Docs Change Tracker - Combined Repos",
		Link:        s.publicBase(r),
		Description: fmt.Sprintf("Merged PRs across: %s (since %s)", strings.Join(repos, ", "), since),
		TTL:         s.cfg.Cache.HitSeconds,
	}
	doc := feed.Render(ch, feed.PullRequestItems(res.Items), s.now())

	metrics.FeedServed()
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, s-maxage=%d", s.cfg.Cache.HitSeconds))
	w.Header().Set("Content-Type", rssContentType)
	w.Write(doc)
}

// handleRSSPages serves a feed built from fetched web pages: the base
// page plus, at depth 1, same-path links found on it. Individual page
// failures drop the page from the feed.
func (s *Server) handleRSSPages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	base := q.Get("base")
	if base == "" {
		http.Error(w, "Missing ?base=", http.StatusBadRequest)
		return
	}
	parsed, err := url.ParseRequestURI(base)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		http.Error(w, "invalid ?base=, want an http(s) URL", http.StatusBadRequest)
		return
	}

	depth, _ := strconv.Atoi(q.Get("depth"))
	limit, err := strconv.Atoi(q.Get("limit"))
	if err != nil || limit <= 0 {
		limit = crawl.DefaultLimit
	}
	if limit > s.cfg.Crawl.PageLimit {
		limit = s.cfg.Crawl.PageLimit
	}

	pages := s.crawler.Crawl(r.Context(), base, depth > 0, limit, q.Get("ua"))
	metrics.PageCrawled(len(pages))

	items := make([]feed.Item, len(pages))
	for i, p := range pages {
		items[i] = feed.Item{
			Title:       p.Title,
			Link:        p.URL,
			GUID:        p.URL,
			PermaLink:   true,
			Published:   p.LastModified,
			Description: feed.Escape(p.Title),
		}
	}

	ch := feed.Channel{
		Title:       "Docs Change Tracker - Pages Feed",
		Link:        base,
		Description: "Page changes feed from " + base,
		TTL:         s.cfg.Cache.HitSeconds,
	}
	doc := feed.Render(ch, items, s.now())

	metrics.FeedServed()
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, s-maxage=%d", s.cfg.Cache.HitSeconds))
	w.Header().Set("Content-Type", rssContentType)
	w.Write(doc)
}
