// Package server wires the HTTP surface of the tracker: the JSON and
// RSS aggregation endpoints, the changed-files passthrough, the pages
// feed, and the health/metrics plumbing.
package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/docstrack/docstrack/internal/config"
	"github.com/docstrack/docstrack/internal/crawl"
	"github.com/docstrack/docstrack/internal/edgecache"
	"github.com/docstrack/docstrack/internal/metrics"
	"github.com/docstrack/docstrack/internal/prefstore"
	"github.com/docstrack/docstrack/internal/provider"
	"github.com/docstrack/docstrack/internal/provider/github"
)

const (
	jsonContentType = "application/json; charset=utf-8"
	rssContentType  = "application/rss+xml; charset=utf-8"
)

// HealthResponse represents the health check response structure.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]interface{} `json:"checks"`
}

// Server is the HTTP server for the tracker.
type Server struct {
	cfg      *config.Config
	mux      *http.ServeMux
	provider provider.Provider
	cache    *edgecache.Manager
	crawler  *crawl.Crawler
	prefs    *prefstore.Store
	ready    chan struct{} // closed when server is ready to accept connections
	now      func() time.Time

	searchPolicy edgecache.Policy
	filesPolicy  edgecache.Policy

	httpServer   *httpServer
	httpServerMu sync.RWMutex // protects httpServer pointer
}

// New creates a new Server with the given config, wired to the real
// GitHub provider and the shared in-memory edge cache.
func New(cfg *config.Config) *Server {
	p := github.New(cfg.GitHub.UserAgent, github.WithBaseURL(cfg.GitHub.APIBaseURL))
	return NewWith(cfg, p, edgecache.NewStore())
}

// NewWith creates a new Server with an injected provider and cache
// store. This allows dependency injection for testing.
func NewWith(cfg *config.Config, p provider.Provider, store edgecache.Store) *Server {
	s := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		provider: p,
		cache:    edgecache.NewManager(store),
		crawler:  crawl.New(cfg.Crawl.UserAgent),
		prefs:    prefstore.New(cfg.Prefs.Path),
		ready:    make(chan struct{}),
		now:      time.Now,
		searchPolicy: edgecache.Policy{
			TTL:         time.Duration(cfg.Cache.FreshSeconds) * time.Second,
			FreshMaxAge: cfg.Cache.FreshSeconds,
			HitMaxAge:   cfg.Cache.HitSeconds,
		},
		filesPolicy: edgecache.Policy{
			TTL:         time.Duration(cfg.Cache.FilesSeconds) * time.Second,
			FreshMaxAge: cfg.Cache.FilesSeconds,
			HitMaxAge:   cfg.Cache.FilesSeconds,
		},
	}
	s.routes()
	return s
}

// Ready returns a channel that is closed when the server is ready to
// accept connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Cache exposes the cache manager so tests can wait for background
// refreshes.
func (s *Server) Cache() *edgecache.Manager {
	return s.cache
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// routes sets up the HTTP routes.
func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/metrics", s.handleMetrics)

	s.mux.HandleFunc("/api/search", s.handleSearch)
	s.mux.HandleFunc("/api/search-many", s.handleSearchMany)
	s.mux.HandleFunc("/api/repos", s.handleRepos)
	s.mux.HandleFunc("/api/files", s.handleFiles)
	s.mux.HandleFunc("/api/rss", s.handleRSS)
	s.mux.HandleFunc("/api/rss-many", s.handleRSSMany)
	s.mux.HandleFunc("/api/rss-pages", s.handleRSSPages)
	s.mux.HandleFunc("/api/prefs", s.handlePrefs)
}

// handleHealth responds with server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]interface{}{
		"github_token_configured": s.cfg.GitHub.Token != "",
		"default_org":             s.cfg.GitHub.DefaultOrg,
	}

	health := HealthResponse{
		Status: "ok",
		Checks: checks,
	}

	w.Header().Set("Content-Type", jsonContentType)
	json.NewEncoder(w).Encode(health)
}

// handleMetrics responds with current operational metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	m := metrics.Get()

	w.Header().Set("Content-Type", jsonContentType)
	json.NewEncoder(w).Encode(m)
}

// envFirstToken resolves the bearer token for endpoints where the
// configured credential takes precedence over a caller-supplied one.
func (s *Server) envFirstToken(r *http.Request) string {
	if s.cfg.GitHub.Token != "" {
		return s.cfg.GitHub.Token
	}
	return r.URL.Query().Get("token")
}

// callerFirstToken resolves the bearer token for endpoints where a
// caller-supplied credential overrides the configured one.
func (s *Server) callerFirstToken(r *http.Request) string {
	if t := r.URL.Query().Get("token"); t != "" {
		return t
	}
	return s.cfg.GitHub.Token
}

// publicBase returns the base URL used in feed channel links.
func (s *Server) publicBase(r *http.Request) string {
	if s.cfg.Server.PublicURL != "" {
		return s.cfg.Server.PublicURL
	}
	return "http://" + r.Host
}
