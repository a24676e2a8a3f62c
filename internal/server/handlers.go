package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/docstrack/docstrack/internal/aggregate"
	"github.com/docstrack/docstrack/internal/cachekey"
	"github.com/docstrack/docstrack/internal/edgecache"
	"github.com/docstrack/docstrack/internal/metrics"
	"github.com/docstrack/docstrack/internal/provider"
	"github.com/docstrack/docstrack/internal/query"
)

// writeCached writes a cache-managed payload with the shared-cache
// freshness directive and CORS header every /api response carries.
func writeCached(w http.ResponseWriter, resp edgecache.Response) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", fmt.Sprintf("public, s-maxage=%d", resp.MaxAge))
	w.Header().Set("Content-Type", resp.ContentType)
	w.Write(resp.Payload)
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a JSON error envelope.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeUpstreamJSONError propagates an upstream failure on a JSON
// endpoint: the upstream status code with the upstream body largely
// verbatim, or a bad-gateway envelope for transport-level failures.
func writeUpstreamJSONError(w http.ResponseWriter, err error) {
	metrics.UpstreamError()
	var fe *provider.FetchError
	if errors.As(err, &fe) {
		if len(fe.Body) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Content-Type", jsonContentType)
			w.WriteHeader(fe.StatusCode)
			w.Write(fe.Body)
			return
		}
		writeJSONError(w, fe.StatusCode, fe.Error())
		return
	}
	writeJSONError(w, http.StatusBadGateway, err.Error())
}

// searchEntry wraps one provider search as a cacheable computation.
func (s *Server) searchEntry(expr string, perPage int, token string) edgecache.ComputeFunc {
	return func(ctx context.Context) (edgecache.Entry, error) {
		res, err := s.provider.SearchMergedPRs(ctx, expr, perPage, token)
		if err != nil {
			return edgecache.Entry{}, err
		}
		return edgecache.Entry{Payload: res.Raw, ContentType: jsonContentType}, nil
	}
}

// repoSearchFunc builds the per-repository search used by fan-outs.
// Each repository's page goes through the shared edge cache under its
// own key, so a failed repository is retried on the next request while
// the successes stay cached.
func (s *Server) repoSearchFunc(since, filter, token string) aggregate.SearchFunc {
	return func(ctx context.Context, repo string, perPage int) ([]provider.PullRequest, error) {
		expr := query.ForRepo(repo, since, filter)
		key := cachekey.Key(cachekey.Request{
			Endpoint: "search",
			Repos:    []string{repo},
			Since:    since,
			Filter:   filter,
			PerPage:  perPage,
		})
		resp, err := s.cache.Fetch(ctx, key, s.searchPolicy, token != "", s.searchEntry(expr, perPage, token))
		if err != nil {
			return nil, err
		}
		return provider.DecodeItems(resp.Payload), nil
	}
}

// handleSearch serves the JSON query endpoint: one combined provider
// search over the requested scope, passed through byte for byte.
// The configured token takes precedence over ?token= here.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since := q.Get("since")
	if since == "" {
		writeJSONError(w, http.StatusBadRequest, "missing 'since' (YYYY-MM-DD)")
		return
	}

	repos := query.ParseRepos(q.Get("repos"))
	org := q.Get("org")
	if len(repos) == 0 && org == "" {
		org = s.cfg.GitHub.DefaultOrg
	}
	if len(repos) == 0 && org == "" {
		writeJSONError(w, http.StatusBadRequest, "missing repository scope")
		return
	}

	filter := q.Get("q")
	perPage := query.ClampPerPage(q.Get("per_page"), query.MaxPerPage)
	token := s.envFirstToken(r)

	var expr string
	switch {
	case len(repos) == 1:
		expr = query.ForRepo(repos[0], since, filter)
	case len(repos) > 1:
		expr = query.ForRepos(repos, since, filter)
	default:
		expr = query.ForOrg(org, since, filter)
	}

	key := cachekey.Key(cachekey.Request{
		Endpoint: "search",
		Org:      org,
		Repos:    repos,
		Since:    since,
		Filter:   filter,
		PerPage:  perPage,
	})
	resp, err := s.cache.Fetch(r.Context(), key, s.searchPolicy, token != "", s.searchEntry(expr, perPage, token))
	if err != nil {
		writeUpstreamJSONError(w, err)
		return
	}

	metrics.SearchServed()
	writeCached(w, resp)
}

// handleSearchMany serves the JSON fan-out endpoint: one search per
// repository, merged, with the per-repository error ledger exposed in
// the response. Partial failures still return 200.
func (s *Server) handleSearchMany(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	repos := query.ParseRepos(q.Get("repos"))
	if len(repos) == 0 {
		writeJSONError(w, http.StatusBadRequest, "missing 'repos' (owner/repo,owner/repo)")
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
		log.Printf("search-many: %d of %d repositories failed", len(res.Errors), len(repos))
	}

	metrics.SearchServed()
	w.Header().Set("Cache-Control", fmt.Sprintf("public, s-maxage=%d", s.cfg.Cache.HitSeconds))
	writeJSON(w, http.StatusOK, res)
}

// handleRepos serves repository name search within an organization.
func (s *Server) handleRepos(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	org := q.Get("org")
	if org == "" {
		org = s.cfg.GitHub.DefaultOrg
	}
	text := q.Get("q")
	if org == "" || text == "" {
		writeJSONError(w, http.StatusBadRequest, "missing 'org' or 'q'")
		return
	}
	perPage := query.ClampPerPage(q.Get("per_page"), 10)
	token := s.envFirstToken(r)

	key := cachekey.Key(cachekey.Request{
		Endpoint: "repos",
		Org:      org,
		Filter:   text,
		PerPage:  perPage,
	})
	resp, err := s.cache.Fetch(r.Context(), key, s.searchPolicy, false, func(ctx context.Context) (edgecache.Entry, error) {
		names, err := s.provider.SearchRepositories(ctx, org, text, perPage, token)
		if err != nil {
			return edgecache.Entry{}, err
		}
		type repoItem struct {
			FullName string `json:"full_name"`
		}
		items := make([]repoItem, len(names))
		for i, n := range names {
			items[i] = repoItem{FullName: n}
		}
		payload, err := json.Marshal(map[string]interface{}{"items": items})
		if err != nil {
			return edgecache.Entry{}, err
		}
		return edgecache.Entry{Payload: payload, ContentType: jsonContentType}, nil
	})
	if err != nil {
		writeUpstreamJSONError(w, err)
		return
	}

	writeCached(w, resp)
}

// handleFiles serves the changed-files list for one pull request,
// cached. A caller-supplied ?token= overrides the configured one on
// this endpoint.
func (s *Server) handleFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	repo := q.Get("repo")
	pr := q.Get("pr")
	if repo == "" || pr == "" {
		writeJSONError(w, http.StatusBadRequest, "Missing repo or pr")
		return
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid repo, want owner/name")
		return
	}
	number, err := strconv.Atoi(pr)
	if err != nil || number <= 0 {
		writeJSONError(w, http.StatusBadRequest, "invalid pr number")
		return
	}
	perPage := query.ClampPerPage(q.Get("per_page"), query.MaxPerPage)
	token := s.callerFirstToken(r)

	key := cachekey.Key(cachekey.Request{
		Endpoint: "files",
		Repos:    []string{repo},
		Extra:    pr,
		PerPage:  perPage,
	})
	resp, err := s.cache.Fetch(r.Context(), key, s.filesPolicy, false, func(ctx context.Context) (edgecache.Entry, error) {
		payload, err := s.provider.ListChangedFiles(ctx, owner, name, number, perPage, token)
		if err != nil {
			return edgecache.Entry{}, err
		}
		return edgecache.Entry{Payload: payload, ContentType: jsonContentType}, nil
	})
	if err != nil {
		metrics.UpstreamError()
		var fe *provider.FetchError
		if errors.As(err, &fe) {
			// The client falls back to a direct call on error; keep the
			// envelope small rather than echoing the upstream body.
			writeJSONError(w, fe.StatusCode, fe.Error())
			return
		}
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	metrics.FileListServed()
	writeCached(w, resp)
}

// handlePrefs serves the best-effort preference store. Failures to
// persist are logged, never surfaced: preferences are not allowed to
// be load-bearing.
func (s *Server) handlePrefs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.prefs.All())
	case http.MethodPut, http.MethodPost:
		var prefs map[string]string
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid preferences body")
			return
		}
		if err := s.prefs.Set(prefs); err != nil {
			log.Printf("prefs: persisting failed: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	case http.MethodDelete:
		if err := s.prefs.Clear(); err != nil {
			log.Printf("prefs: clearing failed: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		w.Header().Set("Allow", "GET, PUT, POST, DELETE")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
