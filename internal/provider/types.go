package provider

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PullRequest is one merged pull request as returned by the provider's
// issue search. Fields mirror the upstream JSON shape; every field is
// optional and defaults are applied at this boundary, never deeper in.
type PullRequest struct {
	ID            int64  `json:"id"`
	Number        int    `json:"number"`
	Title         string `json:"title"`
	Body          string `json:"body,omitempty"`
	HTMLURL       string `json:"html_url"`
	RepositoryURL string `json:"repository_url"`
	ClosedAt      string `json:"closed_at,omitempty"`
	MergedAt      string `json:"merged_at,omitempty"`
	UpdatedAt     string `json:"updated_at,omitempty"`
	User          *User  `json:"user,omitempty"`
}

// User is the author of a pull request.
type User struct {
	Login string `json:"login"`
}

// Author returns the author's login, or "unknown" when absent.
func (p *PullRequest) Author() string {
	if p.User == nil || p.User.Login == "" {
		return "unknown"
	}
	return p.User.Login
}

// RepoFullName derives "owner/name" from the canonical repository URL
// attached to the item. Returns "" when the URL does not carry both
// segments.
func (p *PullRequest) RepoFullName() string {
	parts := strings.Split(strings.TrimSuffix(p.RepositoryURL, "/"), "/")
	if len(parts) < 2 {
		return ""
	}
	owner, name := parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return ""
	}
	return owner + "/" + name
}

// EffectiveTime returns the item's event time: the first non-empty of
// the closed, merged, and updated timestamps. An absent or unparseable
// timestamp yields the zero time so the item sorts oldest rather than
// being dropped.
func (p *PullRequest) EffectiveTime() time.Time {
	var raw string
	switch {
	case p.ClosedAt != "":
		raw = p.ClosedAt
	case p.MergedAt != "":
		raw = p.MergedAt
	case p.UpdatedAt != "":
		raw = p.UpdatedAt
	default:
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SearchResult is one decoded search response. Raw holds the upstream
// payload bytes for byte-exact passthrough on JSON endpoints.
type SearchResult struct {
	Items []PullRequest
	Raw   []byte
}

// DecodeItems extracts the items array from a search envelope. An
// absent, malformed, or non-array items field decodes as empty.
func DecodeItems(raw []byte) []PullRequest {
	var envelope struct {
		Items []PullRequest `json:"items"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	return envelope.Items
}

// FetchError is a non-2xx response from the provider. The status code
// and body are preserved so callers can propagate them verbatim.
type FetchError struct {
	StatusCode int
	Body       []byte
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("GitHub %d", e.StatusCode)
}

// RateLimited reports whether the response indicates rate limiting.
func (e *FetchError) RateLimited() bool {
	return e.StatusCode == 403 || e.StatusCode == 429
}

// NotFound reports whether the target does not exist.
func (e *FetchError) NotFound() bool {
	return e.StatusCode == 404
}

// Transient reports whether the failure is worth a later retry.
func (e *FetchError) Transient() bool {
	return e.StatusCode >= 500
}
