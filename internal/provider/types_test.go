package provider

import (
	"testing"
	"time"
)

func TestEffectiveTime_Precedence(t *testing.T) {
	closed := "2024-03-01T10:00:00Z"
	merged := "2024-03-01T09:00:00Z"
	updated := "2024-03-02T08:00:00Z"

	tests := []struct {
		name string
		pr   PullRequest
		want string
	}{
		{"closed wins", PullRequest{ClosedAt: closed, MergedAt: merged, UpdatedAt: updated}, closed},
		{"merged next", PullRequest{MergedAt: merged, UpdatedAt: updated}, merged},
		{"updated last", PullRequest{UpdatedAt: updated}, updated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, _ := time.Parse(time.RFC3339, tt.want)
			if got := tt.pr.EffectiveTime(); !got.Equal(want) {
				t.Errorf("EffectiveTime = %v, want %v", got, want)
			}
		})
	}
}

func TestEffectiveTime_Unparseable(t *testing.T) {
	pr := PullRequest{ClosedAt: "not-a-date", UpdatedAt: "2024-03-02T08:00:00Z"}
	// The first non-empty timestamp is chosen even when unparseable;
	// it degrades to the zero time rather than falling through.
	if got := pr.EffectiveTime(); !got.IsZero() {
		t.Errorf("EffectiveTime = %v, want zero", got)
	}
}

func TestEffectiveTime_AllAbsent(t *testing.T) {
	var pr PullRequest
	if got := pr.EffectiveTime(); !got.IsZero() {
		t.Errorf("EffectiveTime = %v, want zero", got)
	}
}

func TestRepoFullName(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://api.github.com/repos/MicrosoftDocs/azure-docs", "MicrosoftDocs/azure-docs"},
		{"https://api.github.com/repos/MicrosoftDocs/azure-docs/", "MicrosoftDocs/azure-docs"},
		{"", ""},
		{"nonsense", ""},
	}
	for _, tt := range tests {
		pr := PullRequest{RepositoryURL: tt.url}
		if got := pr.RepoFullName(); got != tt.want {
			t.Errorf("RepoFullName(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestAuthor(t *testing.T) {
	if got := (&PullRequest{User: &User{Login: "octocat"}}).Author(); got != "octocat" {
		t.Errorf("Author = %q, want octocat", got)
	}
	if got := (&PullRequest{}).Author(); got != "unknown" {
		t.Errorf("Author = %q, want unknown", got)
	}
}

func TestDecodeItems(t *testing.T) {
	items := DecodeItems([]byte(`{"total_count":1,"items":[{"id":7,"number":12,"title":"fix"}]}`))
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}
	if items[0].ID != 7 || items[0].Number != 12 || items[0].Title != "fix" {
		t.Errorf("decoded item = %+v", items[0])
	}
}

func TestDecodeItems_Tolerant(t *testing.T) {
	cases := [][]byte{
		[]byte(`{}`),
		[]byte(`{"items": null}`),
		[]byte(`{"items": "nope"}`),
		[]byte(`not json`),
		nil,
	}
	for _, raw := range cases {
		if items := DecodeItems(raw); len(items) != 0 {
			t.Errorf("DecodeItems(%q) = %v, want empty", raw, items)
		}
	}
}

func TestFetchError(t *testing.T) {
	e := &FetchError{StatusCode: 503, Body: []byte("upstream sad")}
	if got := e.Error(); got != "GitHub 503" {
		t.Errorf("Error() = %q", got)
	}
	if !e.Transient() {
		t.Error("503 should be transient")
	}
	if (&FetchError{StatusCode: 404}).Transient() {
		t.Error("404 should not be transient")
	}
	if !(&FetchError{StatusCode: 404}).NotFound() {
		t.Error("404 should be not-found")
	}
	if !(&FetchError{StatusCode: 403}).RateLimited() || !(&FetchError{StatusCode: 429}).RateLimited() {
		t.Error("403/429 should classify as rate limited")
	}
}
