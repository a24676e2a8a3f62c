// Package provider defines the port to the upstream pull-request
// search provider and the types that cross it.
package provider

import "context"

// Provider is the interface to the upstream search provider.
type Provider interface {
	// SearchMergedPRs runs one issue-search query. token may be empty, in
	// which case the call is unauthenticated and subject to stricter
	// upstream rate limits. A non-2xx upstream response is returned as a
	// *FetchError.
	SearchMergedPRs(ctx context.Context, query string, perPage int, token string) (*SearchResult, error)

	// ListChangedFiles returns the provider's file-change-list JSON for
	// one pull request.
	ListChangedFiles(ctx context.Context, owner, repo string, number, perPage int, token string) ([]byte, error)

	// SearchRepositories searches repository names within an organization
	// and returns the matching "owner/name" strings.
	SearchRepositories(ctx context.Context, org, text string, perPage int, token string) ([]string, error)
}
