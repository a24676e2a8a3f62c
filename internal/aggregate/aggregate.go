// Package aggregate fans a merged-PR search out across repositories
// and merges the results into one deduplicated, time-ordered list with
// a per-repository error ledger.
package aggregate

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/docstrack/docstrack/internal/provider"
	"github.com/docstrack/docstrack/internal/query"
)

// SearchFunc runs one repository's merged-PR search with the given
// page budget.
type SearchFunc func(ctx context.Context, repo string, perPage int) ([]provider.PullRequest, error)

// RepoError records one repository whose search failed.
type RepoError struct {
	Repo    string `json:"repo"`
	Message string `json:"message"`
}

// Result is the merged outcome of a fan-out. Every requested
// repository either contributed items or appears in Errors, never
// both.
type Result struct {
	Items  []provider.PullRequest `json:"items"`
	Errors []RepoError            `json:"errors"`
}

// Aggregator runs concurrent per-repository searches.
type Aggregator struct {
	search SearchFunc
}

// New creates an Aggregator over the given search function.
func New(search SearchFunc) *Aggregator {
	return &Aggregator{search: search}
}

// PerRepoBudget returns the page size granted to each repository:
// an even split of the provider's page ceiling, floored at 10 so every
// repository keeps a minimum share when the scope is wide.
func PerRepoBudget(repoCount int) int {
	if repoCount < 1 {
		return query.MaxPerPage
	}
	budget := query.MaxPerPage / repoCount
	if budget < 10 {
		budget = 10
	}
	return budget
}

// Aggregate issues one search per repository, all concurrently, and
// waits for every branch to settle. Results are merged in scope order
// (not completion order), deduplicated by item id first-seen-wins,
// filtered to items whose derived repository matches the queried one
// case-insensitively, and finally sorted by effective event time
// descending with merge order as the stable tiebreak. A failing
// repository contributes a ledger entry and never aborts its siblings.
func (a *Aggregator) Aggregate(ctx context.Context, repos []string) Result {
	type branch struct {
		items []provider.PullRequest
		err   error
	}

	budget := PerRepoBudget(len(repos))
	branches := make([]branch, len(repos))

	var wg sync.WaitGroup
	for i, repo := range repos {
		wg.Add(1)
		go func(i int, repo string) {
			defer wg.Done()
			items, err := a.search(ctx, repo, budget)
			branches[i] = branch{items: items, err: err}
		}(i, repo)
	}
	wg.Wait()

	result := Result{
		Items:  []provider.PullRequest{},
		Errors: []RepoError{},
	}
	seen := make(map[int64]bool)
	for i, repo := range repos {
		if branches[i].err != nil {
			result.Errors = append(result.Errors, RepoError{Repo: repo, Message: branches[i].err.Error()})
			continue
		}
		for _, item := range branches[i].items {
			// Guard against scope bleed from over-broad results.
			if !strings.EqualFold(item.RepoFullName(), repo) {
				continue
			}
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			result.Items = append(result.Items, item)
		}
	}

	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].EffectiveTime().After(result.Items[j].EffectiveTime())
	})
	return result
}
