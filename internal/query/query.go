// Package query builds GitHub search expressions from a repository
// scope, an inclusive since-date, and an optional free-text filter.
//
// The filter is provider query syntax supplied by the caller; it is
// appended verbatim, never escaped.
package query

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MaxPerPage is the provider's page-size ceiling; every page size is
// clamped to it regardless of caller input.
const MaxPerPage = 100

// DefaultWindowDays is the lookback window used when a day count is
// absent or unparseable.
const DefaultWindowDays = 14

// ForRepo returns the search expression for a single repository.
func ForRepo(repo, since, filter string) string {
	return withCommon("repo:"+repo, since, filter)
}

// ForRepos returns the combined OR expression covering every listed
// repository in one call.
func ForRepos(repos []string, since, filter string) string {
	parts := make([]string, len(repos))
	for i, r := range repos {
		parts[i] = "repo:" + r
	}
	return withCommon("("+strings.Join(parts, " OR ")+")", since, filter)
}

// ForOrg returns the expression covering an entire organization.
func ForOrg(org, since, filter string) string {
	return withCommon("org:"+org, since, filter)
}

func withCommon(scope, since, filter string) string {
	q := fmt.Sprintf("%s is:pr is:merged merged:>=%s", scope, since)
	if filter != "" {
		q += " " + filter
	}
	return q
}

// SinceDays resolves "N days ago" to an inclusive YYYY-MM-DD date by
// subtracting N calendar days from now's date, not N*24h from the
// instant. Non-numeric or non-positive input falls back to
// DefaultWindowDays.
func SinceDays(days string, now time.Time) string {
	n, err := strconv.Atoi(strings.TrimSpace(days))
	if err != nil || n <= 0 {
		n = DefaultWindowDays
	}
	return now.AddDate(0, 0, -n).Format("2006-01-02")
}

// ClampPerPage parses a page-size parameter, falling back to def when
// absent or unparseable and clamping the result to MaxPerPage.
func ClampPerPage(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		n = def
	}
	if n > MaxPerPage {
		n = MaxPerPage
	}
	return n
}

// ParseRepos splits a comma-separated repository list, trims blanks,
// and deduplicates case-insensitively while preserving first-seen
// order and casing.
func ParseRepos(s string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(s, ",") {
		r := strings.TrimSpace(part)
		if r == "" {
			continue
		}
		key := strings.ToLower(r)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
