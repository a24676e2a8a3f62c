// Package cachekey derives stable cache keys from the semantically
// relevant parameters of a request.
package cachekey

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// maxKeyLen bounds the encoded key; longer canonical forms fall back
// to a digest so pathological filter text cannot produce oversized
// keys.
const maxKeyLen = 512

// Request captures the parameters that distinguish one cacheable
// request from another.
type Request struct {
	Endpoint string   `json:"endpoint"`
	Org      string   `json:"org,omitempty"`
	Repos    []string `json:"repos,omitempty"`
	Since    string   `json:"since,omitempty"`
	Filter   string   `json:"filter,omitempty"`
	PerPage  int      `json:"per_page,omitempty"`
	Extra    string   `json:"extra,omitempty"`
}

// Key returns a stable identifier for the request. Repositories are
// case-folded, deduplicated and sorted so neither scope order nor
// casing affects the key; the canonical JSON form is then base64url
// encoded so arbitrary filter text cannot produce an invalid key
// shape.
func Key(r Request) string {
	repos := make([]string, 0, len(r.Repos))
	seen := make(map[string]bool)
	for _, repo := range r.Repos {
		folded := strings.ToLower(strings.TrimSpace(repo))
		if folded == "" || seen[folded] {
			continue
		}
		seen[folded] = true
		repos = append(repos, folded)
	}
	sort.Strings(repos)
	r.Repos = repos

	// Marshalling a struct of strings and ints cannot fail.
	canonical, _ := json.Marshal(r)
	key := base64.RawURLEncoding.EncodeToString(canonical)
	if len(key) > maxKeyLen {
		sum := sha256.Sum256(canonical)
		return "sha256-" + hex.EncodeToString(sum[:])
	}
	return key
}
