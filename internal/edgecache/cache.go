// Package edgecache provides the shared response cache and the
// read-through manager layered in front of the upstream provider.
//
// The store is an explicitly injected collaborator rather than an
// ambient global so tests can substitute an in-memory fake. Entries
// are immutable once written; a write always replaces the whole entry.
package edgecache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Entry is one cached response payload.
type Entry struct {
	Payload     []byte
	ContentType string
}

// Store is the shared key/value cache. Implementations must be safe
// for concurrent use at the entry level.
type Store interface {
	Get(key string) (Entry, bool)
	Set(key string, e Entry, ttl time.Duration)
}

type memoryStore struct {
	c *gocache.Cache
}

// NewStore returns a process-wide in-memory Store. Entries carry their
// own TTL; the janitor sweeps expired entries every few minutes.
func NewStore() Store {
	return &memoryStore{c: gocache.New(gocache.NoExpiration, 5*time.Minute)}
}

func (s *memoryStore) Get(key string) (Entry, bool) {
	v, ok := s.c.Get(key)
	if !ok {
		return Entry{}, false
	}
	e, ok := v.(Entry)
	return e, ok
}

func (s *memoryStore) Set(key string, e Entry, ttl time.Duration) {
	s.c.Set(key, e, ttl)
}
