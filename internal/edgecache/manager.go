package edgecache

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/docstrack/docstrack/internal/metrics"
)

// Policy fixes the freshness windows for one endpoint family.
type Policy struct {
	// TTL bounds how long a stored entry may be served.
	TTL time.Duration
	// FreshMaxAge is the public s-maxage emitted with a fresh compute.
	FreshMaxAge int
	// HitMaxAge is the public s-maxage emitted with a cache hit.
	HitMaxAge int
}

// Response is a payload plus the freshness directive it should carry.
type Response struct {
	Payload     []byte
	ContentType string
	MaxAge      int
	Hit         bool
}

// ComputeFunc produces a response payload on a cache miss or refresh.
type ComputeFunc func(ctx context.Context) (Entry, error)

// Manager wraps computations with the shared read-through cache.
type Manager struct {
	store Store

	// refreshWG tracks detached refreshes so tests can wait for them.
	refreshWG sync.WaitGroup
}

// NewManager creates a Manager over the given store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Fetch serves key from the cache when present, otherwise computes the
// entry synchronously, stores it, and returns it. Compute failures on
// a miss propagate to the caller and are never cached.
//
// On a hit with refresh enabled the entry is recomputed in the
// background and the cached copy replaced, without blocking the
// current response. A refresh failure is swallowed; the stale entry
// stays authoritative until a later refresh succeeds.
func (m *Manager) Fetch(ctx context.Context, key string, pol Policy, refresh bool, compute ComputeFunc) (Response, error) {
	if e, ok := m.store.Get(key); ok {
		metrics.CacheHit()
		if refresh {
			metrics.RefreshSpawned()
			m.refreshWG.Add(1)
			go func() {
				defer m.refreshWG.Done()
				fresh, err := compute(context.Background())
				if err != nil {
					log.Printf("edgecache: background refresh failed for %s: %v", key, err)
					return
				}
				m.store.Set(key, fresh, pol.TTL)
			}()
		}
		return Response{
			Payload:     e.Payload,
			ContentType: e.ContentType,
			MaxAge:      pol.HitMaxAge,
			Hit:         true,
		}, nil
	}

	metrics.CacheMiss()
	e, err := compute(ctx)
	if err != nil {
		return Response{}, err
	}
	m.store.Set(key, e, pol.TTL)
	return Response{
		Payload:     e.Payload,
		ContentType: e.ContentType,
		MaxAge:      pol.FreshMaxAge,
	}, nil
}

// WaitRefresh blocks until outstanding background refreshes finish.
func (m *Manager) WaitRefresh() {
	m.refreshWG.Wait()
}
