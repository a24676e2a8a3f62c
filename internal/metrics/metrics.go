package metrics

import (
	"sync/atomic"
)

// Metrics tracks operational metrics.
type Metrics struct {
	SearchesServed   uint64 `json:"searches_served"`
	FeedsServed      uint64 `json:"feeds_served"`
	FilesServed      uint64 `json:"files_served"`
	CacheHits        uint64 `json:"cache_hits"`
	CacheMisses      uint64 `json:"cache_misses"`
	UpstreamErrors   uint64 `json:"upstream_errors"`
	PartialFailures  uint64 `json:"partial_failures"`
	RefreshesSpawned uint64 `json:"refreshes_spawned"`
	PagesCrawled     uint64 `json:"pages_crawled"`
}

var global = &Metrics{}

// SearchServed increments the count of JSON search responses served.
func SearchServed() { atomic.AddUint64(&global.SearchesServed, 1) }

// FeedServed increments the count of RSS documents served.
func FeedServed() { atomic.AddUint64(&global.FeedsServed, 1) }

// FileListServed increments the count of changed-file listings served.
func FileListServed() { atomic.AddUint64(&global.FilesServed, 1) }

// CacheHit increments the count of edge-cache hits.
func CacheHit() { atomic.AddUint64(&global.CacheHits, 1) }

// CacheMiss increments the count of edge-cache misses.
func CacheMiss() { atomic.AddUint64(&global.CacheMisses, 1) }

// UpstreamError increments the count of provider failures.
func UpstreamError() { atomic.AddUint64(&global.UpstreamErrors, 1) }

// PartialFailure increments the count of fan-outs with a non-empty
// error ledger.
func PartialFailure() { atomic.AddUint64(&global.PartialFailures, 1) }

// RefreshSpawned increments the count of background cache refreshes.
func RefreshSpawned() { atomic.AddUint64(&global.RefreshesSpawned, 1) }

// PageCrawled adds to the count of pages fetched for pages feeds.
func PageCrawled(n int) {
	if n > 0 {
		atomic.AddUint64(&global.PagesCrawled, uint64(n))
	}
}

// Get returns a snapshot of the current metrics.
func Get() Metrics {
	return Metrics{
		SearchesServed:   atomic.LoadUint64(&global.SearchesServed),
		FeedsServed:      atomic.LoadUint64(&global.FeedsServed),
		FilesServed:      atomic.LoadUint64(&global.FilesServed),
		CacheHits:        atomic.LoadUint64(&global.CacheHits),
		CacheMisses:      atomic.LoadUint64(&global.CacheMisses),
		UpstreamErrors:   atomic.LoadUint64(&global.UpstreamErrors),
		PartialFailures:  atomic.LoadUint64(&global.PartialFailures),
		RefreshesSpawned: atomic.LoadUint64(&global.RefreshesSpawned),
		PagesCrawled:     atomic.LoadUint64(&global.PagesCrawled),
	}
}

// Reset resets all metrics to zero (useful for testing).
func Reset() {
	atomic.StoreUint64(&global.SearchesServed, 0)
	atomic.StoreUint64(&global.FeedsServed, 0)
	atomic.StoreUint64(&global.FilesServed, 0)
	atomic.StoreUint64(&global.CacheHits, 0)
	atomic.StoreUint64(&global.CacheMisses, 0)
	atomic.StoreUint64(&global.UpstreamErrors, 0)
	atomic.StoreUint64(&global.PartialFailures, 0)
	atomic.StoreUint64(&global.RefreshesSpawned, 0)
	atomic.StoreUint64(&global.PagesCrawled, 0)
}
