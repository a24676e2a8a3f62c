package metrics

import (
	"sync"
	"testing"
)

func TestSearchServed(t *testing.T) {
	Reset()

	SearchServed()
	m := Get()

	if m.SearchesServed != 1 {
		t.Errorf("expected SearchesServed=1, got %d", m.SearchesServed)
	}
}

func TestFeedServed(t *testing.T) {
	Reset()

	FeedServed()
	m := Get()

	if m.FeedsServed != 1 {
		t.Errorf("expected FeedsServed=1, got %d", m.FeedsServed)
	}
}

func TestFileListServed(t *testing.T) {
	Reset()

	FileListServed()
	m := Get()

	if m.FilesServed != 1 {
		t.Errorf("expected FilesServed=1, got %d", m.FilesServed)
	}
}

func TestCacheCounters(t *testing.T) {
	Reset()

	CacheHit()
	CacheHit()
	CacheMiss()
	m := Get()

	if m.CacheHits != 2 {
		t.Errorf("expected CacheHits=2, got %d", m.CacheHits)
	}
	if m.CacheMisses != 1 {
		t.Errorf("expected CacheMisses=1, got %d", m.CacheMisses)
	}
}

func TestUpstreamError(t *testing.T) {
	Reset()

	UpstreamError()
	m := Get()

	if m.UpstreamErrors != 1 {
		t.Errorf("expected UpstreamErrors=1, got %d", m.UpstreamErrors)
	}
}

func TestPartialFailure(t *testing.T) {
	Reset()

	PartialFailure()
	m := Get()

	if m.PartialFailures != 1 {
		t.Errorf("expected PartialFailures=1, got %d", m.PartialFailures)
	}
}

func TestRefreshSpawned(t *testing.T) {
	Reset()

	RefreshSpawned()
	m := Get()

	if m.RefreshesSpawned != 1 {
		t.Errorf("expected RefreshesSpawned=1, got %d", m.RefreshesSpawned)
	}
}

func TestPageCrawled(t *testing.T) {
	Reset()

	PageCrawled(3)
	PageCrawled(0)
	PageCrawled(-1)
	m := Get()

	if m.PagesCrawled != 3 {
		t.Errorf("expected PagesCrawled=3, got %d", m.PagesCrawled)
	}
}

func TestReset(t *testing.T) {
	SearchServed()
	CacheHit()
	Reset()
	m := Get()

	if m.SearchesServed != 0 || m.CacheHits != 0 {
		t.Errorf("expected zeroed metrics after Reset, got %+v", m)
	}
}

func TestConcurrentIncrements(t *testing.T) {
	Reset()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			SearchServed()
			CacheMiss()
		}()
	}
	wg.Wait()

	m := Get()
	if m.SearchesServed != 50 {
		t.Errorf("expected SearchesServed=50, got %d", m.SearchesServed)
	}
	if m.CacheMisses != 50 {
		t.Errorf("expected CacheMisses=50, got %d", m.CacheMisses)
	}
}
