// Package prefstore persists client preferences (last-used repos, day
// window, filter text) to a local JSON file. Storage is best effort:
// the tracker behaves identically when reads or writes fail, and
// nothing correctness-sensitive may depend on it.
package prefstore

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// Store is a small file-backed key/value preference store.
type Store struct {
	path string
	mu   sync.Mutex
}

// New creates a Store persisting to path. The file is created on the
// first write.
func New(path string) *Store {
	return &Store{path: path}
}

// All returns every stored preference. A missing or unreadable file
// reads as empty.
func (s *Store) All() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Set merges the given preferences into the store. Empty values delete
// their key, so callers can unset a single preference.
func (s *Store) Set(prefs map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.load()
	for k, v := range prefs {
		if v == "" {
			delete(current, k)
			continue
		}
		current[k] = v
	}
	return s.save(current)
}

// Clear removes every stored preference.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("clearing preferences: %w", err)
	}
	return nil
}

func (s *Store) load() map[string]string {
	prefs := make(map[string]string)
	data, err := os.ReadFile(s.path)
	if err != nil {
		return prefs
	}
	if err := json.Unmarshal(data, &prefs); err != nil {
		return make(map[string]string)
	}
	return prefs
}

func (s *Store) save(prefs map[string]string) error {
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("writing preferences: %w", err)
	}
	return nil
}
