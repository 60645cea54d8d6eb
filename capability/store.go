package capability

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Store limits. Guest code can read these from the tana/data module, and the
// error messages below quote them, so the values are part of the contract
// surface.
const (
	MaxKeySize   = 256
	MaxValueSize = 10240
	MaxTotalSize = 102400
	MaxKeys      = 1000
)

// Store is the staged key-value store shared by every invocation in the
// process. Writes and deletes land in a staging layer that shadows committed
// state on reads; Commit applies the whole staged batch atomically or not at
// all. The store is volatile: it lives and dies with the process.
type Store struct {
	mu        sync.Mutex
	committed map[string]string
	staging   map[string]*string // nil marks a staged delete
}

func NewStore() *Store {
	return &Store{
		committed: make(map[string]string),
		staging:   make(map[string]*string),
	}
}

// Set stages a write. Oversized keys and values are rejected before they ever
// enter staging.
func (s *Store) Set(key, value string) error {
	if len(key) > MaxKeySize {
		return &ValidationError{fmt.Sprintf("Key too large: %d bytes (max %d)", len(key), MaxKeySize)}
	}
	if len(value) > MaxValueSize {
		return &ValidationError{fmt.Sprintf("Value too large: %d bytes (max %d)", len(value), MaxValueSize)}
	}

	s.mu.Lock()
	v := value
	s.staging[key] = &v
	s.mu.Unlock()
	return nil
}

// Get resolves staging over committed state: a staged write wins, a staged
// delete hides the committed value.
func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if staged, ok := s.staging[key]; ok {
		if staged == nil {
			return "", false
		}
		return *staged, true
	}
	v, ok := s.committed[key]
	return v, ok
}

// Delete stages a delete. The committed value stays untouched until Commit.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	s.staging[key] = nil
	s.mu.Unlock()
}

func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if staged, ok := s.staging[key]; ok {
		return staged != nil
	}
	_, ok := s.committed[key]
	return ok
}

// Keys returns the merged key set (committed plus staging deltas), filtered by
// an optional glob pattern where "*" matches any run of characters, sorted
// lexicographically. The pattern is anchored: it must match the whole key.
func (s *Store) Keys(pattern string) ([]string, error) {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		re, err = regexp.Compile("^" + strings.ReplaceAll(pattern, "*", ".*") + "$")
		if err != nil {
			return nil, &ValidationError{fmt.Sprintf("Invalid pattern: %v", err)}
		}
	}

	s.mu.Lock()
	merged := make(map[string]struct{}, len(s.committed))
	for key := range s.committed {
		merged[key] = struct{}{}
	}
	for key, staged := range s.staging {
		if staged == nil {
			delete(merged, key)
		} else {
			merged[key] = struct{}{}
		}
	}
	s.mu.Unlock()

	keys := make([]string, 0, len(merged))
	for key := range merged {
		if re == nil || re.MatchString(key) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear empties committed storage and staging immediately. Unlike Delete it
// does not wait for a commit.
func (s *Store) Clear() {
	s.mu.Lock()
	s.committed = make(map[string]string)
	s.staging = make(map[string]*string)
	s.mu.Unlock()
}

// Commit applies all staged writes and deletes. The post-commit totals are
// computed first: if the merged state would exceed MaxTotalSize or MaxKeys,
// nothing is applied and staging is left intact for the caller to inspect or
// clear. Staging is emptied only on success.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	totalSize := 0
	totalKeys := 0
	for key, value := range s.committed {
		if staged, ok := s.staging[key]; ok && staged == nil {
			continue // staged for delete
		}
		if staged, ok := s.staging[key]; ok {
			totalSize += len(key) + len(*staged)
		} else {
			totalSize += len(key) + len(value)
		}
		totalKeys++
	}
	for key, staged := range s.staging {
		if staged == nil {
			continue
		}
		if _, exists := s.committed[key]; !exists {
			totalSize += len(key) + len(*staged)
			totalKeys++
		}
	}

	if totalSize > MaxTotalSize {
		return &LimitError{fmt.Sprintf("Storage limit exceeded: %d bytes (max %d)", totalSize, MaxTotalSize)}
	}
	if totalKeys > MaxKeys {
		return &LimitError{fmt.Sprintf("Too many keys: %d (max %d)", totalKeys, MaxKeys)}
	}

	for key, staged := range s.staging {
		if staged == nil {
			delete(s.committed, key)
		} else {
			s.committed[key] = *staged
		}
	}
	s.staging = make(map[string]*string)
	return nil
}
