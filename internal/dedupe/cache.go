package dedupe

import "sync"

// Set records event fingerprints claimed during one pipeline run.
// It is safe for concurrent use by the fan-out workers.
type Set struct {
	mu    sync.Mutex
	items map[string]int
}

// NewSet creates a set sized for the expected number of candidates.
func NewSet(capacity int) *Set {
	if capacity < 0 {
		capacity = 0
	}
	return &Set{items: make(map[string]int, capacity)}
}

// Claim marks key as owned by the candidate at index. It returns the index of the
// first claimant and true when key was already claimed.
func (s *Set) Claim(key string, index int) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if first, ok := s.items[key]; ok {
		return first, true
	}
	s.items[key] = index
	return index, false
}

// Len returns the number of distinct keys claimed.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
