// Package store keeps recent provider health samples in memory for the
// health and history endpoints.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/i474232898/field-conditions/internal/conditions"
)

// ErrNotFound is returned when a provider has no samples in the requested window.
var ErrNotFound = errors.New("no status recorded for provider")

// timeline is one provider's samples ordered by CheckedAt.
type timeline []conditions.ProviderStatus

// insert places st by check time; a late sample lands before newer ones.
func (tl timeline) insert(st conditions.ProviderStatus) timeline {
	i := sort.Search(len(tl), func(i int) bool { return tl[i].CheckedAt.After(st.CheckedAt) })
	if i == len(tl) {
		return append(tl, st)
	}
	tl = append(tl, conditions.ProviderStatus{})
	copy(tl[i+1:], tl[i:])
	tl[i] = st
	return tl
}

// trim drops samples beyond limit or older than cutoff. The newest sample
// survives both rules.
func (tl timeline) trim(limit int, cutoff time.Time) timeline {
	if limit > 0 && len(tl) > limit {
		tl = tl[len(tl)-limit:]
	}
	if !cutoff.IsZero() {
		keep := sort.Search(len(tl), func(i int) bool { return !tl[i].CheckedAt.Before(cutoff) })
		if keep == len(tl) {
			keep = len(tl) - 1
		}
		tl = tl[keep:]
	}
	return tl
}

// window returns the samples with from <= CheckedAt <= to.
func (tl timeline) window(from, to time.Time) timeline {
	lo := sort.Search(len(tl), func(i int) bool { return !tl[i].CheckedAt.Before(from) })
	hi := sort.Search(len(tl), func(i int) bool { return tl[i].CheckedAt.After(to) })
	if lo >= hi {
		return nil
	}
	out := make(timeline, hi-lo)
	copy(out, tl[lo:hi])
	return out
}

// MemoryStore records provider health samples. It is safe for concurrent use.
type MemoryStore struct {
	mu        sync.RWMutex
	timelines map[string]timeline

	maxSamples int
	maxAge     time.Duration
}

// NewMemoryStore creates a MemoryStore keeping at most maxSamples samples
// per provider, none older than maxAge. Zero disables either limit.
func NewMemoryStore(maxSamples int, maxAge time.Duration) *MemoryStore {
	return &MemoryStore{
		timelines:  make(map[string]timeline),
		maxSamples: maxSamples,
		maxAge:     maxAge,
	}
}

// SaveStatus records a sample against its provider.
func (s *MemoryStore) SaveStatus(st conditions.ProviderStatus) {
	var cutoff time.Time
	if s.maxAge > 0 {
		cutoff = time.Now().Add(-s.maxAge)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.timelines[st.Provider] = s.timelines[st.Provider].insert(st).trim(s.maxSamples, cutoff)
}

// Providers returns the sampled provider names in lexical order.
func (s *MemoryStore) Providers() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.timelines))
	for name := range s.timelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetLatest returns the provider's most recent sample.
func (s *MemoryStore) GetLatest(provider string) (conditions.ProviderStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tl := s.timelines[provider]
	if len(tl) == 0 {
		return conditions.ProviderStatus{}, ErrNotFound
	}
	return tl[len(tl)-1], nil
}

// GetRange returns the provider's samples checked between from and to, inclusive.
func (s *MemoryStore) GetRange(provider string, from, to time.Time) ([]conditions.ProviderStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.timelines[provider].window(from, to)
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}
