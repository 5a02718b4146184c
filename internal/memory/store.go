// Package memory implements the shared key/value store with TTL expiry,
// LRU eviction under capacity pressure, and multi-node synchronization.
package memory

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Entry type constants.
const (
	TypeGeneral   = "general"
	TypeConfig    = "config"
	TypeCache     = "cache"
	TypeKnowledge = "knowledge"
	TypeContext   = "context"
	TypeMetrics   = "metrics"
)

// Entry is a stored record with access metadata.
type Entry struct {
	Key          string     `json:"key"`
	Value        any        `json:"value"`
	Type         string     `json:"type"`
	Tags         []string   `json:"tags,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
	AccessCount  int        `json:"access_count"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// expired reports whether the entry's TTL deadline has passed.
func (e *Entry) expired(now time.Time) bool {
	return e.ExpiresAt != nil && now.After(*e.ExpiresAt)
}

// Stats holds store counters.
type Stats struct {
	Size        int     `json:"size"`
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	HitRate     float64 `json:"hit_rate"`
	Evictions   int64   `json:"evictions"`
	Expirations int64   `json:"expirations"`
}

// StoreConfig sizes a store.
type StoreConfig struct {
	Capacity   int           `json:"capacity" envconfig:"MEMORY_CAPACITY"`
	DefaultTTL time.Duration `json:"defaultTtl" envconfig:"MEMORY_DEFAULT_TTL"`
	SweepEvery time.Duration `json:"sweepEvery" envconfig:"MEMORY_SWEEP_EVERY"`
}

// DefaultStoreConfig returns the default store sizing.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{Capacity: 1000, SweepEvery: 30 * time.Second}
}

// Store is a TTL/LRU key-value store. Expiry is enforced by a per-entry
// deadline checked on access plus one background janitor ticker, never one
// OS timer per key.
type Store struct {
	mu          sync.Mutex
	entries     map[string]*Entry
	cfg         StoreConfig
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
	stopJanitor chan struct{}
	janitorOnce sync.Once
}

// NewStore creates a store. Capacity <= 0 means unbounded.
func NewStore(cfg StoreConfig) *Store {
	if cfg.SweepEvery <= 0 {
		cfg.SweepEvery = DefaultStoreConfig().SweepEvery
	}
	return &Store{
		entries:     make(map[string]*Entry),
		cfg:         cfg,
		stopJanitor: make(chan struct{}),
	}
}

// StartJanitor launches the background sweep loop. Safe to call once.
func (s *Store) StartJanitor() {
	s.janitorOnce.Do(func() {
		go func() {
			ticker := time.NewTicker(s.cfg.SweepEvery)
			defer ticker.Stop()
			for {
				select {
				case <-s.stopJanitor:
					return
				case <-ticker.C:
					s.sweep()
				}
			}
		}()
	})
}

// Close stops the janitor.
func (s *Store) Close() {
	select {
	case <-s.stopJanitor:
	default:
		close(s.stopJanitor)
	}
}

// sweep deletes every expired entry.
func (s *Store) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			s.expirations++
		}
	}
}

// SetOptions carries optional Set parameters.
type SetOptions struct {
	Type string
	TTL  time.Duration
	Tags []string
}

// Set creates or overwrites an entry. Overwriting replaces any existing TTL
// deadline. When the store is at capacity and the key is new, the least
// recently accessed entry is evicted first (tie-break: earliest creation).
func (s *Store) Set(key string, value any, opts *SetOptions) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entryType := TypeGeneral
	var tags []string
	ttl := s.cfg.DefaultTTL
	if opts != nil {
		if opts.Type != "" {
			entryType = opts.Type
		}
		if opts.TTL > 0 {
			ttl = opts.TTL
		}
		tags = append([]string(nil), opts.Tags...)
	}

	existing, exists := s.entries[key]
	if !exists && s.cfg.Capacity > 0 && len(s.entries) >= s.cfg.Capacity {
		s.evictLocked(now)
	}

	e := &Entry{
		Key:       key,
		Value:     value,
		Type:      entryType,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if exists {
		e.CreatedAt = existing.CreatedAt
		e.AccessCount = existing.AccessCount
		e.LastAccessed = existing.LastAccessed
	}
	if ttl > 0 {
		deadline := now.Add(ttl)
		e.ExpiresAt = &deadline
	}
	s.entries[key] = e
}

// evictLocked removes the least-recently-accessed entry. Entries never
// accessed rank by creation time.
func (s *Store) evictLocked(now time.Time) {
	// Prefer reclaiming an expired entry before evicting a live one.
	for k, e := range s.entries {
		if e.expired(now) {
			delete(s.entries, k)
			s.expirations++
			return
		}
	}

	var victim string
	var victimAt time.Time
	for k, e := range s.entries {
		at := e.CreatedAt
		if e.LastAccessed != nil {
			at = *e.LastAccessed
		}
		if victim == "" || at.Before(victimAt) || (at.Equal(victimAt) && e.CreatedAt.Before(s.entries[victim].CreatedAt)) {
			victim = k
			victimAt = at
		}
	}
	if victim != "" {
		delete(s.entries, victim)
		s.evictions++
		slog.Debug("Memory entry evicted", "key", victim)
	}
}

// Get returns the value for key. Expired entries are deleted as a side
// effect and count as misses.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	e, ok := s.entries[key]
	if !ok {
		s.misses++
		return nil, false
	}
	if e.expired(now) {
		delete(s.entries, key)
		s.expirations++
		s.misses++
		return nil, false
	}
	s.hits++
	e.AccessCount++
	e.LastAccessed = &now
	return e.Value, true
}

// Delete removes a key, reporting whether it existed.
func (s *Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

// Has reports whether a live (unexpired) entry exists without touching
// access metadata.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.expired(time.Now()) {
		delete(s.entries, key)
		s.expirations++
		return false
	}
	return true
}

// Clear removes every entry.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]*Entry)
}

// Sort modes for List.
const (
	SortByAccess  = "access"
	SortByUpdated = "updated"
)

// ListFilter selects entries. Zero values match everything.
type ListFilter struct {
	Type         string
	Tags         []string
	UpdatedSince time.Time
}

// List returns metadata copies of matching entries.
func (s *Store) List(f ListFilter, sortBy string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var out []Entry
	for _, e := range s.entries {
		if e.expired(now) {
			continue
		}
		if f.Type != "" && e.Type != f.Type {
			continue
		}
		if !f.UpdatedSince.IsZero() && e.UpdatedAt.Before(f.UpdatedSince) {
			continue
		}
		if len(f.Tags) > 0 && !hasAllTags(e.Tags, f.Tags) {
			continue
		}
		out = append(out, *e)
	}

	switch sortBy {
	case SortByAccess:
		sort.Slice(out, func(i, j int) bool { return out[i].AccessCount > out[j].AccessCount })
	case SortByUpdated:
		sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	}
	return out
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Search matches pattern against keys and serialized values.
func (s *Store) Search(pattern string) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	needle := strings.ToLower(pattern)
	var out []Entry
	for _, e := range s.entries {
		if e.expired(now) {
			continue
		}
		if strings.Contains(strings.ToLower(e.Key), needle) {
			out = append(out, *e)
			continue
		}
		if raw, err := json.Marshal(e.Value); err == nil && strings.Contains(strings.ToLower(string(raw)), needle) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Stats{
		Size:        len(s.entries),
		Hits:        s.hits,
		Misses:      s.misses,
		Evictions:   s.evictions,
		Expirations: s.expirations,
	}
	if total := s.hits + s.misses; total > 0 {
		st.HitRate = float64(s.hits) / float64(total)
	}
	return st
}
