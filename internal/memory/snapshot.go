package memory

import (
	"fmt"
	"time"
)

// SnapshotVersion is the current export format version.
const SnapshotVersion = "1.0"

// ErrUnsupportedVersion is returned by Import for a version mismatch.
var ErrUnsupportedVersion = fmt.Errorf("unsupported snapshot version")

// Snapshot is a portable copy of the full store contents.
type Snapshot struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Entries    []Entry   `json:"entries"`
}

// Export captures every live entry.
func (s *Store) Export() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	snap := Snapshot{Version: SnapshotVersion, ExportedAt: now}
	for _, e := range s.entries {
		if e.expired(now) {
			continue
		}
		snap.Entries = append(snap.Entries, *e)
	}
	return snap
}

// Import replaces the entire store contents atomically (clear-then-load).
// A version mismatch rejects the snapshot and leaves the store untouched.
func (s *Store) Import(snap Snapshot) error {
	if snap.Version != SnapshotVersion {
		return fmt.Errorf("import snapshot version %q: %w", snap.Version, ErrUnsupportedVersion)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = make(map[string]*Entry, len(snap.Entries))
	for i := range snap.Entries {
		e := snap.Entries[i]
		s.entries[e.Key] = &e
	}
	return nil
}
