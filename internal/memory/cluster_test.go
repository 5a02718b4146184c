package memory

import (
	"testing"
	"time"
)

func newTwoNodeCluster() (*Cluster, *Store, *Store) {
	c := NewCluster()
	a := NewStore(StoreConfig{Capacity: 100})
	b := NewStore(StoreConfig{Capacity: 100})
	c.AddNode("a", a)
	c.AddNode("b", b)
	return c, a, b
}

func TestSyncAddsMissingKeys(t *testing.T) {
	c, a, b := newTwoNodeCluster()
	a.Set("only-in-a", "v", nil)
	a.Set("shared", "v", nil)
	b.Set("shared", "v", nil)

	changes, err := c.Sync("a", "b")
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if changes != 1 {
		t.Errorf("changes = %d, want 1", changes)
	}
	if !b.Has("only-in-a") {
		t.Error("addition not applied")
	}
}

func TestSyncAppliesNewerUpdates(t *testing.T) {
	c, a, b := newTwoNodeCluster()
	b.Set("k", "old", nil)
	time.Sleep(5 * time.Millisecond)
	a.Set("k", "new", nil)

	changes, err := c.Sync("a", "b")
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if changes != 1 {
		t.Errorf("changes = %d, want 1", changes)
	}
	if v, _ := b.Get("k"); v != "new" {
		t.Errorf("target value = %v, want new", v)
	}
}

func TestSyncConflictLastWriterWins(t *testing.T) {
	c, a, b := newTwoNodeCluster()

	// Establish a baseline sync so later target writes count as independent.
	a.Set("k", "base", nil)
	if _, err := c.Sync("a", "b"); err != nil {
		t.Fatalf("baseline sync failed: %v", err)
	}

	// Both sides change after the sync; target changes last.
	time.Sleep(5 * time.Millisecond)
	a.Set("k", "from-a", nil)
	time.Sleep(5 * time.Millisecond)
	b.Set("k", "from-b", nil)

	// Make the source copy newer again so it is a candidate update, then let
	// the resolver decide. Default last-writer-wins keeps the newest.
	time.Sleep(5 * time.Millisecond)
	a.Set("k", "a-final", nil)

	if _, err := c.Sync("a", "b"); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if v, _ := b.Get("k"); v != "a-final" {
		t.Errorf("resolved value = %v, want a-final", v)
	}
}

func TestSyncCustomResolver(t *testing.T) {
	c, a, b := newTwoNodeCluster()
	c.SetResolver(func(source, target Entry) Entry { return target }) // target always wins

	a.Set("k", "base", nil)
	if _, err := c.Sync("a", "b"); err != nil {
		t.Fatalf("baseline sync failed: %v", err)
	}

	time.Sleep(5 * time.Millisecond)
	b.Set("k", "target-change", nil)
	time.Sleep(5 * time.Millisecond)
	a.Set("k", "source-change", nil)

	if _, err := c.Sync("a", "b"); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if v, _ := b.Get("k"); v != "target-change" {
		t.Errorf("resolved value = %v, want target-change", v)
	}
}

func TestBroadcastBypassesConflicts(t *testing.T) {
	c, _, b := newTwoNodeCluster()
	third := NewStore(StoreConfig{Capacity: 100})
	c.AddNode("c", third)

	b.Set("announce", "stale", nil)

	count, err := c.Broadcast("a", "announce", "fresh")
	if err != nil {
		t.Fatalf("Broadcast failed: %v", err)
	}
	if count != 2 {
		t.Errorf("synced node count = %d, want 2", count)
	}
	for name, s := range map[string]*Store{"b": b, "c": third} {
		if v, _ := s.Get("announce"); v != "fresh" {
			t.Errorf("node %s value = %v, want fresh", name, v)
		}
	}
}

func TestSyncUnknownNode(t *testing.T) {
	c, _, _ := newTwoNodeCluster()
	if _, err := c.Sync("a", "ghost"); err == nil {
		t.Error("expected error for unknown target")
	}
	if _, err := c.Broadcast("ghost", "k", "v"); err == nil {
		t.Error("expected error for unknown source")
	}
}
