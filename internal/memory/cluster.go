package memory

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ConflictResolver picks the winning entry when both sides of a sync changed
// the same key independently since their last sync.
type ConflictResolver func(source, target Entry) Entry

// LastWriterWins is the default resolver: newest UpdatedAt wins.
func LastWriterWins(source, target Entry) Entry {
	if target.UpdatedAt.After(source.UpdatedAt) {
		return target
	}
	return source
}

// Cluster coordinates several same-process store instances backing
// different agents or hosts.
type Cluster struct {
	mu       sync.Mutex
	nodes    map[string]*Store
	lastSync map[string]time.Time // "source->target" pair
	resolve  ConflictResolver
}

// NewCluster creates a cluster with the last-writer-wins resolver.
func NewCluster() *Cluster {
	return &Cluster{
		nodes:    make(map[string]*Store),
		lastSync: make(map[string]time.Time),
		resolve:  LastWriterWins,
	}
}

// SetResolver swaps the conflict resolver.
func (c *Cluster) SetResolver(r ConflictResolver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r != nil {
		c.resolve = r
	}
}

// AddNode registers a named store.
func (c *Cluster) AddNode(name string, store *Store) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nodes[name] = store
}

// Node returns a registered store.
func (c *Cluster) Node(name string) (*Store, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.nodes[name]
	return s, ok
}

func pairKey(source, target string) string {
	return source + "->" + target
}

// Sync propagates changes from source to target: keys absent in the target
// are added unconditionally; keys newer in the source are applied directly
// unless the target also changed since the last sync for this node pair, in
// which case the conflict resolver decides. Returns the applied change count.
func (c *Cluster) Sync(sourceNode, targetNode string) (int, error) {
	c.mu.Lock()
	source, ok := c.nodes[sourceNode]
	if !ok {
		c.mu.Unlock()
		return 0, fmt.Errorf("sync: source node %q not registered", sourceNode)
	}
	target, ok := c.nodes[targetNode]
	if !ok {
		c.mu.Unlock()
		return 0, fmt.Errorf("sync: target node %q not registered", targetNode)
	}
	since := c.lastSync[pairKey(sourceNode, targetNode)]
	resolve := c.resolve
	c.mu.Unlock()

	now := time.Now()
	changes := 0

	source.mu.Lock()
	entries := make([]Entry, 0, len(source.entries))
	for _, e := range source.entries {
		if !e.expired(now) {
			entries = append(entries, *e)
		}
	}
	source.mu.Unlock()

	target.mu.Lock()
	for i := range entries {
		src := entries[i]
		existing, present := target.entries[src.Key]
		if !present {
			cp := src
			target.entries[src.Key] = &cp
			changes++
			continue
		}
		if !src.UpdatedAt.After(existing.UpdatedAt) {
			continue
		}
		winner := src
		if existing.UpdatedAt.After(since) {
			// Target was modified independently since the last sync.
			winner = resolve(src, *existing)
		}
		cp := winner
		target.entries[src.Key] = &cp
		if winner.Key == src.Key && winner.UpdatedAt.Equal(src.UpdatedAt) {
			changes++
		}
	}
	target.mu.Unlock()

	c.mu.Lock()
	c.lastSync[pairKey(sourceNode, targetNode)] = now
	c.mu.Unlock()

	slog.Debug("Memory sync applied", "source", sourceNode, "target", targetNode, "changes", changes)
	return changes, nil
}

// Broadcast writes a key directly into every node except the source,
// bypassing conflict detection. For global announcements, not contended
// state.
func (c *Cluster) Broadcast(sourceNode, key string, value any) (int, error) {
	c.mu.Lock()
	if _, ok := c.nodes[sourceNode]; !ok {
		c.mu.Unlock()
		return 0, fmt.Errorf("broadcast: source node %q not registered", sourceNode)
	}
	targets := make([]*Store, 0, len(c.nodes))
	for name, s := range c.nodes {
		if name != sourceNode {
			targets = append(targets, s)
		}
	}
	c.mu.Unlock()

	for _, s := range targets {
		s.Set(key, value, nil)
	}
	return len(targets), nil
}
