package agent

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PoolConfig sizes the shared resource pool.
type PoolConfig struct {
	MemoryMB int     `json:"memoryMb" envconfig:"POOL_MEMORY_MB"`
	CPU      float64 `json:"cpu" envconfig:"POOL_CPU"`
}

// DefaultPoolConfig returns the default pool sizing.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{MemoryMB: 4096, CPU: 8.0}
}

// Registry tracks live agents and the shared resource ledger.
// All spawn/remove operations are atomic with respect to the ledger.
type Registry struct {
	mu        sync.RWMutex
	agents    map[string]*Agent
	pool      PoolConfig
	usedMemMB int
	usedCPU   float64
	initDelay time.Duration
	seq       int
}

// NewRegistry creates a registry against a fixed pool.
func NewRegistry(pool PoolConfig) *Registry {
	if pool.MemoryMB <= 0 {
		pool.MemoryMB = DefaultPoolConfig().MemoryMB
	}
	if pool.CPU <= 0 {
		pool.CPU = DefaultPoolConfig().CPU
	}
	return &Registry{
		agents:    make(map[string]*Agent),
		pool:      pool,
		initDelay: 100 * time.Millisecond,
	}
}

// SetInitDelay overrides the initializing->active transition delay.
func (r *Registry) SetInitDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.initDelay = d
}

// SpawnOptions carries optional spawn parameters.
type SpawnOptions struct {
	Capabilities []string
	Metadata     map[string]any
}

// Spawn validates the type, reserves pool resources, and creates the agent in
// initializing status. The agent transitions to active asynchronously after a
// short delay; callers observe the change via Get/List.
func (r *Registry) Spawn(t Type, name string, opts *SpawnOptions) (*Agent, error) {
	profile, ok := ProfileFor(t)
	if !ok {
		return nil, &InvalidAgentTypeError{Type: t}
	}

	r.mu.Lock()
	if r.usedMemMB+profile.Cost.MemoryMB > r.pool.MemoryMB {
		avail := r.pool.MemoryMB - r.usedMemMB
		r.mu.Unlock()
		return nil, &InsufficientResourcesError{
			Dimension: "memory",
			Required:  float64(profile.Cost.MemoryMB),
			Available: float64(avail),
		}
	}
	if r.usedCPU+profile.Cost.CPU > r.pool.CPU {
		avail := r.pool.CPU - r.usedCPU
		r.mu.Unlock()
		return nil, &InsufficientResourcesError{
			Dimension: "cpu",
			Required:  profile.Cost.CPU,
			Available: avail,
		}
	}

	if name == "" {
		// Monotonic suffix so names stay unique across removals.
		r.seq++
		name = fmt.Sprintf("%s-%d", t, r.seq)
	}

	now := time.Now()
	a := &Agent{
		ID:           uuid.NewString(),
		Name:         name,
		Type:         t,
		Status:       StatusInitializing,
		Capabilities: append([]string(nil), profile.Capabilities...),
		Cost:         profile.Cost,
		CreatedAt:    now,
		LastActive:   now,
	}
	if opts != nil {
		a.Capabilities = append(a.Capabilities, opts.Capabilities...)
		a.Metadata = opts.Metadata
	}

	r.usedMemMB += profile.Cost.MemoryMB
	r.usedCPU += profile.Cost.CPU
	r.agents[a.ID] = a
	delay := r.initDelay
	snap := r.snapshotLocked(a.ID)
	r.mu.Unlock()

	slog.Info("Agent spawned", "agent_id", a.ID, "type", t, "name", name)

	// Models initialization latency; the status change is observable, never
	// blocking for the caller.
	go func(id string) {
		time.Sleep(delay)
		r.mu.Lock()
		defer r.mu.Unlock()
		if a, ok := r.agents[id]; ok && a.Status == StatusInitializing {
			a.Status = StatusActive
			a.LastActive = time.Now()
		}
	}(a.ID)

	return snap, nil
}

// BatchError records a per-type failure inside a batch spawn.
type BatchError struct {
	Type   Type   `json:"type"`
	Count  int    `json:"count"`
	Reason string `json:"reason"`
}

// BatchResult aggregates a SpawnBatch outcome. Partial success is normal.
type BatchResult struct {
	Spawned []*Agent     `json:"spawned"`
	Errors  []BatchError `json:"errors"`
}

// SpawnBatch spawns count agents per type. A failure for one type never
// blocks the others; each type's outcome is reported independently.
func (r *Registry) SpawnBatch(request map[Type]int) BatchResult {
	var res BatchResult

	// Stable iteration so failures are deterministic for a given pool state.
	types := make([]Type, 0, len(request))
	for t := range request {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	for _, t := range types {
		count := request[t]
		for i := 0; i < count; i++ {
			a, err := r.Spawn(t, "", nil)
			if err != nil {
				res.Errors = append(res.Errors, BatchError{Type: t, Count: count - i, Reason: err.Error()})
				break
			}
			res.Spawned = append(res.Spawned, a)
		}
	}
	return res
}

// UpdateFields holds the mutable agent fields for Update.
type UpdateFields struct {
	Name         *string
	Status       *string
	Capabilities []string
	Metadata     map[string]any
}

// Update applies partial field changes and always touches LastActive.
func (r *Registry) Update(id string, fields UpdateFields) (*Agent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("update agent %s: %w", id, ErrAgentNotFound)
	}
	if fields.Name != nil {
		a.Name = *fields.Name
	}
	if fields.Status != nil {
		a.Status = *fields.Status
	}
	if fields.Capabilities != nil {
		a.Capabilities = append([]string(nil), fields.Capabilities...)
	}
	if fields.Metadata != nil {
		if a.Metadata == nil {
			a.Metadata = map[string]any{}
		}
		for k, v := range fields.Metadata {
			a.Metadata[k] = v
		}
	}
	a.LastActive = time.Now()
	return r.snapshotLocked(id), nil
}

// RecordTaskResult updates the agent's task count and running success rate.
func (r *Registry) RecordTaskResult(id string, ok bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, found := r.agents[id]
	if !found {
		return fmt.Errorf("record task result for %s: %w", id, ErrAgentNotFound)
	}
	successes := a.SuccessRate * float64(a.TaskCount)
	if ok {
		successes++
	}
	a.TaskCount++
	a.SuccessRate = successes / float64(a.TaskCount)
	a.LastActive = time.Now()
	return nil
}

// Remove terminates the agent and credits its reservation back to the pool.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("remove agent %s: %w", id, ErrAgentNotFound)
	}
	r.usedMemMB -= a.Cost.MemoryMB
	r.usedCPU -= a.Cost.CPU
	delete(r.agents, id)

	slog.Info("Agent removed", "agent_id", id, "type", a.Type)
	return nil
}

// Get returns a snapshot of one agent.
func (r *Registry) Get(id string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.agents[id]; !ok {
		return nil, fmt.Errorf("get agent %s: %w", id, ErrAgentNotFound)
	}
	return r.snapshotLocked(id), nil
}

// Filter selects agents for List. Zero values match everything.
type Filter struct {
	Type   Type
	Status string
}

// List returns snapshots of agents matching the filter, oldest first.
func (r *Registry) List(f Filter) []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Agent, 0, len(r.agents))
	for id, a := range r.agents {
		if f.Type != "" && a.Type != f.Type {
			continue
		}
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		out = append(out, r.snapshotLocked(id))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Usage returns the current resource ledger snapshot.
func (r *Registry) Usage() PoolUsage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return PoolUsage{
		MemoryUsedMB:  r.usedMemMB,
		MemoryTotalMB: r.pool.MemoryMB,
		CPUUsed:       r.usedCPU,
		CPUTotal:      r.pool.CPU,
		AgentCount:    len(r.agents),
	}
}

// snapshotLocked copies an agent; callers must hold at least a read lock.
func (r *Registry) snapshotLocked(id string) *Agent {
	a := r.agents[id]
	cp := *a
	cp.Capabilities = append([]string(nil), a.Capabilities...)
	if a.Metadata != nil {
		cp.Metadata = make(map[string]any, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
