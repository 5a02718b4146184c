// Package hive wires the coordination subsystems into one swarm runtime:
// agent registry, messaging channel, shared memory, consensus engine, and
// the persistent session layer with auto-save.
package hive

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/yordyi/claude-flow-sub006/internal/agent"
	"github.com/yordyi/claude-flow-sub006/internal/autosave"
	"github.com/yordyi/claude-flow-sub006/internal/comms"
	"github.com/yordyi/claude-flow-sub006/internal/config"
	"github.com/yordyi/claude-flow-sub006/internal/consensus"
	"github.com/yordyi/claude-flow-sub006/internal/memory"
	"github.com/yordyi/claude-flow-sub006/internal/session"
)

// Hive owns the subsystem instances for one running swarm.
type Hive struct {
	cfg *config.Config

	Registry  *agent.Registry
	Channel   *comms.Channel
	Memory    *memory.Store
	Consensus *consensus.Engine
	Sessions  *session.Manager
	Tasks     *agent.TaskBoard

	mu        sync.Mutex
	sessionID string
	saver     *autosave.Middleware
}

// Status is a point-in-time view of the whole hive.
type Status struct {
	SessionID    string          `json:"session_id"`
	SessionState string          `json:"session_state"`
	Agents       int             `json:"agents"`
	Pool         agent.PoolUsage `json:"pool"`
	Messages     comms.Metrics   `json:"messages"`
	Memory       memory.Stats    `json:"memory"`
	OpenVotes    int             `json:"open_votes"`
	TaskProgress float64         `json:"task_progress"`
}

// Open builds a hive from configuration. The session layer opens its
// database immediately; everything else is in-memory.
func Open(cfg *config.Config) (*Hive, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	sessions, err := session.NewManager(cfg.Paths.Database, cfg.Paths.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	reg := agent.NewRegistry(agent.PoolConfig{
		MemoryMB: cfg.Pool.MemoryMB,
		CPU:      cfg.Pool.CPU,
	})
	reg.SetInitDelay(cfg.Agent.InitDelay)

	store := memory.NewStore(memory.StoreConfig{
		Capacity:   cfg.Memory.Capacity,
		DefaultTTL: cfg.Memory.DefaultTTL,
		SweepEvery: cfg.Memory.SweepEvery,
	})
	store.StartJanitor()

	h := &Hive{
		cfg:       cfg,
		Registry:  reg,
		Channel:   comms.NewChannel(),
		Memory:    store,
		Consensus: consensus.NewEngine(consensus.Config{MinParticipation: cfg.Consensus.MinParticipation}),
		Sessions:  sessions,
		Tasks:     agent.NewTaskBoard(),
	}
	slog.Info("Hive opened", "database", cfg.Paths.Database)
	return h, nil
}

// StartSession creates a fresh session and attaches auto-save to it.
func (h *Hive) StartSession(swarmID, name, objective string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessionID != "" {
		return "", fmt.Errorf("session %s already attached", h.sessionID)
	}

	id, err := h.Sessions.CreateSession(swarmID, name, objective, nil)
	if err != nil {
		return "", err
	}
	h.attachLocked(id)
	return id, nil
}

// Resume reloads a paused session and rehydrates agents and shared memory
// from its latest checkpoint.
func (h *Hive) Resume(sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessionID != "" {
		return fmt.Errorf("session %s already attached", h.sessionID)
	}

	s, err := h.Sessions.ResumeSession(sessionID)
	if err != nil {
		return err
	}
	if s.Checkpoint != nil {
		if err := h.rehydrate(s.Checkpoint.Data); err != nil {
			slog.Warn("Checkpoint rehydration incomplete", "session_id", sessionID, "error", err)
		}
	}
	h.attachLocked(sessionID)
	slog.Info("Session resumed", "session_id", sessionID, "agents", len(h.Registry.List(agent.Filter{})))
	return nil
}

func (h *Hive) attachLocked(sessionID string) {
	h.sessionID = sessionID
	h.saver = autosave.New(sessionID, h.Sessions, autosave.Config{
		Interval:   h.cfg.AutoSave.Interval,
		MaxRetries: h.cfg.AutoSave.MaxRetries,
	})
	h.saver.Start()
}

// SessionID returns the attached session id, empty when none is attached.
func (h *Hive) SessionID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionID
}

// TrackChange forwards a state change to the auto-save layer when a session
// is attached. Safe to call without one.
func (h *Hive) TrackChange(changeType string, data map[string]any) {
	h.mu.Lock()
	saver := h.saver
	h.mu.Unlock()
	if saver != nil {
		saver.TrackChange(changeType, data)
	}
}

// SpawnAgent spawns through the registry and records the change.
func (h *Hive) SpawnAgent(t agent.Type, name string) (*agent.Agent, error) {
	a, err := h.Registry.Spawn(t, name, nil)
	if err != nil {
		return nil, err
	}
	h.TrackChange(autosave.ChangeAgentSpawned, map[string]any{"agent_id": a.ID, "type": string(a.Type)})
	return a, nil
}

// Checkpoint captures the full hive state under the given name.
func (h *Hive) Checkpoint(name string) (string, error) {
	h.mu.Lock()
	sessionID := h.sessionID
	h.mu.Unlock()
	if sessionID == "" {
		return "", fmt.Errorf("no session attached")
	}
	return h.Sessions.SaveCheckpoint(sessionID, name, h.stateSnapshot())
}

// stateSnapshot collects the rehydratable state: agent roster and the
// shared memory snapshot.
func (h *Hive) stateSnapshot() map[string]any {
	agents := []map[string]any{}
	for _, a := range h.Registry.List(agent.Filter{}) {
		agents = append(agents, map[string]any{
			"type": string(a.Type),
			"name": a.Name,
		})
	}
	return map[string]any{
		"agents":        agents,
		"memory":        h.Memory.Export(),
		"task_progress": h.Tasks.CompletionRatio(),
		"captured_at":   time.Now(),
	}
}

// rehydrate restores agents and memory from checkpoint data. The data has
// been through a JSON round trip, so it is decoded generically.
func (h *Hive) rehydrate(data map[string]any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	var state struct {
		Agents []struct {
			Type string `json:"type"`
			Name string `json:"name"`
		} `json:"agents"`
		Memory *memory.Snapshot `json:"memory"`
	}
	if err := json.Unmarshal(raw, &state); err != nil {
		return err
	}

	for _, a := range state.Agents {
		if _, err := h.Registry.Spawn(agent.Type(a.Type), a.Name, nil); err != nil {
			return fmt.Errorf("respawn %s %q: %w", a.Type, a.Name, err)
		}
	}
	if state.Memory != nil {
		if err := h.Memory.Import(*state.Memory); err != nil {
			return fmt.Errorf("restore memory: %w", err)
		}
	}
	return nil
}

// Pause checkpoints the hive and marks the session paused.
func (h *Hive) Pause() error {
	h.mu.Lock()
	sessionID := h.sessionID
	saver := h.saver
	h.mu.Unlock()
	if sessionID == "" {
		return fmt.Errorf("no session attached")
	}

	if _, err := h.Sessions.SaveCheckpoint(sessionID, "pause", h.stateSnapshot()); err != nil {
		return err
	}
	if saver != nil {
		saver.Flush()
	}
	if _, err := h.Sessions.PauseSession(sessionID); err != nil {
		return err
	}
	slog.Info("Hive paused", "session_id", sessionID)
	return nil
}

// Status reports the current shape of the hive.
func (h *Hive) Status() (*Status, error) {
	h.mu.Lock()
	sessionID := h.sessionID
	h.mu.Unlock()

	st := &Status{
		SessionID:    sessionID,
		Agents:       len(h.Registry.List(agent.Filter{})),
		Pool:         h.Registry.Usage(),
		Messages:     h.Channel.Metrics(),
		Memory:       h.Memory.Stats(),
		TaskProgress: h.Tasks.CompletionRatio(),
	}
	for _, v := range h.Consensus.List() {
		if v.Status == consensus.StatusVoting {
			st.OpenVotes++
		}
	}
	if sessionID != "" {
		s, err := h.Sessions.GetSession(sessionID)
		if err != nil {
			return nil, err
		}
		st.SessionState = s.Status
	}
	return st, nil
}

// BackupPath returns where checkpoint backup JSON files live.
func (h *Hive) BackupPath() string {
	return filepath.Join(h.cfg.Paths.DataDir, "backups")
}

// Close flushes auto-save, stops the memory janitor, and closes the
// session database.
func (h *Hive) Close() error {
	h.mu.Lock()
	saver := h.saver
	h.saver = nil
	h.mu.Unlock()

	if saver != nil {
		if err := saver.Stop(); err != nil {
			slog.Warn("Final auto-save flush failed", "error", err)
		}
	}
	h.Memory.Close()
	return h.Sessions.Close()
}
