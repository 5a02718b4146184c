package hive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/yordyi/claude-flow-sub006/internal/agent"
	"github.com/yordyi/claude-flow-sub006/internal/autosave"
	"github.com/yordyi/claude-flow-sub006/internal/config"
	"github.com/yordyi/claude-flow-sub006/internal/session"
)

func newTestHive(t *testing.T) *Hive {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Paths.DataDir = dir
	cfg.Paths.Database = filepath.Join(dir, "hive.db")
	cfg.Agent.InitDelay = time.Millisecond
	cfg.AutoSave.Interval = time.Hour

	h, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestStartSessionAttachesOnce(t *testing.T) {
	h := newTestHive(t)

	id, err := h.StartSession("swarm-1", "alpha", "explore")
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	if h.SessionID() != id {
		t.Fatalf("SessionID = %q, want %q", h.SessionID(), id)
	}
	if _, err := h.StartSession("swarm-2", "beta", "other"); err == nil {
		t.Fatal("second StartSession succeeded on attached hive")
	}
}

func TestStatusReflectsSubsystems(t *testing.T) {
	h := newTestHive(t)
	h.StartSession("swarm-1", "alpha", "explore")

	if _, err := h.SpawnAgent(agent.TypeResearcher, "scout"); err != nil {
		t.Fatalf("SpawnAgent: %v", err)
	}
	h.Memory.Set("region", "north", nil)
	h.Consensus.Initiate("route", "scout", []string{"scout"})

	st, err := h.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.Agents != 1 {
		t.Fatalf("agents = %d, want 1", st.Agents)
	}
	if st.Memory.Size != 1 {
		t.Fatalf("memory size = %d, want 1", st.Memory.Size)
	}
	if st.OpenVotes != 1 {
		t.Fatalf("open votes = %d, want 1", st.OpenVotes)
	}
	if st.SessionState != session.StatusActive {
		t.Fatalf("session state = %q", st.SessionState)
	}
}

func TestPauseResumeRehydrates(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Paths.DataDir = dir
	cfg.Paths.Database = filepath.Join(dir, "hive.db")
	cfg.Agent.InitDelay = time.Millisecond
	cfg.AutoSave.Interval = time.Hour

	h, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	id, _ := h.StartSession("swarm-1", "alpha", "explore")
	h.SpawnAgent(agent.TypeCoder, "builder")
	h.SpawnAgent(agent.TypeTester, "checker")
	h.Memory.Set("blueprint", map[string]any{"floors": float64(3)}, nil)

	if err := h.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Fresh process: new hive over the same database.
	h2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer h2.Close()
	if err := h2.Resume(id); err != nil {
		t.Fatalf("Resume: %v", err)
	}

	agents := h2.Registry.List(agent.Filter{})
	if len(agents) != 2 {
		t.Fatalf("rehydrated agents = %d, want 2", len(agents))
	}
	v, ok := h2.Memory.Get("blueprint")
	if !ok {
		t.Fatal("memory entry lost across resume")
	}
	m, _ := v.(map[string]any)
	if m["floors"] != float64(3) {
		t.Fatalf("blueprint = %v", v)
	}
}

func TestCheckpointRequiresSession(t *testing.T) {
	h := newTestHive(t)
	if _, err := h.Checkpoint("manual"); err == nil {
		t.Fatal("checkpoint without session succeeded")
	}
}

func TestTrackChangeWithoutSessionIsNoop(t *testing.T) {
	h := newTestHive(t)
	// Must not panic.
	h.TrackChange(autosave.ChangeTaskProgress, nil)
}
