package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := t.TempDir()
	m, err := NewManager(filepath.Join(dir, "hive.db"), dir)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestSessionLifecycle(t *testing.T) {
	m := newTestManager(t)

	id, err := m.CreateSession("swarm-1", "alpha", "map the caves", nil)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	s, err := m.GetSession(id)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if s.Status != StatusActive {
		t.Fatalf("new session status = %q, want %q", s.Status, StatusActive)
	}

	ok, err := m.PauseSession(id)
	if err != nil || !ok {
		t.Fatalf("PauseSession = %v, %v", ok, err)
	}
	s, _ = m.GetSession(id)
	if s.Status != StatusPaused || s.PausedAt == nil {
		t.Fatalf("paused session: status=%q paused_at=%v", s.Status, s.PausedAt)
	}

	s, err = m.ResumeSession(id)
	if err != nil {
		t.Fatalf("ResumeSession: %v", err)
	}
	if s.Status != StatusActive || s.ResumedAt == nil {
		t.Fatalf("resumed session: status=%q resumed_at=%v", s.Status, s.ResumedAt)
	}

	ok, err = m.CompleteSession(id)
	if err != nil || !ok {
		t.Fatalf("CompleteSession = %v, %v", ok, err)
	}
	s, _ = m.GetSession(id)
	if s.Status != StatusCompleted || s.CompletionPercentage != 100 {
		t.Fatalf("completed session: status=%q pct=%v", s.Status, s.CompletionPercentage)
	}

	// Terminal: cannot pause or progress a completed session.
	if _, err := m.PauseSession(id); !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("pause completed: err = %v, want ErrSessionCompleted", err)
	}
	if err := m.UpdateSessionProgress(id, 50); !errors.Is(err, ErrSessionCompleted) {
		t.Fatalf("progress completed: err = %v, want ErrSessionCompleted", err)
	}
}

func TestResumeActiveSession(t *testing.T) {
	m := newTestManager(t)
	id, _ := m.CreateSession("swarm-1", "alpha", "obj", nil)
	if _, err := m.ResumeSession(id); !errors.Is(err, ErrNotPaused) {
		t.Fatalf("resume active: err = %v, want ErrNotPaused", err)
	}
}

func TestSessionNotFound(t *testing.T) {
	m := newTestManager(t)
	if _, err := m.GetSession("session-missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
	if ok, _ := m.PauseSession("session-missing"); ok {
		t.Fatal("pause of unknown session reported success")
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	m := newTestManager(t)
	id, _ := m.CreateSession("swarm-1", "alpha", "obj", nil)

	cp1, err := m.SaveCheckpoint(id, "first", map[string]any{"step": float64(1)})
	if err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	cp2, err := m.SaveCheckpoint(id, "second", map[string]any{"step": float64(2)})
	if err != nil {
		t.Fatalf("SaveCheckpoint: %v", err)
	}

	cps, err := m.GetCheckpoints(id)
	if err != nil {
		t.Fatalf("GetCheckpoints: %v", err)
	}
	if len(cps) != 2 {
		t.Fatalf("checkpoint count = %d, want 2", len(cps))
	}

	latest, err := m.LatestCheckpoint(id)
	if err != nil {
		t.Fatalf("LatestCheckpoint: %v", err)
	}
	if latest.ID != cp2 || latest.Name != "second" {
		t.Fatalf("latest = %s/%s, want %s/second", latest.ID, latest.Name, cp2)
	}
	if latest.Data["step"] != float64(2) {
		t.Fatalf("latest data = %v", latest.Data)
	}
	_ = cp1

	// Resume rehydrates the latest checkpoint.
	m.PauseSession(id)
	s, err := m.ResumeSession(id)
	if err != nil {
		t.Fatalf("ResumeSession: %v", err)
	}
	if s.Checkpoint == nil || s.Checkpoint.ID != cp2 {
		t.Fatalf("resumed checkpoint = %+v, want %s", s.Checkpoint, cp2)
	}
}

func TestProgressClamping(t *testing.T) {
	m := newTestManager(t)
	id, _ := m.CreateSession("swarm-1", "alpha", "obj", nil)

	if err := m.UpdateSessionProgress(id, 150); err != nil {
		t.Fatalf("UpdateSessionProgress: %v", err)
	}
	s, _ := m.GetSession(id)
	if s.CompletionPercentage != 100 {
		t.Fatalf("pct = %v, want 100", s.CompletionPercentage)
	}
	if err := m.UpdateSessionProgress(id, -5); err != nil {
		t.Fatalf("UpdateSessionProgress: %v", err)
	}
	s, _ = m.GetSession(id)
	if s.CompletionPercentage != 0 {
		t.Fatalf("pct = %v, want 0", s.CompletionPercentage)
	}
}

func TestDeriveProgress(t *testing.T) {
	if got := DeriveProgress(3, 4); got != 75 {
		t.Fatalf("DeriveProgress(3,4) = %v, want 75", got)
	}
	if got := DeriveProgress(0, 0); got != 0 {
		t.Fatalf("DeriveProgress(0,0) = %v, want 0", got)
	}
}

func TestListSessionsByStatus(t *testing.T) {
	m := newTestManager(t)
	a, _ := m.CreateSession("swarm-1", "a", "obj", nil)
	b, _ := m.CreateSession("swarm-1", "b", "obj", nil)
	m.PauseSession(b)

	active, err := m.ListSessions(StatusActive)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(active) != 1 || active[0].ID != a {
		t.Fatalf("active sessions = %+v, want only %s", active, a)
	}
	all, _ := m.ListSessions("")
	if len(all) != 2 {
		t.Fatalf("all sessions = %d, want 2", len(all))
	}
}

func TestEventsAndSummary(t *testing.T) {
	m := newTestManager(t)
	id, _ := m.CreateSession("swarm-1", "alpha", "obj", nil)

	m.LogEvent(id, LevelInfo, "worker started", "agent-1", nil)
	m.LogEvent(id, LevelError, "worker crashed", "agent-1", map[string]any{"code": float64(7)})

	events, err := m.GetEvents(id, 10)
	if err != nil {
		t.Fatalf("GetEvents: %v", err)
	}
	// "Session created" plus the two logged above, oldest first.
	if len(events) != 3 {
		t.Fatalf("event count = %d, want 3", len(events))
	}
	last := events[len(events)-1]
	if last.Level != LevelError || last.Message != "worker crashed" {
		t.Fatalf("last event = %+v", last)
	}

	sum, err := m.GenerateSummary(id)
	if err != nil {
		t.Fatalf("GenerateSummary: %v", err)
	}
	if sum.SessionID != id {
		t.Fatalf("summary session = %s, want %s", sum.SessionID, id)
	}
}

func TestExportImportRoundTrip(t *testing.T) {
	m := newTestManager(t)
	id, _ := m.CreateSession("swarm-1", "alpha", "map the caves", map[string]any{"region": "north"})
	m.SaveCheckpoint(id, "mid", map[string]any{"step": float64(3)})
	m.UpdateSessionProgress(id, 40)

	path, err := m.ExportSession(id, "")
	if err != nil {
		t.Fatalf("ExportSession: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	newID, err := m.ImportSession(path)
	if err != nil {
		t.Fatalf("ImportSession: %v", err)
	}
	if newID == id {
		t.Fatal("import reused the original session id")
	}
	s, err := m.GetSession(newID)
	if err != nil {
		t.Fatalf("GetSession imported: %v", err)
	}
	if s.Objective != "map the caves" || s.CompletionPercentage != 40 {
		t.Fatalf("imported session = %+v", s)
	}
	cps, _ := m.GetCheckpoints(newID)
	if len(cps) != 1 || cps[0].Name != "mid" {
		t.Fatalf("imported checkpoints = %+v", cps)
	}
}

func TestImportRejectsBadVersion(t *testing.T) {
	m := newTestManager(t)
	path := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(path, []byte(`{"version":"9.9","session":{"id":"x"}}`), 0o644)

	if _, err := m.ImportSession(path); !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("err = %v, want ErrUnsupportedVersion", err)
	}
}

func TestArchiveOnlyOldCompleted(t *testing.T) {
	m := newTestManager(t)

	old, _ := m.CreateSession("swarm-1", "old", "obj", nil)
	m.CompleteSession(old)
	// Backdate so the archive cutoff catches it.
	_, err := m.db.Exec(`UPDATE sessions SET updated_at = ? WHERE id = ?`,
		time.Now().AddDate(0, 0, -40), old)
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}

	recent, _ := m.CreateSession("swarm-1", "recent", "obj", nil)
	m.CompleteSession(recent)

	running, _ := m.CreateSession("swarm-1", "running", "obj", nil)

	n, err := m.ArchiveSessions(30)
	if err != nil {
		t.Fatalf("ArchiveSessions: %v", err)
	}
	if n != 1 {
		t.Fatalf("archived = %d, want 1", n)
	}
	if _, err := m.GetSession(old); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("old session still live: %v", err)
	}
	if _, err := m.GetSession(recent); err != nil {
		t.Fatalf("recent completed session archived: %v", err)
	}
	if _, err := m.GetSession(running); err != nil {
		t.Fatalf("active session archived: %v", err)
	}
	if _, err := os.Stat(filepath.Join(m.dir, "archive", old+".json")); err != nil {
		t.Fatalf("archive file missing: %v", err)
	}
}
