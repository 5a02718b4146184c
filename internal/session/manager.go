package session

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Manager owns the durable session store. All Session/Checkpoint/Event rows
// go through it; other components persist state only via checkpoints.
type Manager struct {
	db  *sql.DB
	dir string
}

// NewManager opens (or creates) the session database at dbPath and keeps
// filesystem backups/archives under dir.
func NewManager(dbPath, dir string) (*Manager, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply session schema: %w", err)
	}
	// Best-effort migration for databases created before swarm_name existed.
	_, _ = db.Exec(`ALTER TABLE sessions ADD COLUMN swarm_name TEXT DEFAULT ''`)

	if dir == "" {
		dir = filepath.Dir(dbPath)
	}
	if err := os.MkdirAll(filepath.Join(dir, "backups"), 0o755); err != nil {
		db.Close()
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return &Manager{db: db, dir: dir}, nil
}

// Close releases the database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}

// CreateSession writes a new active session row and logs its first event.
func (m *Manager) CreateSession(swarmID, name, objective string, metadata map[string]any) (string, error) {
	id := "session-" + uuid.NewString()
	now := time.Now()
	metaJSON, _ := json.Marshal(orEmpty(metadata))

	_, err := m.db.Exec(`
		INSERT INTO sessions (id, swarm_id, swarm_name, objective, status, metadata, completion_percentage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		id, swarmID, name, objective, StatusActive, string(metaJSON), now, now)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	_ = m.LogEvent(id, LevelInfo, "Session created", "", map[string]any{"swarm_id": swarmID})
	slog.Info("Session created", "session_id", id, "swarm_id", swarmID, "name", name)
	return id, nil
}

// GetSession loads one session row.
func (m *Manager) GetSession(id string) (*Session, error) {
	row := m.db.QueryRow(`
		SELECT id, swarm_id, swarm_name, objective, status, metadata, completion_percentage,
		       created_at, updated_at, paused_at, resumed_at
		FROM sessions WHERE id = ?`, id)
	return scanSession(row)
}

// ListSessions returns sessions, optionally filtered by status, newest first.
func (m *Manager) ListSessions(status string) ([]*Session, error) {
	query := `
		SELECT id, swarm_id, swarm_name, objective, status, metadata, completion_percentage,
		       created_at, updated_at, paused_at, resumed_at
		FROM sessions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY updated_at DESC`

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// SaveCheckpoint appends a checkpoint row, writes a best-effort filesystem
// backup of the same payload, and touches the session's updated_at. Valid
// whether the session is active or paused.
func (m *Manager) SaveCheckpoint(sessionID, name string, data map[string]any) (string, error) {
	if _, err := m.GetSession(sessionID); err != nil {
		return "", err
	}

	id := "cp-" + uuid.NewString()
	now := time.Now()
	dataJSON, err := json.Marshal(orEmpty(data))
	if err != nil {
		return "", fmt.Errorf("marshal checkpoint data: %w", err)
	}

	_, err = m.db.Exec(`
		INSERT INTO session_checkpoints (id, session_id, checkpoint_name, checkpoint_data, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, sessionID, name, string(dataJSON), now)
	if err != nil {
		return "", fmt.Errorf("save checkpoint: %w", err)
	}
	_, _ = m.db.Exec(`UPDATE sessions SET checkpoint_data = ?, updated_at = ? WHERE id = ?`,
		string(dataJSON), now, sessionID)

	// Filesystem backup is best-effort; the row is the source of truth.
	backup := filepath.Join(m.dir, "backups", fmt.Sprintf("%s-%s.json", sessionID, id))
	if raw, err := json.MarshalIndent(Checkpoint{
		ID: id, SessionID: sessionID, Name: name, Data: orEmpty(data), CreatedAt: now,
	}, "", "  "); err == nil {
		if werr := os.WriteFile(backup, raw, 0o644); werr != nil {
			slog.Warn("Checkpoint backup write failed", "path", backup, "error", werr)
		}
	}

	slog.Debug("Checkpoint saved", "session_id", sessionID, "checkpoint_id", id, "name", name)
	return id, nil
}

// GetCheckpoints returns a session's checkpoints, oldest first.
func (m *Manager) GetCheckpoints(sessionID string) ([]Checkpoint, error) {
	rows, err := m.db.Query(`
		SELECT id, session_id, checkpoint_name, checkpoint_data, created_at
		FROM session_checkpoints WHERE session_id = ? ORDER BY created_at ASC, id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		var cp Checkpoint
		var dataJSON string
		if err := rows.Scan(&cp.ID, &cp.SessionID, &cp.Name, &dataJSON, &cp.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(dataJSON), &cp.Data)
		out = append(out, cp)
	}
	return out, rows.Err()
}

// LatestCheckpoint returns the most recent checkpoint, or nil when none.
func (m *Manager) LatestCheckpoint(sessionID string) (*Checkpoint, error) {
	cps, err := m.GetCheckpoints(sessionID)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, nil
	}
	return &cps[len(cps)-1], nil
}

// PauseSession moves an active session to paused. Returns false when the
// session does not exist.
func (m *Manager) PauseSession(id string) (bool, error) {
	s, err := m.GetSession(id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if s.Status == StatusCompleted {
		return false, fmt.Errorf("pause session %s: %w", id, ErrSessionCompleted)
	}

	now := time.Now()
	_, err = m.db.Exec(`UPDATE sessions SET status = ?, paused_at = ?, updated_at = ? WHERE id = ?`,
		StatusPaused, now, now, id)
	if err != nil {
		return false, err
	}
	_ = m.LogEvent(id, LevelInfo, "Session paused", "", nil)
	slog.Info("Session paused", "session_id", id)
	return true, nil
}

// ResumeSession moves a paused session back to active and returns the full
// rehydrated session, including the latest checkpoint payload, so the
// caller can reconstruct in-memory state.
func (m *Manager) ResumeSession(id string) (*Session, error) {
	s, err := m.GetSession(id)
	if err != nil {
		return nil, err
	}
	if s.Status != StatusPaused {
		return nil, fmt.Errorf("resume session %s in status %s: %w", id, s.Status, ErrNotPaused)
	}

	now := time.Now()
	_, err = m.db.Exec(`UPDATE sessions SET status = ?, resumed_at = ?, updated_at = ? WHERE id = ?`,
		StatusActive, now, now, id)
	if err != nil {
		return nil, err
	}
	_ = m.LogEvent(id, LevelInfo, "Session resumed", "", nil)

	s, err = m.GetSession(id)
	if err != nil {
		return nil, err
	}
	s.Checkpoint, err = m.LatestCheckpoint(id)
	if err != nil {
		return nil, err
	}
	slog.Info("Session resumed", "session_id", id)
	return s, nil
}

// CompleteSession marks a session completed at 100%. Completed is terminal.
func (m *Manager) CompleteSession(id string) (bool, error) {
	s, err := m.GetSession(id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return false, nil
		}
		return false, err
	}
	if s.Status == StatusCompleted {
		return true, nil
	}

	now := time.Now()
	_, err = m.db.Exec(`UPDATE sessions SET status = ?, completion_percentage = 100, updated_at = ? WHERE id = ?`,
		StatusCompleted, now, id)
	if err != nil {
		return false, err
	}
	_ = m.LogEvent(id, LevelInfo, "Session completed", "", nil)
	slog.Info("Session completed", "session_id", id)
	return true, nil
}

// UpdateSessionProgress sets the completion percentage (clamped to 0-100).
// Rejected once the session is completed.
func (m *Manager) UpdateSessionProgress(id string, percent float64) error {
	s, err := m.GetSession(id)
	if err != nil {
		return err
	}
	if s.Status == StatusCompleted {
		return fmt.Errorf("update progress for %s: %w", id, ErrSessionCompleted)
	}
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	_, err = m.db.Exec(`UPDATE sessions SET completion_percentage = ?, updated_at = ? WHERE id = ?`,
		percent, time.Now(), id)
	return err
}

// DeriveProgress computes the task-ratio completion percentage: 0 when no
// tasks exist.
func DeriveProgress(completedTasks, totalTasks int) float64 {
	if totalTasks <= 0 {
		return 0
	}
	return float64(completedTasks) / float64(totalTasks) * 100
}

// LogEvent appends a write-once session log entry.
func (m *Manager) LogEvent(sessionID, level, message, agentID string, data map[string]any) error {
	var dataJSON any
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal event data: %w", err)
		}
		dataJSON = string(raw)
	}
	_, err := m.db.Exec(`
		INSERT INTO session_logs (session_id, log_level, message, agent_id, data, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, level, message, nullable(agentID), dataJSON, time.Now())
	return err
}

// GetEvents returns a session's log entries, oldest first. Limit <= 0 means
// all.
func (m *Manager) GetEvents(sessionID string, limit int) ([]Event, error) {
	query := `
		SELECT id, session_id, log_level, message, COALESCE(agent_id, ''), COALESCE(data, ''), timestamp
		FROM session_logs WHERE session_id = ? ORDER BY timestamp ASC, id ASC`
	args := []any{sessionID}
	if limit > 0 {
		// Newest N, returned oldest first.
		query = `
		SELECT id, session_id, log_level, message, agent_id, data, timestamp FROM (
			SELECT id, session_id, log_level, message, COALESCE(agent_id, '') AS agent_id,
			       COALESCE(data, '') AS data, timestamp
			FROM session_logs WHERE session_id = ? ORDER BY timestamp DESC, id DESC LIMIT ?
		) ORDER BY timestamp ASC, id ASC`
		args = append(args, limit)
	}

	rows, err := m.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var dataJSON string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Level, &e.Message, &e.AgentID, &dataJSON, &e.Timestamp); err != nil {
			return nil, err
		}
		if dataJSON != "" {
			_ = json.Unmarshal([]byte(dataJSON), &e.Data)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GenerateSummary builds the read-only derived view for one session.
func (m *Manager) GenerateSummary(sessionID string) (*Summary, error) {
	s, err := m.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	var checkpointCount int
	_ = m.db.QueryRow(`SELECT COUNT(*) FROM session_checkpoints WHERE session_id = ?`, sessionID).
		Scan(&checkpointCount)

	byLevel := map[string]int{}
	rows, err := m.db.Query(`SELECT log_level, COUNT(*) FROM session_logs WHERE session_id = ? GROUP BY log_level`, sessionID)
	if err == nil {
		for rows.Next() {
			var level string
			var n int
			if rows.Scan(&level, &n) == nil {
				byLevel[level] = n
			}
		}
		rows.Close()
	}

	timeline, err := m.GetEvents(sessionID, 20)
	if err != nil {
		return nil, err
	}

	end := s.UpdatedAt
	return &Summary{
		SessionID:       s.ID,
		Name:            s.Name,
		Status:          s.Status,
		Objective:       s.Objective,
		Progress:        s.CompletionPercentage,
		Duration:        end.Sub(s.CreatedAt),
		CheckpointCount: checkpointCount,
		EventsByLevel:   byLevel,
		Timeline:        timeline,
	}, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanSession.
type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var s Session
	var metaJSON string
	var pausedAt, resumedAt sql.NullTime
	err := row.Scan(&s.ID, &s.SwarmID, &s.Name, &s.Objective, &s.Status, &metaJSON,
		&s.CompletionPercentage, &s.CreatedAt, &s.UpdatedAt, &pausedAt, &resumedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(metaJSON), &s.Metadata)
	if pausedAt.Valid {
		s.PausedAt = &pausedAt.Time
	}
	if resumedAt.Valid {
		s.ResumedAt = &resumedAt.Time
	}
	return &s, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
