package session

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ExportVersion is the current export file format version.
const ExportVersion = "1.0"

// ErrUnsupportedVersion is returned by ImportSession for a format mismatch.
var ErrUnsupportedVersion = fmt.Errorf("unsupported export version")

// exportDoc is the on-disk export file shape.
type exportDoc struct {
	Version     string       `json:"version"`
	ExportedAt  time.Time    `json:"exported_at"`
	Session     *Session     `json:"session"`
	Checkpoints []Checkpoint `json:"checkpoints"`
	RecentLogs  []Event      `json:"recentLogs"`
}

// ExportSession serializes the full session (metadata, checkpoints, recent
// logs) to a single JSON file and returns its path. An empty path defaults
// to <dir>/<sessionID>-export.json.
func (m *Manager) ExportSession(sessionID, path string) (string, error) {
	s, err := m.GetSession(sessionID)
	if err != nil {
		return "", err
	}
	cps, err := m.GetCheckpoints(sessionID)
	if err != nil {
		return "", err
	}
	logs, err := m.GetEvents(sessionID, 100)
	if err != nil {
		return "", err
	}

	if path == "" {
		path = filepath.Join(m.dir, sessionID+"-export.json")
	}
	doc := exportDoc{
		Version:     ExportVersion,
		ExportedAt:  time.Now(),
		Session:     s,
		Checkpoints: cps,
		RecentLogs:  logs,
	}
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	slog.Info("Session exported", "session_id", sessionID, "path", path)
	return path, nil
}

// ImportSession creates a brand-new session populated from an export file.
// The new id never collides with the original.
func (m *Manager) ImportSession(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}
	var doc exportDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return "", fmt.Errorf("parse export: %w", err)
	}
	if doc.Version != ExportVersion {
		return "", fmt.Errorf("import %s version %q: %w", path, doc.Version, ErrUnsupportedVersion)
	}
	if doc.Session == nil {
		return "", fmt.Errorf("import %s: no session in export", path)
	}

	newID := "session-" + uuid.NewString()
	now := time.Now()
	metaJSON, _ := json.Marshal(orEmpty(doc.Session.Metadata))

	_, err = m.db.Exec(`
		INSERT INTO sessions (id, swarm_id, swarm_name, objective, status, metadata, completion_percentage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		newID, doc.Session.SwarmID, doc.Session.Name, doc.Session.Objective, doc.Session.Status,
		string(metaJSON), doc.Session.CompletionPercentage, now, now)
	if err != nil {
		return "", fmt.Errorf("import session: %w", err)
	}

	for _, cp := range doc.Checkpoints {
		dataJSON, _ := json.Marshal(orEmpty(cp.Data))
		_, err = m.db.Exec(`
			INSERT INTO session_checkpoints (id, session_id, checkpoint_name, checkpoint_data, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			"cp-"+uuid.NewString(), newID, cp.Name, string(dataJSON), cp.CreatedAt)
		if err != nil {
			return "", fmt.Errorf("import checkpoint %s: %w", cp.Name, err)
		}
	}
	for _, e := range doc.RecentLogs {
		_ = m.LogEvent(newID, e.Level, e.Message, e.AgentID, e.Data)
	}

	_ = m.LogEvent(newID, LevelInfo, "Session imported", "", map[string]any{"source": path, "original_id": doc.Session.ID})
	slog.Info("Session imported", "session_id", newID, "source", path)
	return newID, nil
}

// ArchiveSessions writes a full archive file for every completed session
// whose updated_at is older than the threshold, then removes its rows from
// the live store. Active, paused, and recently completed sessions are never
// touched. Returns the archived count.
func (m *Manager) ArchiveSessions(olderThanDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -olderThanDays)

	rows, err := m.db.Query(`SELECT id FROM sessions WHERE status = ? AND updated_at < ?`,
		StatusCompleted, cutoff)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if rows.Scan(&id) == nil {
			ids = append(ids, id)
		}
	}
	rows.Close()

	archiveDir := filepath.Join(m.dir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, fmt.Errorf("create archive dir: %w", err)
	}

	archived := 0
	for _, id := range ids {
		path := filepath.Join(archiveDir, id+".json")
		if _, err := m.ExportSession(id, path); err != nil {
			slog.Warn("Session archive export failed", "session_id", id, "error", err)
			continue
		}
		tx, err := m.db.Begin()
		if err != nil {
			return archived, err
		}
		_, _ = tx.Exec(`DELETE FROM session_logs WHERE session_id = ?`, id)
		_, _ = tx.Exec(`DELETE FROM session_checkpoints WHERE session_id = ?`, id)
		_, _ = tx.Exec(`DELETE FROM sessions WHERE id = ?`, id)
		if err := tx.Commit(); err != nil {
			return archived, err
		}
		archived++
		slog.Info("Session archived", "session_id", id, "path", path)
	}
	return archived, nil
}
