// Package session provides durable session records, checkpoints, and event
// logs backed by sqlite. The session manager is the sole writer of this
// state and the durability boundary for the whole hive.
package session

import (
	"errors"
	"time"
)

// Session lifecycle status constants.
const (
	StatusActive    = "active"
	StatusPaused    = "paused"
	StatusCompleted = "completed"
)

// Log level constants for session events.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// Manager errors.
var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrNotPaused        = errors.New("session is not paused")
	ErrSessionCompleted = errors.New("session is completed")
)

// Session is a durable unit of work. Never deleted, only archived after a
// retention window once completed.
type Session struct {
	ID                   string         `json:"id"`
	SwarmID              string         `json:"swarm_id"`
	Name                 string         `json:"name"`
	Objective            string         `json:"objective"`
	Status               string         `json:"status"`
	Metadata             map[string]any `json:"metadata,omitempty"`
	CompletionPercentage float64        `json:"completion_percentage"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	PausedAt             *time.Time     `json:"paused_at,omitempty"`
	ResumedAt            *time.Time     `json:"resumed_at,omitempty"`

	// Checkpoint holds the latest checkpoint payload when the session was
	// loaded for resume; nil otherwise.
	Checkpoint *Checkpoint `json:"checkpoint,omitempty"`
}

// Checkpoint is an immutable named snapshot belonging to one session. The
// most recent checkpoint is authoritative for resume.
type Checkpoint struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Name      string         `json:"name"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// Event is an append-only session log entry.
type Event struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"session_id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	AgentID   string         `json:"agent_id,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Summary is a read-only derived view of one session.
type Summary struct {
	SessionID       string         `json:"session_id"`
	Name            string         `json:"name"`
	Status          string         `json:"status"`
	Objective       string         `json:"objective"`
	Progress        float64        `json:"progress"`
	Duration        time.Duration  `json:"duration"`
	CheckpointCount int            `json:"checkpoint_count"`
	EventsByLevel   map[string]int `json:"events_by_level"`
	Timeline        []Event        `json:"timeline"`
}

const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	swarm_id TEXT NOT NULL,
	swarm_name TEXT DEFAULT '',
	objective TEXT DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	metadata TEXT DEFAULT '{}',
	checkpoint_data TEXT,
	completion_percentage REAL NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	paused_at DATETIME,
	resumed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_swarm ON sessions(swarm_id);

CREATE TABLE IF NOT EXISTS session_checkpoints (
	id TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	checkpoint_name TEXT DEFAULT '',
	checkpoint_data TEXT DEFAULT '{}',
	created_at DATETIME NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_session ON session_checkpoints(session_id, created_at);

CREATE TABLE IF NOT EXISTS session_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	log_level TEXT NOT NULL DEFAULT 'info',
	message TEXT NOT NULL,
	agent_id TEXT,
	data TEXT,
	timestamp DATETIME NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(id)
);
CREATE INDEX IF NOT EXISTS idx_logs_session ON session_logs(session_id, timestamp);
`
