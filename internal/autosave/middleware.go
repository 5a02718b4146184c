// Package autosave batches session state changes and persists them as
// checkpoints, so callers never block on storage for routine updates.
package autosave

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// Change types worth tracking. Critical types flush immediately instead of
// waiting for the next batch tick.
const (
	ChangeTaskCompleted    = "task_completed"
	ChangeAgentSpawned     = "agent_spawned"
	ChangeConsensusReached = "consensus_reached"
	ChangeMemoryUpdated    = "memory_updated"
	ChangeAgentStatus      = "agent_status"
	ChangeTaskProgress     = "task_progress"
)

// CheckpointWriter is the slice of the session manager the middleware needs.
type CheckpointWriter interface {
	SaveCheckpoint(sessionID, name string, data map[string]any) (string, error)
	LogEvent(sessionID, level, message, agentID string, data map[string]any) error
	UpdateSessionProgress(sessionID string, percent float64) error
}

// Change is one pending state mutation.
type Change struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data"`
	At   time.Time      `json:"at"`
}

// Config controls batching behavior. MaxRetries caps how often a failed
// batch is re-attempted before it is dropped; zero means retry forever.
type Config struct {
	Interval   time.Duration `json:"interval" envconfig:"INTERVAL"`
	MaxRetries int           `json:"max_retries" envconfig:"MAX_RETRIES"`
}

// DefaultConfig matches the 30 second save cadence used elsewhere.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second, MaxRetries: 3}
}

// Middleware accumulates changes for one session and flushes them to
// checkpoints on a timer, on critical changes, and on shutdown signals.
type Middleware struct {
	sessionID string
	writer    CheckpointWriter
	cfg       Config

	mu      sync.Mutex
	pending []Change
	saves   int
	failed  int
	retries int

	// flushMu serializes whole flushes so checkpoint writes for the
	// session never overlap and a failed batch is requeued before the
	// next flush starts.
	flushMu sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func New(sessionID string, writer CheckpointWriter, cfg Config) *Middleware {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Middleware{
		sessionID: sessionID,
		writer:    writer,
		cfg:       cfg,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the periodic flush loop and a signal watcher that forces a
// final save on SIGINT or SIGTERM.
func (mw *Middleware) Start() {
	go mw.loop()
	go mw.watchSignals()
	slog.Info("Auto-save started", "session_id", mw.sessionID, "interval", mw.cfg.Interval)
}

func (mw *Middleware) loop() {
	defer close(mw.done)
	ticker := time.NewTicker(mw.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			mw.Flush()
		case <-mw.stop:
			return
		}
	}
}

func (mw *Middleware) watchSignals() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)
	select {
	case sig := <-sigs:
		slog.Warn("Auto-save flushing on signal", "session_id", mw.sessionID, "signal", sig)
		mw.Flush()
	case <-mw.stop:
	}
}

// TrackChange records one state mutation. Critical change types flush the
// whole pending batch synchronously so they survive a crash.
func (mw *Middleware) TrackChange(changeType string, data map[string]any) {
	mw.mu.Lock()
	mw.pending = append(mw.pending, Change{Type: changeType, Data: data, At: time.Now()})
	mw.mu.Unlock()

	switch changeType {
	case ChangeTaskCompleted, ChangeAgentSpawned, ChangeConsensusReached:
		mw.Flush()
	}
}

// Pending returns the number of changes not yet persisted.
func (mw *Middleware) Pending() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return len(mw.pending)
}

// Stats reports save and failure counts.
func (mw *Middleware) Stats() (saves, failed int) {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.saves, mw.failed
}

// Flush persists all pending changes as one checkpoint. Flushes are
// serialized per middleware; a failed batch stays queued ahead of newer
// changes and is retried up to MaxRetries times before being dropped.
func (mw *Middleware) Flush() error {
	mw.flushMu.Lock()
	defer mw.flushMu.Unlock()

	mw.mu.Lock()
	if len(mw.pending) == 0 {
		mw.mu.Unlock()
		return nil
	}
	batch := mw.pending
	mw.pending = nil
	mw.mu.Unlock()

	byType := map[string]int{}
	for _, c := range batch {
		byType[c.Type]++
	}
	data := map[string]any{
		"change_count": len(batch),
		"by_type":      byType,
		"statistics": map[string]any{
			"tasks_processed":     byType[ChangeTaskProgress] + byType[ChangeTaskCompleted],
			"tasks_completed":     byType[ChangeTaskCompleted],
			"memory_updates":      byType[ChangeMemoryUpdated],
			"agent_activities":    byType[ChangeAgentSpawned] + byType[ChangeAgentStatus],
			"consensus_decisions": byType[ChangeConsensusReached],
		},
		"first_at": batch[0].At,
		"last_at":  batch[len(batch)-1].At,
		"changes":  batch,
	}
	percent, hasProgress := completionFrom(batch)
	if hasProgress {
		data["completion_percentage"] = percent
	}
	name := fmt.Sprintf("auto-save-%d", time.Now().UnixMilli())

	if _, err := mw.writer.SaveCheckpoint(mw.sessionID, name, data); err != nil {
		mw.mu.Lock()
		mw.failed++
		mw.retries++
		dropped := mw.cfg.MaxRetries > 0 && mw.retries >= mw.cfg.MaxRetries
		if dropped {
			mw.retries = 0
		} else {
			mw.pending = append(batch, mw.pending...)
		}
		mw.mu.Unlock()
		if dropped {
			slog.Warn("Auto-save batch dropped after repeated failures",
				"session_id", mw.sessionID, "changes", len(batch), "attempts", mw.cfg.MaxRetries, "error", err)
		} else {
			slog.Warn("Auto-save flush failed", "session_id", mw.sessionID, "changes", len(batch), "error", err)
		}
		return err
	}

	if hasProgress {
		if err := mw.writer.UpdateSessionProgress(mw.sessionID, percent); err != nil {
			slog.Warn("Session progress update failed", "session_id", mw.sessionID, "error", err)
		}
	}
	for _, c := range batch {
		_ = mw.writer.LogEvent(mw.sessionID, "info", "State change saved", "", map[string]any{"type": c.Type})
	}

	mw.mu.Lock()
	mw.saves++
	mw.retries = 0
	mw.mu.Unlock()
	slog.Debug("Auto-save flushed", "session_id", mw.sessionID, "changes", len(batch))
	return nil
}

// completionFrom derives the completion percentage from the newest
// task_progress change in the batch. A change carries either an explicit
// percent or a completed/total pair.
func completionFrom(batch []Change) (float64, bool) {
	percent := 0.0
	found := false
	for _, c := range batch {
		if c.Type != ChangeTaskProgress {
			continue
		}
		if completed, ok := num(c.Data["completed"]); ok {
			if total, ok := num(c.Data["total"]); ok && total > 0 {
				percent = completed / total * 100
				found = true
				continue
			}
		}
		if p, ok := num(c.Data["percent"]); ok {
			percent = p
			found = true
		}
	}
	return percent, found
}

func num(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Stop halts the loop after one final flush. Safe to call more than once.
func (mw *Middleware) Stop() error {
	var err error
	mw.stopOnce.Do(func() {
		err = mw.Flush()
		close(mw.stop)
		<-mw.done
	})
	return err
}
