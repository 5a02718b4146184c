package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Task status constants.
const (
	TaskPending    = "pending"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"
	TaskCancelled  = "cancelled"
)

// Task is a unit of assigned work. Dependency readiness is enforced by
// callers; this type only guarantees the dependency graph stays acyclic.
type Task struct {
	ID              string    `json:"id"`
	Description     string    `json:"description"`
	Status          string    `json:"status"`
	Priority        int       `json:"priority"`
	AssignedAgentID string    `json:"assigned_agent_id,omitempty"`
	DependsOn       []string  `json:"depends_on,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// TaskBoard tracks the session's tasks.
type TaskBoard struct {
	mu    sync.RWMutex
	tasks map[string]*Task
}

// NewTaskBoard creates an empty task board.
func NewTaskBoard() *TaskBoard {
	return &TaskBoard{tasks: make(map[string]*Task)}
}

// Add creates a new pending task.
func (b *TaskBoard) Add(description string, priority int) *Task {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	t := &Task{
		ID:          uuid.NewString(),
		Description: description,
		Status:      TaskPending,
		Priority:    priority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	b.tasks[t.ID] = t
	return t
}

// AddDependency records that task depends on dep. Rejects unknown ids and
// any edge that would close a cycle.
func (b *TaskBoard) AddDependency(taskID, depID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: not found", taskID)
	}
	if _, ok := b.tasks[depID]; !ok {
		return fmt.Errorf("dependency %s: not found", depID)
	}
	if taskID == depID || b.reachableLocked(depID, taskID) {
		return fmt.Errorf("dependency %s -> %s would create a cycle", taskID, depID)
	}
	for _, d := range t.DependsOn {
		if d == depID {
			return nil
		}
	}
	t.DependsOn = append(t.DependsOn, depID)
	t.UpdatedAt = time.Now()
	return nil
}

// reachableLocked reports whether target is reachable from start via DependsOn.
func (b *TaskBoard) reachableLocked(start, target string) bool {
	stack := []string{start}
	seen := map[string]bool{}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur == target {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if t, ok := b.tasks[cur]; ok {
			stack = append(stack, t.DependsOn...)
		}
	}
	return false
}

// SetStatus transitions a task and records the assigned agent if any.
func (b *TaskBoard) SetStatus(taskID, status, agentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %s: not found", taskID)
	}
	t.Status = status
	if agentID != "" {
		t.AssignedAgentID = agentID
	}
	t.UpdatedAt = time.Now()
	return nil
}

// Get returns a copy of one task.
func (b *TaskBoard) Get(taskID string) (*Task, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tasks[taskID]
	if !ok {
		return nil, false
	}
	cp := *t
	cp.DependsOn = append([]string(nil), t.DependsOn...)
	return &cp, true
}

// All returns copies of every task.
func (b *TaskBoard) All() []*Task {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Task, 0, len(b.tasks))
	for _, t := range b.tasks {
		cp := *t
		cp.DependsOn = append([]string(nil), t.DependsOn...)
		out = append(out, &cp)
	}
	return out
}

// CompletionRatio returns completed/total as a 0-100 percentage, 0 when empty.
func (b *TaskBoard) CompletionRatio() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.tasks) == 0 {
		return 0
	}
	completed := 0
	for _, t := range b.tasks {
		if t.Status == TaskCompleted {
			completed++
		}
	}
	return float64(completed) / float64(len(b.tasks)) * 100
}
