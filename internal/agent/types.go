// Package agent implements the agent registry and resource manager.
package agent

import "time"

// Type classifies an agent's role in the hive.
type Type string

const (
	TypeResearcher  Type = "researcher"
	TypeCoder       Type = "coder"
	TypeAnalyst     Type = "analyst"
	TypeArchitect   Type = "architect"
	TypeTester      Type = "tester"
	TypeCoordinator Type = "coordinator"
)

// Agent lifecycle status constants.
const (
	StatusInitializing = "initializing"
	StatusActive       = "active"
	StatusBusy         = "busy"
	StatusIdle         = "idle"
	StatusTerminated   = "terminated"
)

// ResourceCost is the pool reservation an agent type requires.
type ResourceCost struct {
	MemoryMB int     `json:"memory_mb"`
	CPU      float64 `json:"cpu"`
}

// Profile describes the fixed defaults for an agent type.
type Profile struct {
	Capabilities []string     `json:"capabilities"`
	Cost         ResourceCost `json:"cost"`
}

// profiles is the fixed per-type capability and cost table.
var profiles = map[Type]Profile{
	TypeResearcher: {
		Capabilities: []string{"web_search", "document_analysis", "synthesis"},
		Cost:         ResourceCost{MemoryMB: 256, CPU: 0.5},
	},
	TypeCoder: {
		Capabilities: []string{"code_generation", "refactoring", "debugging"},
		Cost:         ResourceCost{MemoryMB: 512, CPU: 1.0},
	},
	TypeAnalyst: {
		Capabilities: []string{"data_analysis", "metrics", "reporting"},
		Cost:         ResourceCost{MemoryMB: 384, CPU: 0.75},
	},
	TypeArchitect: {
		Capabilities: []string{"system_design", "api_design", "review"},
		Cost:         ResourceCost{MemoryMB: 384, CPU: 0.75},
	},
	TypeTester: {
		Capabilities: []string{"test_generation", "test_execution", "validation"},
		Cost:         ResourceCost{MemoryMB: 256, CPU: 0.5},
	},
	TypeCoordinator: {
		Capabilities: []string{"task_routing", "progress_tracking", "consensus"},
		Cost:         ResourceCost{MemoryMB: 128, CPU: 0.25},
	},
}

// ValidTypes returns the fixed agent type enumeration in a stable order.
func ValidTypes() []Type {
	return []Type{TypeResearcher, TypeCoder, TypeAnalyst, TypeArchitect, TypeTester, TypeCoordinator}
}

// ProfileFor returns the fixed profile for a type, if it exists.
func ProfileFor(t Type) (Profile, bool) {
	p, ok := profiles[t]
	return p, ok
}

// Agent is a logical worker tracked by the registry.
type Agent struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         Type           `json:"type"`
	Status       string         `json:"status"`
	Capabilities []string       `json:"capabilities"`
	Cost         ResourceCost   `json:"cost"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActive   time.Time      `json:"last_active"`
	TaskCount    int            `json:"task_count"`
	SuccessRate  float64        `json:"success_rate"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// PoolUsage is a snapshot of the resource ledger.
type PoolUsage struct {
	MemoryUsedMB  int     `json:"memory_used_mb"`
	MemoryTotalMB int     `json:"memory_total_mb"`
	CPUUsed       float64 `json:"cpu_used"`
	CPUTotal      float64 `json:"cpu_total"`
	AgentCount    int     `json:"agent_count"`
}
