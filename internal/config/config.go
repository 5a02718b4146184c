// Package config holds the runtime configuration for the hive mind,
// loaded from a JSON file with HIVEMIND_* environment overrides.
package config

import "time"

// PathsConfig points at on-disk locations.
type PathsConfig struct {
	DataDir  string `json:"dataDir" envconfig:"DATA_DIR"`
	Database string `json:"database" envconfig:"DATABASE"`
}

// PoolConfig caps the shared resources available to spawned agents.
type PoolConfig struct {
	MemoryMB int     `json:"memoryMb" envconfig:"MEMORY_MB"`
	CPU      float64 `json:"cpu" envconfig:"CPU"`
}

// MemoryConfig tunes the shared memory store.
type MemoryConfig struct {
	Capacity   int           `json:"capacity" envconfig:"CAPACITY"`
	DefaultTTL time.Duration `json:"defaultTtl" envconfig:"DEFAULT_TTL"`
	SweepEvery time.Duration `json:"sweepEvery" envconfig:"SWEEP_EVERY"`
}

// AutoSaveConfig controls checkpoint batching.
type AutoSaveConfig struct {
	Interval   time.Duration `json:"interval" envconfig:"INTERVAL"`
	MaxRetries int           `json:"maxRetries" envconfig:"MAX_RETRIES"`
}

// ConsensusConfig tunes vote evaluation.
type ConsensusConfig struct {
	MinParticipation float64       `json:"minParticipation" envconfig:"MIN_PARTICIPATION"`
	DefaultTimeout   time.Duration `json:"defaultTimeout" envconfig:"DEFAULT_TIMEOUT"`
}

// AgentConfig tunes agent lifecycle behavior.
type AgentConfig struct {
	InitDelay time.Duration `json:"initDelay" envconfig:"INIT_DELAY"`
}

// Config is the root configuration.
type Config struct {
	Paths     PathsConfig     `json:"paths"`
	Pool      PoolConfig      `json:"pool"`
	Memory    MemoryConfig    `json:"memory"`
	AutoSave  AutoSaveConfig  `json:"autoSave"`
	Consensus ConsensusConfig `json:"consensus"`
	Agent     AgentConfig     `json:"agent"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir:  "~/.hivemind",
			Database: "~/.hivemind/hive.db",
		},
		Pool: PoolConfig{
			MemoryMB: 4096,
			CPU:      8.0,
		},
		Memory: MemoryConfig{
			Capacity:   1000,
			DefaultTTL: 0,
			SweepEvery: 30 * time.Second,
		},
		AutoSave: AutoSaveConfig{
			Interval:   30 * time.Second,
			MaxRetries: 3,
		},
		Consensus: ConsensusConfig{
			MinParticipation: 0,
			DefaultTimeout:   30 * time.Second,
		},
		Agent: AgentConfig{
			InitDelay: 100 * time.Millisecond,
		},
	}
}
