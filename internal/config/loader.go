package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".hivemind"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file. HIVEMIND_CONFIG overrides
// the default location; a leading ~ expands to the home directory.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("HIVEMIND_CONFIG")); explicit != "" {
		return expandHome(explicit)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func expandHome(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, path[1:]), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults. A missing file is not an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	envconfig.Process("HIVEMIND_PATHS", &cfg.Paths)
	envconfig.Process("HIVEMIND_POOL", &cfg.Pool)
	envconfig.Process("HIVEMIND_MEMORY", &cfg.Memory)
	envconfig.Process("HIVEMIND_AUTOSAVE", &cfg.AutoSave)
	envconfig.Process("HIVEMIND_CONSENSUS", &cfg.Consensus)
	envconfig.Process("HIVEMIND_AGENT", &cfg.Agent)

	if cfg.Paths.DataDir, err = expandHome(cfg.Paths.DataDir); err != nil {
		return nil, err
	}
	if cfg.Paths.Database, err = expandHome(cfg.Paths.Database); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the config file, creating the directory
// as needed.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
