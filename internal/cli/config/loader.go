package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Merge.
const (
	EnvConfig  = "FIELDSTORE_CONFIG"
	EnvDataDir = "FIELDSTORE_DATA_DIR"
	EnvAgent   = "FIELDSTORE_AGENT"
	EnvOutput  = "FIELDSTORE_OUTPUT"
)

// DefaultConfigPath returns the default CLI config file path.
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".fieldstore", "cli.yaml")
}

// Load loads CLI configuration from file. A missing file yields Default.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read cli config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse cli config %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	if cfg.DefaultOutput == "" {
		cfg.DefaultOutput = "table"
	}
	return cfg, nil
}

// Save writes the CLI configuration with owner-only permissions.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encode cli config: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Merge overrides p with FIELDSTORE_* environment variables, then with
// non-empty flag values keyed "config", "data-dir", "agent" and "output".
func Merge(p Profile, env map[string]string, flags map[string]string) Profile {
	apply := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}

	apply(&p.Config, env[EnvConfig])
	apply(&p.DataDir, env[EnvDataDir])
	apply(&p.Agent, env[EnvAgent])
	apply(&p.Output, env[EnvOutput])

	apply(&p.Config, flags["config"])
	apply(&p.DataDir, flags["data-dir"])
	apply(&p.Agent, flags["agent"])
	apply(&p.Output, flags["output"])
	return p
}

// Environ returns the FIELDSTORE_* variables read by Merge.
func Environ() map[string]string {
	env := make(map[string]string)
	for _, k := range []string{EnvConfig, EnvDataDir, EnvAgent, EnvOutput} {
		if v, ok := os.LookupEnv(k); ok {
			env[k] = v
		}
	}
	return env
}
