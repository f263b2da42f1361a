package config

import (
	"fmt"
	"strings"

	"github.com/yndnr/fieldstore-go/internal/infra/confloader"
)

// Load builds the configuration from defaults, the optional YAML file at
// path and FIELDSTORE_ environment variables. overrides (dotted keys, e.g.
// from command-line flags) win over everything else. A file key that is
// not part of the schema is an error so typos do not go unnoticed.
func Load(path string, overrides map[string]any) (*ServerConfig, error) {
	cfg := Default()
	loader := confloader.NewLoader(confloader.WithKnownKeys(Keys()...))

	if path != "" {
		if err := loader.LoadFile(path); err != nil {
			return nil, err
		}
		if unknown := loader.Unknown(); len(unknown) > 0 {
			return nil, fmt.Errorf("%s: unknown keys: %s", path, strings.Join(unknown, ", "))
		}
	}
	if err := loader.LoadEnv(); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
