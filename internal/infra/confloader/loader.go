package confloader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "FIELDSTORE_"

// Loader loads configuration from multiple sources.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	knownKeys map[string]string
	fileKeys  []string
	loaded    bool
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithKnownKeys registers the dotted configuration keys so environment
// variables can address keys that contain underscores:
// FIELDSTORE_STORAGE_DATA_DIR resolves to storage.data_dir instead of
// storage.data.dir.
func WithKnownKeys(keys ...string) Option {
	return func(l *Loader) {
		for _, k := range keys {
			l.knownKeys[strings.ReplaceAll(k, ".", "_")] = k
		}
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
		knownKeys: make(map[string]string),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load reads the file (if any) and the environment and unmarshals the
// result into target. Fields of target without a configured value keep
// what target already holds, so callers pass a struct filled with
// defaults.
func (l *Loader) Load(target any) error {
	if l.filePath != "" {
		if err := l.LoadFile(l.filePath); err != nil {
			return fmt.Errorf("load config file: %w", err)
		}
	}

	if err := l.LoadEnv(); err != nil {
		return fmt.Errorf("load env: %w", err)
	}

	if err := l.Unmarshal(target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	l.loaded = true
	return nil
}

// LoadFile loads configuration from a YAML file. The file is parsed on
// its own first so Unknown can report keys that came from it.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}

	fk := koanf.New(".")
	if err := fk.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("load file %s: %w", path, err)
	}
	if err := l.k.Merge(fk); err != nil {
		return fmt.Errorf("merge file %s: %w", path, err)
	}
	l.fileKeys = append(l.fileKeys, fk.Keys()...)
	return nil
}

// Unknown returns the keys read from configuration files that are not
// registered with WithKnownKeys, sorted. Environment variables are not
// checked since the prefix is shared with unrelated settings. Without
// registered keys nothing is unknown.
func (l *Loader) Unknown() []string {
	if len(l.knownKeys) == 0 {
		return nil
	}
	known := make(map[string]struct{}, len(l.knownKeys))
	for _, k := range l.knownKeys {
		known[k] = struct{}{}
	}
	seen := make(map[string]struct{})
	var out []string
	for _, k := range l.fileKeys {
		if _, ok := known[k]; ok {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadEnv loads configuration from environment variables carrying the
// loader prefix.
func (l *Loader) LoadEnv() error {
	provider := env.Provider(l.envPrefix, ".", l.envKey)
	if err := l.k.Load(provider, nil); err != nil {
		return fmt.Errorf("load env: %w", err)
	}
	return nil
}

// envKey maps FIELDSTORE_SERVER_HTTP_ADDR to server.http.addr, preferring
// a registered key when one matches.
func (l *Loader) envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, l.envPrefix))
	if key, ok := l.knownKeys[s]; ok {
		return key
	}
	return strings.ReplaceAll(s, "_", ".")
}

// LoadMap loads configuration from a map (flags, tests).
func (l *Loader) LoadMap(data map[string]any) error {
	if err := l.k.Load(mapProvider(data), nil); err != nil {
		return fmt.Errorf("load map: %w", err)
	}
	return nil
}

// Unmarshal unmarshals the loaded configuration into the target struct
// using koanf tags.
func (l *Loader) Unmarshal(target any) error {
	return l.k.Unmarshal("", target)
}

// Get returns a value from the configuration by key.
func (l *Loader) Get(key string) any {
	return l.k.Get(key)
}

// GetString returns a string value from the configuration.
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetBool returns a bool value from the configuration.
func (l *Loader) GetBool(key string) bool {
	return l.k.Bool(key)
}

// IsLoaded returns true if configuration has been loaded.
func (l *Loader) IsLoaded() bool {
	return l.loaded
}

// Keys returns all loaded configuration keys.
func (l *Loader) Keys() []string {
	return l.k.Keys()
}
