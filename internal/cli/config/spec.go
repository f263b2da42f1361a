package config

// CLIConfig is the configuration for fieldstore-cli.
type CLIConfig struct {
	// DefaultOutput is the output format used when no profile sets one.
	DefaultOutput string `yaml:"default_output"` // table, json, yaml

	// Profiles are the saved profiles by name.
	Profiles map[string]Profile `yaml:"profiles"`

	// CurrentProfile names the profile used when --profile is not given.
	CurrentProfile string `yaml:"current_profile"`
}

// Profile stores the settings of one environment.
type Profile struct {
	// Config is the server configuration file (fieldstore.yaml).
	Config string `yaml:"config,omitempty"`

	// DataDir overrides storage.data_dir from Config.
	DataDir string `yaml:"data_dir,omitempty"`

	// Agent is the running agent: a socket path, unix:// URL or HTTP address.
	Agent string `yaml:"agent,omitempty"`

	// Output overrides DefaultOutput.
	Output string `yaml:"output,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		DefaultOutput: "table",
		Profiles:      make(map[string]Profile),
	}
}

// Resolve returns the named profile, or the current profile when name is
// empty. The profile's output falls back to DefaultOutput.
func (c *CLIConfig) Resolve(name string) (Profile, bool) {
	if name == "" {
		name = c.CurrentProfile
	}
	p, ok := c.Profiles[name]
	if name == "" {
		ok = true
	}
	if p.Output == "" {
		p.Output = c.DefaultOutput
	}
	return p, ok
}
