package config

import (
	"path/filepath"
	"time"
)

// ServerConfig is the root configuration for fieldstore-server.
type ServerConfig struct {
	Server    ServerSection    `koanf:"server"`
	Storage   StorageSection   `koanf:"storage"`
	Clock     ClockSection     `koanf:"clock"`
	Notify    NotifySection    `koanf:"notify"`
	Bootstrap BootstrapSection `koanf:"bootstrap"`
	Sweep     SweepSection     `koanf:"sweep"`
	Log       LogSection       `koanf:"log"`
}

// ServerSection configures the agent endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`

	// Socket configures the local management socket.
	Socket SocketConfig `koanf:"socket"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// HTTPConfig configures the metrics and health endpoint. An empty Addr
// disables it.
type HTTPConfig struct {
	Addr string `koanf:"addr"`

	// TLSCertFile and TLSKeyFile serve the endpoint over TLS. The pair
	// is reloaded when the files change.
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// ClientCAFile requires client certificates signed by these CAs.
	// A directory contributes every .pem, .crt and .cer file.
	ClientCAFile string `koanf:"client_ca_file"`
}

// TLSEnabled reports whether the endpoint is served over TLS.
func (c HTTPConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// SocketConfig configures the Unix socket serving the same endpoints
// to local tools.
type SocketConfig struct {
	Enabled bool `koanf:"enabled"`

	// Path is the socket file.
	// Default: <storage.data_dir>/fieldstore.sock
	Path string `koanf:"path"`
}

// StorageSection configures the record store.
type StorageSection struct {
	DataDir    string        `koanf:"data_dir"`
	InMemory   bool          `koanf:"in_memory"`
	SyncWrites bool          `koanf:"sync_writes"`
	GCInterval time.Duration `koanf:"gc_interval"`
	// MemTableSize bounds a single write transaction at 15% of it, so it
	// must leave room for a whole-table backup restore.
	MemTableSize int64 `koanf:"memtable_size"`
}

// ClockSection configures the reference time zone.
type ClockSection struct {
	Timezone string `koanf:"timezone"`
}

// NotifySection configures the cross-process change channel.
type NotifySection struct {
	Enabled bool `koanf:"enabled"`

	// BroadcastDir is the shared channel directory.
	// Default: <storage.data_dir>/broadcast
	BroadcastDir string `koanf:"broadcast_dir"`

	// KeepEvents is how long event files stay in the channel.
	KeepEvents time.Duration `koanf:"keep_events"`
}

// BootstrapSection holds the environment-seeded administrator.
type BootstrapSection struct {
	AdminName     string `koanf:"admin_name"`
	AdminPassword string `koanf:"admin_password"`
	AdminCode     string `koanf:"admin_code"`
}

// IsSet reports whether any bootstrap value is configured.
func (b BootstrapSection) IsSet() bool {
	return b.AdminName != "" || b.AdminPassword != "" || b.AdminCode != ""
}

// SweepSection configures the expiration sweep schedule. The sweep
// always runs at startup and at each reference-zone midnight.
type SweepSection struct {
	// Interval is the safety re-sweep interval. Zero disables it.
	Interval time.Duration `koanf:"interval"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// BroadcastDir returns the effective channel directory.
func (c *ServerConfig) BroadcastDir() string {
	if c.Notify.BroadcastDir != "" {
		return c.Notify.BroadcastDir
	}
	if c.Storage.InMemory || c.Storage.DataDir == "" {
		return ""
	}
	return filepath.Join(c.Storage.DataDir, "broadcast")
}

// SocketPath returns the effective management socket path, empty when
// the socket is disabled or has nowhere to live.
func (c *ServerConfig) SocketPath() string {
	if !c.Server.Socket.Enabled {
		return ""
	}
	if c.Server.Socket.Path != "" {
		return c.Server.Socket.Path
	}
	if c.Storage.InMemory || c.Storage.DataDir == "" {
		return ""
	}
	return filepath.Join(c.Storage.DataDir, DefaultSocketName)
}

// Keys lists every configuration key in dotted form.
func Keys() []string {
	return []string{
		"server.http.addr",
		"server.http.tls_cert_file",
		"server.http.tls_key_file",
		"server.http.client_ca_file",
		"server.shutdown_timeout",
		"server.socket.enabled",
		"server.socket.path",
		"storage.data_dir",
		"storage.in_memory",
		"storage.sync_writes",
		"storage.gc_interval",
		"storage.memtable_size",
		"clock.timezone",
		"notify.enabled",
		"notify.broadcast_dir",
		"notify.keep_events",
		"bootstrap.admin_name",
		"bootstrap.admin_password",
		"bootstrap.admin_code",
		"sweep.interval",
		"log.level",
		"log.format",
	}
}
