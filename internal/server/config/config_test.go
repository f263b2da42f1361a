package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Storage.DataDir != DefaultDataDir || !cfg.Storage.SyncWrites || cfg.Storage.MemTableSize != 256<<20 {
		t.Errorf("Storage = %+v", cfg.Storage)
	}
	if cfg.Clock.Timezone != "America/Santiago" {
		t.Errorf("Timezone = %q", cfg.Clock.Timezone)
	}
	if !cfg.Notify.Enabled || cfg.Notify.KeepEvents != DefaultKeepEvents {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if cfg.Sweep.Interval != time.Hour {
		t.Errorf("Sweep.Interval = %v", cfg.Sweep.Interval)
	}
	if cfg.Bootstrap.IsSet() {
		t.Error("bootstrap should be empty by default")
	}
	if cfg.Log.Level != DefaultLogLevel || cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestBroadcastDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/data"
	if got := cfg.BroadcastDir(); got != filepath.Join("/data", "broadcast") {
		t.Errorf("BroadcastDir() = %q", got)
	}

	cfg.Notify.BroadcastDir = "/shared/channel"
	if got := cfg.BroadcastDir(); got != "/shared/channel" {
		t.Errorf("BroadcastDir() = %q, want explicit value", got)
	}

	cfg.Notify.BroadcastDir = ""
	cfg.Storage.InMemory = true
	if got := cfg.BroadcastDir(); got != "" {
		t.Errorf("BroadcastDir() = %q, want empty for in-memory stores", got)
	}
}

func TestSocketPath(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/data"
	if got := cfg.SocketPath(); got != filepath.Join("/data", DefaultSocketName) {
		t.Errorf("SocketPath() = %q", got)
	}

	cfg.Server.Socket.Path = "/run/fieldstore.sock"
	if got := cfg.SocketPath(); got != "/run/fieldstore.sock" {
		t.Errorf("SocketPath() = %q, want explicit value", got)
	}

	cfg.Server.Socket.Enabled = false
	if got := cfg.SocketPath(); got != "" {
		t.Errorf("SocketPath() = %q, want empty when disabled", got)
	}

	cfg.Server.Socket = SocketConfig{Enabled: true}
	cfg.Storage.InMemory = true
	if got := cfg.SocketPath(); got != "" {
		t.Errorf("SocketPath() = %q, want empty for in-memory stores", got)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fieldstore.yaml")
	content := `
storage:
  data_dir: ` + filepath.Join(dir, "data") + `
  memtable_size: 134217728
clock:
  timezone: UTC
sweep:
  interval: 30m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	t.Setenv("FIELDSTORE_BOOTSTRAP_ADMIN_NAME", "Admin")
	t.Setenv("FIELDSTORE_BOOTSTRAP_ADMIN_PASSWORD", "changeme")
	t.Setenv("FIELDSTORE_BOOTSTRAP_ADMIN_CODE", "1")
	t.Setenv("FIELDSTORE_LOG_LEVEL", "warn")

	cfg, err := Load(path, map[string]any{"server.http.addr": "127.0.0.1:9090"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Clock.Timezone != "UTC" || cfg.Sweep.Interval != 30*time.Minute {
		t.Errorf("file values not applied: %+v %+v", cfg.Clock, cfg.Sweep)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want env override", cfg.Log.Level)
	}
	if cfg.Bootstrap.AdminName != "Admin" || cfg.Bootstrap.AdminPassword != "changeme" || cfg.Bootstrap.AdminCode != "1" {
		t.Errorf("Bootstrap = %+v", cfg.Bootstrap)
	}
	if cfg.Server.HTTP.Addr != "127.0.0.1:9090" {
		t.Errorf("HTTP.Addr = %q, want override", cfg.Server.HTTP.Addr)
	}
	if cfg.Storage.MemTableSize != 128<<20 {
		t.Errorf("MemTableSize = %d, want file value", cfg.Storage.MemTableSize)
	}
	if cfg.Storage.GCInterval != DefaultGCInterval {
		t.Errorf("GCInterval = %v, want default kept", cfg.Storage.GCInterval)
	}
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify() error = %v", err)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fieldstore.yaml")
	if err := os.WriteFile(path, []byte("sweep:\n  interval: 1h\n  every: 2h\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	_, err := Load(path, nil)
	if err == nil || !strings.Contains(err.Error(), "sweep.every") {
		t.Fatalf("Load() error = %v, want unknown key sweep.every", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/fieldstore.yaml", nil); err == nil {
		t.Error("Load() should fail for a missing file")
	}
}

func TestVerify(t *testing.T) {
	valid := func(t *testing.T) *ServerConfig {
		cfg := Default()
		cfg.Storage.DataDir = filepath.Join(t.TempDir(), "data")
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *ServerConfig)
		wantErr string
	}{
		{"valid", func(cfg *ServerConfig) {}, ""},
		{"in-memory without dir", func(cfg *ServerConfig) { cfg.Storage.InMemory = true; cfg.Storage.DataDir = "" }, ""},
		{"http disabled", func(cfg *ServerConfig) { cfg.Server.HTTP.Addr = "" }, ""},
		{"missing data dir", func(cfg *ServerConfig) { cfg.Storage.DataDir = "" }, "storage.data_dir"},
		{"bad addr", func(cfg *ServerConfig) { cfg.Server.HTTP.Addr = "localhost" }, "server.http.addr"},
		{"bad timezone", func(cfg *ServerConfig) { cfg.Clock.Timezone = "Mars/Olympus" }, "clock.timezone"},
		{"negative sweep", func(cfg *ServerConfig) { cfg.Sweep.Interval = -time.Second }, "sweep.interval"},
		{"partial bootstrap", func(cfg *ServerConfig) { cfg.Bootstrap.AdminName = "Admin" }, "bootstrap.admin_code"},
		{"bootstrap without password", func(cfg *ServerConfig) {
			cfg.Bootstrap = BootstrapSection{AdminName: "Admin", AdminCode: "1"}
		}, "bootstrap.admin_password"},
		{"tls cert without key", func(cfg *ServerConfig) { cfg.Server.HTTP.TLSCertFile = "/etc/fs/server.crt" }, "server.http.tls_key_file"},
		{"client ca without tls", func(cfg *ServerConfig) { cfg.Server.HTTP.ClientCAFile = "/etc/fs/ca.pem" }, "server.http.client_ca_file"},
		{"tls pair", func(cfg *ServerConfig) {
			cfg.Server.HTTP.TLSCertFile = "/etc/fs/server.crt"
			cfg.Server.HTTP.TLSKeyFile = "/etc/fs/server.key"
		}, ""},
		{"small memtable", func(cfg *ServerConfig) { cfg.Storage.MemTableSize = 1 << 20 }, "storage.memtable_size"},
		{"large memtable", func(cfg *ServerConfig) { cfg.Storage.MemTableSize = 512 << 20 }, ""},
		{"bad log level", func(cfg *ServerConfig) { cfg.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(cfg *ServerConfig) { cfg.Log.Format = "xml" }, "log.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid(t)
			tt.mutate(cfg)
			err := Verify(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Verify() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Verify() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestVerify_CreatesDataDir(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = filepath.Join(t.TempDir(), "nested", "data")
	if err := Verify(cfg); err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if _, err := os.Stat(cfg.Storage.DataDir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}

func TestSanitize(t *testing.T) {
	cfg := Default()
	cfg.Bootstrap.AdminPassword = "super-secret-password"

	sanitized := Sanitize(cfg)
	if cfg.Bootstrap.AdminPassword != "super-secret-password" {
		t.Error("Sanitize() modified the original")
	}
	if sanitized.Bootstrap.AdminPassword == "super-secret-password" {
		t.Error("password not masked")
	}
	if !strings.HasPrefix(sanitized.Bootstrap.AdminPassword, "su") || !strings.HasSuffix(sanitized.Bootstrap.AdminPassword, "rd") {
		t.Errorf("masked = %q", sanitized.Bootstrap.AdminPassword)
	}
	if maskSecret("abc") != "****" {
		t.Errorf("maskSecret(short) = %q", maskSecret("abc"))
	}
}

func TestKeys_CoverSchema(t *testing.T) {
	seen := make(map[string]bool)
	for _, k := range Keys() {
		if seen[k] {
			t.Errorf("duplicate key %s", k)
		}
		seen[k] = true
	}
	for _, k := range []string{"storage.data_dir", "bootstrap.admin_code", "notify.broadcast_dir"} {
		if !seen[k] {
			t.Errorf("Keys() missing %s", k)
		}
	}
}
