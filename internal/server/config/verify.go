package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/telemetry/logger"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// Verify validates the configuration and creates the data directory.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if _, err := tzclock.New(cfg.Clock.Timezone, nil); err != nil {
		return fmt.Errorf("clock.timezone: %w", err)
	}
	if cfg.Notify.KeepEvents < 0 {
		return errors.New("notify.keep_events must not be negative")
	}
	if cfg.Sweep.Interval < 0 {
		return errors.New("sweep.interval must not be negative")
	}
	if err := verifyBootstrap(&cfg.Bootstrap); err != nil {
		return err
	}
	if !logger.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level %q must be debug, info, warn or error", cfg.Log.Level)
	}
	switch strings.ToLower(cfg.Log.Format) {
	case "json", "text", "console":
	default:
		return fmt.Errorf("log.format %q must be json or text", cfg.Log.Format)
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if cfg.HTTP.Addr != "" {
		if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
			return fmt.Errorf("server.http.addr %q: %w", cfg.HTTP.Addr, err)
		}
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and server.http.tls_key_file must be set together")
	}
	if cfg.HTTP.ClientCAFile != "" && !cfg.HTTP.TLSEnabled() {
		return errors.New("server.http.client_ca_file requires server.http.tls_cert_file")
	}
	if cfg.ShutdownTimeout < 0 {
		return errors.New("server.shutdown_timeout must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	if cfg.MemTableSize < MinMemTableSize {
		return fmt.Errorf("storage.memtable_size must be at least %d bytes", MinMemTableSize)
	}
	if cfg.InMemory {
		return nil
	}
	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return fmt.Errorf("cannot create data directory: %w", err)
	}
	if cfg.GCInterval < 0 {
		return errors.New("storage.gc_interval must not be negative")
	}
	return nil
}

// verifyBootstrap accepts an empty section; a partial one is an error.
func verifyBootstrap(cfg *BootstrapSection) error {
	if !cfg.IsSet() {
		return nil
	}
	if _, err := domain.ParseCode(cfg.AdminCode); err != nil {
		return fmt.Errorf("bootstrap.admin_code: %w", err)
	}
	if strings.TrimSpace(cfg.AdminName) == "" {
		return errors.New("bootstrap.admin_name is required when bootstrapping an administrator")
	}
	if cfg.AdminPassword == "" {
		return errors.New("bootstrap.admin_password is required when bootstrapping an administrator")
	}
	return nil
}
