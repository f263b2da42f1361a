package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yndnr/fieldstore-go/internal/core/service"
	"github.com/yndnr/fieldstore-go/internal/notify"
	serverconfig "github.com/yndnr/fieldstore-go/internal/server/config"
	"github.com/yndnr/fieldstore-go/internal/storage"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// Env is an open store with its services.
type Env struct {
	Config    *serverconfig.ServerConfig
	Clock     *tzclock.Service
	Store     *storage.Store
	Bus       *notify.Bus
	Users     *service.UserService
	Auth      *service.AuthService
	Lifecycle *service.LifecycleService
	Sync      *service.SyncService
	Backup    *service.BackupService

	key string
}

// LoadServerConfig loads the server configuration named by s, applying
// the data directory override.
func LoadServerConfig(s *Settings) (*serverconfig.ServerConfig, error) {
	overrides := map[string]any{}
	if s.DataDir != "" {
		overrides["storage.data_dir"] = s.DataDir
	}
	cfg, err := serverconfig.Load(s.Config, overrides)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// OpenEnv opens the store described by s. Changes are published to the
// broadcast directory so running listeners see them.
func OpenEnv(s *Settings, clock tzclock.Clock, logger *slog.Logger) (*Env, error) {
	cfg, err := LoadServerConfig(s)
	if err != nil {
		return nil, err
	}

	tz, err := tzclock.New(cfg.Clock.Timezone, clock)
	if err != nil {
		return nil, err
	}

	storeCfg := storage.DefaultConfig(cfg.Storage.DataDir)
	storeCfg.InMemory = cfg.Storage.InMemory
	storeCfg.SyncWrites = cfg.Storage.SyncWrites && !cfg.Storage.InMemory
	storeCfg.GCInterval = 0
	storeCfg.MemTableSize = cfg.Storage.MemTableSize
	storeCfg.Clock = tz
	storeCfg.Logger = logger.With("component", "storage")
	store, err := storage.Open(storeCfg)
	if err != nil {
		if errors.Is(err, storage.ErrLocked) {
			return nil, fmt.Errorf("data directory %s is in use, stop the agent or use the agent commands: %w", cfg.Storage.DataDir, err)
		}
		return nil, fmt.Errorf("open store: %w", err)
	}

	busCfg := notify.Config{Clock: tz, Logger: logger.With("component", "notify")}
	if dir := cfg.BroadcastDir(); cfg.Notify.Enabled && dir != "" {
		ch, err := notify.NewDirChannel(notify.DirConfig{
			Dir:        dir,
			KeepEvents: cfg.Notify.KeepEvents,
			Logger:     busCfg.Logger,
		})
		if err != nil {
			store.Close()
			return nil, err
		}
		busCfg.Broadcast = ch
	}
	bus := notify.NewBus(busCfg)
	store.SetNotifier(bus)

	opts := service.Options{Clock: tz, Logger: logger.With("component", "service")}
	lifecycle := service.NewLifecycleService(store, nil, opts)

	// Opening the store is its initialization: bring expiration state up
	// to date before any command reads orders.
	if r, err := lifecycle.SweepExpirations(context.Background(), nil); err != nil {
		logger.Warn("startup expiration sweep failed", "error", err)
	} else if r.Changed() {
		logger.Info("startup expiration sweep applied",
			"expired", r.Expired,
			"restored", r.Restored,
			"version", r.Version)
	}

	return &Env{
		Config:    cfg,
		Clock:     tz,
		Store:     store,
		Bus:       bus,
		Users:     service.NewUserService(store, opts),
		Auth:      service.NewAuthService(store, service.DefaultAuthServiceConfig(), opts),
		Lifecycle: lifecycle,
		Sync:      service.NewSyncService(store, opts),
		Backup:    service.NewBackupService(store, lifecycle, opts),
		key:       s.envKey(),
	}, nil
}

// Close closes the store.
func (e *Env) Close() error {
	return e.Store.Close()
}
