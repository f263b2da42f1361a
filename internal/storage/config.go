package storage

import (
	"log/slog"
	"time"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/telemetry/metric"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// ChangeNotifier receives one notification per committed change.
// Implementations must not block.
type ChangeNotifier interface {
	NotifyChange(family domain.Family, reason string)
}

// Config configures the record store.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string

	// InMemory keeps all data in memory (tests, dry runs).
	InMemory bool

	// SyncWrites enables fsync after each commit.
	// Default: true (the store is the only copy of field data)
	SyncWrites bool

	// GCInterval is the interval between value-log GC runs.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 32MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// MemTableSize is the memtable size in bytes. A single write
	// transaction is limited to 15% of it, so whole-table replaces
	// (backup import, unscoped snapshot apply) need room for the full
	// table.
	// Default: 256MB
	MemTableSize int64

	// Clock stamps change-log lines. Default: reference zone, system clock.
	Clock *tzclock.Service

	// Notifier receives change notifications. Optional.
	Notifier ChangeNotifier

	// Metrics records store metrics. Optional.
	Metrics *metric.Registry

	// Logger is the structured logger.
	Logger *slog.Logger
}

// DefaultMemTableSize allows write transactions of about 38MB.
const DefaultMemTableSize int64 = 256 << 20

// DefaultConfig returns the default store configuration.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:              dir,
		SyncWrites:       true,
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        32 << 20,
		ValueLogFileSize: 256 << 20,
		MemTableSize:     DefaultMemTableSize,
	}
}

// InMemoryConfig returns a configuration for an in-memory store.
func InMemoryConfig() Config {
	cfg := DefaultConfig("")
	cfg.InMemory = true
	cfg.SyncWrites = false
	return cfg
}
