package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// PersistenceStatus is the outcome of a persistence capability probe.
type PersistenceStatus struct {
	// Supported is false when the store cannot persist at all
	// (in-memory mode).
	Supported bool `json:"supported"`
	// Persisted is true when committed data survives a restart.
	Persisted bool `json:"persisted"`
	// Reason explains a negative or degraded result.
	Reason string `json:"reason,omitempty"`
}

// ProbePersistence checks whether committed data will survive a restart
// by writing and syncing a marker file in the data directory. The probe
// never fails; problems are reported in the result.
func (s *Store) ProbePersistence() PersistenceStatus {
	if s.cfg.InMemory {
		return PersistenceStatus{Supported: false, Reason: "store runs in memory"}
	}

	path := filepath.Join(s.cfg.Dir, ".persistence-probe")
	if err := writeSynced(path); err != nil {
		return PersistenceStatus{Supported: true, Persisted: false, Reason: err.Error()}
	}
	_ = os.Remove(path)

	if !s.cfg.SyncWrites {
		return PersistenceStatus{
			Supported: true,
			Persisted: true,
			Reason:    "sync writes disabled: the latest commits may be lost on power failure",
		}
	}
	return PersistenceStatus{Supported: true, Persisted: true}
}

func writeSynced(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("data dir not writable: %w", err)
	}
	if _, err := f.Write([]byte("ok")); err != nil {
		f.Close()
		return fmt.Errorf("write probe: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync probe: %w", err)
	}
	return f.Close()
}
