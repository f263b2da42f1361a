package service

import (
	"context"
	"testing"
	"time"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/storage"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// testEnv wires every service onto one in-memory store with a fixed
// clock in the reference zone.
type testEnv struct {
	store     *storage.Store
	clock     *tzclock.FixedClock
	tz        *tzclock.Service
	users     *UserService
	lifecycle *LifecycleService
	sync      *SyncService
	backup    *BackupService
}

// santiagoNoon is 2024-01-13 12:00 in America/Santiago (UTC-3 in summer).
var santiagoNoon = time.Date(2024, 1, 13, 15, 0, 0, 0, time.UTC)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	clock := tzclock.NewFixedClock(santiagoNoon)
	tz := tzclock.MustNew("", clock)

	cfg := storage.InMemoryConfig()
	cfg.Clock = tz
	store, err := storage.Open(cfg)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	opts := Options{Clock: tz}
	lifecycle := NewLifecycleService(store, nil, opts)
	return &testEnv{
		store:     store,
		clock:     clock,
		tz:        tz,
		users:     NewUserService(store, opts),
		lifecycle: lifecycle,
		sync:      NewSyncService(store, opts),
		backup:    NewBackupService(store, lifecycle, opts),
	}
}

func (e *testEnv) version(t *testing.T, family domain.Family) uint64 {
	t.Helper()
	m, err := e.store.Meta(context.Background(), family)
	if err != nil {
		t.Fatalf("Meta(%s) error = %v", family, err)
	}
	return m.Version
}

func (e *testEnv) addMaintainer(t *testing.T, code int64, speciality int64) *domain.User {
	t.Helper()
	u, err := e.users.AddUser(context.Background(), &AddUserRequest{
		Code:       code,
		Name:       "Tech",
		Role:       "mantenedor",
		Speciality: speciality,
	})
	if err != nil {
		t.Fatalf("AddUser(%d) error = %v", code, err)
	}
	return u
}

// orderPayload builds a raw ingestion payload with n pending tasks.
func orderPayload(code int64, n int, info map[string]any) map[string]any {
	data := make([]any, n)
	for i := range data {
		data[i] = map[string]any{"status": 0}
	}
	if info == nil {
		info = map[string]any{}
	}
	return map[string]any{
		"code":  code,
		"info":  info,
		"tasks": map[string]any{"data": data},
	}
}

func (e *testEnv) ingest(t *testing.T, payloads ...map[string]any) {
	t.Helper()
	if _, err := e.lifecycle.BulkUpsertOrders(context.Background(), payloads); err != nil {
		t.Fatalf("BulkUpsertOrders() error = %v", err)
	}
}

func (e *testEnv) order(t *testing.T, code int64) *domain.Order {
	t.Helper()
	o, err := e.lifecycle.GetOrder(context.Background(), code)
	if err != nil {
		t.Fatalf("GetOrder(%d) error = %v", code, err)
	}
	return o
}
