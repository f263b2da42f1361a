package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry() returned nil")
	}
	if r.registry == nil {
		t.Error("registry field is nil")
	}
	if r.Mutations == nil || r.MetaVersion == nil || r.SnapshotImports == nil {
		t.Error("store metrics not initialised")
	}
}

func TestGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return the same instance")
	}
	if Handler() == nil {
		t.Error("Handler() returned nil")
	}
}

func TestHandler_RuntimeMetrics(t *testing.T) {
	body := scrape(t, NewRegistry())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("expected go_goroutines metric")
	}
	if !strings.Contains(body, "process_") {
		t.Error("expected process metrics")
	}
}

func TestStoreMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordMutation("users", "committed")
	r.RecordMutation("users", "committed")
	r.RecordMutation("orders", "failed")
	r.SetMetaVersion("users", 7)
	r.ObserveTransaction("users", 0.002)

	body := scrape(t, r)

	if !strings.Contains(body, `fieldstore_mutations_total{family="users",result="committed"} 2`) {
		t.Error("expected 2 committed user mutations")
	}
	if !strings.Contains(body, `fieldstore_mutations_total{family="orders",result="failed"} 1`) {
		t.Error("expected 1 failed order mutation")
	}
	if !strings.Contains(body, `fieldstore_meta_version{family="users"} 7`) {
		t.Error("expected users meta version 7")
	}
	if !strings.Contains(body, "fieldstore_transaction_duration_seconds_count") {
		t.Error("expected transaction duration histogram")
	}
}

func TestSyncAndLifecycleMetrics(t *testing.T) {
	r := NewRegistry()

	r.RecordSnapshotImport("orders", "stale-version")
	r.RecordBackup("export", "all")
	r.RecordSweep(3, 1)
	r.RecordChangeEvent("orders", "local")

	body := scrape(t, r)

	for _, want := range []string{
		`fieldstore_snapshot_imports_total{family="orders",result="stale-version"} 1`,
		`fieldstore_backup_operations_total{operation="export",scope="all"} 1`,
		`fieldstore_sweep_runs_total 1`,
		`fieldstore_sweep_transitions_total{transition="expired"} 3`,
		`fieldstore_sweep_transitions_total{transition="restored"} 1`,
		`fieldstore_change_events_total{channel="local",family="orders"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s", want)
		}
	}
}

func TestNilRegistryIsNoop(t *testing.T) {
	var r *Registry

	// Should not panic
	r.RecordMutation("users", "committed")
	r.SetMetaVersion("users", 1)
	r.ObserveTransaction("users", 1)
	r.RecordSnapshotImport("users", "applied")
	r.RecordBackup("import", "users")
	r.RecordSweep(1, 1)
	r.RecordChangeEvent("users", "broadcast")
}

type fixedSize struct{ lsm, vlog int64 }

func (f fixedSize) Size() (int64, int64) { return f.lsm, f.vlog }

func TestCollector(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewCollector(fixedSize{lsm: 2048, vlog: 4096}))

	body := scrape(t, r)

	if !strings.Contains(body, "fieldstore_badger_lsm_size_bytes 2048") {
		t.Error("expected lsm size 2048")
	}
	if !strings.Contains(body, "fieldstore_badger_value_log_size_bytes 4096") {
		t.Error("expected value log size 4096")
	}
}
