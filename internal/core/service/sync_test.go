package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
)

func TestSyncService_UsersSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addMaintainer(t, 2, 1)
	env.addMaintainer(t, 1, 1)

	snap, err := env.sync.UsersSnapshot(ctx)
	if err != nil {
		t.Fatalf("UsersSnapshot() error = %v", err)
	}
	if snap.Meta.Version != 2 || len(snap.Users) != 2 {
		t.Fatalf("snapshot = v%d with %d users", snap.Meta.Version, len(snap.Users))
	}
	if snap.Users[0].Code != 1 {
		t.Errorf("users not ordered by code")
	}
	if want := domain.UsersSignature(snap.Users, 2); snap.Signature != want {
		t.Errorf("signature = %q, want %q", snap.Signature, want)
	}
}

func TestSyncService_ApplyUsersSnapshot(t *testing.T) {
	source := newTestEnv(t)
	target := newTestEnv(t)
	ctx := context.Background()

	for code := int64(1); code <= 3; code++ {
		source.addMaintainer(t, code, 2)
	}
	target.addMaintainer(t, 9, 1)

	snap, err := source.sync.UsersSnapshot(ctx)
	if err != nil {
		t.Fatalf("UsersSnapshot() error = %v", err)
	}

	res, err := target.sync.ApplyUsersSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("ApplyUsersSnapshot() error = %v", err)
	}
	if !res.Applied || res.Written != 3 || res.Deleted != 1 {
		t.Errorf("result = %+v", res)
	}
	if res.LocalVersion != 1 || res.IncomingVersion != 3 {
		t.Errorf("versions = %d -> %d", res.LocalVersion, res.IncomingVersion)
	}

	users, err := target.users.ListUsers(ctx)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 3 || users[0].Code != 1 {
		t.Errorf("users after apply = %d", len(users))
	}
	if got := target.version(t, domain.FamilyUsers); got != 3 {
		t.Errorf("users version = %d, want 3", got)
	}
	history, err := target.store.MetaHistory(ctx, domain.FamilyUsers)
	if err != nil {
		t.Fatalf("MetaHistory() error = %v", err)
	}
	if len(history) != 1 || history[0].Version != 3 {
		t.Errorf("history = %+v, want the single incoming record", history)
	}

	// Applying the same snapshot again is stale.
	again, err := target.sync.ApplyUsersSnapshot(ctx, snap)
	if err != nil {
		t.Fatalf("second ApplyUsersSnapshot() error = %v", err)
	}
	if again.Applied || again.Reason != ReasonStaleVersion {
		t.Errorf("second apply = %+v, want stale", again)
	}
}

func TestSyncService_ApplyUsersSnapshot_Stale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for code := int64(1); code <= 6; code++ {
		env.addMaintainer(t, code, 1)
	}

	users := []*domain.User{{Code: 50, Name: "Other", Role: domain.RoleAdmin, Active: true}}
	for _, version := range []uint64{5, 6} {
		snap := &UsersSnapshot{
			Meta:      domain.MetaRecord{Version: version, ChangeLog: []string{"remote"}},
			Users:     users,
			Signature: domain.UsersSignature(users, version),
		}
		res, err := env.sync.ApplyUsersSnapshot(ctx, snap)
		if err != nil {
			t.Fatalf("ApplyUsersSnapshot(v%d) error = %v", version, err)
		}
		if res.Applied || res.Reason != ReasonStaleVersion || res.LocalVersion != 6 {
			t.Errorf("v%d result = %+v, want stale against 6", version, res)
		}
	}

	if got := env.version(t, domain.FamilyUsers); got != 6 {
		t.Errorf("users version = %d, want 6", got)
	}
	if _, err := env.users.GetUser(ctx, 50); !domain.IsNotFound(err) {
		t.Error("stale snapshot leaked users")
	}
}

func TestSyncService_ApplyUsersSnapshot_SignatureMismatch(t *testing.T) {
	env := newTestEnv(t)
	snap := &UsersSnapshot{
		Meta:      domain.MetaRecord{Version: 2},
		Users:     []*domain.User{{Code: 1, Name: "Root", Role: domain.RoleAdmin, Active: true}},
		Signature: "tampered.2",
	}

	res, err := env.sync.ApplyUsersSnapshot(context.Background(), snap)
	if err != nil {
		t.Fatalf("ApplyUsersSnapshot() error = %v", err)
	}
	if !res.Applied {
		t.Error("signature mismatch should not block a newer snapshot")
	}
}

func TestSyncService_ApplyUsersSnapshot_Invalid(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name string
		snap *UsersSnapshot
	}{
		{"nil", nil},
		{"zero version", &UsersSnapshot{}},
		{"invalid user", &UsersSnapshot{
			Meta:  domain.MetaRecord{Version: 1},
			Users: []*domain.User{{Code: 1, Name: "X", Role: domain.RoleMaintainer}},
		}},
		{"duplicate user", &UsersSnapshot{
			Meta: domain.MetaRecord{Version: 1},
			Users: []*domain.User{
				{Code: 1, Name: "X", Role: domain.RoleAdmin},
				{Code: 1, Name: "Y", Role: domain.RoleAdmin},
			},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.sync.ApplyUsersSnapshot(ctx, tt.snap); !domain.IsFormat(err) {
				t.Fatalf("ApplyUsersSnapshot() error = %v, want format error", err)
			}
		})
	}
}

func TestSyncService_ApplyOrdersSnapshot_Unscoped(t *testing.T) {
	source := newTestEnv(t)
	target := newTestEnv(t)
	ctx := context.Background()

	source.ingest(t, orderPayload(1, 1, nil))
	source.ingest(t, orderPayload(2, 1, nil))
	target.ingest(t, orderPayload(7, 1, nil))

	snap, err := source.sync.OrdersSnapshotFor(ctx, domain.Scope{})
	if err != nil {
		t.Fatalf("OrdersSnapshotFor() error = %v", err)
	}
	res, err := target.sync.ApplyOrdersSnapshot(ctx, snap, domain.Scope{})
	if err != nil {
		t.Fatalf("ApplyOrdersSnapshot() error = %v", err)
	}
	if !res.Applied || res.Written != 2 || res.Deleted != 1 {
		t.Errorf("result = %+v", res)
	}

	orders, _ := target.lifecycle.ListOrders(ctx)
	if len(orders) != 2 || orders[0].Code != 1 || orders[1].Code != 2 {
		t.Errorf("orders after apply = %d", len(orders))
	}
	history, _ := target.store.MetaHistory(ctx, domain.FamilyOrders)
	if len(history) != 1 || history[0].Version != 2 {
		t.Errorf("history = %+v", history)
	}
}

func TestSyncService_ApplyOrdersSnapshot_Scoped(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.ingest(t,
		orderPayload(1, 1, map[string]any{"especialidad_id": 5, "title": "old"}),
		orderPayload(2, 1, map[string]any{"especialidad_id": 5}),
		orderPayload(3, 1, map[string]any{"especialidad_id": 7}),
	)
	localHistory, _ := env.store.MetaHistory(ctx, domain.FamilyOrders)

	incoming, ok := domain.NewOrderFromPayload(orderPayload(1, 1, map[string]any{"especialidad_id": 5, "title": "new"}), nil)
	if !ok {
		t.Fatal("NewOrderFromPayload() failed")
	}
	scope := domain.SpecialityScope(5)
	snap := &OrdersSnapshot{
		Meta:   domain.MetaRecord{Version: 10, ChangeLog: []string{"remote edit"}},
		Orders: []*domain.Order{incoming},
		Scope:  scope,
	}

	res, err := env.sync.ApplyOrdersSnapshot(ctx, snap, scope)
	if err != nil {
		t.Fatalf("ApplyOrdersSnapshot() error = %v", err)
	}
	if !res.Applied || res.Written != 1 || res.Deleted != 1 {
		t.Errorf("result = %+v, want 1 written, 1 deleted", res)
	}

	if got := env.order(t, 1).Info.Text("title"); got != "new" {
		t.Errorf("order 1 title = %q", got)
	}
	if _, err := env.lifecycle.GetOrder(ctx, 2); !domain.IsNotFound(err) {
		t.Errorf("order 2 should be deleted, error = %v", err)
	}
	env.order(t, 3)

	if got := env.version(t, domain.FamilyOrders); got != 10 {
		t.Errorf("orders version = %d, want 10", got)
	}
	history, _ := env.store.MetaHistory(ctx, domain.FamilyOrders)
	if len(history) != len(localHistory)+1 {
		t.Fatalf("history length = %d, want %d", len(history), len(localHistory)+1)
	}
	latest := history[len(history)-1]
	if len(latest.ChangeLog) != 2 || latest.ChangeLog[0] != "remote edit" {
		t.Errorf("latest change log = %v", latest.ChangeLog)
	}

	// Idempotent: the same snapshot is now stale.
	again, err := env.sync.ApplyOrdersSnapshot(ctx, snap, scope)
	if err != nil {
		t.Fatalf("second ApplyOrdersSnapshot() error = %v", err)
	}
	if again.Applied || again.Reason != ReasonStaleVersion {
		t.Errorf("second apply = %+v", again)
	}
}

func TestSyncService_ApplyOrdersSnapshot_ScopedStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	for code := int64(1); code <= 6; code++ {
		env.ingest(t, orderPayload(code, 1, map[string]any{"asignado_a": 42}))
	}
	if got := env.version(t, domain.FamilyOrders); got != 6 {
		t.Fatalf("orders version = %d, want 6", got)
	}

	before, _ := env.lifecycle.ListOrders(ctx)
	beforeJSON, _ := json.Marshal(before)
	beforeHistory, _ := env.store.MetaHistory(ctx, domain.FamilyOrders)
	beforeHistoryJSON, _ := json.Marshal(beforeHistory)

	incoming, ok := domain.NewOrderFromPayload(orderPayload(1, 1, map[string]any{"asignado_a": 42, "title": "remote"}), nil)
	if !ok {
		t.Fatal("NewOrderFromPayload() failed")
	}
	scope := domain.AssigneeScope(42)
	snap := &OrdersSnapshot{
		Meta:   domain.MetaRecord{Version: 5, ChangeLog: []string{"remote edit"}},
		Orders: []*domain.Order{incoming},
		Scope:  scope,
	}

	res, err := env.sync.ApplyOrdersSnapshot(ctx, snap, scope)
	if err != nil {
		t.Fatalf("ApplyOrdersSnapshot() error = %v", err)
	}
	if res.Applied || res.Reason != ReasonStaleVersion || res.LocalVersion != 6 || res.IncomingVersion != 5 {
		t.Errorf("result = %+v, want stale v5 against 6", res)
	}
	if res.Written != 0 || res.Deleted != 0 {
		t.Errorf("stale apply wrote %d, deleted %d", res.Written, res.Deleted)
	}

	after, _ := env.lifecycle.ListOrders(ctx)
	afterJSON, _ := json.Marshal(after)
	if string(afterJSON) != string(beforeJSON) {
		t.Errorf("orders changed:\nbefore %s\nafter  %s", beforeJSON, afterJSON)
	}
	afterHistory, _ := env.store.MetaHistory(ctx, domain.FamilyOrders)
	afterHistoryJSON, _ := json.Marshal(afterHistory)
	if string(afterHistoryJSON) != string(beforeHistoryJSON) {
		t.Errorf("meta history changed:\nbefore %s\nafter  %s", beforeHistoryJSON, afterHistoryJSON)
	}
	if got := env.version(t, domain.FamilyOrders); got != 6 {
		t.Errorf("orders version = %d, want 6", got)
	}
}

func TestSyncService_OrdersSnapshotFor_Scope(t *testing.T) {
	env := newTestEnv(t)
	env.ingest(t,
		orderPayload(1, 1, map[string]any{"asignado_a": 100}),
		orderPayload(2, 1, map[string]any{"asignado_a": 200}),
	)

	snap, err := env.sync.OrdersSnapshotFor(context.Background(), domain.AssigneeScope(200))
	if err != nil {
		t.Fatalf("OrdersSnapshotFor() error = %v", err)
	}
	if len(snap.Orders) != 1 || snap.Orders[0].Code != 2 {
		t.Errorf("orders = %d", len(snap.Orders))
	}
	if snap.Meta.Version != 1 || snap.Scope != domain.AssigneeScope(200) {
		t.Errorf("snapshot = v%d scope %s", snap.Meta.Version, snap.Scope)
	}
}

func TestDecodeSnapshots(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addMaintainer(t, 1, 1)
	env.ingest(t, orderPayload(5, 1, nil))

	usersSnap, _ := env.sync.UsersSnapshot(ctx)
	data, err := json.Marshal(usersSnap)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	decoded, err := DecodeUsersSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeUsersSnapshot() error = %v", err)
	}
	if decoded.Signature != usersSnap.Signature || len(decoded.Users) != 1 {
		t.Errorf("decoded = %+v", decoded)
	}

	ordersSnap, _ := env.sync.OrdersSnapshotFor(ctx, domain.Scope{})
	data, _ = json.Marshal(ordersSnap)
	decodedOrders, err := DecodeOrdersSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeOrdersSnapshot() error = %v", err)
	}
	if len(decodedOrders.Orders) != 1 || decodedOrders.Orders[0].Code != 5 {
		t.Errorf("decoded orders = %+v", decodedOrders.Orders)
	}

	for _, bad := range []string{"", "{", `{"meta":{}} {}`, `[1,2]`} {
		if _, err := DecodeUsersSnapshot([]byte(bad)); !domain.IsFormat(err) {
			t.Errorf("DecodeUsersSnapshot(%q) error = %v, want format error", bad, err)
		}
	}
}
