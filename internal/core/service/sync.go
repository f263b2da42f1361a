package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/storage"
)

// ReasonStaleVersion is reported when an incoming snapshot is not newer
// than the local data.
const ReasonStaleVersion = "stale-version"

// UsersSnapshot is a point-in-time export of the users table.
type UsersSnapshot struct {
	Meta      domain.MetaRecord `json:"meta"`
	Users     []*domain.User    `json:"users"`
	Signature string            `json:"signature"`
}

// OrdersSnapshot is a point-in-time export of the orders in a scope.
type OrdersSnapshot struct {
	Meta   domain.MetaRecord `json:"meta"`
	Orders []*domain.Order   `json:"orders"`
	Scope  domain.Scope      `json:"scope"`
}

// ApplyResult reports the outcome of a snapshot import. A stale snapshot
// is not an error: Applied is false and Reason is "stale-version".
type ApplyResult struct {
	Applied         bool   `json:"applied"`
	Reason          string `json:"reason,omitempty"`
	LocalVersion    uint64 `json:"localVersion"`
	IncomingVersion uint64 `json:"incomingVersion"`
	Written         int    `json:"written"`
	Deleted         int    `json:"deleted"`
}

// SyncService exports and imports snapshots for cross-device sync. The
// transport is external: callers move the payloads.
type SyncService struct {
	store Store
	opts  Options
}

// NewSyncService creates a new SyncService.
func NewSyncService(store Store, opts Options) *SyncService {
	return &SyncService{store: store, opts: opts.withDefaults()}
}

// ============================================================================
// Export
// ============================================================================

// UsersSnapshot exports every user with the latest users meta and a
// signature over the user fields (password hashes excluded) and version.
func (s *SyncService) UsersSnapshot(ctx context.Context) (*UsersSnapshot, error) {
	snap := &UsersSnapshot{}
	err := s.store.View(ctx, func(tx storage.Tables) error {
		var err error
		if snap.Meta, err = tx.Meta(domain.FamilyUsers); err != nil {
			return err
		}
		snap.Users, err = tx.Users()
		return err
	})
	if err != nil {
		return nil, err
	}
	if snap.Users == nil {
		snap.Users = []*domain.User{}
	}
	snap.Signature = domain.UsersSignature(snap.Users, snap.Meta.Version)
	return snap, nil
}

// OrdersSnapshotFor exports the orders in scope with the latest orders
// meta.
func (s *SyncService) OrdersSnapshotFor(ctx context.Context, scope domain.Scope) (*OrdersSnapshot, error) {
	snap := &OrdersSnapshot{Scope: scope, Orders: []*domain.Order{}}
	err := s.store.View(ctx, func(tx storage.Tables) error {
		var err error
		if snap.Meta, err = tx.Meta(domain.FamilyOrders); err != nil {
			return err
		}
		orders, err := tx.Orders()
		if err != nil {
			return err
		}
		for _, o := range orders {
			if scope.Matches(o) {
				snap.Orders = append(snap.Orders, o)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// ============================================================================
// Import
// ============================================================================

// ApplyUsersSnapshot replaces the users table and meta history with the
// snapshot when its version is newer than the local one. A signature
// mismatch is logged and does not stop the import: the version number is
// the authority.
func (s *SyncService) ApplyUsersSnapshot(ctx context.Context, snap *UsersSnapshot) (*ApplyResult, error) {
	if err := validateUsersSnapshot(snap); err != nil {
		return nil, err
	}

	if want := domain.UsersSignature(snap.Users, snap.Meta.Version); snap.Signature != want {
		s.opts.Logger.Warn("users snapshot signature mismatch",
			"version", snap.Meta.Version,
			"users", len(snap.Users))
	}

	result := &ApplyResult{IncomingVersion: snap.Meta.Version}
	_, err := s.store.Replace(ctx, []domain.Family{domain.FamilyUsers}, func(tx storage.Tables) (string, error) {
		local, err := tx.Meta(domain.FamilyUsers)
		if err != nil {
			return "", err
		}
		result.LocalVersion = local.Version
		if !snap.Meta.IsNewerThan(local) {
			result.Reason = ReasonStaleVersion
			return "", nil
		}

		if result.Deleted, err = tx.Clear(domain.FamilyUsers); err != nil {
			return "", err
		}
		for _, u := range snap.Users {
			if err := tx.PutUser(u); err != nil {
				return "", err
			}
		}
		if err := tx.ReplaceMetaHistory(domain.FamilyUsers, []domain.MetaRecord{snap.Meta}); err != nil {
			return "", err
		}
		result.Written = len(snap.Users)
		result.Applied = true
		return fmt.Sprintf("Applied users snapshot v%d", snap.Meta.Version), nil
	})
	if err != nil {
		return nil, err
	}

	s.record(domain.FamilyUsers, result)
	return result, nil
}

// ApplyOrdersSnapshot merges an orders snapshot when its version is newer
// than the local one. With an unscoped context the orders table and meta
// history are replaced. With a speciality or assignee scope, local orders
// in that scope missing from the snapshot are deleted, every incoming
// order is upserted and the snapshot meta becomes the latest version;
// orders outside the scope are kept. Deletions and upserts share one
// version.
func (s *SyncService) ApplyOrdersSnapshot(ctx context.Context, snap *OrdersSnapshot, scope domain.Scope) (*ApplyResult, error) {
	if err := validateOrdersSnapshot(snap); err != nil {
		return nil, err
	}

	result := &ApplyResult{IncomingVersion: snap.Meta.Version}
	_, err := s.store.Replace(ctx, []domain.Family{domain.FamilyOrders}, func(tx storage.Tables) (string, error) {
		local, err := tx.Meta(domain.FamilyOrders)
		if err != nil {
			return "", err
		}
		result.LocalVersion = local.Version
		if !snap.Meta.IsNewerThan(local) {
			result.Reason = ReasonStaleVersion
			return "", nil
		}

		if scope.IsAll() {
			if result.Deleted, err = tx.Clear(domain.FamilyOrders); err != nil {
				return "", err
			}
		} else if result.Deleted, err = deleteMissingInScope(tx, snap.Orders, scope); err != nil {
			return "", err
		}

		for _, o := range snap.Orders {
			if err := tx.PutOrder(o); err != nil {
				return "", err
			}
		}
		result.Written = len(snap.Orders)

		reason := fmt.Sprintf("Applied orders snapshot v%d (%s): %d written, %d deleted",
			snap.Meta.Version, scope, result.Written, result.Deleted)

		if scope.IsAll() {
			err = tx.ReplaceMetaHistory(domain.FamilyOrders, []domain.MetaRecord{snap.Meta})
		} else {
			err = appendIncomingMeta(tx, snap.Meta, s.opts.Clock.NowISO()+" "+reason)
		}
		if err != nil {
			return "", err
		}
		result.Applied = true
		return reason, nil
	})
	if err != nil {
		return nil, err
	}

	s.record(domain.FamilyOrders, result)
	return result, nil
}

// deleteMissingInScope removes local orders inside scope whose code is
// not part of incoming.
func deleteMissingInScope(tx storage.Tables, incoming []*domain.Order, scope domain.Scope) (int, error) {
	keep := make(map[int64]struct{}, len(incoming))
	for _, o := range incoming {
		keep[o.Code] = struct{}{}
	}

	local, err := tx.Orders()
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, o := range local {
		if !scope.Matches(o) {
			continue
		}
		if _, ok := keep[o.Code]; ok {
			continue
		}
		if err := tx.DeleteOrder(o.Code); err != nil {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}

// appendIncomingMeta keeps the local history and adds the incoming meta
// record, with line appended, as the latest version.
func appendIncomingMeta(tx storage.Tables, incoming domain.MetaRecord, line string) error {
	history, err := tx.MetaHistory(domain.FamilyOrders)
	if err != nil {
		return err
	}
	latest := incoming.Clone()
	latest.ChangeLog = append(latest.ChangeLog, line)
	return tx.ReplaceMetaHistory(domain.FamilyOrders, append(history, latest))
}

func (s *SyncService) record(family domain.Family, r *ApplyResult) {
	if r.Applied {
		s.opts.Metrics.RecordSnapshotImport(string(family), "applied")
		s.opts.Logger.Info("snapshot applied",
			"family", family,
			"version", r.IncomingVersion,
			"written", r.Written,
			"deleted", r.Deleted)
		return
	}
	s.opts.Metrics.RecordSnapshotImport(string(family), r.Reason)
	s.opts.Logger.Info("snapshot rejected",
		"family", family,
		"reason", r.Reason,
		"local_version", r.LocalVersion,
		"incoming_version", r.IncomingVersion)
}

// ============================================================================
// Payload Validation
// ============================================================================

func validateUsersSnapshot(snap *UsersSnapshot) error {
	if snap == nil {
		return domain.ErrSnapshotFormat.WithDetails("snapshot is empty")
	}
	if snap.Meta.Version == 0 {
		return domain.ErrSnapshotFormat.WithDetails("meta version must be positive")
	}
	seen := make(map[int64]struct{}, len(snap.Users))
	for i, u := range snap.Users {
		if u == nil {
			return domain.ErrSnapshotFormat.WithDetailsf("user %d is null", i)
		}
		if err := u.Validate(); err != nil {
			return domain.ErrSnapshotFormat.WithDetailsf("user %d: %v", u.Code, err).WithCause(err)
		}
		if _, dup := seen[u.Code]; dup {
			return domain.ErrSnapshotFormat.WithDetailsf("duplicate user code %d", u.Code)
		}
		seen[u.Code] = struct{}{}
	}
	return nil
}

func validateOrdersSnapshot(snap *OrdersSnapshot) error {
	if snap == nil {
		return domain.ErrSnapshotFormat.WithDetails("snapshot is empty")
	}
	if snap.Meta.Version == 0 {
		return domain.ErrSnapshotFormat.WithDetails("meta version must be positive")
	}
	for i, o := range snap.Orders {
		if o == nil {
			return domain.ErrSnapshotFormat.WithDetailsf("order %d is null", i)
		}
	}
	return nil
}

// DecodeUsersSnapshot parses a users snapshot payload.
func DecodeUsersSnapshot(data []byte) (*UsersSnapshot, error) {
	var snap UsersSnapshot
	if err := decodeStrict(data, &snap); err != nil {
		return nil, domain.ErrSnapshotFormat.WithDetails(err.Error()).WithCause(err)
	}
	return &snap, nil
}

// DecodeOrdersSnapshot parses an orders snapshot payload.
func DecodeOrdersSnapshot(data []byte) (*OrdersSnapshot, error) {
	var snap OrdersSnapshot
	if err := decodeStrict(data, &snap); err != nil {
		return nil, domain.ErrSnapshotFormat.WithDetails(err.Error()).WithCause(err)
	}
	return &snap, nil
}

// decodeStrict decodes one JSON value and rejects trailing data.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}
