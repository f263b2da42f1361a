package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/storage"
)

// Backup envelope identity. Imports require both to match exactly.
const (
	BackupType    = "fieldstore-backup"
	BackupVersion = 1
)

// restoredLine is the change-log text of the meta seeded for a restored
// table that came without meta history.
const restoredLine = "Restored from backup"

// BackupScope selects the tables a backup covers.
type BackupScope string

// Backup scopes.
const (
	BackupAll    BackupScope = "all"
	BackupUsers  BackupScope = "users"
	BackupOrders BackupScope = "orders"
)

// ParseBackupScope reads a backup scope. An empty string means all.
func ParseBackupScope(s string) (BackupScope, error) {
	switch scope := BackupScope(strings.ToLower(strings.TrimSpace(s))); scope {
	case "":
		return BackupAll, nil
	case BackupAll, BackupUsers, BackupOrders:
		return scope, nil
	default:
		return "", domain.ErrInvalidArgument.WithDetailsf("backup scope %q must be all, users or orders", s)
	}
}

func (s BackupScope) includes(f domain.Family) bool {
	switch s {
	case BackupAll:
		return true
	case BackupUsers:
		return f == domain.FamilyUsers
	case BackupOrders:
		return f == domain.FamilyOrders
	}
	return false
}

// BackupData holds the table dumps and full meta histories. A nil table
// means the backup does not carry it.
type BackupData struct {
	Users      []*domain.User      `json:"users"`
	UsersMeta  []domain.MetaRecord `json:"usersMeta"`
	Orders     []*domain.Order     `json:"orders"`
	OrdersMeta []domain.MetaRecord `json:"ordersMeta"`
}

// BackupEnvelope is the self-describing backup document.
type BackupEnvelope struct {
	Type       string      `json:"type"`
	Version    int         `json:"version"`
	ExportedAt string      `json:"exportedAt"`
	Scope      BackupScope `json:"scope"`
	Data       BackupData  `json:"data"`
}

// RestoredCounts counts the records written per table by an import.
type RestoredCounts struct {
	Users  int `json:"users"`
	Orders int `json:"orders"`
}

// ImportResult reports what a backup import replaced.
type ImportResult struct {
	Scope    BackupScope    `json:"scope"`
	Restored RestoredCounts `json:"restored"`
}

// Sweeper runs an expiration sweep after orders are restored.
type Sweeper interface {
	SweepExpirations(ctx context.Context, codes []int64) (*SweepResult, error)
}

// BackupService exports and restores whole tables with their meta history.
type BackupService struct {
	store   Store
	sweeper Sweeper
	opts    Options
}

// NewBackupService creates a new BackupService. sweeper may be nil.
func NewBackupService(store Store, sweeper Sweeper, opts Options) *BackupService {
	return &BackupService{store: store, sweeper: sweeper, opts: opts.withDefaults()}
}

// ExportBackup dumps the tables selected by scope together with their
// full meta history.
func (s *BackupService) ExportBackup(ctx context.Context, scope BackupScope) (*BackupEnvelope, error) {
	if scope == "" {
		scope = BackupAll
	}
	if _, err := ParseBackupScope(string(scope)); err != nil {
		return nil, err
	}

	env := &BackupEnvelope{
		Type:       BackupType,
		Version:    BackupVersion,
		ExportedAt: s.opts.Clock.NowISO(),
		Scope:      scope,
	}
	err := s.store.View(ctx, func(tx storage.Tables) error {
		var err error
		if scope.includes(domain.FamilyUsers) {
			if env.Data.Users, err = tx.Users(); err != nil {
				return err
			}
			if env.Data.UsersMeta, err = tx.MetaHistory(domain.FamilyUsers); err != nil {
				return err
			}
			if env.Data.Users == nil {
				env.Data.Users = []*domain.User{}
			}
			if env.Data.UsersMeta == nil {
				env.Data.UsersMeta = []domain.MetaRecord{}
			}
		}
		if scope.includes(domain.FamilyOrders) {
			if env.Data.Orders, err = tx.Orders(); err != nil {
				return err
			}
			if env.Data.OrdersMeta, err = tx.MetaHistory(domain.FamilyOrders); err != nil {
				return err
			}
			if env.Data.Orders == nil {
				env.Data.Orders = []*domain.Order{}
			}
			if env.Data.OrdersMeta == nil {
				env.Data.OrdersMeta = []domain.MetaRecord{}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Metrics.RecordBackup("export", string(scope))
	s.opts.Logger.Info("backup exported",
		"scope", scope,
		"users", len(env.Data.Users),
		"orders", len(env.Data.Orders))
	return env, nil
}

// ImportBackup parses a backup document and restores it.
func (s *BackupService) ImportBackup(ctx context.Context, data []byte) (*ImportResult, error) {
	var env BackupEnvelope
	if err := decodeStrict(data, &env); err != nil {
		return nil, domain.ErrBackupFormat.WithDetails(err.Error()).WithCause(err)
	}
	return s.ImportBackupEnvelope(ctx, &env)
}

// ImportBackupEnvelope restores a decoded backup. Every table selected by
// the envelope scope and present in the payload is cleared and replaced
// together with its meta history, in one transaction. A table restored
// without meta history gets a fresh single-version meta. Restoring orders
// triggers an expiration sweep.
func (s *BackupService) ImportBackupEnvelope(ctx context.Context, env *BackupEnvelope) (*ImportResult, error) {
	targets, err := s.validateEnvelope(env)
	if err != nil {
		return nil, err
	}

	scope := env.Scope
	if scope == "" {
		scope = BackupAll
	}
	result := &ImportResult{Scope: scope}
	stamp := s.opts.Clock.NowISO()

	_, err = s.store.Replace(ctx, targets, func(tx storage.Tables) (string, error) {
		for _, family := range targets {
			switch family {
			case domain.FamilyUsers:
				if _, err := tx.Clear(domain.FamilyUsers); err != nil {
					return "", err
				}
				for _, u := range env.Data.Users {
					if err := tx.PutUser(u); err != nil {
						return "", err
					}
				}
				if err := tx.ReplaceMetaHistory(domain.FamilyUsers, historyOrSeed(env.Data.UsersMeta, stamp)); err != nil {
					return "", err
				}
				result.Restored.Users = len(env.Data.Users)

			case domain.FamilyOrders:
				if _, err := tx.Clear(domain.FamilyOrders); err != nil {
					return "", err
				}
				for _, o := range env.Data.Orders {
					if err := tx.PutOrder(o); err != nil {
						return "", err
					}
				}
				if err := tx.ReplaceMetaHistory(domain.FamilyOrders, historyOrSeed(env.Data.OrdersMeta, stamp)); err != nil {
					return "", err
				}
				result.Restored.Orders = len(env.Data.Orders)
			}
		}
		return fmt.Sprintf("Restored backup (%s): %d users, %d orders",
			scope, result.Restored.Users, result.Restored.Orders), nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Metrics.RecordBackup("import", string(scope))
	s.opts.Logger.Info("backup imported",
		"scope", scope,
		"users", result.Restored.Users,
		"orders", result.Restored.Orders)

	if s.sweeper != nil && containsFamily(targets, domain.FamilyOrders) {
		if _, err := s.sweeper.SweepExpirations(ctx, nil); err != nil {
			s.opts.Logger.Warn("post-import sweep failed", "error", err)
		}
	}
	return result, nil
}

// validateEnvelope checks the envelope identity and payload and returns
// the families to restore.
func (s *BackupService) validateEnvelope(env *BackupEnvelope) ([]domain.Family, error) {
	if env == nil {
		return nil, domain.ErrBackupFormat.WithDetails("backup is empty")
	}
	if env.Type != BackupType {
		return nil, domain.ErrBackupFormat.WithDetailsf("unexpected backup type %q", env.Type)
	}
	if env.Version != BackupVersion {
		return nil, domain.ErrBackupFormat.WithDetailsf("unsupported backup version %d", env.Version)
	}
	scope := env.Scope
	if scope == "" {
		scope = BackupAll
	}
	if _, err := ParseBackupScope(string(scope)); err != nil {
		return nil, domain.ErrBackupFormat.WithDetails(err.Error()).WithCause(err)
	}

	var targets []domain.Family
	if scope.includes(domain.FamilyUsers) && env.Data.Users != nil {
		if err := validateBackupUsers(env.Data.Users); err != nil {
			return nil, err
		}
		if err := validateHistory(domain.FamilyUsers, env.Data.UsersMeta); err != nil {
			return nil, err
		}
		targets = append(targets, domain.FamilyUsers)
	}
	if scope.includes(domain.FamilyOrders) && env.Data.Orders != nil {
		for i, o := range env.Data.Orders {
			if o == nil {
				return nil, domain.ErrBackupFormat.WithDetailsf("order %d is null", i)
			}
		}
		if err := validateHistory(domain.FamilyOrders, env.Data.OrdersMeta); err != nil {
			return nil, err
		}
		targets = append(targets, domain.FamilyOrders)
	}
	if len(targets) == 0 {
		return nil, domain.ErrBackupFormat.WithDetailsf("backup carries no table for scope %s", scope)
	}
	return targets, nil
}

func validateBackupUsers(users []*domain.User) error {
	seen := make(map[int64]struct{}, len(users))
	for i, u := range users {
		if u == nil {
			return domain.ErrBackupFormat.WithDetailsf("user %d is null", i)
		}
		if err := u.Validate(); err != nil {
			return domain.ErrBackupFormat.WithDetailsf("user %d: %v", u.Code, err).WithCause(err)
		}
		if _, dup := seen[u.Code]; dup {
			return domain.ErrBackupFormat.WithDetailsf("duplicate user code %d", u.Code)
		}
		seen[u.Code] = struct{}{}
	}
	return nil
}

// validateHistory requires positive, strictly increasing versions.
func validateHistory(family domain.Family, history []domain.MetaRecord) error {
	var last uint64
	for _, m := range history {
		if m.Version <= last {
			return domain.ErrBackupFormat.WithDetailsf("%s meta history versions must be positive and increasing", family)
		}
		last = m.Version
	}
	return nil
}

func historyOrSeed(history []domain.MetaRecord, stamp string) []domain.MetaRecord {
	if len(history) > 0 {
		return history
	}
	return []domain.MetaRecord{{Version: 1, ChangeLog: []string{stamp + " " + restoredLine}}}
}

func containsFamily(families []domain.Family, f domain.Family) bool {
	for _, x := range families {
		if x == f {
			return true
		}
	}
	return false
}
