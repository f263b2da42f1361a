package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/telemetry/metric"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("storage: store closed")

// ErrLocked is returned by Open when another process holds the data
// directory.
var ErrLocked = errors.New("storage: data directory locked")

// Store is the Badger-backed record store.
type Store struct {
	db       *badger.DB
	cfg      Config
	logger   *slog.Logger
	clock    *tzclock.Service
	notifier ChangeNotifier
	metrics  *metric.Registry

	// writeMu serializes write transactions within the process.
	writeMu    sync.Mutex
	notifierMu sync.RWMutex
	closed     atomic.Bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// Open opens (or creates) the store described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Dir == "" {
		return nil, fmt.Errorf("storage: dir is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = tzclock.MustNew("", nil)
	}

	opts := badger.DefaultOptions(cfg.Dir)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = &badgerLogger{logger: cfg.Logger}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.CacheSize > 0 {
		opts.BlockCacheSize = cfg.CacheSize
	}
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 && !cfg.InMemory {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Cannot acquire directory lock") {
			return nil, fmt.Errorf("storage: open db: %w: %w", ErrLocked, err)
		}
		return nil, fmt.Errorf("storage: open db: %w", err)
	}

	s := &Store{
		db:       db,
		cfg:      cfg,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	if cfg.Metrics != nil {
		cfg.Metrics.MustRegister(metric.NewCollector(s))
		s.publishMetaVersions()
	}

	if cfg.InMemory || cfg.GCInterval <= 0 {
		close(s.doneCh)
	} else {
		go s.gcLoop()
	}

	s.logger.Info("record store opened",
		"dir", cfg.Dir,
		"in_memory", cfg.InMemory,
		"sync_writes", cfg.SyncWrites)

	return s, nil
}

// SetNotifier replaces the change notifier. Call before serving writes.
func (s *Store) SetNotifier(n ChangeNotifier) {
	s.notifierMu.Lock()
	s.notifier = n
	s.notifierMu.Unlock()
}

// Clock returns the clock used to stamp change-log lines.
func (s *Store) Clock() *tzclock.Service {
	return s.clock
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(tx Tables) error) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	err := s.db.View(func(txn *badger.Txn) error {
		return fn(&txTables{txn: txn})
	})
	return wrapErr("view", err)
}

// Mutate runs fn in a write transaction coupled to family's meta record.
//
// fn returns the change-log reason. A non-empty reason commits the
// transaction together with the next meta version carrying the line
// "<canonical timestamp> <reason>". An empty reason discards every write
// and leaves the version untouched. Returns the resulting meta record and
// whether a new version was committed. The change notification is sent
// after the write lock is released.
func (s *Store) Mutate(ctx context.Context, family domain.Family, fn func(tx Tables) (string, error)) (domain.MetaRecord, bool, error) {
	if !validFamily(family) {
		return domain.MetaRecord{}, false, domain.ErrInvalidArgument.WithDetailsf("unknown family %q", family)
	}
	if err := s.check(ctx); err != nil {
		return domain.MetaRecord{}, false, err
	}

	meta, reason, err := s.mutateLocked(family, fn)
	if err != nil || reason == "" {
		return meta, false, err
	}
	s.notify(family, reason)
	return meta, true, nil
}

func (s *Store) mutateLocked(family domain.Family, fn func(tx Tables) (string, error)) (domain.MetaRecord, string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	txn := s.db.NewTransaction(true)
	defer txn.Discard()
	tx := &txTables{txn: txn}

	reason, err := fn(tx)
	if err != nil {
		s.metrics.RecordMutation(string(family), "failed")
		return domain.MetaRecord{}, "", wrapErr("mutate "+string(family), err)
	}

	if reason == "" {
		meta, err := tx.Meta(family)
		s.metrics.RecordMutation(string(family), "noop")
		return meta, "", wrapErr("mutate "+string(family), err)
	}

	meta, err := tx.appendMeta(family, s.clock.NowISO()+" "+reason)
	if err == nil {
		err = txn.Commit()
	}
	if err != nil {
		s.metrics.RecordMutation(string(family), "failed")
		return domain.MetaRecord{}, "", wrapErr("mutate "+string(family), err)
	}

	s.metrics.RecordMutation(string(family), "committed")
	s.metrics.ObserveTransaction(string(family), time.Since(start).Seconds())
	s.metrics.SetMetaVersion(string(family), meta.Version)
	return meta, reason, nil
}

// Replace runs fn in a write transaction that manages meta history itself
// (wholesale replacement from snapshots and backups). Like Mutate, an
// empty reason discards the transaction. On commit every family in
// families is notified with the reason once the write lock is released.
func (s *Store) Replace(ctx context.Context, families []domain.Family, fn func(tx Tables) (string, error)) (bool, error) {
	for _, f := range families {
		if !validFamily(f) {
			return false, domain.ErrInvalidArgument.WithDetailsf("unknown family %q", f)
		}
	}
	if err := s.check(ctx); err != nil {
		return false, err
	}

	reason, err := s.replaceLocked(families, fn)
	if err != nil || reason == "" {
		return false, err
	}
	for _, f := range families {
		s.notify(f, reason)
	}
	return true, nil
}

func (s *Store) replaceLocked(families []domain.Family, fn func(tx Tables) (string, error)) (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	start := time.Now()
	txn := s.db.NewTransaction(true)
	defer txn.Discard()

	reason, err := fn(&txTables{txn: txn})
	if err == nil && reason != "" {
		err = txn.Commit()
	}
	if err != nil {
		for _, f := range families {
			s.metrics.RecordMutation(string(f), "failed")
		}
		return "", wrapErr("replace", err)
	}
	if reason == "" {
		for _, f := range families {
			s.metrics.RecordMutation(string(f), "noop")
		}
		return "", nil
	}

	for _, f := range families {
		s.metrics.RecordMutation(string(f), "committed")
		s.metrics.ObserveTransaction(string(f), time.Since(start).Seconds())
	}
	s.publishMetaVersions()
	return reason, nil
}

// Users returns all users ordered by code.
func (s *Store) Users(ctx context.Context) ([]*domain.User, error) {
	var users []*domain.User
	err := s.View(ctx, func(tx Tables) error {
		var err error
		users, err = tx.Users()
		return err
	})
	return users, err
}

// User returns one user.
func (s *Store) User(ctx context.Context, code int64) (*domain.User, error) {
	var u *domain.User
	err := s.View(ctx, func(tx Tables) error {
		var err error
		u, err = tx.User(code)
		return err
	})
	return u, err
}

// Orders returns all orders ordered by code.
func (s *Store) Orders(ctx context.Context) ([]*domain.Order, error) {
	var orders []*domain.Order
	err := s.View(ctx, func(tx Tables) error {
		var err error
		orders, err = tx.Orders()
		return err
	})
	return orders, err
}

// Order returns one order.
func (s *Store) Order(ctx context.Context, code int64) (*domain.Order, error) {
	var o *domain.Order
	err := s.View(ctx, func(tx Tables) error {
		var err error
		o, err = tx.Order(code)
		return err
	})
	return o, err
}

// Meta returns the latest meta record of family.
func (s *Store) Meta(ctx context.Context, family domain.Family) (domain.MetaRecord, error) {
	var m domain.MetaRecord
	err := s.View(ctx, func(tx Tables) error {
		var err error
		m, err = tx.Meta(family)
		return err
	})
	return m, err
}

// MetaHistory returns the full meta history of family.
func (s *Store) MetaHistory(ctx context.Context, family domain.Family) ([]domain.MetaRecord, error) {
	var h []domain.MetaRecord
	err := s.View(ctx, func(tx Tables) error {
		var err error
		h, err = tx.MetaHistory(family)
		return err
	})
	return h, err
}

// Size returns the LSM tree and value log sizes in bytes.
func (s *Store) Size() (lsm, vlog int64) {
	if s.closed.Load() {
		return 0, 0
	}
	return s.db.Size()
}

// GC runs value-log garbage collection until nothing is left to rewrite.
// Returns the number of rewritten value-log files.
func (s *Store) GC(ctx context.Context) (int, error) {
	if s.cfg.InMemory {
		return 0, nil
	}
	rewrites := 0
	for {
		if err := s.check(ctx); err != nil {
			return rewrites, err
		}
		err := s.db.RunValueLogGC(s.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) {
				return rewrites, nil
			}
			return rewrites, fmt.Errorf("storage: gc: %w", err)
		}
		rewrites++
	}
}

// Close stops background work and closes the database.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.logger.Info("closing record store")

	close(s.stopCh)
	<-s.doneCh

	// Wait for an in-flight writer to finish.
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("storage: close db: %w", err)
	}
	return nil
}

func (s *Store) check(ctx context.Context) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

// notify delivers a change notification. Failures are logged and dropped.
func (s *Store) notify(family domain.Family, reason string) {
	s.notifierMu.RLock()
	n := s.notifier
	s.notifierMu.RUnlock()
	if n == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("change notification failed",
				"family", family,
				"reason", reason,
				"panic", r)
		}
	}()
	n.NotifyChange(family, reason)
}

func (s *Store) publishMetaVersions() {
	if s.metrics == nil {
		return
	}
	_ = s.db.View(func(txn *badger.Txn) error {
		tx := &txTables{txn: txn}
		for _, f := range []domain.Family{domain.FamilyUsers, domain.FamilyOrders} {
			if m, err := tx.Meta(f); err == nil {
				s.metrics.SetMetaVersion(string(f), m.Version)
			}
		}
		return nil
	})
}

// gcLoop runs periodic value-log garbage collection.
func (s *Store) gcLoop() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			n, err := s.GC(ctx)
			cancel()
			if err != nil {
				s.logger.Error("value log gc failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("value log gc completed", "rewrites", n)
			}

		case <-s.stopCh:
			return
		}
	}
}

// wrapErr passes domain errors and context errors through unchanged,
// reports oversized transactions as ErrTxnTooLarge and wraps other engine
// failures as ErrStorage.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, badger.ErrTxnTooBig) {
		return domain.ErrTxnTooLarge.WithDetails(op).WithCause(err)
	}
	if domain.IsDomainError(err, "") || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrClosed) {
		return err
	}
	return domain.ErrStorage.WithDetails(op).WithCause(err)
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
