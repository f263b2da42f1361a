package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/storage"
	"github.com/yndnr/fieldstore-go/internal/telemetry/metric"
	"github.com/yndnr/fieldstore-go/pkg/tzclock"
)

// Store is the transactional record store the services run on.
type Store interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(tx storage.Tables) error) error

	// Mutate runs fn in a write transaction coupled to family's meta
	// version. An empty reason discards the transaction.
	Mutate(ctx context.Context, family domain.Family, fn func(tx storage.Tables) (string, error)) (domain.MetaRecord, bool, error)

	// Replace runs fn in a write transaction that manages meta history
	// itself. An empty reason discards the transaction.
	Replace(ctx context.Context, families []domain.Family, fn func(tx storage.Tables) (string, error)) (bool, error)
}

// Options carries the shared dependencies of the services.
type Options struct {
	// Clock is the reference-zone clock. Default: system clock.
	Clock *tzclock.Service
	// Metrics records service metrics. Optional.
	Metrics *metric.Registry
	// Logger is the structured logger.
	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Clock == nil {
		o.Clock = tzclock.MustNew("", nil)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// sameJSON reports whether a and b encode identically. Used to skip
// version bumps for writes that change nothing.
func sameJSON(a, b any) bool {
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ja) == string(jb)
}
