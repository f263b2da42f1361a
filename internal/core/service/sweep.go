package service

import (
	"context"
	"fmt"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/storage"
)

// SweepResult lists what an expiration sweep changed.
type SweepResult struct {
	Evaluated int     `json:"evaluated"`
	Expired   []int64 `json:"expired"`
	Restored  []int64 `json:"restored"`
	// Version is the orders meta version after the sweep.
	Version uint64 `json:"version"`
}

// Changed reports whether the sweep wrote anything.
func (r *SweepResult) Changed() bool {
	return len(r.Expired) > 0 || len(r.Restored) > 0
}

// SweepExpirations evaluates the expiration window of orders as of today
// in the reference zone. With no codes every order is evaluated;
// otherwise the listed orders plus every order currently expired (so
// they can be restored). Completed and cancelled orders are never
// touched.
//
// Orders past their window become expired and get the default expiry
// note when they have no observation. Expired orders back inside their
// window (e.g. after a date correction) get their derived status back
// and lose the default note. All changes share one transaction and one
// version bump.
func (s *LifecycleService) SweepExpirations(ctx context.Context, codes []int64) (*SweepResult, error) {
	var selected map[int64]struct{}
	if len(codes) > 0 {
		selected = make(map[int64]struct{}, len(codes))
		for _, c := range codes {
			selected[c] = struct{}{}
		}
	}

	clock := s.opts.Clock
	today := clock.Today()
	result := &SweepResult{}

	meta, _, err := s.store.Mutate(ctx, domain.FamilyOrders, func(tx storage.Tables) (string, error) {
		orders, err := tx.Orders()
		if err != nil {
			return "", err
		}
		written := 0

		for _, o := range orders {
			status := o.Status()
			if status.IsTerminal() {
				continue
			}
			if selected != nil && status != domain.StatusExpired {
				if _, ok := selected[o.Code]; !ok {
					continue
				}
			}
			result.Evaluated++

			w, ok := domain.ComputeWindow(o.Info, clock)
			expired := ok && w.IsExpiredOn(today)

			changed := false
			switch {
			case expired:
				if status != domain.StatusExpired {
					o.Info.SetStatus(domain.StatusExpired)
					result.Expired = append(result.Expired, o.Code)
					changed = true
				}
				if o.Info.CancelObservation() == nil {
					o.Info.SetCancelObservation(domain.ExpiredReason, domain.ExpiredDetail)
					changed = true
				}
			case status == domain.StatusExpired:
				o.Info.SetStatus(domain.DeriveStatus(o.Tasks))
				if domain.IsDefaultExpiryNote(o.Info.CancelObservation()) {
					delete(o.Info, domain.InfoCancelObs)
				}
				result.Restored = append(result.Restored, o.Code)
				changed = true
			}

			if changed {
				if err := tx.PutOrder(o); err != nil {
					return "", err
				}
				written++
			}
		}

		if written == 0 {
			return "", nil
		}
		return fmt.Sprintf("Expiration sweep: %d expired, %d restored", len(result.Expired), len(result.Restored)), nil
	})
	if err != nil {
		return nil, err
	}

	result.Version = meta.Version
	s.opts.Metrics.RecordSweep(len(result.Expired), len(result.Restored))
	if result.Changed() {
		s.opts.Logger.Info("expiration sweep applied",
			"evaluated", result.Evaluated,
			"expired", len(result.Expired),
			"restored", len(result.Restored),
			"today", clock.FormatDate(today))
	}
	return result, nil
}
