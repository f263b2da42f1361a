package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/yndnr/fieldstore-go/internal/core/domain"
	"github.com/yndnr/fieldstore-go/internal/storage"
)

// LifecycleService handles orders: ingestion, queries, task transitions,
// cancellation, checklists and the expiration sweep.
type LifecycleService struct {
	store  Store
	opts   Options
	policy domain.CodePolicy
}

// NewLifecycleService creates a new LifecycleService. A nil policy
// selects domain.DefaultCodePolicy.
func NewLifecycleService(store Store, policy domain.CodePolicy, opts Options) *LifecycleService {
	if policy == nil {
		policy = domain.DefaultCodePolicy
	}
	return &LifecycleService{store: store, opts: opts.withDefaults(), policy: policy}
}

// ============================================================================
// Queries
// ============================================================================

// ListOrders returns all orders ordered by code.
func (s *LifecycleService) ListOrders(ctx context.Context) ([]*domain.Order, error) {
	return s.filterOrders(ctx, domain.Scope{})
}

// GetOrder returns one order, ErrOrderNotFound if absent.
func (s *LifecycleService) GetOrder(ctx context.Context, code int64) (*domain.Order, error) {
	var o *domain.Order
	err := s.store.View(ctx, func(tx storage.Tables) error {
		var err error
		o, err = tx.Order(code)
		return err
	})
	return o, err
}

// OrdersBySpeciality returns the orders of speciality id.
func (s *LifecycleService) OrdersBySpeciality(ctx context.Context, id int64) ([]*domain.Order, error) {
	return s.filterOrders(ctx, domain.SpecialityScope(id))
}

// OrdersByAssignee returns the orders assigned to user code.
func (s *LifecycleService) OrdersByAssignee(ctx context.Context, code int64) ([]*domain.Order, error) {
	return s.filterOrders(ctx, domain.AssigneeScope(code))
}

// Window returns the expiration window of an order; ok is false when it
// cannot be determined.
func (s *LifecycleService) Window(ctx context.Context, code int64) (domain.Window, bool, error) {
	o, err := s.GetOrder(ctx, code)
	if err != nil {
		return domain.Window{}, false, err
	}
	w, ok := domain.ComputeWindow(o.Info, s.opts.Clock)
	return w, ok, nil
}

func (s *LifecycleService) filterOrders(ctx context.Context, scope domain.Scope) ([]*domain.Order, error) {
	var out []*domain.Order
	err := s.store.View(ctx, func(tx storage.Tables) error {
		orders, err := tx.Orders()
		if err != nil {
			return err
		}
		for _, o := range orders {
			if scope.Matches(o) {
				out = append(out, o)
			}
		}
		return nil
	})
	return out, err
}

// ============================================================================
// Ingestion
// ============================================================================

// BulkUpsertResult summarizes a bulk upsert.
type BulkUpsertResult struct {
	Written  int     `json:"written"`
	Rejected int     `json:"rejected"`
	Codes    []int64 `json:"codes"`
}

// BulkUpsertOrders resolves each raw payload's code with the service's
// code policy, drops payloads without a usable code, re-derives status
// for payloads carrying tasks and writes the rest in one transaction.
// Later payloads win over earlier ones with the same code.
func (s *LifecycleService) BulkUpsertOrders(ctx context.Context, raw []map[string]any) (*BulkUpsertResult, error) {
	result := &BulkUpsertResult{}
	byCode := make(map[int64]*domain.Order, len(raw))

	for i, payload := range raw {
		o, ok := domain.NewOrderFromPayload(payload, s.policy)
		if !ok {
			result.Rejected++
			s.opts.Logger.Warn("order payload rejected: no usable code", "index", i)
			continue
		}
		if _, seen := byCode[o.Code]; !seen {
			result.Codes = append(result.Codes, o.Code)
		}
		byCode[o.Code] = o
	}
	if len(byCode) == 0 {
		return result, nil
	}

	_, _, err := s.store.Mutate(ctx, domain.FamilyOrders, func(tx storage.Tables) (string, error) {
		for _, code := range result.Codes {
			if err := tx.PutOrder(byCode[code]); err != nil {
				return "", err
			}
		}
		return fmt.Sprintf("Imported %d orders", len(result.Codes)), nil
	})
	if err != nil {
		return nil, err
	}

	result.Written = len(result.Codes)
	s.opts.Logger.Info("orders imported", "written", result.Written, "rejected", result.Rejected)
	return result, nil
}

// ============================================================================
// Task Transitions
// ============================================================================

// StartTask marks task index of order code as in progress, stamping
// init_task / accepted_at and the order start date when absent, and
// re-derives the order status.
func (s *LifecycleService) StartTask(ctx context.Context, code int64, index int) (*domain.Order, error) {
	return s.updateOrder(ctx, code, func(o *domain.Order) (string, error) {
		task, err := o.Task(index)
		if err != nil {
			return "", err
		}
		now := s.opts.Clock.NowISO()

		if task.Status < domain.TaskInProgress {
			task.Status = domain.TaskInProgress
		}
		if task.InitTask == "" {
			task.InitTask = now
		}
		if task.AcceptedAt == "" {
			task.AcceptedAt = now
		}
		if o.Info.Text(domain.InfoStartedAt) == "" {
			o.Info[domain.InfoStartedAt] = now
		}
		o.RecomputeStatus()
		return fmt.Sprintf("Started task %d of order %d", index, code), nil
	})
}

// CompleteTaskRequest carries optional completion data.
type CompleteTaskRequest struct {
	Observation     string         // Stored as "observacion"
	Result          any            // Measurement result, stored as "resultado"
	Range           any            // Measurement range, stored as "rango"
	CompletedBy     *int64         // User code
	DurationSeconds *int64         // Explicit duration; the larger of this and the measured delta wins
	Fields          map[string]any // Additional free-form task fields
}

// CompleteTask marks task index of order code as completed. It stamps
// end_task / completed_at, computes duration_seconds from the best start
// reference (task start, else order start, else completion time), merges
// the request fields, re-derives the order status and actual hours.
func (s *LifecycleService) CompleteTask(ctx context.Context, code int64, index int, req *CompleteTaskRequest) (*domain.Order, error) {
	if req == nil {
		req = &CompleteTaskRequest{}
	}
	return s.updateOrder(ctx, code, func(o *domain.Order) (string, error) {
		task, err := o.Task(index)
		if err != nil {
			return "", err
		}
		clock := s.opts.Clock
		now := clock.Now()

		task.Status = domain.TaskCompleted
		if task.EndTask == "" {
			task.EndTask = clock.Format(now)
		}
		if task.CompletedAt == "" {
			task.CompletedAt = clock.Format(now)
		}
		end, ok := clock.ParseFlexible(task.EndTask)
		if !ok {
			end = now
		}

		start, ok := clock.ParseFlexible(task.InitTask)
		if !ok {
			start, ok = clock.ParseFlexible(o.Info[domain.InfoStartedAt])
		}
		if !ok {
			start = end
		}

		duration := int64(math.Max(0, math.Floor(end.Sub(start).Seconds())))
		if req.DurationSeconds != nil && *req.DurationSeconds > duration {
			duration = *req.DurationSeconds
		}
		task.DurationSeconds = &duration

		if req.CompletedBy != nil {
			task.CompletedBy = domain.Int64Ptr(*req.CompletedBy)
		}
		if obs := strings.TrimSpace(req.Observation); obs != "" {
			task.SetField(domain.TaskFieldObservation, obs)
		}
		if req.Result != nil {
			task.SetField(domain.TaskFieldResult, req.Result)
		}
		if req.Range != nil {
			task.SetField(domain.TaskFieldRange, req.Range)
		}
		for k, v := range req.Fields {
			if isReservedTaskField(k) {
				continue
			}
			task.SetField(k, v)
		}

		if o.Info.Text(domain.InfoStartedAt) == "" {
			o.Info[domain.InfoStartedAt] = clock.Format(start)
		}
		if o.RecomputeStatus() == domain.StatusCompleted && o.Info.Text(domain.InfoFinishedAt) == "" {
			o.Info[domain.InfoFinishedAt] = clock.Format(now)
		}
		o.Info[domain.InfoActualHours] = s.actualHours(o)

		return fmt.Sprintf("Completed task %d of order %d", index, code), nil
	})
}

// actualHours returns the hours between the order start (else the
// earliest task start) and the latest task end, rounded to 2 decimals.
// Zero when either end is unknown or the span is not positive.
func (s *LifecycleService) actualHours(o *domain.Order) float64 {
	clock := s.opts.Clock

	start, haveStart := clock.ParseFlexible(o.Info[domain.InfoStartedAt])
	var end time.Time
	haveEnd := false
	for _, t := range o.Tasks {
		if !haveStart {
			if ts, ok := clock.ParseFlexible(t.InitTask); ok && (start.IsZero() || ts.Before(start)) {
				start = ts
			}
		}
		if te, ok := clock.ParseFlexible(t.EndTask); ok && (!haveEnd || te.After(end)) {
			end = te
			haveEnd = true
		}
	}
	if start.IsZero() || !haveEnd {
		return 0
	}

	hours := end.Sub(start).Hours()
	if hours <= 0 || math.IsNaN(hours) {
		return 0
	}
	return math.Round(hours*100) / 100
}

func isReservedTaskField(k string) bool {
	switch k {
	case domain.TaskFieldStatus, domain.TaskFieldInitTask, domain.TaskFieldEndTask,
		domain.TaskFieldAcceptedAt, domain.TaskFieldCompletedAt,
		domain.TaskFieldDurationSeconds, domain.TaskFieldCompletedBy:
		return true
	}
	return false
}

// ============================================================================
// Cancellation and Checklist
// ============================================================================

// CancelOrder sets the order to cancelled and records [reason, detail]
// as the cancellation observation. Both must be non-empty. There is no
// way back from cancelled.
func (s *LifecycleService) CancelOrder(ctx context.Context, code int64, reason, detail string) (*domain.Order, error) {
	reason = strings.TrimSpace(reason)
	detail = strings.TrimSpace(detail)
	if reason == "" || detail == "" {
		return nil, domain.ErrOrderValidation.WithDetails("cancellation reason and detail are required")
	}

	o, err := s.updateOrder(ctx, code, func(o *domain.Order) (string, error) {
		o.Info.SetStatus(domain.StatusCancelled)
		o.Info.SetCancelObservation(reason, detail)
		o.Info[domain.InfoCancelledAt] = s.opts.Clock.NowISO()
		return fmt.Sprintf("Cancelled order %d: %s", code, reason), nil
	})
	if err != nil {
		return nil, err
	}
	s.opts.Logger.Info("order cancelled", "code", code, "reason", reason)
	return o, nil
}

// SaveChecklist merges the checklist payload into the order info. The
// status key is protected; status is never changed by a checklist.
func (s *LifecycleService) SaveChecklist(ctx context.Context, code int64, data map[string]any) (*domain.Order, error) {
	if len(data) == 0 {
		return nil, domain.ErrOrderValidation.WithDetails("checklist payload is empty")
	}
	return s.updateOrder(ctx, code, func(o *domain.Order) (string, error) {
		for k, v := range data {
			if k == domain.InfoStatus {
				continue
			}
			o.Info[k] = v
		}
		o.Info[domain.InfoChecklistAt] = s.opts.Clock.NowISO()
		return fmt.Sprintf("Saved checklist of order %d", code), nil
	})
}

// updateOrder loads order code, applies fn to a copy and writes the copy
// back in one meta-coupled transaction. Writes that change nothing do
// not bump the version.
func (s *LifecycleService) updateOrder(ctx context.Context, code int64, fn func(o *domain.Order) (string, error)) (*domain.Order, error) {
	var updated *domain.Order
	_, _, err := s.store.Mutate(ctx, domain.FamilyOrders, func(tx storage.Tables) (string, error) {
		current, err := tx.Order(code)
		if err != nil {
			return "", err
		}

		o := current.Clone()
		reason, err := fn(o)
		if err != nil {
			return "", err
		}
		updated = o
		if sameJSON(current, o) {
			return "", nil
		}
		if err := tx.PutOrder(o); err != nil {
			return "", err
		}
		return reason, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
