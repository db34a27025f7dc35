// Package batch applies ordered lists of plan operations to a store.
//
// Operations are applied one at a time in list order with no transaction
// spanning the batch. Each store call commits on its own, so a hard fault
// part way through leaves the earlier operations applied.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hyperengineering/holocene/internal/store"
	"github.com/hyperengineering/holocene/internal/types"
	"github.com/hyperengineering/holocene/internal/validation"
)

// PlanStore is the subset of store.Store the applier needs.
type PlanStore interface {
	InsertPlan(ctx context.Context, patch *types.PlanPatch) (*types.Plan, error)
	UpdatePlan(ctx context.Context, id string, patch *types.PlanPatch) (bool, error)
	DeletePlan(ctx context.Context, id string) (bool, error)
	ListPlans(ctx context.Context) ([]types.Plan, error)
}

// BatchError is the single batch-level failure returned when a store fault
// aborts a batch. Committed counts the operations applied before the fault.
type BatchError struct {
	Index     int
	Action    types.Action
	Committed int
	Err       error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch aborted at operation %d (%s) after %d committed: %v",
		e.Index, e.Action, e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}

// Applier applies batches of operations to a store.
type Applier struct {
	store PlanStore
}

// NewApplier creates an Applier bound to the given store handle.
func NewApplier(s PlanStore) *Applier {
	return &Applier{store: s}
}

// Apply runs each operation in order and returns a per-operation report.
//
// A payload that fails validation, or that the store refuses with
// store.ErrInvalidPlan, is recorded as rejected and the batch continues.
// Any other store error stops the batch and is returned as a *BatchError
// together with the partial report.
func (a *Applier) Apply(ctx context.Context, ops []types.Operation) (*types.BatchResponse, error) {
	start := time.Now()
	report := &types.BatchResponse{Results: make([]types.OperationResult, 0, len(ops))}

	for i, op := range ops {
		result, err := a.applyOne(ctx, i, op)
		if err != nil {
			berr := &BatchError{Index: i, Action: op.Action, Committed: report.Applied + report.Noop, Err: err}
			slog.Error("batch aborted",
				"component", "batch",
				"action", "batch_aborted",
				"index", i,
				"operation", op.Action,
				"committed", berr.Committed,
				"error", err,
			)
			return report, berr
		}

		switch result.Status {
		case types.StatusApplied:
			report.Applied++
		case types.StatusNoop:
			report.Noop++
		case types.StatusRejected:
			report.Rejected++
		}
		report.Results = append(report.Results, result)
	}

	slog.Info("batch applied",
		"component", "batch",
		"action", "batch_applied",
		"operations", len(ops),
		"applied", report.Applied,
		"noop", report.Noop,
		"rejected", report.Rejected,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// applyOne dispatches a single operation. A non-nil error is a hard fault.
func (a *Applier) applyOne(ctx context.Context, index int, op types.Operation) (types.OperationResult, error) {
	result := types.OperationResult{Index: index, Action: op.Action, ID: op.ID}

	switch op.Action {
	case types.ActionCreate:
		if errs := validation.ValidatePlanPatch("data", op.Data); len(errs) > 0 {
			return reject(result, errs), nil
		}
		plan, err := a.store.InsertPlan(ctx, op.Data)
		if err != nil {
			return softFail(result, err)
		}
		result.ID = plan.ID
		result.Status = types.StatusApplied

	case types.ActionUpdate:
		if op.ID == "" {
			return reject(result, []validation.ValidationError{{Field: "id", Message: "is required"}}), nil
		}
		if errs := validation.ValidatePlanPatch("data", op.Data); len(errs) > 0 {
			return reject(result, errs), nil
		}
		found, err := a.store.UpdatePlan(ctx, op.ID, op.Data)
		if err != nil {
			return softFail(result, err)
		}
		result.Status = statusFor(found)

	case types.ActionDelete:
		if op.ID == "" {
			return reject(result, []validation.ValidationError{{Field: "id", Message: "is required"}}), nil
		}
		found, err := a.store.DeletePlan(ctx, op.ID)
		if err != nil {
			return softFail(result, err)
		}
		result.Status = statusFor(found)

	default:
		return reject(result, []validation.ValidationError{{Field: "action", Message: "unknown action"}}), nil
	}

	return result, nil
}

// ListAll returns every plan in storage-native order.
func (a *Applier) ListAll(ctx context.Context) ([]types.Plan, error) {
	return a.store.ListPlans(ctx)
}

func statusFor(found bool) types.ResultStatus {
	if found {
		return types.StatusApplied
	}
	return types.StatusNoop
}

func reject(result types.OperationResult, errs []validation.ValidationError) types.OperationResult {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	result.Status = types.StatusRejected
	result.Error = strings.Join(msgs, "; ")
	return result
}

// softFail converts store.ErrInvalidPlan into a rejection and passes every
// other error through as a hard fault.
func softFail(result types.OperationResult, err error) (types.OperationResult, error) {
	if errors.Is(err, store.ErrInvalidPlan) {
		result.Status = types.StatusRejected
		result.Error = err.Error()
		return result, nil
	}
	return result, err
}
