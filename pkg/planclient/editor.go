package planclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/hyperengineering/holocene/internal/types"
)

var (
	// ErrUnknownRow is returned when an id matches no visible row.
	ErrUnknownRow = errors.New("unknown row")

	// ErrSaveInProgress is returned while a Save is waiting on the server.
	ErrSaveInProgress = errors.New("save in progress")

	// ErrLoadInProgress is returned while a Load is waiting on the server.
	ErrLoadInProgress = errors.New("load in progress")

	// ErrStale is returned after a saved batch could not be reloaded. The
	// rows may still carry temporary ids the server has replaced, so edits
	// are refused until Load succeeds.
	ErrStale = errors.New("rows are stale; reload required")
)

// PlanService is the server API the Editor depends on. *Client satisfies it.
type PlanService interface {
	List(ctx context.Context) ([]types.Plan, error)
	Batch(ctx context.Context, ops []types.Operation) (*types.BatchResponse, error)
}

// Editor holds the visible rows of the plan grid and turns edits on them
// into a pending batch.
type Editor struct {
	service PlanService
	tracker *Tracker
	newID   func() string

	mu      sync.Mutex
	rows    []types.Plan
	saving  bool
	loading bool
	stale   bool
}

// NewEditor creates an Editor. Tracker options select the delete policy.
func NewEditor(service PlanService, opts ...TrackerOption) *Editor {
	return &Editor{
		service: service,
		tracker: NewTracker(opts...),
		newID:   uuid.NewString,
	}
}

// Load replaces the visible rows with the server's current plans and
// discards any pending intents. Edits are refused until it returns.
func (e *Editor) Load(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.saving:
		e.mu.Unlock()
		return ErrSaveInProgress
	case e.loading:
		e.mu.Unlock()
		return ErrLoadInProgress
	}
	e.loading = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.loading = false
		e.mu.Unlock()
	}()

	return e.reload(ctx)
}

// reload fetches the plans and swaps them in. Callers must have set
// saving or loading so no edit can land between List and Clear.
func (e *Editor) reload(ctx context.Context) error {
	plans, err := e.service.List(ctx)
	if err != nil {
		return fmt.Errorf("load plans: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rows = slices.Clone(plans)
	e.tracker.Clear()
	e.stale = false
	return nil
}

// editable reports why the rows cannot be changed right now, if anything.
// e.mu must be held.
func (e *Editor) editable() error {
	switch {
	case e.saving:
		return ErrSaveInProgress
	case e.loading:
		return ErrLoadInProgress
	case e.stale:
		return ErrStale
	}
	return nil
}

// Add appends a row with default values and a temporary id.
func (e *Editor) Add() (types.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.editable(); err != nil {
		return types.Plan{}, err
	}

	row := types.Plan{ID: e.newID(), Name: DefaultPlanName}
	e.rows = append(e.rows, row)
	e.tracker.Add(row)
	return row, nil
}

// Edit merges patch into the row with the given id and returns the result.
func (e *Editor) Edit(id string, patch *types.PlanPatch) (types.Plan, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.editable(); err != nil {
		return types.Plan{}, err
	}

	i := e.indexOf(id)
	if i < 0 {
		return types.Plan{}, fmt.Errorf("edit %s: %w", id, ErrUnknownRow)
	}

	row := patch.Apply(e.rows[i])
	row.ID = id
	e.rows[i] = row
	e.tracker.Edit(row)
	return row, nil
}

// Delete removes the row with the given id.
func (e *Editor) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.editable(); err != nil {
		return err
	}

	i := e.indexOf(id)
	if i < 0 {
		return fmt.Errorf("delete %s: %w", id, ErrUnknownRow)
	}

	e.rows = slices.Delete(e.rows, i, i+1)
	e.tracker.Delete(id)
	return nil
}

// Save submits the pending intents as one batch.
//
// If the request fails the intents are kept so Save can be retried. On any
// 2xx response the intents are cleared, even when the report lists rejected
// operations, and the rows are reloaded from the server. If that reload
// fails the editor is stale and refuses edits until Load succeeds.
func (e *Editor) Save(ctx context.Context) (*types.BatchResponse, error) {
	e.mu.Lock()
	if err := e.editable(); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.saving = true
	ops := e.tracker.Serialize()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.saving = false
		e.mu.Unlock()
	}()

	report, err := e.service.Batch(ctx, ops)
	if err != nil {
		slog.Warn("save failed",
			"component", "planclient",
			"action", "save_failed",
			"operations", len(ops),
			"error", err,
		)
		return nil, fmt.Errorf("save: %w", err)
	}

	e.mu.Lock()
	e.tracker.Clear()
	e.mu.Unlock()

	slog.Debug("save completed",
		"component", "planclient",
		"action", "save",
		"operations", len(ops),
		"applied", report.Applied,
		"noop", report.Noop,
		"rejected", report.Rejected,
	)

	if err := e.reload(ctx); err != nil {
		e.mu.Lock()
		e.stale = true
		e.mu.Unlock()
		slog.Warn("reload after save failed",
			"component", "planclient",
			"action", "reload_failed",
			"error", err,
		)
		return report, fmt.Errorf("reload after save: %w", err)
	}
	return report, nil
}

// Rows returns a copy of the visible rows.
func (e *Editor) Rows() []types.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.rows)
}

// Pending returns the intents a Save would submit.
func (e *Editor) Pending() []types.Operation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.Serialize()
}

// Saving reports whether a Save is in flight.
func (e *Editor) Saving() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.saving
}

// Stale reports whether the rows must be reloaded before further edits.
func (e *Editor) Stale() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stale
}

// IsNew reports whether the row with id has not been created on the server yet.
func (e *Editor) IsNew(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tracker.IsNew(id)
}

func (e *Editor) indexOf(id string) int {
	return slices.IndexFunc(e.rows, func(p types.Plan) bool { return p.ID == id })
}
