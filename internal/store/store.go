package store

import (
	"context"

	"github.com/hyperengineering/holocene/internal/types"
)

// Store defines the interface contract for all plan storage operations.
// Every call commits independently; there is no cross-call transaction.
type Store interface {
	// InsertPlan creates a plan from the patch and returns it with its assigned id.
	InsertPlan(ctx context.Context, patch *types.PlanPatch) (*types.Plan, error)

	// UpdatePlan merges the patch into the plan with the given id.
	// It reports false, without error, when no such plan exists.
	UpdatePlan(ctx context.Context, id string, patch *types.PlanPatch) (bool, error)

	// DeletePlan removes the plan with the given id.
	// It reports false, without error, when no such plan exists.
	DeletePlan(ctx context.Context, id string) (bool, error)

	GetPlan(ctx context.Context, id string) (*types.Plan, error)

	// ListPlans returns every plan in storage-native order.
	ListPlans(ctx context.Context) ([]types.Plan, error)

	GetStats(ctx context.Context) (*types.StoreStats, error)
	Close() error
}
