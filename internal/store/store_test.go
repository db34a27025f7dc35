package store

import (
	"context"

	"github.com/hyperengineering/holocene/internal/types"
)

// mockStore is a compile-time check that the Store interface can be implemented.
type mockStore struct{}

var (
	_ Store = (*mockStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)

func (m *mockStore) InsertPlan(ctx context.Context, patch *types.PlanPatch) (*types.Plan, error) {
	return nil, nil
}
func (m *mockStore) UpdatePlan(ctx context.Context, id string, patch *types.PlanPatch) (bool, error) {
	return false, nil
}
func (m *mockStore) DeletePlan(ctx context.Context, id string) (bool, error) {
	return false, nil
}
func (m *mockStore) GetPlan(ctx context.Context, id string) (*types.Plan, error) {
	return nil, ErrNotFound
}
func (m *mockStore) ListPlans(ctx context.Context) ([]types.Plan, error) {
	return nil, nil
}
func (m *mockStore) GetStats(ctx context.Context) (*types.StoreStats, error) {
	return nil, nil
}
func (m *mockStore) Close() error {
	return nil
}
