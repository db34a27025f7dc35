package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperengineering/holocene/internal/types"
)

type stubLister struct {
	plans []types.Plan
	err   error
}

func (s *stubLister) ListPlans(ctx context.Context) ([]types.Plan, error) {
	return s.plans, s.err
}

func readDocument(t *testing.T, path string) Document {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	return doc
}

func TestExporter_WritesAllPlans(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "exports")
	lister := &stubLister{plans: []types.Plan{
		{ID: "01A", Name: "Crate", Length: 1.5, Quantity: 2, Stackable: true},
		{ID: "01B", Name: "Pallet", Weight: 20},
	}}
	e := NewExporter(lister, dir)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return fixed }

	path, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if path != filepath.Join(dir, FileName) {
		t.Errorf("path = %q, want %q", path, filepath.Join(dir, FileName))
	}

	doc := readDocument(t, path)
	if doc.PlanCount != 2 || len(doc.Data) != 2 {
		t.Fatalf("plan_count = %d, len(data) = %d, want 2", doc.PlanCount, len(doc.Data))
	}
	if doc.Data[0] != lister.plans[0] {
		t.Errorf("data[0] = %+v, want %+v", doc.Data[0], lister.plans[0])
	}
	if !doc.GeneratedAt.Equal(fixed) {
		t.Errorf("generated_at = %v, want %v", doc.GeneratedAt, fixed)
	}
}

func TestExporter_EmptyStoreWritesEmptyArray(t *testing.T) {
	e := NewExporter(&stubLister{}, t.TempDir())

	path, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if _, ok := generic["data"].([]any); !ok {
		t.Errorf("data = %v, want empty array", generic["data"])
	}
}

func TestExporter_ReplacesPreviousExport(t *testing.T) {
	dir := t.TempDir()
	lister := &stubLister{plans: []types.Plan{{ID: "1", Name: "Old"}}}
	e := NewExporter(lister, dir)

	if _, err := e.Export(context.Background()); err != nil {
		t.Fatalf("first Export() error = %v", err)
	}
	lister.plans = []types.Plan{{ID: "2", Name: "New"}, {ID: "3", Name: "Newer"}}
	path, err := e.Export(context.Background())
	if err != nil {
		t.Fatalf("second Export() error = %v", err)
	}

	doc := readDocument(t, path)
	if doc.PlanCount != 2 || doc.Data[0].Name != "New" {
		t.Errorf("unexpected export after replace: %+v", doc)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only %s in export dir, found %d entries", FileName, len(entries))
	}
}

func TestExporter_ListError(t *testing.T) {
	boom := errors.New("database is locked")
	dir := t.TempDir()
	e := NewExporter(&stubLister{err: boom}, dir)

	_, err := e.Export(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Export() error = %v, want wrapped %v", err, boom)
	}
	if _, statErr := os.Stat(e.Path()); !os.IsNotExist(statErr) {
		t.Error("no export file should be written on list failure")
	}
}
