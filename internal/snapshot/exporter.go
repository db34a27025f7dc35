package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/holocene/internal/types"
)

// FileName is the name of the export file written into the export directory.
const FileName = "current.json"

// PlanLister is the store operation the exporter needs.
type PlanLister interface {
	ListPlans(ctx context.Context) ([]types.Plan, error)
}

// Document is the JSON layout of an export file.
type Document struct {
	GeneratedAt time.Time    `json:"generated_at"`
	PlanCount   int          `json:"plan_count"`
	Data        []types.Plan `json:"data"`
}

// Exporter writes the full plan set to a JSON file.
type Exporter struct {
	source PlanLister
	dir    string
	now    func() time.Time
}

// NewExporter creates an Exporter writing into dir.
func NewExporter(source PlanLister, dir string) *Exporter {
	return &Exporter{source: source, dir: dir, now: time.Now}
}

// Path returns the location of the export file.
func (e *Exporter) Path() string {
	return filepath.Join(e.dir, FileName)
}

// Export lists every plan and writes them to Path. The file is replaced
// atomically so readers never observe a partial export.
func (e *Exporter) Export(ctx context.Context) (string, error) {
	plans, err := e.source.ListPlans(ctx)
	if err != nil {
		return "", fmt.Errorf("list plans: %w", err)
	}
	if plans == nil {
		plans = []types.Plan{}
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(e.dir, ".export-*.json")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	doc := Document{
		GeneratedAt: e.now().UTC(),
		PlanCount:   len(plans),
		Data:        plans,
	}
	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		tmp.Close()
		return "", fmt.Errorf("encode export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	path := e.Path()
	if err := os.Rename(tmpPath, path); err != nil {
		return "", fmt.Errorf("rename export: %w", err)
	}
	return path, nil
}
