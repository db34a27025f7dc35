// Package worker runs periodic background jobs for the plan service.
package worker

import (
	"context"
	"log/slog"
	"time"
)

// SnapshotExporter writes the plan set to a file and returns its path.
type SnapshotExporter interface {
	Export(ctx context.Context) (string, error)
}

// SnapshotPublisher publishes an export file. snapshot.Uploader satisfies it.
type SnapshotPublisher interface {
	Upload(ctx context.Context, filePath string) error
}

// SnapshotExportWorker exports and publishes the plan set on an interval.
type SnapshotExportWorker struct {
	exporter  SnapshotExporter
	publisher SnapshotPublisher
	interval  time.Duration
}

// NewSnapshotExportWorker creates a worker. A nil publisher keeps exports local.
func NewSnapshotExportWorker(exporter SnapshotExporter, publisher SnapshotPublisher, interval time.Duration) *SnapshotExportWorker {
	return &SnapshotExportWorker{
		exporter:  exporter,
		publisher: publisher,
		interval:  interval,
	}
}

// Run exports immediately on start, then on each interval, until ctx is
// cancelled. An export already in progress runs to completion.
func (w *SnapshotExportWorker) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "snapshot-export",
		"interval", w.interval.String(),
	)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.export(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "snapshot-export",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			w.export(ctx)
		}
	}
}

// export runs one export and publish cycle, logging failures.
func (w *SnapshotExportWorker) export(ctx context.Context) {
	start := time.Now()

	path, err := w.exporter.Export(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Warn("snapshot export failed",
			"component", "worker",
			"action", "snapshot_failed",
			"error", err,
		)
		return
	}

	if w.publisher != nil {
		if err := w.publisher.Upload(ctx, path); err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("snapshot upload failed",
				"component", "worker",
				"action", "snapshot_upload_failed",
				"path", path,
				"error", err,
			)
			return
		}
	}

	slog.Info("snapshot exported",
		"component", "worker",
		"action", "snapshot_exported",
		"path", path,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
