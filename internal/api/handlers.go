package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hyperengineering/holocene/internal/batch"
	"github.com/hyperengineering/holocene/internal/snapshot"
	"github.com/hyperengineering/holocene/internal/store"
	"github.com/hyperengineering/holocene/internal/types"
	"github.com/hyperengineering/holocene/internal/validation"
)

// maxBatchBodyBytes bounds the size of a batch request body.
const maxBatchBodyBytes = 4 << 20

// Handler implements the API handlers
type Handler struct {
	store    store.Store
	applier  *batch.Applier
	uploader snapshot.Uploader
	apiKey   string
	version  string
}

// NewHandler creates a Handler. The applier is bound to the same store.
// An empty apiKey disables authentication on protected routes.
func NewHandler(s store.Store, u snapshot.Uploader, apiKey, version string) *Handler {
	if u == nil {
		u = &snapshot.NoopUploader{}
	}
	return &Handler{
		store:    s,
		applier:  batch.NewApplier(s),
		uploader: u,
		apiKey:   apiKey,
		version:  version,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "component", "api", "error", err)
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.GetStats(r.Context())
	if err != nil {
		slog.Error("health stats failed", "component", "api", "action", "health", "error", err)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		PlanCount: stats.PlanCount,
	})
}

// ListPlans handles GET /api/v1/plan
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.applier.ListAll(r.Context())
	if err != nil {
		slog.Error("list plans failed",
			"component", "api",
			"action", "list_plans",
			"request_id", GetRequestID(r.Context()),
			"error", err,
		)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, types.ListResponse{Data: plans})
}

// Batch handles POST /api/v1/plan/batch
func (h *Handler) Batch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBatchBodyBytes)

	var req types.BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteProblem(w, r, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("Request body exceeds %d bytes", tooLarge.Limit))
			return
		}
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	// Shape errors reject the entire batch before anything is applied
	if errs := validation.ValidateBatchRequest(req); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Batch contains invalid operations", errs)
		return
	}

	report, err := h.applier.Apply(r.Context(), req.Operations)
	if err != nil {
		attrs := []any{
			"component", "api",
			"action", "batch",
			"request_id", GetRequestID(r.Context()),
			"operations", len(req.Operations),
			"error", err,
		}
		var berr *batch.BatchError
		if errors.As(err, &berr) {
			attrs = append(attrs, "failed_index", berr.Index, "committed", berr.Committed)
		}
		slog.Error("batch failed", attrs...)
		MapStoreError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// Snapshot handles GET /api/v1/plan/snapshot by redirecting to a pre-signed
// URL of the latest export.
func (h *Handler) Snapshot(w http.ResponseWriter, r *http.Request) {
	url, expiry, err := h.uploader.PresignedURL(r.Context())
	if err != nil {
		if !errors.Is(err, snapshot.ErrNotConfigured) {
			slog.Error("snapshot url failed",
				"component", "api",
				"action", "snapshot",
				"request_id", GetRequestID(r.Context()),
				"error", err,
			)
		}
		MapStoreError(w, r, err)
		return
	}

	slog.Debug("snapshot url issued",
		"component", "api",
		"action", "snapshot",
		"expires_at", expiry,
	)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}
