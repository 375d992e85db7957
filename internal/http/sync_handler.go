package httpapi

import (
	"context"
	"errors"
	"net/http"

	"hik-access-bridge/internal/service"

	"go.uber.org/zap"
)

// SyncController single-run reconciliation job.
type SyncController interface {
	Start(ctx context.Context) error
	Status() service.SyncStatus
}

// SyncHandler roster listing and reconciliation runs.
type SyncHandler struct {
	roster service.CustomerLister
	job    SyncController
	// runs outlive the request that started them
	runCtx context.Context
	logger *zap.Logger
}

func NewSyncHandler(runCtx context.Context, roster service.CustomerLister, job SyncController, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{
		roster: roster,
		job:    job,
		runCtx: runCtx,
		logger: logger.Named("sync_handler"),
	}
}

// ListCustomers GET /api/clientes
func (h *SyncHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.roster.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("Failed to list customers", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to load customers: "+err.Error()))
		return
	}
	writeJSON(w, http.StatusOK, Ok(map[string]any{
		"items": customers,
		"total": len(customers),
	}))
}

// StartSync POST /api/sync-all
func (h *SyncHandler) StartSync(w http.ResponseWriter, r *http.Request) {
	if err := h.job.Start(h.runCtx); err != nil {
		if errors.Is(err, service.ErrSyncRunning) {
			writeJSON(w, http.StatusConflict, Fail("a sync run is already in progress"))
			return
		}
		writeJSON(w, http.StatusOK, Fail(err.Error()))
		return
	}
	h.logger.Info("Sync run started")
	writeJSON(w, http.StatusOK, Ok(map[string]any{"started": true}))
}

// Status GET /api/sync/status
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Ok(h.job.Status()))
}

// Report GET /api/sync/report.xlsx
func (h *SyncHandler) Report(w http.ResponseWriter, r *http.Request) {
	status := h.job.Status()
	if status.LastOutcome == nil {
		writeJSON(w, http.StatusOK, Fail("no sync run has finished yet"))
		return
	}
	data, err := GenerateSyncReport(*status.LastOutcome)
	if err != nil {
		h.logger.Error("Failed to generate sync report", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to generate report: "+err.Error()))
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=sync-report.xlsx")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
