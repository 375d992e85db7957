package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/repository"
	"hik-access-bridge/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

type fakeSyncController struct {
	startErr error
	started  int
	status   service.SyncStatus
}

func (f *fakeSyncController) Start(context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started++
	return nil
}

func (f *fakeSyncController) Status() service.SyncStatus { return f.status }

func sampleOutcome() models.SyncOutcome {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	return models.SyncOutcome{
		Total:     3,
		Succeeded: 2,
		Failed:    1,
		Items: []models.SyncItemResult{
			{EmployeeNo: "1", Name: "Ana", Status: models.SyncItemCreated},
			{EmployeeNo: "2", Name: "Luis", Status: models.SyncItemUpdated},
			{EmployeeNo: "", Name: "Sin id", Status: models.SyncItemFailed, Error: "empty customer id"},
		},
		StartedAt:  start,
		FinishedAt: start.Add(3 * time.Second),
	}
}

func TestSyncHandler_ListCustomers(t *testing.T) {
	roster := repository.NewMemoryCustomerRepository([]models.CustomerRecord{{ID: "1", Name: "Ana"}, {ID: "2", Name: "Luis"}})
	h := NewSyncHandler(context.Background(), roster, &fakeSyncController{}, zap.NewNop())

	w := httptest.NewRecorder()
	h.ListCustomers(w, httptest.NewRequest(http.MethodGet, "/api/clientes", nil))

	env := decodeEnvelope(t, w)
	assert.Equal(t, ResultSuccess, env.Code)
	var result struct {
		Items []models.CustomerRecord `json:"items"`
		Total int                     `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Result, &result))
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, "Luis", result.Items[1].Name)
}

func TestSyncHandler_StartSync(t *testing.T) {
	job := &fakeSyncController{}
	h := NewSyncHandler(context.Background(), repository.NewMemoryCustomerRepository(nil), job, zap.NewNop())

	w := httptest.NewRecorder()
	h.StartSync(w, httptest.NewRequest(http.MethodPost, "/api/sync-all", nil))
	assert.Equal(t, ResultSuccess, decodeEnvelope(t, w).Code)
	assert.Equal(t, 1, job.started)

	job.startErr = service.ErrSyncRunning
	w = httptest.NewRecorder()
	h.StartSync(w, httptest.NewRequest(http.MethodPost, "/api/sync-all", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, ResultError, env.Code)
	assert.Contains(t, env.Message, "already in progress")
}

func TestSyncHandler_Status(t *testing.T) {
	outcome := sampleOutcome()
	job := &fakeSyncController{status: service.SyncStatus{
		Running:     true,
		Progress:    &models.SyncProgress{Current: 2, Total: 3, CurrentName: "Luis"},
		LastOutcome: &outcome,
	}}
	h := NewSyncHandler(context.Background(), repository.NewMemoryCustomerRepository(nil), job, zap.NewNop())

	w := httptest.NewRecorder()
	h.Status(w, httptest.NewRequest(http.MethodGet, "/api/sync/status", nil))

	env := decodeEnvelope(t, w)
	var st service.SyncStatus
	require.NoError(t, json.Unmarshal(env.Result, &st))
	assert.True(t, st.Running)
	assert.Equal(t, "Luis", st.Progress.CurrentName)
	assert.Equal(t, 1, st.LastOutcome.Failed)
}

func TestSyncHandler_ReportWithoutRun(t *testing.T) {
	h := NewSyncHandler(context.Background(), repository.NewMemoryCustomerRepository(nil), &fakeSyncController{}, zap.NewNop())

	w := httptest.NewRecorder()
	h.Report(w, httptest.NewRequest(http.MethodGet, "/api/sync/report.xlsx", nil))

	env := decodeEnvelope(t, w)
	assert.Equal(t, ResultError, env.Code)
}

func TestSyncHandler_ReportWorkbook(t *testing.T) {
	outcome := sampleOutcome()
	job := &fakeSyncController{status: service.SyncStatus{LastOutcome: &outcome}}
	h := NewSyncHandler(context.Background(), repository.NewMemoryCustomerRepository(nil), job, zap.NewNop())

	w := httptest.NewRecorder()
	h.Report(w, httptest.NewRequest(http.MethodGet, "/api/sync/report.xlsx", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "sync-report.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	header, err := f.GetCellValue(reportSheet, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Employee No", header)

	status, err := f.GetCellValue(reportSheet, "C3")
	require.NoError(t, err)
	assert.Equal(t, "updated", status)

	errText, err := f.GetCellValue(reportSheet, "D4")
	require.NoError(t, err)
	assert.Equal(t, "empty customer id", errText)

	failed, err := f.GetCellValue(summarySheet, "B7")
	require.NoError(t, err)
	assert.Equal(t, "1", failed)
}
