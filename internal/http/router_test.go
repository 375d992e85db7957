package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hik-access-bridge/internal/metrics"
	"hik-access-bridge/internal/normalizer"
	"hik-access-bridge/internal/repository"
	"hik-access-bridge/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter(t *testing.T) (*Router, *deviceFixture) {
	t.Helper()
	fx := newDeviceFixture(t)
	logger := zap.NewNop()
	events := store.NewMemoryEventStore()

	r := NewRouter(logger)
	r.RegisterWebhookRoutes(NewWebhookHandler(normalizer.New(logger), events, nil, fx.media, logger))
	r.RegisterSyncRoutes(NewSyncHandler(context.Background(), repository.NewMemoryCustomerRepository(nil), &fakeSyncController{}, logger))
	r.RegisterCustomerRoutes(NewCustomerHandler(fx.faces, fx.client, logger))
	r.RegisterEventRoutes(NewEventHandler(events, stubWaiter{}, logger))
	r.RegisterDoorRoutes(NewDoorHandler(fx.client, logger))
	r.RegisterSystemRoutes(fx.media.Dir(), nil)
	return r, fx
}

func TestRouter_Routes(t *testing.T) {
	r, fx := newTestRouter(t)
	require.NoError(t, os.WriteFile(filepath.Join(fx.media.Dir(), "access-1.jpg"), []byte("jpeg"), 0o644))

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/uploads/access-1.jpg", http.StatusOK},
		{http.MethodGet, "/uploads/missing.jpg", http.StatusNotFound},
		{http.MethodGet, "/api/clientes", http.StatusOK},
		{http.MethodPost, "/api/clientes", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/sync-all", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/sync/status", http.StatusOK},
		{http.MethodGet, "/api/eventos/ultimo-local", http.StatusOK},
		{http.MethodPost, "/api/eventos/radar", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/hikvision/event", http.StatusOK},
		{http.MethodPut, "/api/hikvision/event", http.StatusOK},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, w.Code, "%s %s", tt.method, tt.path)
	}
}

func TestRouter_MetricsMiddleware(t *testing.T) {
	r, _ := newTestRouter(t)
	h := metrics.Middleware(r)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/hikvision/event", strings.NewReader(grantedJSON)))
	assertAck(t, w)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "bridge_http_requests_total")
	assert.Contains(t, w.Body.String(), "bridge_events_received_total")
}

func TestRouter_HealthReportsBackends(t *testing.T) {
	var mqttUp bool
	r := NewRouter(zap.NewNop())
	r.RegisterSystemRoutes(t.TempDir(), map[string]func(context.Context) error{
		"redis": func(context.Context) error { return nil },
		"mqtt": func(context.Context) error {
			if !mqttUp {
				return errors.New("not connected")
			}
			return nil
		},
	})

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "up", body.Components["redis"])
	assert.Equal(t, "down: not connected", body.Components["mqtt"])

	mqttUp = true
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "up", body.Components["mqtt"])
}
