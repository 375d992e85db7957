package service

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"hik-access-bridge/internal/config"
	"hik-access-bridge/internal/device/devicetest"
	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(t *testing.T, deviceURL string) *config.Config {
	cfg := config.Default()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.HTTP.UploadsDir = t.TempDir()
	cfg.Device.BaseURL = deviceURL
	cfg.DBEnabled = false
	cfg.EventStore.Backend = "memory"
	return cfg
}

func TestNewBridgeService_WithoutOptionalBackends(t *testing.T) {
	fake := devicetest.NewServer()
	t.Cleanup(fake.Close)

	svc, err := NewBridgeService(context.Background(), testConfig(t, fake.URL), zap.NewNop())
	require.NoError(t, err)

	assert.IsType(t, &store.MemoryEventStore{}, svc.Store)
	assert.Nil(t, svc.Progress, "progress stream needs redis")
	assert.NotNil(t, svc.Publisher)
	assert.NotNil(t, svc.Sync)

	customers, err := svc.Roster.ListCustomers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, customers)
	assert.Empty(t, svc.HealthChecks(), "no optional backends to probe")

	require.NoError(t, svc.Start(http.NotFoundHandler()))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))
	assert.Error(t, svc.RunContext().Err(), "run context ends with the service")
}

func TestNewBridgeService_FileStore(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.EventStore.Backend = "file"
	cfg.EventStore.FilePath = filepath.Join(t.TempDir(), "last_event.json")

	svc, err := NewBridgeService(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Stop(context.Background()) })

	require.NoError(t, svc.Store.Write(context.Background(), models.AccessEvent{EmployeeID: "7", EventCode: 75}))
	rec, err := svc.Store.Read(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "7", rec.Event.EmployeeID)
}

func TestNewBridgeService_RedisStoreNeedsConnection(t *testing.T) {
	cfg := testConfig(t, "http://127.0.0.1:1")
	cfg.EventStore.Backend = "redis"

	_, err := NewBridgeService(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestRadarOptions(t *testing.T) {
	cfg := config.Default()
	opts := RadarOptions(cfg)
	assert.Equal(t, 20, opts.Attempts)
	assert.Equal(t, 1500*time.Millisecond, opts.Delay)
	assert.True(t, opts.Match(models.DeviceEvent{Minor: 1}))

	cfg.Radar.Match = "code"
	cfg.Radar.MatchCode = 76
	opts = RadarOptions(cfg)
	assert.True(t, opts.Match(models.DeviceEvent{Minor: 76}))
	assert.False(t, opts.Match(models.DeviceEvent{Minor: 75}))
}

func TestEngineOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Sync.BatchSize = 25

	opts := EngineOptions(cfg)
	assert.Equal(t, 25, opts.BatchSize)
	assert.Equal(t, 200*time.Millisecond, opts.BatchPause)
	assert.Equal(t, time.Second, opts.FailurePause)
	assert.Equal(t, 32, opts.Defaults.NameMaxLength)
	assert.Equal(t, "2035-12-31T23:59:59", opts.Defaults.ValidEnd)
}
