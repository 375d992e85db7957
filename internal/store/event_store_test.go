package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleEvent(id string) models.AccessEvent {
	card := "99887766"
	return models.AccessEvent{
		EmployeeID:    id,
		Name:          "Jane",
		DoorID:        1,
		EventCode:     75,
		Description:   "ACCESS GRANTED (face)",
		AccessGranted: true,
		CardNumber:    &card,
		CapturedAt:    time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
	}
}

func backends(t *testing.T) map[string]store.EventStore {
	return map[string]store.EventStore{
		"memory": store.NewMemoryEventStore(),
		"file":   store.NewFileEventStore(filepath.Join(t.TempDir(), "state", "last_event.json"), zap.NewNop()),
		"redis":  store.NewRedisEventStore(newFakeKV(), "access:last-event", zap.NewNop()),
	}
}

func TestEventStore_EmptyThenReplace(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			rec, err := s.Read(ctx)
			require.NoError(t, err)
			assert.Nil(t, rec)

			before := time.Now().Add(-time.Second)
			require.NoError(t, s.Write(ctx, sampleEvent("1")))
			require.NoError(t, s.Write(ctx, sampleEvent("2")))

			rec, err = s.Read(ctx)
			require.NoError(t, err)
			require.NotNil(t, rec)
			assert.Equal(t, "2", rec.Event.EmployeeID)
			require.NotNil(t, rec.Event.CardNumber)
			assert.Equal(t, "99887766", *rec.Event.CardNumber)
			assert.True(t, rec.Event.CapturedAt.Equal(time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)))
			assert.True(t, rec.ReceivedAt.After(before))
		})
	}
}

func TestFileEventStore_ConcurrentReadersNeverSeePartialRecords(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "last_event.json")
	s := store.NewFileEventStore(path, zap.NewNop())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, s.Write(ctx, sampleEvent(fmt.Sprint(i))))
		}
	}()

	for i := 0; i < 200; i++ {
		rec, err := s.Read(ctx)
		require.NoError(t, err)
		if rec != nil {
			assert.Equal(t, "Jane", rec.Event.Name)
			assert.Equal(t, 75, rec.Event.EventCode)
		}
	}
	wg.Wait()

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileEventStore_CorruptFileReadsAsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "last_event.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"event":{"employeeId":`), 0o644))

	rec, err := store.NewFileEventStore(path, zap.NewNop()).Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestRedisEventStore_Errors(t *testing.T) {
	ctx := context.Background()
	kv := newFakeKV()
	s := store.NewRedisEventStore(kv, "k", zap.NewNop())

	require.NoError(t, kv.Set(ctx, "k", "not json", 0))
	rec, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, rec)

	kv.failGet = errRedisDown
	_, err = s.Read(ctx)
	assert.ErrorIs(t, err, errRedisDown)
}

func TestMemoryEventStore_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryEventStore()
	require.NoError(t, s.Write(ctx, sampleEvent("7")))

	rec, err := s.Read(ctx)
	require.NoError(t, err)
	rec.Event.Name = "changed"

	again, err := s.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Jane", again.Event.Name)
}
