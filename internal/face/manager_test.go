package face

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/device/devicetest"
	"hik-access-bridge/internal/media"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type deferredCleanup struct {
	mu    sync.Mutex
	delay time.Duration
	funcs []func()
}

func (d *deferredCleanup) afterFunc(delay time.Duration, f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
	d.funcs = append(d.funcs, f)
}

func (d *deferredCleanup) runAll() {
	d.mu.Lock()
	funcs := d.funcs
	d.funcs = nil
	d.mu.Unlock()
	for _, f := range funcs {
		f()
	}
}

type fixture struct {
	fake    *devicetest.Server
	storage *media.Storage
	manager *Manager
	cleanup *deferredCleanup
	sleeps  []time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fake := devicetest.NewServer()
	t.Cleanup(fake.Close)

	storage, err := media.NewStorage(filepath.Join(t.TempDir(), "uploads"), "http://bridge:6060", zap.NewNop())
	require.NoError(t, err)

	client := device.NewClient(device.Options{BaseURL: fake.URL}, zap.NewNop())
	f := &fixture{fake: fake, storage: storage, cleanup: &deferredCleanup{}}
	f.manager = NewManager(client, storage, Options{Attempts: 3, Backoff: time.Second, CleanupDelay: time.Minute}, zap.NewNop())
	f.manager.afterFunc = f.cleanup.afterFunc
	f.manager.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		return ctx.Err()
	}
	return f
}

func storedName(t *testing.T, faceURL string) string {
	t.Helper()
	return filepath.Base(faceURL)
}

func TestUpload_EnrollsAndCleansUpLater(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	enrollment, err := f.manager.Upload(ctx, " 42 ", []byte("jpeg-bytes"), ".jpg")
	require.NoError(t, err)
	assert.True(t, enrollment.Present)
	assert.Equal(t, "42", enrollment.EmployeeNo)
	assert.Contains(t, enrollment.FaceURL, "http://bridge:6060/uploads/face-42-")

	onDevice, ok := f.fake.Face("42")
	require.True(t, ok)
	assert.Equal(t, enrollment.FaceURL, onDevice)

	name := storedName(t, enrollment.FaceURL)
	assert.True(t, f.storage.Exists(name), "image stays until the terminal fetched it")
	assert.Equal(t, time.Minute, f.cleanup.delay)

	f.cleanup.runAll()
	assert.False(t, f.storage.Exists(name))

	verified, err := f.manager.Verify(ctx, "42")
	require.NoError(t, err)
	assert.True(t, verified.Present)
}

func TestUpload_RetriesWithBackoff(t *testing.T) {
	f := newFixture(t)
	f.fake.FaceUploadFailures = 2

	_, err := f.manager.Upload(context.Background(), "42", []byte("jpeg"), "")
	require.NoError(t, err)
	assert.Equal(t, 3, f.fake.FaceUploads())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, f.sleeps)
}

func TestUpload_FailureRemovesImageAndKeepsState(t *testing.T) {
	f := newFixture(t)
	f.fake.FaceUploadFailures = 5

	_, err := f.manager.Upload(context.Background(), "42", []byte("jpeg"), ".jpg")
	require.Error(t, err)
	de, ok := device.AsError(err)
	require.True(t, ok)
	assert.Contains(t, de.Diagnostic(), "downloadPictureFailed")
	assert.Equal(t, 3, f.fake.FaceUploads())

	_, present := f.fake.Face("42")
	assert.False(t, present)

	entries, err := filepath.Glob(filepath.Join(f.storage.Dir(), "face-*"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpload_InputValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.manager.Upload(context.Background(), "42", nil, ".jpg")
	assert.ErrorIs(t, err, ErrEmptyImage)
	_, err = f.manager.Upload(context.Background(), "  ", []byte("x"), ".jpg")
	assert.ErrorIs(t, err, ErrEmptyIdentity)
	assert.Equal(t, 0, f.fake.FaceUploads())
}

func TestVerify_NoMatchIsNotAnError(t *testing.T) {
	f := newFixture(t)
	enrollment, err := f.manager.Verify(context.Background(), "404")
	require.NoError(t, err)
	assert.False(t, enrollment.Present)
}

func TestDelete_Confirmed(t *testing.T) {
	f := newFixture(t)
	f.fake.PutFace("42", "http://bridge/uploads/x.jpg")

	require.NoError(t, f.manager.Delete(context.Background(), "42"))
	_, ok := f.fake.Face("42")
	assert.False(t, ok)
}

func TestDelete_StickyFaceReportsFailure(t *testing.T) {
	f := newFixture(t)
	f.fake.StickyFaceDelete = true
	f.fake.PutFace("42", "http://bridge/uploads/x.jpg")

	err := f.manager.Delete(context.Background(), "42")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDeleteUnconfirmed))
}

func TestDelete_UnreachableVerifyIsUnconfirmed(t *testing.T) {
	f := newFixture(t)
	lib := &deleteOnlyLibrary{searchErr: device.ErrUnreachable}
	m := NewManager(lib, f.storage, Options{}, zap.NewNop())

	err := m.Delete(context.Background(), "42")
	assert.ErrorIs(t, err, ErrDeleteUnconfirmed)
	assert.ErrorIs(t, err, device.ErrUnreachable)
}
