package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"

	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/device/devicetest"
	"hik-access-bridge/internal/face"
	"hik-access-bridge/internal/media"
	"hik-access-bridge/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// envelope decodes a Result with a raw payload.
type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "body: %s", w.Body.String())
	return env
}

type capturingPublisher struct {
	mu     sync.Mutex
	events []models.AccessEvent
}

func (p *capturingPublisher) Publish(_ context.Context, event models.AccessEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// deviceFixture fake terminal plus the real client, media store and face manager over it.
type deviceFixture struct {
	fake   *devicetest.Server
	client *device.Client
	media  *media.Storage
	faces  *face.Manager
}

func newDeviceFixture(t *testing.T) *deviceFixture {
	t.Helper()
	fake := devicetest.NewServer()
	t.Cleanup(fake.Close)

	client := device.NewClient(device.Options{BaseURL: fake.URL, FDID: "1", FaceLibType: "blackFD"}, zap.NewNop())
	storage, err := media.NewStorage(t.TempDir(), "http://bridge.local:6060", zap.NewNop())
	require.NoError(t, err)

	faces := face.NewManager(client, storage, face.Options{Attempts: 1, CleanupDelay: 0}, zap.NewNop())
	return &deviceFixture{fake: fake, client: client, media: storage, faces: faces}
}
