package httpapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"hik-access-bridge/internal/media"
	"hik-access-bridge/internal/metrics"
	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/normalizer"
	"hik-access-bridge/internal/store"

	"go.uber.org/zap"
)

const (
	// shorter bodies are keep-alives
	minPayloadLen    = 5
	maxWebhookBody   = 8 << 20
	maxWebhookMemory = 10 << 20
	eventLogField    = "event_log"
	storeTimeout     = 5 * time.Second
)

// EventPublisher fan-out of accepted events; failures are the publisher's business.
type EventPublisher interface {
	Publish(ctx context.Context, event models.AccessEvent)
}

// MediaStore where webhook captures are kept.
type MediaStore interface {
	Save(name string, r io.Reader) error
	Ref(name string) string
}

// WebhookHandler receives the terminal's event notifications.
// It acknowledges every request with 200 {"status":"ok"}: any other status makes the
// terminal retry aggressively or disable the subscription.
type WebhookHandler struct {
	normalizer *normalizer.Normalizer
	store      store.EventStore
	publisher  EventPublisher
	media      MediaStore
	logger     *zap.Logger
	now        func() time.Time
}

// NewWebhookHandler publisher and media may be nil.
func NewWebhookHandler(n *normalizer.Normalizer, s store.EventStore, p EventPublisher, m MediaStore, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		normalizer: n,
		store:      s,
		publisher:  p,
		media:      m,
		logger:     logger.Named("webhook"),
		now:        time.Now,
	}
}

func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("Recovered panic while handling notification", zap.Any("panic", rec))
			metrics.EventsReceived.WithLabelValues("error").Inc()
			writeAck(w)
		}
	}()

	h.handle(r)
	writeAck(w)
}

func writeAck(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *WebhookHandler) handle(r *http.Request) {
	payload, image, err := h.readNotification(r)
	if err != nil {
		h.logger.Debug("Unreadable notification", zap.Error(err))
		metrics.EventsReceived.WithLabelValues("ignored").Inc()
		return
	}
	if image != nil {
		defer image.file.Close()
	}
	if len(bytes.TrimSpace(payload)) < minPayloadLen {
		metrics.EventsReceived.WithLabelValues("ignored").Inc()
		return
	}

	event, ok := h.normalizer.Normalize(payload, "")
	if !ok {
		metrics.EventsReceived.WithLabelValues("ignored").Inc()
		return
	}
	if image != nil {
		if ref := h.saveImage(image); ref != "" {
			event.PhotoURL = &ref
		}
	}

	// the terminal hangs up right after the ack; finish the write regardless
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), storeTimeout)
	defer cancel()

	if err := h.store.Write(ctx, *event); err != nil {
		h.logger.Error("Failed to store event", zap.String("employee_id", event.EmployeeID), zap.Error(err))
	}
	if h.publisher != nil {
		h.publisher.Publish(ctx, *event)
	}

	metrics.EventsReceived.WithLabelValues("accepted").Inc()
	h.logger.Info("Access event",
		zap.String("employee_id", event.EmployeeID),
		zap.Int("door_id", event.DoorID),
		zap.Int("event_code", event.EventCode),
		zap.Bool("granted", event.AccessGranted),
	)
}

type imagePart struct {
	filename    string
	contentType string
	file        multipart.File
}

// readNotification returns the textual payload and, for multipart posts, the first file part.
func (h *WebhookHandler) readNotification(r *http.Request) ([]byte, *imagePart, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(mediaType, "multipart/") {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		return body, nil, err
	}

	if err := r.ParseMultipartForm(maxWebhookMemory); err != nil {
		return nil, nil, fmt.Errorf("failed to parse multipart notification: %w", err)
	}
	form := r.MultipartForm

	var payload []byte
	if v := form.Value[eventLogField]; len(v) > 0 {
		payload = []byte(v[0])
	} else {
		// some firmware names the part after the event type
		for _, v := range form.Value {
			if len(v) > 0 && strings.TrimSpace(v[0]) != "" {
				payload = []byte(v[0])
				break
			}
		}
	}

	// a JSON payload posted as a file part
	if payload == nil {
		if headers := form.File[eventLogField]; len(headers) > 0 {
			if f, err := headers[0].Open(); err == nil {
				payload, _ = io.ReadAll(io.LimitReader(f, maxWebhookBody))
				f.Close()
			}
		}
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		if field != eventLogField {
			fields = append(fields, field)
		}
	}
	sort.Strings(fields)

	for _, field := range fields {
		for _, header := range form.File[field] {
			contentType := header.Header.Get("Content-Type")
			if !isImage(contentType) {
				continue
			}
			f, err := header.Open()
			if err != nil {
				h.logger.Warn("Failed to open notification image", zap.String("field", field), zap.Error(err))
				continue
			}
			return payload, &imagePart{
				filename:    header.Filename,
				contentType: contentType,
				file:        f,
			}, nil
		}
	}
	return payload, nil, nil
}

func isImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "image/")
}

func (h *WebhookHandler) saveImage(img *imagePart) string {
	if h.media == nil {
		return ""
	}
	name := fmt.Sprintf("access-%d%s", h.now().UnixNano(), media.ExtFor(img.filename, img.contentType))
	if err := h.media.Save(name, img.file); err != nil {
		h.logger.Warn("Failed to store notification image", zap.Error(err))
		return ""
	}
	return h.media.Ref(name)
}
