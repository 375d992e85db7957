package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hik-access-bridge/internal/metrics"
	"hik-access-bridge/internal/models"
	"hik-access-bridge/internal/radar"
	"hik-access-bridge/internal/store"

	"go.uber.org/zap"
)

// EventWaiter poll-until-new-event.
type EventWaiter interface {
	Wait(ctx context.Context) (models.DeviceEvent, error)
}

// EventHandler last-event and radar queries.
type EventHandler struct {
	store  store.EventStore
	radar  EventWaiter
	logger *zap.Logger
}

func NewEventHandler(s store.EventStore, r EventWaiter, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		store:  s,
		radar:  r,
		logger: logger.Named("event_handler"),
	}
}

// LastLocal GET /api/eventos/ultimo-local; an empty object when nothing was received yet.
func (h *EventHandler) LastLocal(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.Read(r.Context())
	if err != nil {
		h.logger.Warn("Failed to read last event", zap.Error(err))
		writeJSON(w, http.StatusOK, Fail("failed to read last event: "+err.Error()))
		return
	}
	if rec == nil {
		writeJSON(w, http.StatusOK, Ok(map[string]any{}))
		return
	}
	writeJSON(w, http.StatusOK, Ok(rec))
}

// Radar GET /api/eventos/radar; a client disconnect cancels the polling.
func (h *EventHandler) Radar(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	event, err := h.radar.Wait(r.Context())
	switch {
	case err == nil:
		metrics.RadarWaits.WithLabelValues("event").Inc()
		writeJSON(w, http.StatusOK, Ok(event))
	case errors.Is(err, radar.ErrTimeout):
		metrics.RadarWaits.WithLabelValues("timeout").Inc()
		writeJSON(w, http.StatusOK, Fail("no new event at the device before the radar timed out"))
	case r.Context().Err() != nil:
		metrics.RadarWaits.WithLabelValues("cancelled").Inc()
		h.logger.Debug("Radar cancelled by client", zap.Duration("after", time.Since(start)))
	default:
		metrics.RadarWaits.WithLabelValues("error").Inc()
		writeJSON(w, http.StatusOK, Fail(failureMessage("radar failed", err)))
	}
}
