package httpapi

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const doorPrefix = "/api/puerta/"

// DoorOpener door actuation.
type DoorOpener interface {
	OpenDoor(ctx context.Context, door int) error
}

type DoorHandler struct {
	doors  DoorOpener
	logger *zap.Logger
}

func NewDoorHandler(doors DoorOpener, logger *zap.Logger) *DoorHandler {
	return &DoorHandler{doors: doors, logger: logger.Named("door_handler")}
}

// ServeHTTP POST /api/puerta/{door}/abrir
func (h *DoorHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, doorPrefix)
	doorStr, action, ok := strings.Cut(rest, "/")
	if !ok || action != "abrir" {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	door := parseInt(doorStr, 0)
	if door <= 0 {
		writeJSON(w, http.StatusOK, Fail("invalid door number"))
		return
	}

	if err := h.doors.OpenDoor(r.Context(), door); err != nil {
		h.logger.Warn("Door open failed", zap.Int("door", door), zap.Error(err))
		writeJSON(w, http.StatusOK, Fail(failureMessage("door open failed", err)))
		return
	}
	h.logger.Info("Door opened", zap.Int("door", door))
	writeJSON(w, http.StatusOK, Ok(map[string]any{"door": door, "opened": true}))
}
