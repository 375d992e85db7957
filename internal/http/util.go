package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"hik-access-bridge/internal/device"
	"hik-access-bridge/internal/face"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func readBodyJSON(r *http.Request, maxBytes int64, out any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

// failureMessage keeps the terminal's own diagnostic text in what the operator sees.
func failureMessage(action string, err error) string {
	if de, ok := device.AsError(err); ok {
		return fmt.Sprintf("%s: device rejected the request: %s", action, de.Diagnostic())
	}
	switch {
	case errors.Is(err, device.ErrUnreachable):
		return fmt.Sprintf("%s: device unreachable", action)
	case errors.Is(err, face.ErrDeleteUnconfirmed):
		return fmt.Sprintf("%s: the device acknowledged the delete but the face is still enrolled", action)
	}
	return fmt.Sprintf("%s: %v", action, err)
}
