package device

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnreachable transport-level failure talking to the terminal (connect, timeout, reset).
var ErrUnreachable = errors.New("device unreachable")

// Error the terminal answered but refused the request.
type Error struct {
	Op            string
	HTTPStatus    int
	StatusCode    int
	StatusString  string
	SubStatusCode string
	ErrorMsg      string
}

func (e *Error) Error() string {
	return fmt.Sprintf("device %s rejected: %s", e.Op, e.Diagnostic())
}

// Diagnostic device-provided reason, as precise as the response allows.
func (e *Error) Diagnostic() string {
	switch {
	case e.StatusString != "" && e.SubStatusCode != "":
		return e.StatusString + " (" + e.SubStatusCode + ")"
	case e.SubStatusCode != "":
		return e.SubStatusCode
	case e.StatusString != "":
		return e.StatusString
	case e.ErrorMsg != "":
		return e.ErrorMsg
	default:
		return fmt.Sprintf("HTTP %d", e.HTTPStatus)
	}
}

// IsDuplicate reports the already-exists condition that turns a create into an update.
func (e *Error) IsDuplicate() bool {
	return strings.Contains(strings.ToLower(e.StatusString), "duplicate") ||
		strings.Contains(e.SubStatusCode, "AlreadyExist") ||
		strings.Contains(e.ErrorMsg, "AlreadyExist")
}

// AsError unwraps a device rejection.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
