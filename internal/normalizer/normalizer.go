// Package normalizer turns raw terminal notifications (JSON or XML) into AccessEvents.
//
// Anything that cannot be understood is reported as "ignore" rather than as an error:
// the terminal cannot usefully be told to retry, and an error status makes it back off
// or drop the subscription.
package normalizer

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"hik-access-bridge/internal/models"

	"go.uber.org/zap"
)

const unknownEmployee = "unknown"

var (
	eventTypeKeys = []string{"subEventType", "minorEventType", "majorEventType"}
	identityKeys  = []string{"employeeNoString", "employeeNo"}
	timeKeys      = []string{"dateTime", "time", "net_time"}
	doorKeys      = []string{"doorNo", "door", "stationID"}
)

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Normalizer is stateless apart from its clock; safe for concurrent use.
type Normalizer struct {
	logger *zap.Logger
	now    func() time.Time
}

// New creates a Normalizer.
func New(logger *zap.Logger) *Normalizer {
	return &Normalizer{
		logger: logger.Named("normalizer"),
		now:    time.Now,
	}
}

// Normalize parses raw and returns the event, or false when the payload should be ignored
// (unrecognised format, parse failure or heartbeat). photoRef is attached when not empty.
func (n *Normalizer) Normalize(raw []byte, photoRef string) (*models.AccessEvent, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, false
	}

	var info map[string]any
	switch trimmed[0] {
	case '{':
		obj, err := decodeJSON(trimmed)
		if err != nil {
			n.logger.Debug("Ignoring malformed JSON notification", zap.Error(err))
			return nil, false
		}
		info = obj
	case '<':
		root, obj, err := decodeXML(trimmed)
		if err != nil {
			n.logger.Debug("Ignoring malformed XML notification", zap.Error(err))
			return nil, false
		}
		if root != "EventNotificationAlert" {
			n.logger.Debug("Ignoring XML notification with unexpected root", zap.String("root", root))
			return nil, false
		}
		info = obj
	default:
		return nil, false
	}

	event := n.fromFields(info, photoRef)
	if event == nil {
		return nil, false
	}
	return event, true
}

// fromFields returns nil for heartbeats; Normalize maps that to "ignore".
func (n *Normalizer) fromFields(info map[string]any, photoRef string) *models.AccessEvent {
	outer := info
	if nested, ok := info["AccessControllerEvent"].(map[string]any); ok {
		info = nested
	}

	code, ok := firstInt(info, eventTypeKeys...)
	if !ok {
		return nil
	}

	event := &models.AccessEvent{
		EmployeeID:    firstString(info, unknownEmployee, identityKeys...),
		Name:          firstString(info, "Unknown", "name"),
		DoorID:        1,
		EventCode:     code,
		Description:   Describe(code),
		AccessGranted: IsGranted(code),
		CapturedAt:    n.now(),
	}

	if door, ok := firstPresentInt(info, doorKeys...); ok {
		event.DoorID = door
	}
	// XML alerts carry dateTime on the envelope rather than the nested event
	if ts, ok := firstTime(info, timeKeys...); ok {
		event.CapturedAt = ts
	} else if ts, ok := firstTime(outer, timeKeys...); ok {
		event.CapturedAt = ts
	}
	if card := firstString(info, "", "cardNo"); card != "" {
		event.CardNumber = &card
	}
	if photoRef != "" {
		event.PhotoURL = &photoRef
	}

	return event
}

func decodeJSON(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// firstInt returns the first key holding a non-zero integer (numbers or numeric strings).
func firstInt(info map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		if v, ok := toInt(info[k]); ok && v != 0 {
			return v, true
		}
	}
	return 0, false
}

// firstPresentInt returns the first key holding an integer, zero included.
func firstPresentInt(info map[string]any, keys ...string) (int, bool) {
	for _, k := range keys {
		if v, ok := toInt(info[k]); ok {
			return v, true
		}
	}
	return 0, false
}

func firstString(info map[string]any, def string, keys ...string) string {
	for _, k := range keys {
		if s := toString(info[k]); s != "" {
			return s
		}
	}
	return def
}

func firstTime(info map[string]any, keys ...string) (time.Time, bool) {
	for _, k := range keys {
		s := toString(info[k])
		if s == "" {
			continue
		}
		if ts, ok := ParseDeviceTime(s); ok {
			return ts, true
		}
	}
	return time.Time{}, false
}

// ParseDeviceTime accepts the timestamp shapes seen across firmware revisions.
// Values without a zone are device local time.
func ParseDeviceTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

func toInt(v any) (int, bool) {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return int(i), true
		}
		if f, err := val.Float64(); err == nil {
			return int(f), true
		}
	case float64:
		return int(val), true
	case int:
		return val, true
	case string:
		if i, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func toString(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return ""
	}
}
