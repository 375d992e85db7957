package reconcile

import (
	"strings"
	"time"

	"hik-access-bridge/internal/models"
)

// DeviceTimeLayout validity timestamps as the terminal expects them (local time, no zone).
const DeviceTimeLayout = "2006-01-02T15:04:05"

const defaultName = "Customer"

// RecordDefaults values applied when the roster row leaves them open.
type RecordDefaults struct {
	NameMaxLength int
	ValidBegin    string
	ValidEnd      string
}

// BuildUserRecord derives the terminal user for a roster row.
func BuildUserRecord(c models.CustomerRecord, d RecordDefaults) models.DeviceUserRecord {
	name := truncateRunes(strings.TrimSpace(c.Name), d.NameMaxLength)
	if name == "" {
		name = defaultName
	}
	return models.DeviceUserRecord{
		EmployeeNo: strings.TrimSpace(c.ID),
		Name:       name,
		ValidBegin: formatOr(c.PlanStart, d.ValidBegin),
		ValidEnd:   formatOr(c.PlanEnd, d.ValidEnd),
		VerifyMode: models.VerifyModeCardOrFace,
	}
}

func formatOr(t *time.Time, fallback string) string {
	if t == nil || t.IsZero() {
		return fallback
	}
	return t.Format(DeviceTimeLayout)
}

// truncateRunes never splits a multi-byte character.
func truncateRunes(s string, max int) string {
	if max <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return strings.TrimSpace(string(r[:max]))
}
