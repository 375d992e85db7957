package models

import "time"

// CustomerRecord one row of the external roster. Plan dates may be absent.
type CustomerRecord struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	PlanStart *time.Time `json:"planStart,omitempty"`
	PlanEnd   *time.Time `json:"planEnd,omitempty"`
}
