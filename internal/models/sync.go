package models

import "time"

// SyncItemStatus outcome of one roster item.
type SyncItemStatus string

const (
	SyncItemCreated SyncItemStatus = "created"
	SyncItemUpdated SyncItemStatus = "updated"
	SyncItemFailed  SyncItemStatus = "failed"
)

// SyncItemResult per-item entry of a reconciliation run.
type SyncItemResult struct {
	EmployeeNo string         `json:"employeeNo"`
	Name       string         `json:"name"`
	Status     SyncItemStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
}

// SyncOutcome tally of a reconciliation run.
type SyncOutcome struct {
	Total      int              `json:"total"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Items      []SyncItemResult `json:"items"`
	StartedAt  time.Time        `json:"startedAt"`
	FinishedAt time.Time        `json:"finishedAt"`
	Cancelled  bool             `json:"cancelled,omitempty"`
}

// Created counts items that resolved through the create path.
func (o SyncOutcome) Created() int { return o.count(SyncItemCreated) }

// Updated counts items that resolved through the update path.
func (o SyncOutcome) Updated() int { return o.count(SyncItemUpdated) }

func (o SyncOutcome) count(status SyncItemStatus) int {
	n := 0
	for _, it := range o.Items {
		if it.Status == status {
			n++
		}
	}
	return n
}

// SyncProgress emitted after each item.
type SyncProgress struct {
	Current     int    `json:"current"`
	Total       int    `json:"total"`
	CurrentName string `json:"currentName"`
}
