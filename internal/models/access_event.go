package models

import "time"

// AccessEvent canonical form of a device notification.
type AccessEvent struct {
	EmployeeID    string    `json:"employeeId"`
	Name          string    `json:"name"`
	DoorID        int       `json:"doorId"`
	EventCode     int       `json:"eventCode"`
	Description   string    `json:"description"`
	AccessGranted bool      `json:"accessGranted"`
	CardNumber    *string   `json:"cardNumber,omitempty"`
	PhotoURL      *string   `json:"photoUrl,omitempty"`
	CapturedAt    time.Time `json:"capturedAt"`
}

// EventRecord is what the event state store holds: the event plus when the bridge received it.
type EventRecord struct {
	Event      AccessEvent `json:"event"`
	ReceivedAt time.Time   `json:"receivedAt"`
}

// DeviceEvent one row of the device's own event log (AcsEvent search).
type DeviceEvent struct {
	Major      int       `json:"major"`
	Minor      int       `json:"minor"`
	Time       time.Time `json:"time"`
	RawTime    string    `json:"rawTime"`
	EmployeeNo string    `json:"employeeNo,omitempty"`
	Name       string    `json:"name,omitempty"`
	CardNo     string    `json:"cardNo,omitempty"`
	DoorNo     int       `json:"doorNo,omitempty"`
	PictureURL string    `json:"pictureUrl,omitempty"`
	SerialNo   int64     `json:"serialNo,omitempty"`
}
