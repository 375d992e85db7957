package models

// VerifyModeCardOrFace is the only verify mode the bridge writes. Users created without it
// fall back to the terminal's stricter default and are rejected at the door.
const VerifyModeCardOrFace = "cardOrFace"

// CardTypeNormal default card type.
const CardTypeNormal = "normalCard"

// DeviceUserRecord user entry written into the terminal.
type DeviceUserRecord struct {
	EmployeeNo string `json:"employeeNo"`
	Name       string `json:"name"`
	ValidBegin string `json:"validBegin"` // device local time, 2006-01-02T15:04:05
	ValidEnd   string `json:"validEnd"`
	VerifyMode string `json:"verifyMode"`
}

// CardBinding card assigned to a user.
type CardBinding struct {
	EmployeeNo string `json:"employeeNo"`
	CardNo     string `json:"cardNo"`
	CardType   string `json:"cardType"`
}

// FaceEnrollment presence of a face reference for an identity in the face library.
type FaceEnrollment struct {
	EmployeeNo string `json:"employeeNo"`
	FaceURL    string `json:"faceUrl,omitempty"`
	Present    bool   `json:"present"`
}
