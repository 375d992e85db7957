package normalizer

import "strconv"

// Event codes reported by the terminal in subEventType / minor.
const (
	CodeCardGranted    = 1
	CodeGranted        = 4
	CodeCardDenied     = 9
	CodeDoorOpened     = 21
	CodeDoorClosed     = 22
	CodeAuthFailed     = 23
	CodeFaceGranted    = 75
	CodeFaceUnknown    = 76
	CodePanelConnected = 112
	CodeFaceAuthFailed = 197
)

var descriptions = map[int]string{
	CodeCardGranted:    "ACCESS GRANTED (valid card)",
	CodeCardDenied:     "DENIED (invalid card)",
	CodeFaceGranted:    "ACCESS GRANTED (face)",
	CodeFaceUnknown:    "DENIED (unknown face / authentication failed)",
	CodeFaceAuthFailed: "FACIAL AUTHENTICATION FAILED",
	CodeAuthFailed:     "AUTHENTICATION FAILED",
	CodePanelConnected: "CONNECTED ON PANEL",
	CodeDoorOpened:     "DOOR OPENED",
	CodeDoorClosed:     "DOOR CLOSED",
}

// grantedCodes firmware revisions disagree on 197; it is a facial authentication
// failure here, consistent with its description.
var grantedCodes = map[int]struct{}{
	CodeCardGranted: {},
	CodeGranted:     {},
	CodeFaceGranted: {},
}

// Describe returns the human text for an event code.
func Describe(code int) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return "EVENT " + strconv.Itoa(code)
}

// IsGranted reports whether code means the door let the person in.
func IsGranted(code int) bool {
	_, ok := grantedCodes[code]
	return ok
}
