package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestNormalizer() *Normalizer {
	n := New(zap.NewNop())
	n.now = func() time.Time { return fixedNow }
	return n
}

func TestNormalize_JSONFaceGranted(t *testing.T) {
	n := newTestNormalizer()
	raw := `{"AccessControllerEvent":{"subEventType":75,"employeeNoString":"42","name":"Jane","doorNo":1,"dateTime":"2024-01-01T08:00:00"}}`

	event, ok := n.Normalize([]byte(raw), "")
	require.True(t, ok)

	assert.Equal(t, "42", event.EmployeeID)
	assert.Equal(t, "Jane", event.Name)
	assert.Equal(t, 1, event.DoorID)
	assert.Equal(t, 75, event.EventCode)
	assert.Contains(t, event.Description, "ACCESS GRANTED (face)")
	assert.True(t, event.AccessGranted)
	assert.Nil(t, event.CardNumber)
	assert.Nil(t, event.PhotoURL)
	assert.Equal(t, time.Date(2024, 1, 1, 8, 0, 0, 0, time.Local), event.CapturedAt)
}

func TestNormalize_Heartbeats(t *testing.T) {
	n := newTestNormalizer()

	inputs := map[string]string{
		"no event fields":  `{"AccessControllerEvent":{"employeeNoString":"42"}}`,
		"zero event type":  `{"majorEventType":0,"subEventType":0}`,
		"empty object":     `{}`,
		"malformed json":   `{"subEventType":`,
		"plain text":       `hello device`,
		"empty":            ``,
		"whitespace":       "   \n",
		"xml wrong root":   `<ResponseStatus><statusCode>1</statusCode></ResponseStatus>`,
		"xml heartbeat":    `<EventNotificationAlert><eventType>heartBeat</eventType></EventNotificationAlert>`,
		"xml broken":       `<EventNotificationAlert><AccessControllerEvent>`,
		"non numeric type": `{"subEventType":"abc"}`,
		"json array":       `[{"subEventType":1}]`,
	}

	for name, raw := range inputs {
		t.Run(name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				event, ok := n.Normalize([]byte(raw), "/uploads/x.jpg")
				assert.False(t, ok)
				assert.Nil(t, event)
			})
		})
	}
}

func TestNormalize_FieldFallbacks(t *testing.T) {
	n := newTestNormalizer()
	raw := `{"minorEventType":"9","employeeNo":77,"door":"2","time":"2024-02-02T10:00:00+08:00","cardNo":"123456"}`

	event, ok := n.Normalize([]byte(raw), "/uploads/access-1.jpg")
	require.True(t, ok)

	assert.Equal(t, 9, event.EventCode)
	assert.Equal(t, "77", event.EmployeeID)
	assert.Equal(t, "Unknown", event.Name)
	assert.Equal(t, 2, event.DoorID)
	assert.False(t, event.AccessGranted)
	assert.Equal(t, "DENIED (invalid card)", event.Description)
	require.NotNil(t, event.CardNumber)
	assert.Equal(t, "123456", *event.CardNumber)
	require.NotNil(t, event.PhotoURL)
	assert.Equal(t, "/uploads/access-1.jpg", *event.PhotoURL)
	assert.True(t, event.CapturedAt.Equal(time.Date(2024, 2, 2, 2, 0, 0, 0, time.UTC)))
}

func TestNormalize_Defaults(t *testing.T) {
	n := newTestNormalizer()

	event, ok := n.Normalize([]byte(`{"majorEventType":5,"stationID":"abc","dateTime":"not a date"}`), "")
	require.True(t, ok)

	assert.Equal(t, "unknown", event.EmployeeID)
	assert.Equal(t, 1, event.DoorID)
	assert.Equal(t, fixedNow, event.CapturedAt)
	assert.Equal(t, "EVENT 5", event.Description)
}

func TestNormalize_DoorZeroIsPresent(t *testing.T) {
	n := newTestNormalizer()

	event, ok := n.Normalize([]byte(`{"subEventType":75,"doorNo":0,"door":2}`), "")
	require.True(t, ok)
	assert.Equal(t, 0, event.DoorID)

	event, ok = n.Normalize([]byte(`{"subEventType":75,"doorNo":0}`), "")
	require.True(t, ok)
	assert.Equal(t, 0, event.DoorID)

	event, ok = n.Normalize([]byte(`{"subEventType":75,"doorNo":"x","door":2}`), "")
	require.True(t, ok)
	assert.Equal(t, 2, event.DoorID)
}

func TestNormalize_XMLAlert(t *testing.T) {
	n := newTestNormalizer()
	raw := `<?xml version="1.0" encoding="UTF-8"?>
<EventNotificationAlert version="2.0" xmlns="http://www.hikvision.com/ver20/XMLSchema">
	<ipAddress>10.10.10.185</ipAddress>
	<dateTime>2024-05-05T09:30:00</dateTime>
	<eventType>AccessControllerEvent</eventType>
	<AccessControllerEvent>
		<majorEventType>5</majorEventType>
		<subEventType>76</subEventType>
		<doorNo>3</doorNo>
		<name></name>
	</AccessControllerEvent>
</EventNotificationAlert>`

	event, ok := n.Normalize([]byte(raw), "")
	require.True(t, ok)

	assert.Equal(t, 76, event.EventCode)
	assert.Equal(t, 3, event.DoorID)
	assert.Equal(t, "unknown", event.EmployeeID)
	assert.False(t, event.AccessGranted)
	assert.Contains(t, event.Description, "unknown face")
	// dateTime lives on the alert, not the nested event
	assert.Equal(t, time.Date(2024, 5, 5, 9, 30, 0, 0, time.Local), event.CapturedAt)
}

func TestGrantedCodes(t *testing.T) {
	for _, code := range []int{1, 4, 75} {
		assert.True(t, IsGranted(code), "code %d", code)
	}
	for _, code := range []int{9, 23, 76, 197, 21, 112} {
		assert.False(t, IsGranted(code), "code %d", code)
	}
	assert.Equal(t, "FACIAL AUTHENTICATION FAILED", Describe(197))
	assert.Equal(t, "EVENT 4", Describe(4))
}

func TestDecodeXML_RepeatedElements(t *testing.T) {
	root, obj, err := decodeXML([]byte(`<List><item>a</item><item>b</item><item><x>1</x></item></List>`))
	require.NoError(t, err)
	assert.Equal(t, "List", root)

	items, ok := obj["item"].([]any)
	require.True(t, ok)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0])
	assert.Equal(t, map[string]any{"x": "1"}, items[2])
}
