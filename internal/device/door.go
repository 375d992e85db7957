package device

import (
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
)

type remoteControlDoor struct {
	XMLName xml.Name `xml:"RemoteControlDoor"`
	Cmd     string   `xml:"cmd"`
}

// OpenDoor remote-opens door n. This endpoint only speaks XML.
func (c *Client) OpenDoor(ctx context.Context, door int) error {
	payload, err := xml.Marshal(remoteControlDoor{Cmd: "open"})
	if err != nil {
		return fmt.Errorf("failed to encode door command: %w", err)
	}
	return c.command(ctx, request{
		op:     "door.open",
		method: http.MethodPut,
		path:   fmt.Sprintf("/ISAPI/AccessControl/RemoteControl/door/%d", door),
		body:   string(payload),
		xml:    true,
	})
}
