package device

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"hik-access-bridge/internal/models"
)

const eventSearchPath = "/ISAPI/AccessControl/AcsEvent/Search?format=json"

// EventQuery bounds one event-log search. Start and End are passed through verbatim.
type EventQuery struct {
	MaxResults int
	Start      string
	End        string
}

type eventSearchBody struct {
	AcsEventSearchDescription struct {
		SearchID             string `json:"searchID"`
		SearchResultPosition int    `json:"searchResultPosition"`
		MaxResults           int    `json:"maxResults"`
		Major                int    `json:"major"`
		Minor                int    `json:"minor"`
		StartTime            string `json:"startTime"`
		EndTime              string `json:"endTime"`
	} `json:"AcsEventSearchDescription"`
}

type acsEvent struct {
	Major            flexInt `json:"major"`
	Minor            flexInt `json:"minor"`
	Time             string  `json:"time"`
	EmployeeNoString string  `json:"employeeNoString"`
	Name             string  `json:"name"`
	CardNo           string  `json:"cardNo"`
	DoorNo           flexInt `json:"doorNo"`
	PictureURL       string  `json:"pictureURL"`
	SerialNo         int64   `json:"serialNo"`
}

type eventSearchResponse struct {
	AcsEventSearch struct {
		SearchID           string         `json:"searchID"`
		ResponseStatusStrg string         `json:"responseStatusStrg"`
		NumOfMatches       int            `json:"numOfMatches"`
		TotalMatches       int            `json:"totalMatches"`
		AcsEvent           List[acsEvent] `json:"AcsEvent"`
	} `json:"AcsEventSearch"`
}

var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
}

// SearchEvents returns the terminal's most recent log entries, newest first.
func (c *Client) SearchEvents(ctx context.Context, q EventQuery) ([]models.DeviceEvent, error) {
	var body eventSearchBody
	d := &body.AcsEventSearchDescription
	d.SearchID = c.newSearchID()
	d.SearchResultPosition = 0
	d.MaxResults = q.MaxResults
	d.StartTime = q.Start
	d.EndTime = q.End

	var resp eventSearchResponse
	err := c.query(ctx,
		request{op: "event.search", method: http.MethodPost, path: eventSearchPath, body: body},
		func(raw []byte) error { return json.Unmarshal(raw, &resp) },
	)
	if err != nil {
		return nil, err
	}

	events := make([]models.DeviceEvent, 0, len(resp.AcsEventSearch.AcsEvent))
	for _, e := range resp.AcsEventSearch.AcsEvent {
		events = append(events, models.DeviceEvent{
			Major:      int(e.Major),
			Minor:      int(e.Minor),
			Time:       parseEventTime(e.Time),
			RawTime:    e.Time,
			EmployeeNo: e.EmployeeNoString,
			Name:       e.Name,
			CardNo:     e.CardNo,
			DoorNo:     int(e.DoorNo),
			PictureURL: e.PictureURL,
			SerialNo:   e.SerialNo,
		})
	}
	// zero times (unparseable) sink to the end; times only carry seconds, so the
	// log serial orders entries within the same second
	sort.SliceStable(events, func(i, j int) bool {
		if !events[i].Time.Equal(events[j].Time) {
			return events[i].Time.After(events[j].Time)
		}
		return events[i].SerialNo > events[j].SerialNo
	})
	return events, nil
}

func parseEventTime(s string) time.Time {
	s = strings.TrimSpace(s)
	for _, layout := range eventTimeLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return ts
		}
	}
	return time.Time{}
}
