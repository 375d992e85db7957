package device

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strconv"
	"strings"
)

// ResponseStatus common status block. JSON endpoints put it at the top level, XML
// endpoints answer with a ResponseStatus document.
type ResponseStatus struct {
	StatusCode    int    `json:"statusCode" xml:"statusCode"`
	StatusString  string `json:"statusString" xml:"statusString"`
	SubStatusCode string `json:"subStatusCode" xml:"subStatusCode"`
	ErrorCode     int    `json:"errorCode" xml:"errorCode"`
	ErrorMsg      string `json:"errorMsg" xml:"errorMsg"`
}

// OK firmware revisions signal success through either field.
func (s ResponseStatus) OK() bool {
	return s.StatusCode == 1 || s.StatusString == "OK"
}

// present reports whether the body carried a status block at all.
func (s ResponseStatus) present() bool {
	return s.StatusCode != 0 || s.StatusString != "" || s.SubStatusCode != ""
}

func parseStatus(body []byte) (ResponseStatus, error) {
	var st ResponseStatus
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return st, errors.New("empty response body")
	}
	if trimmed[0] == '<' {
		err := xml.Unmarshal(trimmed, &st)
		return st, err
	}
	err := json.Unmarshal(trimmed, &st)
	return st, err
}

// List decodes either a JSON array or a single object into a slice; the terminal returns
// a bare object when a search has exactly one result.
type List[T any] []T

func (l *List[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var item T
	if err := json.Unmarshal(data, &item); err != nil {
		return err
	}
	*l = List[T]{item}
	return nil
}

// flexInt accepts 5 and "5".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*f = flexInt(n)
	return nil
}
