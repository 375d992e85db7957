package device

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"hik-access-bridge/internal/models"
)

const (
	faceRecordPath = "/ISAPI/Intelligent/FDLib/FaceDataRecord?format=json"
	faceModifyPath = "/ISAPI/Intelligent/FDLib/FDSetUp?format=json"
	faceSearchPath = "/ISAPI/Intelligent/FDLib/FDSearch?format=json"
	faceDeletePath = "/ISAPI/Intelligent/FDLib/FDSearch/Delete"
)

// FPID must equal the user's employeeNo or the face is never matched to the user.
type faceRecordBody struct {
	FaceURL     string `json:"faceURL"`
	FaceLibType string `json:"faceLibType"`
	FDID        string `json:"FDID"`
	FPID        string `json:"FPID"`
}

type faceSearchBody struct {
	SearchResultPosition int    `json:"searchResultPosition"`
	MaxResults           int    `json:"maxResults"`
	FaceLibType          string `json:"faceLibType"`
	FDID                 string `json:"FDID"`
	FPID                 string `json:"FPID"`
}

type faceMatch struct {
	FPID    string `json:"FPID"`
	FaceURL string `json:"faceURL"`
}

type faceSearchResponse struct {
	ResponseStatusStrg string          `json:"responseStatusStrg"`
	NumOfMatches       int             `json:"numOfMatches"`
	TotalMatches       int             `json:"totalMatches"`
	MatchList          List[faceMatch] `json:"MatchList"`
}

type valueRef struct {
	Value string `json:"value"`
}

type faceDeleteBody struct {
	FPID []valueRef `json:"FPID"`
}

// UploadFace instructs the terminal to fetch faceURL into its face library for employeeNo.
// The image must stay reachable until the terminal has downloaded it.
func (c *Client) UploadFace(ctx context.Context, employeeNo, faceURL string) (UpsertResult, error) {
	body := faceRecordBody{
		FaceURL:     faceURL,
		FaceLibType: c.faceLibType,
		FDID:        c.fdid,
		FPID:        employeeNo,
	}
	return c.upsert(ctx,
		request{op: "face.upload", method: http.MethodPost, path: faceRecordPath, body: body},
		request{op: "face.update", method: http.MethodPut, path: faceModifyPath},
	)
}

// SearchFace reports whether employeeNo has a face in the library. No match is Present=false.
func (c *Client) SearchFace(ctx context.Context, employeeNo string) (models.FaceEnrollment, error) {
	body := faceSearchBody{
		SearchResultPosition: 0,
		MaxResults:           1,
		FaceLibType:          c.faceLibType,
		FDID:                 c.fdid,
		FPID:                 employeeNo,
	}

	var resp faceSearchResponse
	err := c.query(ctx,
		request{op: "face.search", method: http.MethodPost, path: faceSearchPath, body: body},
		func(raw []byte) error { return json.Unmarshal(raw, &resp) },
	)
	if err != nil {
		return models.FaceEnrollment{}, err
	}

	result := models.FaceEnrollment{EmployeeNo: employeeNo}
	if resp.ResponseStatusStrg == noMatch {
		return result, nil
	}
	for _, m := range resp.MatchList {
		if m.FPID == "" || m.FPID == employeeNo {
			result.Present = true
			result.FaceURL = m.FaceURL
			break
		}
	}
	return result, nil
}

// DeleteFace asks the terminal to drop the face for employeeNo. Some firmware acknowledges
// without deleting; callers that need certainty re-check with SearchFace.
func (c *Client) DeleteFace(ctx context.Context, employeeNo string) error {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("FDID", c.fdid)
	q.Set("faceLibType", c.faceLibType)

	body := faceDeleteBody{FPID: []valueRef{{Value: employeeNo}}}
	return c.command(ctx, request{
		op:     "face.delete",
		method: http.MethodPut,
		path:   faceDeletePath + "?" + q.Encode(),
		body:   body,
	})
}
