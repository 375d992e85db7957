// Package devicetest provides an in-process fake of the terminal's ISAPI surface.
package devicetest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"
)

// Event one entry in the fake event log.
type Event struct {
	Major      int    `json:"major"`
	Minor      int    `json:"minor"`
	Time       string `json:"time"`
	EmployeeNo string `json:"employeeNoString,omitempty"`
	Name       string `json:"name,omitempty"`
	PictureURL string `json:"pictureURL,omitempty"`
	SerialNo   int64  `json:"serialNo,omitempty"`
}

// User as the fake terminal stores it.
type User struct {
	EmployeeNo string
	Name       string
	BeginTime  string
	EndTime    string
	VerifyMode string
}

// Server fake terminal. Exported fields tune its behaviour and must be set before use or
// under Lock.
type Server struct {
	*httptest.Server

	mu sync.Mutex

	// DuplicateAsStatusString answers duplicates with statusString "duplicate" instead of
	// subStatusCode employeeNoAlreadyExist.
	DuplicateAsStatusString bool
	// OKByStringOnly omits statusCode from success responses.
	OKByStringOnly bool
	// StickyFaceDelete acknowledges face deletes without removing the face.
	StickyFaceDelete bool
	// FaceUploadFailures number of upcoming face uploads to reject.
	FaceUploadFailures int
	// DropUsers employee numbers whose requests are answered by closing the connection.
	DropUsers map[string]bool
	// DropEventSearches number of upcoming event searches answered by closing the connection.
	DropEventSearches int

	users   map[string]User
	cards   map[string]string // cardNo -> employeeNo
	faces   map[string]string // employeeNo -> faceURL
	events  []Event
	doors   []int
	hosts   []string
	authCfg string

	userCreates   int
	userUpdates   int
	eventSearches int
	faceUploads   int
	userCallTimes []time.Time
	inFlight      int
	maxInFlight   int
}

// NewServer starts a fake terminal; it is closed with t's cleanup by the caller.
func NewServer() *Server {
	s := &Server{
		DropUsers: make(map[string]bool),
		users:     make(map[string]User),
		cards:     make(map[string]string),
		faces:     make(map[string]string),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.maxInFlight {
		s.maxInFlight = s.inFlight
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inFlight--
		s.mu.Unlock()
	}()

	body, _ := io.ReadAll(r.Body)
	key := r.Method + " " + r.URL.Path

	switch {
	case key == "POST /ISAPI/AccessControl/UserInfo/Record" || key == "PUT /ISAPI/AccessControl/UserInfo/Record":
		s.handleUser(w, r, body)
	case key == "POST /ISAPI/AccessControl/CardInfo/Record" || key == "PUT /ISAPI/AccessControl/CardInfo/Modify":
		s.handleCard(w, r, body)
	case key == "POST /ISAPI/AccessControl/CardInfo/Search":
		s.handleCardSearch(w, body)
	case key == "PUT /ISAPI/AccessControl/CardInfo/Delete":
		s.handleCardDelete(w, body)
	case key == "POST /ISAPI/Intelligent/FDLib/FaceDataRecord" || key == "PUT /ISAPI/Intelligent/FDLib/FDSetUp":
		s.handleFaceUpload(w, r, body)
	case key == "POST /ISAPI/Intelligent/FDLib/FDSearch":
		s.handleFaceSearch(w, body)
	case key == "PUT /ISAPI/Intelligent/FDLib/FDSearch/Delete":
		s.handleFaceDelete(w, body)
	case key == "POST /ISAPI/AccessControl/AcsEvent/Search":
		s.handleEventSearch(w)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/ISAPI/AccessControl/RemoteControl/door/"):
		s.handleDoor(w, r, body)
	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/ISAPI/Event/notification/httpHosts/"):
		s.mu.Lock()
		s.hosts = append(s.hosts, string(body))
		s.mu.Unlock()
		writeXMLStatus(w)
	case key == "PUT /ISAPI/AccessControl/AcsCfg":
		s.handleAcsCfg(w, body)
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{
			"statusCode": 4, "statusString": "Invalid Operation", "subStatusCode": "notSupport",
		})
	}
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request, body []byte) {
	var req struct {
		UserInfo struct {
			EmployeeNo string `json:"employeeNo"`
			Name       string `json:"name"`
			Valid      struct {
				BeginTime string `json:"beginTime"`
				EndTime   string `json:"endTime"`
			} `json:"Valid"`
			UserVerifyMode string `json:"userVerifyMode"`
		} `json:"UserInfo"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.UserInfo.EmployeeNo == "" {
		s.badContent(w, "badJsonContent")
		return
	}
	u := req.UserInfo

	s.mu.Lock()
	s.userCallTimes = append(s.userCallTimes, time.Now())
	drop := s.DropUsers[u.EmployeeNo]
	s.mu.Unlock()
	if drop {
		dropConnection(w)
		return
	}

	s.mu.Lock()
	_, exists := s.users[u.EmployeeNo]
	if r.Method == http.MethodPost && exists {
		s.mu.Unlock()
		s.duplicate(w, "employeeNoAlreadyExist")
		return
	}
	if r.Method == http.MethodPut && !exists {
		s.mu.Unlock()
		s.badContent(w, "employeeNoNotExist")
		return
	}
	if r.Method == http.MethodPost {
		s.userCreates++
	} else {
		s.userUpdates++
	}
	s.users[u.EmployeeNo] = User{
		EmployeeNo: u.EmployeeNo,
		Name:       u.Name,
		BeginTime:  u.Valid.BeginTime,
		EndTime:    u.Valid.EndTime,
		VerifyMode: u.UserVerifyMode,
	}
	s.mu.Unlock()
	s.ok(w)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request, body []byte) {
	var req struct {
		CardInfo struct {
			EmployeeNo string `json:"employeeNo"`
			CardNo     string `json:"cardNo"`
		} `json:"CardInfo"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.CardInfo.CardNo == "" {
		s.badContent(w, "badJsonContent")
		return
	}

	s.mu.Lock()
	_, exists := s.cards[req.CardInfo.CardNo]
	if r.Method == http.MethodPost && exists {
		s.mu.Unlock()
		s.duplicate(w, "cardNoAlreadyExist")
		return
	}
	s.cards[req.CardInfo.CardNo] = req.CardInfo.EmployeeNo
	s.mu.Unlock()
	s.ok(w)
}

func (s *Server) handleCardSearch(w http.ResponseWriter, body []byte) {
	var req struct {
		CardInfoSearchCond struct {
			SearchID       string `json:"searchID"`
			EmployeeNoList []struct {
				EmployeeNo string `json:"employeeNo"`
			} `json:"EmployeeNoList"`
		} `json:"CardInfoSearchCond"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.CardInfoSearchCond.SearchID == "" {
		s.badContent(w, "badJsonContent")
		return
	}
	want := map[string]bool{}
	for _, e := range req.CardInfoSearchCond.EmployeeNoList {
		want[e.EmployeeNo] = true
	}

	s.mu.Lock()
	var found []map[string]any
	for cardNo, emp := range s.cards {
		if len(want) == 0 || want[emp] {
			found = append(found, map[string]any{"employeeNo": emp, "cardNo": cardNo, "cardType": "normalCard"})
		}
	}
	s.mu.Unlock()
	sort.Slice(found, func(i, j int) bool { return found[i]["cardNo"].(string) < found[j]["cardNo"].(string) })

	result := map[string]any{
		"searchID":     req.CardInfoSearchCond.SearchID,
		"numOfMatches": len(found),
		"totalMatches": len(found),
	}
	switch len(found) {
	case 0:
		result["responseStatusStrg"] = "NO MATCH"
	case 1:
		// single results come back as a bare object
		result["responseStatusStrg"] = "OK"
		result["CardInfo"] = found[0]
	default:
		result["responseStatusStrg"] = "OK"
		result["CardInfo"] = found
	}
	writeJSON(w, http.StatusOK, map[string]any{"CardInfoSearch": result})
}

func (s *Server) handleCardDelete(w http.ResponseWriter, body []byte) {
	var req struct {
		CardInfoDelCond struct {
			CardNoList []struct {
				CardNo string `json:"cardNo"`
			} `json:"CardNoList"`
		} `json:"CardInfoDelCond"`
	}
	if err := json.Unmarshal(body, &req); err != nil || len(req.CardInfoDelCond.CardNoList) == 0 {
		s.badContent(w, "badJsonContent")
		return
	}
	s.mu.Lock()
	for _, c := range req.CardInfoDelCond.CardNoList {
		delete(s.cards, c.CardNo)
	}
	s.mu.Unlock()
	s.ok(w)
}

func (s *Server) handleFaceUpload(w http.ResponseWriter, r *http.Request, body []byte) {
	var req struct {
		FaceURL string `json:"faceURL"`
		FDID    string `json:"FDID"`
		FPID    string `json:"FPID"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.FPID == "" || req.FaceURL == "" {
		s.badContent(w, "badJsonContent")
		return
	}

	s.mu.Lock()
	s.faceUploads++
	if s.FaceUploadFailures > 0 {
		s.FaceUploadFailures--
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"statusCode": 6, "statusString": "Invalid Content", "subStatusCode": "downloadPictureFailed",
		})
		return
	}
	_, exists := s.faces[req.FPID]
	if r.Method == http.MethodPost && exists {
		s.mu.Unlock()
		s.duplicate(w, "FPIDAlreadyExist")
		return
	}
	s.faces[req.FPID] = req.FaceURL
	s.mu.Unlock()
	s.ok(w)
}

func (s *Server) handleFaceSearch(w http.ResponseWriter, body []byte) {
	var req struct {
		FPID string `json:"FPID"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.badContent(w, "badJsonContent")
		return
	}
	s.mu.Lock()
	faceURL, ok := s.faces[req.FPID]
	s.mu.Unlock()

	resp := map[string]any{"statusCode": 1, "statusString": "OK", "subStatusCode": "ok"}
	if !ok {
		resp["responseStatusStrg"] = "NO MATCH"
		resp["numOfMatches"] = 0
	} else {
		resp["responseStatusStrg"] = "OK"
		resp["numOfMatches"] = 1
		resp["MatchList"] = []map[string]any{{"FPID": req.FPID, "faceURL": faceURL}}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFaceDelete(w http.ResponseWriter, body []byte) {
	var req struct {
		FPID []struct {
			Value string `json:"value"`
		} `json:"FPID"`
	}
	if err := json.Unmarshal(body, &req); err != nil || len(req.FPID) == 0 {
		s.badContent(w, "badJsonContent")
		return
	}
	s.mu.Lock()
	if !s.StickyFaceDelete {
		for _, f := range req.FPID {
			delete(s.faces, f.Value)
		}
	}
	s.mu.Unlock()
	s.ok(w)
}

func (s *Server) handleEventSearch(w http.ResponseWriter) {
	s.mu.Lock()
	s.eventSearches++
	if s.DropEventSearches > 0 {
		s.DropEventSearches--
		s.mu.Unlock()
		dropConnection(w)
		return
	}
	events := append([]Event(nil), s.events...)
	s.mu.Unlock()

	result := map[string]any{
		"searchID":     "fake",
		"numOfMatches": len(events),
		"totalMatches": len(events),
	}
	switch len(events) {
	case 0:
		result["responseStatusStrg"] = "NO MATCH"
	case 1:
		result["responseStatusStrg"] = "OK"
		result["AcsEvent"] = events[0]
	default:
		result["responseStatusStrg"] = "OK"
		result["AcsEvent"] = events
	}
	writeJSON(w, http.StatusOK, map[string]any{"AcsEventSearch": result})
}

func (s *Server) handleDoor(w http.ResponseWriter, r *http.Request, body []byte) {
	if !strings.Contains(string(body), "<cmd>open</cmd>") {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `<ResponseStatus><statusCode>6</statusCode><statusString>Invalid Content</statusString><subStatusCode>badXmlContent</subStatusCode></ResponseStatus>`)
		return
	}
	var door int
	fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/ISAPI/AccessControl/RemoteControl/door/"), "%d", &door)
	s.mu.Lock()
	s.doors = append(s.doors, door)
	s.mu.Unlock()
	writeXMLStatus(w)
}

func (s *Server) handleAcsCfg(w http.ResponseWriter, body []byte) {
	var req struct {
		AcsCfg struct {
			AuthMode string `json:"authMode"`
		} `json:"AcsCfg"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		s.badContent(w, "badJsonContent")
		return
	}
	s.mu.Lock()
	s.authCfg = req.AcsCfg.AuthMode
	s.mu.Unlock()
	s.ok(w)
}

func (s *Server) ok(w http.ResponseWriter) {
	s.mu.Lock()
	byString := s.OKByStringOnly
	s.mu.Unlock()
	if byString {
		writeJSON(w, http.StatusOK, map[string]any{"statusString": "OK"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"statusCode": 1, "statusString": "OK", "subStatusCode": "ok"})
}

func (s *Server) duplicate(w http.ResponseWriter, sub string) {
	s.mu.Lock()
	asString := s.DuplicateAsStatusString
	s.mu.Unlock()
	if asString {
		writeJSON(w, http.StatusOK, map[string]any{"statusCode": 6, "statusString": "duplicate"})
		return
	}
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"statusCode": 6, "statusString": "Invalid Content", "subStatusCode": sub,
	})
}

func (s *Server) badContent(w http.ResponseWriter, sub string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"statusCode": 6, "statusString": "Invalid Content", "subStatusCode": sub,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeXMLStatus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/xml")
	fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?><ResponseStatus version="2.0"><requestURL>/</requestURL><statusCode>1</statusCode><statusString>OK</statusString><subStatusCode>ok</subStatusCode></ResponseStatus>`)
}

// dropConnection closes the TCP connection without a response, which the client sees as
// a transport failure.
func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}
