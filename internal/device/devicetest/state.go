package devicetest

import "time"

// Lock and Unlock guard the exported behaviour fields once the server is in use.
func (s *Server) Lock() { s.mu.Lock() }
func (s *Server) Unlock() { s.mu.Unlock() }

// User returns the stored user.
func (s *Server) User(employeeNo string) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[employeeNo]
	return u, ok
}

// UserCount number of distinct users on the terminal.
func (s *Server) UserCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// UserWrites accepted creates and updates so far.
func (s *Server) UserWrites() (creates, updates int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userCreates, s.userUpdates
}

// UserCallTimes arrival time of every user request, dropped ones included.
func (s *Server) UserCallTimes() []time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Time(nil), s.userCallTimes...)
}

// MaxInFlight highest number of requests served concurrently.
func (s *Server) MaxInFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.maxInFlight
}

// PutCard binds a card directly.
func (s *Server) PutCard(employeeNo, cardNo string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[cardNo] = employeeNo
}

// CardOwner employee bound to cardNo.
func (s *Server) CardOwner(cardNo string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	emp, ok := s.cards[cardNo]
	return emp, ok
}

// PutFace enrolls a face directly.
func (s *Server) PutFace(employeeNo, faceURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faces[employeeNo] = faceURL
}

// Face enrolled face URL for employeeNo.
func (s *Server) Face(employeeNo string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.faces[employeeNo]
	return u, ok
}

// FaceUploads face upload requests received, rejected ones included.
func (s *Server) FaceUploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.faceUploads
}

// AddEvent appends to the event log.
func (s *Server) AddEvent(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
}

// EventSearches event-log searches received.
func (s *Server) EventSearches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.eventSearches
}

// OpenedDoors door numbers opened, in order.
func (s *Server) OpenedDoors() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.doors...)
}

// NotificationHosts raw XML bodies of notification host updates.
func (s *Server) NotificationHosts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.hosts...)
}

// AuthMode last authentication mode set.
func (s *Server) AuthMode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authCfg
}
