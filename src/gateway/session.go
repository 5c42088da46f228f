package gateway

import (
	"sync"
	"time"
)

type ConnectionState int

const (
	StateDisconnected ConnectionState = iota
	StateIdentifying
	StateConnected
	StateResuming
)

func (s ConnectionState) String() string {
	switch s {
	case StateIdentifying:
		return "IDENTIFYING"
	case StateConnected:
		return "CONNECTED"
	case StateResuming:
		return "RESUMING"
	default:
		return "DISCONNECTED"
	}
}

// Session is the resumable part of a gateway connection. It outlives a
// single websocket and is only cleared by a fresh identify.
type Session struct {
	mu sync.RWMutex

	sequence          int64
	hasSequence       bool
	sessionID         string
	resumeGatewayURL  string
	heartbeatInterval time.Duration
	state             ConnectionState
}

func NewSession() *Session {
	return &Session{state: StateDisconnected}
}

// Sequence returns the last dispatch sequence, ok is false before the first
// dispatch.
func (s *Session) Sequence() (seq int64, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sequence, s.hasSequence
}

// UpdateSequence records seq unless it is lower than the current value.
// It returns false for such out of order values.
func (s *Session) UpdateSequence(seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasSequence && seq < s.sequence {
		return false
	}
	s.sequence = seq
	s.hasSequence = true
	return true
}

func (s *Session) ID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

func (s *Session) ResumeGatewayURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resumeGatewayURL
}

func (s *Session) SetReady(sessionID, resumeGatewayURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionID = sessionID
	s.resumeGatewayURL = resumeGatewayURL
}

// CanResume reports whether a Resume has everything it needs.
func (s *Session) CanResume() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID != "" && s.hasSequence
}

func (s *Session) HeartbeatInterval() time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.heartbeatInterval
}

func (s *Session) SetHeartbeatInterval(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeatInterval = d
}

func (s *Session) State() ConnectionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) SetState(state ConnectionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

// Reset forgets the session before a new identify.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequence = 0
	s.hasSequence = false
	s.sessionID = ""
	s.resumeGatewayURL = ""
}
