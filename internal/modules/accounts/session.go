package accounts

import "sync"

// Session is the active working copy of a logged-in account. It is an
// explicit value handed to every aggregate operation instead of a
// process-wide mutable slot, so single-session behavior stays testable.
type Session struct {
	Nickname string
	Account  *Account
}

// SessionManager holds at most one active session per process. Logging in
// replaces the current session, logging out clears it. There is no expiry.
type SessionManager struct {
	mu      sync.Mutex
	current *Session
}

// NewSessionManager creates an empty session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{}
}

// Current returns the active session, or nil when nobody is logged in.
func (m *SessionManager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Set replaces the active session.
func (m *SessionManager) Set(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = sess
}

// Clear logs the active session out.
func (m *SessionManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}
