package session

import (
	"sync"
	"time"
)

const DefaultWindow = 10 * time.Minute

// Manager tracks fixed-length DM access windows per user. A window is opened
// by the start trigger and is never extended by activity; expired entries are
// dropped lazily on the next check, there is no background sweep.
type Manager struct {
	mu      sync.Mutex
	window  time.Duration
	expires map[string]time.Time
}

func NewManager(window time.Duration) *Manager {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Manager{
		window:  window,
		expires: make(map[string]time.Time),
	}
}

// Start opens (or unconditionally re-opens) the access window for userID and
// returns its expiry.
func (m *Manager) Start(userID string, now time.Time) time.Time {
	expiry := now.Add(m.window)
	m.mu.Lock()
	m.expires[userID] = expiry
	m.mu.Unlock()
	return expiry
}

// Admitted reports whether userID has a live window at now. An expired entry
// is evicted before returning.
func (m *Manager) Admitted(userID string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	expiry, ok := m.expires[userID]
	if !ok {
		return false
	}
	if now.After(expiry) {
		delete(m.expires, userID)
		return false
	}
	return true
}

func (m *Manager) Window() time.Duration {
	return m.window
}

// Len reports the number of tracked windows, expired or not. Test hook.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expires)
}
