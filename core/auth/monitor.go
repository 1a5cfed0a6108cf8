package auth

import (
	"sync"
	"time"

	"archidoc/core/utils"
)

// Idle states reported by the monitor.
const (
	IdleActive = "active"
	IdleWarned = "warned"
)

// IdleMonitor tracks per-session inactivity. A session that stays idle for
// the warn duration enters the warned state and OnWarning fires; if it is
// still untouched when the logout duration elapses, OnLogout fires exactly
// once and the session is forgotten. Any Touch fully resets the clock,
// including out of the warned state.
type IdleMonitor struct {
	warnAfter   time.Duration
	logoutAfter time.Duration
	logger      *utils.Logger

	// OnWarning and OnLogout run on timer goroutines; they must not block.
	OnWarning func(sessID string)
	OnLogout  func(sessID string)

	mu       sync.Mutex
	sessions map[string]*idleState
}

type idleState struct {
	// gen increments on every Touch; a timer callback armed for an older
	// generation is stale and must not fire even if it already left
	// AfterFunc before Stop could catch it.
	gen         uint64
	warned      bool
	warnTimer   *time.Timer
	logoutTimer *time.Timer
}

func NewIdleMonitor(warnAfter, logoutAfter time.Duration, logger *utils.Logger) *IdleMonitor {
	if warnAfter <= 0 {
		warnAfter = 9 * time.Minute
	}
	if logoutAfter <= warnAfter {
		logoutAfter = warnAfter + time.Minute
	}
	return &IdleMonitor{
		warnAfter:   warnAfter,
		logoutAfter: logoutAfter,
		logger:      logger,
		sessions:    map[string]*idleState{},
	}
}

// Touch registers activity for the session, arming its timers on first
// sight and rewinding them on every later call.
func (m *IdleMonitor) Touch(sessID string) {
	if sessID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[sessID]
	if !ok {
		st = &idleState{}
		m.sessions[sessID] = st
	} else {
		st.warnTimer.Stop()
		st.logoutTimer.Stop()
	}
	st.warned = false
	st.gen++
	gen := st.gen
	st.warnTimer = time.AfterFunc(m.warnAfter, func() { m.warn(sessID, gen) })
	st.logoutTimer = time.AfterFunc(m.logoutAfter, func() { m.expire(sessID, gen) })
}

// Forget drops the session without firing callbacks, e.g. on explicit
// logout.
func (m *IdleMonitor) Forget(sessID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessions[sessID]; ok {
		st.warnTimer.Stop()
		st.logoutTimer.Stop()
		delete(m.sessions, sessID)
	}
}

// State reports the session's current idle state. Unknown sessions read as
// active so a race with expiry never surfaces as an error.
func (m *IdleMonitor) State(sessID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.sessions[sessID]; ok && st.warned {
		return IdleWarned
	}
	return IdleActive
}

func (m *IdleMonitor) warn(sessID string, gen uint64) {
	m.mu.Lock()
	st, ok := m.sessions[sessID]
	if !ok || st.gen != gen {
		m.mu.Unlock()
		return
	}
	st.warned = true
	cb := m.OnWarning
	m.mu.Unlock()
	m.logger.Printf("IDLE warning session=%s", sessID)
	if cb != nil {
		cb(sessID)
	}
}

func (m *IdleMonitor) expire(sessID string, gen uint64) {
	m.mu.Lock()
	st, ok := m.sessions[sessID]
	// A Touch between the timer firing and this lock bumps gen; that
	// activity wins and the stale expiry is dropped.
	if ok && st.gen != gen {
		m.mu.Unlock()
		return
	}
	if ok {
		st.warnTimer.Stop()
		delete(m.sessions, sessID)
	}
	cb := m.OnLogout
	m.mu.Unlock()
	if !ok {
		return
	}
	m.logger.Printf("IDLE logout session=%s", sessID)
	if cb != nil {
		cb(sessID)
	}
}
