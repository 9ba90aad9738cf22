package versioning

import (
	"context"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"
)

// DefaultSessionIdleTTL is how long a session may go untouched before the
// sweep discards it.
const DefaultSessionIdleTTL = 30 * time.Minute

const sweepInterval = time.Minute

type session struct {
	ctrl     *Controller
	lastSeen time.Time
}

// SessionManager hands out one Controller per session. Sessions share the
// store but never share cached versions or active selections, so two
// sessions can look at different versions of the same image at once.
// Sessions idle past the TTL are swept so anonymous traffic cannot grow the
// map without bound.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session

	store   Store
	events  Events
	logger  ectologger.Logger
	idleTTL time.Duration
	now     func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessionManager creates a new session manager. A non-positive idleTTL
// falls back to DefaultSessionIdleTTL.
func NewSessionManager(store Store, events Events, idleTTL time.Duration, logger ectologger.Logger) *SessionManager {
	if idleTTL <= 0 {
		idleTTL = DefaultSessionIdleTTL
	}
	return &SessionManager{
		sessions: map[string]*session{},
		store:    store,
		events:   events,
		logger:   logger,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Start begins the background sweep of idle sessions
func (m *SessionManager) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.wg.Add(1)
	go m.sweepLoop(ctx)
}

// Stop halts the background sweep
func (m *SessionManager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}

func (m *SessionManager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if pruned := m.PruneIdle(); pruned > 0 {
				m.logger.WithField("sessions", pruned).Debug("Pruned idle sessions")
			}
		}
	}
}

// PruneIdle discards every session idle longer than the TTL and reports how
// many were removed
func (m *SessionManager) PruneIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.idleTTL)
	pruned := 0
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(m.sessions, id)
			pruned++
		}
	}
	return pruned
}

// Controller returns the session's controller, creating it on first use
func (m *SessionManager) Controller(sessionID string) *Controller {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		s = &session{ctrl: NewController(m.store, NewRepository(), m.events, m.logger)}
		m.sessions[sessionID] = s
	}
	s.lastSeen = m.now()
	return s.ctrl
}

// Drop discards a session's cached state
func (m *SessionManager) Drop(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionID)
}

// Len returns the number of live sessions
func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// PurgeImage drops the image's cached versions and selection from every
// session. Called when the image itself is deleted.
func (m *SessionManager) PurgeImage(ctx context.Context, imageID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.sessions {
		s.ctrl.PurgeImage(imageID)
	}

	m.logger.WithContext(ctx).WithFields(map[string]any{
		"image_id": imageID,
		"sessions": len(m.sessions),
	}).Debug("Purged image from session caches")
}
