package web

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/shopsheet/internal/core"
	"github.com/google/uuid"
)

// Session is one browser's working copy of a worksheet. Handlers hold mu
// for as long as they use store.
type Session struct {
	ID string

	mu       sync.Mutex
	store    *core.RecordStore
	lastSeen time.Time
}

// Sessions is the table of live sessions. Sessions unused for longer than
// the idle timeout are dropped along with their uncommitted edits; when the
// table is full the least recently used session makes room.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	idle     time.Duration
	max      int
	now      func() time.Time
}

// NewSessions creates an empty session table.
func NewSessions(idle time.Duration, maxSessions int) *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		idle:     idle,
		max:      maxSessions,
		now:      time.Now,
	}
}

// Lookup returns a live session and marks it used.
func (m *Sessions) Lookup(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	now := m.now()
	if m.expired(sess, now) {
		delete(m.sessions, id)
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// Open starts a new session.
func (m *Sessions) Open() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if m.max > 0 && len(m.sessions) >= m.max {
		m.evictOldest()
	}
	sess := &Session{ID: uuid.NewString(), lastSeen: now}
	m.sessions[sess.ID] = sess
	return sess
}

// Len is the number of sessions in the table, expired or not.
func (m *Sessions) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Sessions) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, sess := range m.sessions {
		if m.expired(sess, now) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs Sweep every interval until ctx is cancelled.
func (m *Sessions) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := m.Sweep(); n > 0 {
					slog.Debug("expired sessions removed", "count", n)
				}
			}
		}
	}()
}

func (m *Sessions) expired(sess *Session, now time.Time) bool {
	return m.idle > 0 && now.Sub(sess.lastSeen) > m.idle
}

func (m *Sessions) evictOldest() {
	var oldest *Session
	for _, sess := range m.sessions {
		if oldest == nil || sess.lastSeen.Before(oldest.lastSeen) {
			oldest = sess
		}
	}
	if oldest != nil {
		delete(m.sessions, oldest.ID)
		slog.Info("session evicted", "session", oldest.ID)
	}
}

// sessionMiddleware attaches the caller's session, opening one and setting
// the cookie when the request has none or it expired.
func (s *Server) sessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var sess *Session
		if c, err := r.Cookie(s.cfg.Session.CookieName); err == nil {
			sess, _ = s.sessions.Lookup(c.Value)
		}
		if sess == nil {
			sess = s.sessions.Open()
			http.SetCookie(w, &http.Cookie{
				Name:     s.cfg.Session.CookieName,
				Value:    sess.ID,
				Path:     "/",
				HttpOnly: true,
				Secure:   s.cfg.Session.SecureCookie,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ctx := withSession(r.Context(), sess)
		ctx = WithRequestMetadata(ctx, r)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// lockedStore locks the caller's session and returns its loaded store.
// The caller must call unlock once done.
func lockedStore(r *http.Request) (store *core.RecordStore, unlock func(), err error) {
	sess := sessionFrom(r.Context())
	if sess == nil {
		return nil, func() {}, core.ErrNotLoaded
	}
	sess.mu.Lock()
	if sess.store == nil || !sess.store.Loaded() {
		sess.mu.Unlock()
		return nil, func() {}, core.ErrNotLoaded
	}
	return sess.store, sess.mu.Unlock, nil
}
