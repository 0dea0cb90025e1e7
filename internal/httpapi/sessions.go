package httpapi

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vonshlovens/roomboard/internal/canvas"
)

// SessionHeader carries the id of the client's navigation session
const SessionHeader = "X-Session-ID"

var errNoSession = errors.New("unknown or missing session")

type sessionKey struct{}

type sessionEntry struct {
	session  *canvas.Session
	lastSeen time.Time
}

// sessionStore holds the view state of every connected client
type sessionStore struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *sessionStore) create(sess *canvas.Session) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prune()
	id := uuid.NewString()
	s.sessions[id] = &sessionEntry{session: sess, lastSeen: s.now()}
	return id
}

func (s *sessionStore) get(id string) (*canvas.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	now := s.now()
	if s.expired(e, now) {
		delete(s.sessions, id)
		return nil, false
	}
	e.lastSeen = now
	return e.session, true
}

func (s *sessionStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

func (s *sessionStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// prune drops sessions idle for longer than ttl. Callers hold s.mu.
func (s *sessionStore) prune() {
	if s.ttl <= 0 {
		return
	}
	now := s.now()
	for id, e := range s.sessions {
		if s.expired(e, now) {
			delete(s.sessions, id)
		}
	}
}

func (s *sessionStore) expired(e *sessionEntry, now time.Time) bool {
	return s.ttl > 0 && e.lastSeen.Before(now.Add(-s.ttl))
}

// requireSession resolves the X-Session-ID header into the request context
func (s *sessionStore) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.get(r.Header.Get(SessionHeader))
		if !ok {
			writeError(w, http.StatusUnauthorized, "no_session", errNoSession)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

func sessionFrom(r *http.Request) *canvas.Session {
	sess, _ := r.Context().Value(sessionKey{}).(*canvas.Session)
	return sess
}
