package httpapi

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vonshlovens/roomboard/internal/canvas"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestSessionStore(ttl time.Duration) (*sessionStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	s := newSessionStore(ttl)
	s.now = clock.now
	return s, clock
}

func TestSessionStore_IdleSessionExpires(t *testing.T) {
	s, clock := newTestSessionStore(time.Minute)
	id := s.create(canvas.NewBoard().NewSession(canvas.DefaultSessionOptions()))

	clock.advance(time.Hour)

	_, ok := s.get(id)
	assert.False(t, ok, "session idle past its ttl is still served")
	assert.Equal(t, 0, s.len())
}

func TestSessionStore_UseKeepsSessionAlive(t *testing.T) {
	s, clock := newTestSessionStore(time.Minute)
	id := s.create(canvas.NewBoard().NewSession(canvas.DefaultSessionOptions()))

	for i := 0; i < 5; i++ {
		clock.advance(40 * time.Second)
		_, ok := s.get(id)
		require.True(t, ok, "lookup %d", i)
	}
}

func TestSessionStore_ZeroTTLNeverExpires(t *testing.T) {
	s, clock := newTestSessionStore(0)
	id := s.create(canvas.NewBoard().NewSession(canvas.DefaultSessionOptions()))

	clock.advance(24 * 365 * time.Hour)

	_, ok := s.get(id)
	assert.True(t, ok)
}

func TestSessionStore_CreatePrunesIdle(t *testing.T) {
	s, clock := newTestSessionStore(time.Minute)
	board := canvas.NewBoard()
	s.create(board.NewSession(canvas.DefaultSessionOptions()))

	clock.advance(2 * time.Minute)
	s.create(board.NewSession(canvas.DefaultSessionOptions()))

	assert.Equal(t, 1, s.len())
}
