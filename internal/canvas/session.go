package canvas

import (
	"sync"

	"github.com/vonshlovens/roomboard/internal/geom"
)

// SessionOptions configures the view state of one client.
type SessionOptions struct {
	Screen geom.Size     // size of the client's canvas in screen pixels
	Limits geom.Limits   // zoom bounds
	Layout LayoutOptions // auto-layout grid; Columns <= 0 derives rows from the viewport
	// RoomScale is the zoom applied when entering a room.
	RoomScale float64
	// HomeScale is the zoom applied when leaving a room.
	HomeScale float64

	// KeepInView packs an off-screen layout scope into the visible area.
	KeepInView bool
}

// DefaultSessionOptions returns options for a 1440x900 canvas.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		Screen:    geom.Size{W: 1440, H: 900},
		Limits:    geom.DefaultLimits,
		Layout:    DefaultLayout,
		RoomScale: 1.0,
		HomeScale: geom.DefaultLimits.Base,
	}
}

// View is the navigation state of a session.
type View struct {
	RoomID   string        `json:"room_id"`
	Viewport geom.Viewport `json:"viewport"`
}

// Session is the per-client context on top of a shared Board: the room the
// user has entered and the pan/zoom viewport. Sessions are independent of
// each other.
type Session struct {
	board *Board
	opts  SessionOptions

	mu       sync.Mutex
	roomID   string
	viewport geom.Viewport
	watchers []func(View)
}

// NewSession opens a session on the root canvas at the home zoom.
func (b *Board) NewSession(opts SessionOptions) *Session {
	return &Session{
		board:    b,
		opts:     opts,
		viewport: geom.Centered(opts.Screen, opts.Limits.Clamp(opts.HomeScale)),
	}
}

// Board returns the board the session views.
func (s *Session) Board() *Board { return s.board }

// OnChange registers fn to receive the view after every navigation or
// zoom change.
func (s *Session) OnChange(fn func(View)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// View returns the current room and viewport.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return View{RoomID: s.roomID, Viewport: s.viewport}
}

// RoomID returns the current room ("" is the root canvas).
func (s *Session) RoomID() string { return s.View().RoomID }

// Viewport returns the current viewport.
func (s *Session) Viewport() geom.Viewport { return s.View().Viewport }

// ZoomPercent returns the current zoom as shown to users.
func (s *Session) ZoomPercent() int {
	return s.opts.Limits.Percent(s.Viewport().Scale)
}

// update mutates the view under the lock and fans the result out.
func (s *Session) update(fn func()) View {
	s.mu.Lock()
	fn()
	v := View{RoomID: s.roomID, Viewport: s.viewport}
	watchers := append([]func(View){}, s.watchers...)
	s.mu.Unlock()

	for _, w := range watchers {
		w(v)
	}
	return v
}

// EnterRoom makes roomID the current room and recentres the viewport at
// the room zoom. An empty roomID returns to the root canvas. Archived and
// trashed rooms cannot be entered.
func (s *Session) EnterRoom(roomID string) error {
	scale := s.opts.RoomScale
	if roomID == "" {
		scale = s.opts.HomeScale
	} else {
		it, err := s.board.Item(roomID)
		if err != nil || it.Type != TypeRoom {
			return opErr("enter_room", roomID, notFound("room", roomID))
		}
		if !it.Status.Live() {
			return opErr("enter_room", roomID, ErrOutOfScope)
		}
	}

	s.update(func() {
		s.roomID = roomID
		s.viewport = geom.Centered(s.opts.Screen, s.opts.Limits.Clamp(scale))
	})
	return nil
}

// ExitRoom moves one level up the room tree and recentres at the home
// zoom. At the root canvas it does nothing. A current room that no longer
// exists exits to the root.
func (s *Session) ExitRoom() error {
	current := s.RoomID()
	if current == "" {
		return nil
	}

	parent := ""
	if r, err := s.board.Item(current); err == nil {
		parent = r.RoomID
	}

	s.update(func() {
		s.roomID = parent
		s.viewport = geom.Centered(s.opts.Screen, s.opts.Limits.Clamp(s.opts.HomeScale))
	})
	return nil
}

// ZoomAt rescales the viewport around a screen anchor; the world point
// under the anchor stays in place. Offset and scale change together.
func (s *Session) ZoomAt(scale float64, anchor geom.Point) geom.Viewport {
	return s.update(func() {
		s.viewport = s.viewport.ZoomAt(scale, anchor, s.opts.Limits)
	}).Viewport
}

// ZoomControl applies a zoom requested through the UI zoom controls, which
// stay within the comfort range of the limits.
func (s *Session) ZoomControl(scale float64, anchor geom.Point) geom.Viewport {
	return s.ZoomAt(s.opts.Limits.ClampComfort(scale), anchor)
}

// Pan shifts the viewport by a screen-space delta.
func (s *Session) Pan(delta geom.Point) geom.Viewport {
	return s.update(func() {
		s.viewport = s.viewport.Pan(delta)
	}).Viewport
}

// ToWorld maps a screen point through the current viewport.
func (s *Session) ToWorld(p geom.Point) geom.Point { return s.Viewport().ToWorld(p) }

// VisibleItems returns the items drawn in the current room.
func (s *Session) VisibleItems() []*Item { return s.board.VisibleItems(s.RoomID()) }

// VisibleFolders returns the folders drawn in the current room.
func (s *Session) VisibleFolders() []*Folder { return s.board.VisibleFolders(s.RoomID()) }

// Breadcrumb returns the room path to the current room.
func (s *Session) Breadcrumb() ([]Crumb, error) { return s.board.Breadcrumb(s.RoomID()) }

// MoveOut lifts an entity from the current room into its parent room.
func (s *Session) MoveOut(id string) error { return s.board.MoveOut(id, s.RoomID()) }

// LayoutAll re-packs everything visible in the current room.
func (s *Session) LayoutAll() error {
	v := s.View()
	return s.board.LayoutAll(v.RoomID, s.layoutOptions(v.Viewport))
}

// LayoutSelection re-packs the given entities of the current room.
func (s *Session) LayoutSelection(ids []string) error {
	v := s.View()
	return s.board.LayoutSelection(v.RoomID, ids, s.layoutOptions(v.Viewport))
}

// layoutOptions derives the row width from the viewport when no column
// budget is configured, and the visible area when KeepInView is set.
func (s *Session) layoutOptions(v geom.Viewport) LayoutOptions {
	opts := s.opts.Layout
	if opts.Columns <= 0 && opts.RowWidth <= 0 && v.Scale > 0 {
		opts.RowWidth = s.opts.Screen.W / v.Scale
	}
	if s.opts.KeepInView && v.Scale > 0 {
		visible := v.VisibleRect(s.opts.Screen)
		opts.View = &visible
	}
	return opts
}
