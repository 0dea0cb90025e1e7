package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vonshlovens/roomboard/internal/canvas"
	"github.com/vonshlovens/roomboard/internal/geom"
)

type createSessionRequest struct {
	ScreenWidth  float64 `json:"screen_width" validate:"omitempty,gt=0"`
	ScreenHeight float64 `json:"screen_height" validate:"omitempty,gt=0"`
}

type createItemRequest struct {
	Type     string          `json:"type" validate:"required,oneof=text image link video file project room"`
	Content  string          `json:"content"`
	Metadata canvas.Metadata `json:"metadata"`
	Position geom.Point      `json:"position"`
	FolderID string          `json:"folder_id" validate:"excluded_with=RoomID"`
	RoomID   string          `json:"room_id"`
	Inbox    bool            `json:"inbox"`
}

type createFolderRequest struct {
	Name     string     `json:"name" validate:"required"`
	Position geom.Point `json:"position"`
	RoomID   string     `json:"room_id"`
	ParentID string     `json:"parent_id"`
}

type updateContentRequest struct {
	Content  string          `json:"content"`
	Metadata canvas.Metadata `json:"metadata"`
}

type moveToFolderRequest struct {
	FolderID string `json:"folder_id" validate:"required"`
}

// An empty room id moves to the root canvas
type moveToRoomRequest struct {
	RoomID string `json:"room_id"`
}

type moveToAreaRequest struct {
	AreaID string `json:"area_id" validate:"required"`
}

type enterRoomRequest struct {
	RoomID string `json:"room_id"`
}

type zoomRequest struct {
	Scale  float64    `json:"scale" validate:"gt=0"`
	Anchor geom.Point `json:"anchor"`

	// Comfort limits the zoom to the range of the UI zoom controls.
	Comfort bool `json:"comfort,omitempty"`
}

type panRequest struct {
	Delta geom.Point `json:"delta"`
}

type layoutRequest struct {
	IDs []string `json:"ids" validate:"dive,required"`
}

type dropRequest struct {
	DraggedID string                `json:"dragged_id" validate:"required"`
	Target    canvas.DropDescriptor `json:"target"`
}

type viewResponse struct {
	RoomID      string         `json:"room_id"`
	Viewport    geom.Viewport  `json:"viewport"`
	ZoomPercent int            `json:"zoom_percent"`
	Breadcrumb  []canvas.Crumb `json:"breadcrumb"`
}

type sessionResponse struct {
	ID   string       `json:"id"`
	View viewResponse `json:"view"`
}

type visibleResponse struct {
	RoomID  string           `json:"room_id"`
	Items   []*canvas.Item   `json:"items"`
	Folders []*canvas.Folder `json:"folders"`
}

type contentsResponse struct {
	Items   []*canvas.Item   `json:"items"`
	Folders []*canvas.Folder `json:"folders,omitempty"`
}

type dropResponse struct {
	Kind  string      `json:"kind"`
	ID    string      `json:"id,omitempty"`
	Point *geom.Point `json:"point,omitempty"`
}

// decode reads an optional JSON body into v and validates it
func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", err)
		return false
	}
	if err := a.validate.Struct(v); err != nil {
		handleBoardError(w, err)
		return false
	}
	return true
}

// result records the outcome of op and writes the error response, if any
func (a *api) result(w http.ResponseWriter, op string, err error) bool {
	a.rec.RecordOp(op, err)
	if err != nil {
		handleBoardError(w, err)
		return false
	}
	return true
}

func list[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func (a *api) viewOf(sess *canvas.Session) viewResponse {
	v := sess.View()
	// A room forgotten under the session yields no breadcrumb
	crumbs, _ := sess.Breadcrumb()
	return viewResponse{
		RoomID:      v.RoomID,
		Viewport:    v.Viewport,
		ZoomPercent: sess.ZoomPercent(),
		Breadcrumb:  list(crumbs),
	}
}

// createSession opens a navigation session on the root canvas.
// POST /api/sessions
func (a *api) createSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !a.decode(w, r, &req) {
		return
	}

	opts := a.opts
	if req.ScreenWidth > 0 {
		opts.Screen.W = req.ScreenWidth
	}
	if req.ScreenHeight > 0 {
		opts.Screen.H = req.ScreenHeight
	}

	sess := a.board.NewSession(opts)
	id := a.sessions.create(sess)
	writeJSON(w, http.StatusCreated, sessionResponse{ID: id, View: a.viewOf(sess)})
}

// DELETE /api/sessions/{id}
func (a *api) deleteSession(w http.ResponseWriter, r *http.Request) {
	if !a.sessions.remove(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "not_found", errNoSession)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/items
func (a *api) createItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if !a.decode(w, r, &req) {
		return
	}

	it, err := a.board.AddItem(canvas.ItemDraft{
		Type:     canvas.ItemType(req.Type),
		Content:  req.Content,
		Metadata: req.Metadata,
		Position: req.Position,
		FolderID: req.FolderID,
		RoomID:   req.RoomID,
		Inbox:    req.Inbox,
	})
	if !a.result(w, "add_item", err) {
		return
	}
	writeJSON(w, http.StatusCreated, it)
}

// GET /api/items/{id}
func (a *api) getItem(w http.ResponseWriter, r *http.Request) {
	it, err := a.board.Item(chi.URLParam(r, "id"))
	if err != nil {
		handleBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// PATCH /api/items/{id}/content
func (a *api) updateContent(w http.ResponseWriter, r *http.Request) {
	var req updateContentRequest
	if !a.decode(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	if !a.result(w, "update_content", a.board.UpdateContent(id, req.Content, req.Metadata)) {
		return
	}
	it, err := a.board.Item(id)
	if err != nil {
		handleBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

// POST /api/{items,folders}/{id}/folder
func (a *api) moveToFolder(w http.ResponseWriter, r *http.Request) {
	var req moveToFolderRequest
	if !a.decode(w, r, &req) {
		return
	}
	if a.result(w, "move_to_folder", a.board.MoveToFolder(chi.URLParam(r, "id"), req.FolderID)) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/{items,folders}/{id}/room
func (a *api) moveToRoom(w http.ResponseWriter, r *http.Request) {
	var req moveToRoomRequest
	if !a.decode(w, r, &req) {
		return
	}
	if a.result(w, "move_to_room", a.board.MoveToRoom(chi.URLParam(r, "id"), req.RoomID)) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/{items,folders}/{id}/area
func (a *api) moveToArea(w http.ResponseWriter, r *http.Request) {
	var req moveToAreaRequest
	if !a.decode(w, r, &req) {
		return
	}
	if a.result(w, "move_to_area", a.board.MoveToArea(chi.URLParam(r, "id"), req.AreaID)) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// setStatus serves the archive, trash and restore transitions
func (a *api) setStatus(op string, fn func(id string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if a.result(w, op, fn(chi.URLParam(r, "id"))) {
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// POST /api/folders
func (a *api) createFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if !a.decode(w, r, &req) {
		return
	}

	f, err := a.board.AddFolder(canvas.FolderDraft{
		Name:     req.Name,
		Position: req.Position,
		RoomID:   req.RoomID,
		ParentID: req.ParentID,
	})
	if !a.result(w, "add_folder", err) {
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// GET /api/folders/{id}
func (a *api) folderContents(w http.ResponseWriter, r *http.Request) {
	items, folders, err := a.board.FolderContents(chi.URLParam(r, "id"))
	if err != nil {
		handleBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentsResponse{Items: list(items), Folders: list(folders)})
}

// GET /api/areas/{id}/members
func (a *api) areaMembers(w http.ResponseWriter, r *http.Request) {
	items, err := a.board.AreaMembers(chi.URLParam(r, "id"))
	if err != nil {
		handleBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, contentsResponse{Items: list(items)})
}

// GET /api/breadcrumb?room_id=
func (a *api) breadcrumb(w http.ResponseWriter, r *http.Request) {
	crumbs, err := a.board.Breadcrumb(r.URL.Query().Get("room_id"))
	if err != nil {
		handleBoardError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list(crumbs))
}

// GET /api/view
func (a *api) getView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.viewOf(sessionFrom(r)))
}

// POST /api/view/enter
func (a *api) enterRoom(w http.ResponseWriter, r *http.Request) {
	var req enterRoomRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess := sessionFrom(r)
	if a.result(w, "enter_room", sess.EnterRoom(req.RoomID)) {
		writeJSON(w, http.StatusOK, a.viewOf(sess))
	}
}

// POST /api/view/exit
func (a *api) exitRoom(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if a.result(w, "exit_room", sess.ExitRoom()) {
		writeJSON(w, http.StatusOK, a.viewOf(sess))
	}
}

// POST /api/view/zoom
func (a *api) zoom(w http.ResponseWriter, r *http.Request) {
	var req zoomRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess := sessionFrom(r)
	if req.Comfort {
		sess.ZoomControl(req.Scale, req.Anchor)
	} else {
		sess.ZoomAt(req.Scale, req.Anchor)
	}
	writeJSON(w, http.StatusOK, a.viewOf(sess))
}

// POST /api/view/pan
func (a *api) pan(w http.ResponseWriter, r *http.Request) {
	var req panRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess := sessionFrom(r)
	sess.Pan(req.Delta)
	writeJSON(w, http.StatusOK, a.viewOf(sess))
}

// GET /api/visible
func (a *api) visible(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.visibleOf(sessionFrom(r)))
}

func (a *api) visibleOf(sess *canvas.Session) visibleResponse {
	return visibleResponse{
		RoomID:  sess.RoomID(),
		Items:   list(sess.VisibleItems()),
		Folders: list(sess.VisibleFolders()),
	}
}

// layout re-packs the current room, or only the given ids, and returns
// the new visible set.
// POST /api/layout
func (a *api) layout(w http.ResponseWriter, r *http.Request) {
	var req layoutRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess := sessionFrom(r)

	start := time.Now()
	var err error
	n := len(req.IDs)
	if n == 0 {
		n = len(sess.VisibleItems()) + len(sess.VisibleFolders())
		err = sess.LayoutAll()
	} else {
		err = sess.LayoutSelection(req.IDs)
	}
	if !a.result(w, "layout", err) {
		return
	}
	a.rec.ObserveLayout(n, time.Since(start))

	writeJSON(w, http.StatusOK, a.visibleOf(sess))
}

// drop commits a completed drag gesture.
// POST /api/drop
func (a *api) drop(w http.ResponseWriter, r *http.Request) {
	var req dropRequest
	if !a.decode(w, r, &req) {
		return
	}

	target, err := sessionFrom(r).Drop(canvas.DropEvent{DraggedID: req.DraggedID, Target: req.Target})
	if !a.result(w, "drop_"+target.Kind.String(), err) {
		return
	}

	resp := dropResponse{Kind: target.Kind.String(), ID: target.ID}
	if target.Kind == canvas.DropCanvas {
		p := target.Point
		resp.Point = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

// setPosition places an entity on free canvas in the session's room.
// POST /api/entities/{id}/position
func (a *api) setPosition(w http.ResponseWriter, r *http.Request) {
	var p geom.Point
	if !a.decode(w, r, &p) {
		return
	}
	sess := sessionFrom(r)
	if a.result(w, "set_position", a.board.SetPosition(chi.URLParam(r, "id"), p, sess.RoomID())) {
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /api/entities/{id}/move-out
func (a *api) moveOut(w http.ResponseWriter, r *http.Request) {
	if a.result(w, "move_out", sessionFrom(r).MoveOut(chi.URLParam(r, "id"))) {
		w.WriteHeader(http.StatusNoContent)
	}
}
