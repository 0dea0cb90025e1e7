// Package httpapi exposes the board to UI clients over HTTP. Board-level
// operations are addressed by entity id; navigation, layout and drop
// handling act on the caller's session, named by the X-Session-ID header.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/vonshlovens/roomboard/internal/canvas"
)

// Recorder receives operation, layout and HTTP metrics
type Recorder interface {
	RecordOp(op string, err error)
	ObserveLayout(entities int, d time.Duration)
	RecordHTTPStatus(statusCode int)
}

type nopRecorder struct{}

func (nopRecorder) RecordOp(string, error)           {}
func (nopRecorder) ObserveLayout(int, time.Duration) {}
func (nopRecorder) RecordHTTPStatus(int)             {}

// Deps holds what the router serves
type Deps struct {
	Board    *canvas.Board
	Session  canvas.SessionOptions // defaults for new sessions
	Recorder Recorder              // optional
	Metrics  http.Handler          // optional, served at /metrics
	// SessionTTL drops sessions idle for longer; zero keeps them forever.
	SessionTTL time.Duration
}

type api struct {
	board    *canvas.Board
	opts     canvas.SessionOptions
	sessions *sessionStore
	rec      Recorder
	validate *validator.Validate
}

// NewRouter builds the HTTP handler for the board API
func NewRouter(deps *Deps) http.Handler {
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	a := &api{
		board:    deps.Board,
		opts:     deps.Session,
		sessions: newSessionStore(deps.SessionTTL),
		rec:      rec,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(rec))

	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/sessions", a.createSession)
		r.Delete("/sessions/{id}", a.deleteSession)

		r.Route("/items", func(r chi.Router) {
			r.Post("/", a.createItem)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", a.getItem)
				r.Patch("/content", a.updateContent)
				r.Post("/folder", a.moveToFolder)
				r.Post("/room", a.moveToRoom)
				r.Post("/area", a.moveToArea)
				r.Post("/archive", a.setStatus("archive", a.board.SetArchived))
				r.Post("/trash", a.setStatus("trash", a.board.SetTrashed))
				r.Post("/restore", a.setStatus("restore", a.board.Restore))
			})
		})

		r.Route("/folders", func(r chi.Router) {
			r.Post("/", a.createFolder)
			r.Get("/{id}", a.folderContents)
			r.Post("/{id}/folder", a.moveToFolder)
			r.Post("/{id}/room", a.moveToRoom)
			r.Post("/{id}/area", a.moveToArea)
		})

		r.Get("/areas/{id}/members", a.areaMembers)
		r.Get("/breadcrumb", a.breadcrumb)

		// Session-scoped routes
		r.Group(func(r chi.Router) {
			r.Use(a.sessions.requireSession)

			r.Get("/view", a.getView)
			r.Post("/view/enter", a.enterRoom)
			r.Post("/view/exit", a.exitRoom)
			r.Post("/view/zoom", a.zoom)
			r.Post("/view/pan", a.pan)

			r.Get("/visible", a.visible)
			r.Post("/layout", a.layout)
			r.Post("/drop", a.drop)
			r.Post("/entities/{id}/position", a.setPosition)
			r.Post("/entities/{id}/move-out", a.moveOut)
		})
	})

	return r
}
