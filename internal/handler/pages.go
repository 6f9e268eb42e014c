package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/todolist/internal/view"
)

// PageHandler serves the pages that need no service: the about page and
// the 404 page for unmatched routes.
type PageHandler struct {
	responder
}

func NewPageHandler(views *view.Views, logger *slog.Logger) *PageHandler {
	return &PageHandler{responder: responder{views: views, logger: logger}}
}

// HandleAbout renders the static about page.
//
// HTTP: GET /about
func (h *PageHandler) HandleAbout(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.About, h.page(w, r, "About"))
}

// HandleNotFound is installed as the router's NotFound handler.
func (h *PageHandler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.notFound(w, r)
}

// Pinger reports whether a dependency is reachable. *sqlite.DB satisfies it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HandleHealth returns a liveness handler for load balancers and
// container orchestrators.
//
// HTTP: GET /healthz
//
//	200 {"status":"ok"}          → the database answers
//	503 {"status":"unavailable"} → it does not
func HandleHealth(db Pinger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := db.Ping(ctx); err != nil {
			logger.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
