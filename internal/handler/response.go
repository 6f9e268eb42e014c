// Package handler contains the HTTP request handlers of the application.
//
// WHAT IS A HANDLER?
// In Go, an HTTP handler is anything that implements the http.Handler interface:
//
//	type Handler interface {
//	    ServeHTTP(ResponseWriter, *Request)
//	}
//
// Chi's router accepts http.HandlerFunc values directly, so every handler
// here is a method with that signature on a struct holding its
// dependencies.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming request (path params, query, form, uploads)
//  2. Call the service layer
//  3. Respond: render a page, or redirect with a flash message
//
// Handlers contain no business rules. Validation, uniqueness and password
// hashing all happen in internal/service.
package handler

// RESPONSE HELPERS:
// The browser talks to us through HTML forms, so almost every write ends in
// a redirect (Post/Redirect/Get). The helpers below keep that uniform:
//
//	h.redirect(w, r, "/todos", flash{Status: "Created a new Todo!"})
//	h.fail(w, r, err, "/todos/create")
//	h.render(w, r, http.StatusOK, view.TodoIndex, page)
//
// ERROR MAPPING:
// fail() is where domain errors become HTTP responses.
//
//	ErrValidation / ErrConflict with fields → 303 back to the form, errors + old input flashed
//	ErrNotFound                              → 404 page
//	anything else                            → 500 page (details only in the log)

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/view"
)

// responder is embedded by every page handler.
type responder struct {
	views  *view.Views
	logger *slog.Logger
}

// page starts the data for a page render: the signed-in user and whatever
// the previous request flashed. It consumes the flash cookie, so call it
// before anything is written to w.
func (h responder) page(w http.ResponseWriter, r *http.Request, title string) view.Page {
	f := popFlash(w, r)
	user, _ := auth.PrincipalFromContext(r.Context())
	return view.Page{
		Title:  title,
		User:   user,
		Status: f.Status,
		Errors: f.Errors,
		Old:    f.Old,
	}
}

// render writes the named page with status.
func (h responder) render(w http.ResponseWriter, r *http.Request, status int, name string, p view.Page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Render into the real writer only after the template succeeded, so a
	// broken template still produces a clean 500.
	var buf bytes.Buffer
	if err := h.views.Render(&buf, name, p); err != nil {
		h.logger.Error("failed to render page",
			slog.String("page", name),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Debug("client went away", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
}

// redirect flashes f (when non-empty) and sends a 303 to url.
//
// 303 See Other makes the browser follow up with a GET even when the
// original request was a POST, PUT or DELETE.
func (h responder) redirect(w http.ResponseWriter, r *http.Request, url string, f flash) {
	if !f.empty() {
		if err := setFlash(w, r, f); err != nil {
			h.logger.Warn("failed to set flash cookie", slog.String("error", err.Error()))
		}
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// fail maps err to a response. back is the form to return to when err
// carries field errors; r.PostForm supplies the old input for it.
func (h responder) fail(w http.ResponseWriter, r *http.Request, err error, back string) {
	if fields, ok := apperror.AsFieldErrors(err); ok {
		h.redirect(w, r, back, flash{Errors: fields, Old: oldInput(r.PostForm)})
		return
	}

	if errors.Is(err, apperror.ErrNotFound) {
		h.notFound(w, r)
		return
	}

	// NEVER expose internal error details to the client: the raw message
	// might contain SQL, file paths or bucket names.
	h.logger.Error("request failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("requestID", chimiddleware.GetReqID(r.Context())),
		slog.String("error", err.Error()),
	)
	h.errorPage(w, r, http.StatusInternalServerError, "Something went wrong",
		"An internal error occurred. Please try again later.")
}

func (h responder) notFound(w http.ResponseWriter, r *http.Request) {
	h.errorPage(w, r, http.StatusNotFound, "Not Found", "The page you are looking for could not be found.")
}

func (h responder) errorPage(w http.ResponseWriter, r *http.Request, status int, title, message string) {
	p := h.page(w, r, title)
	p.Data = message
	h.render(w, r, status, view.Error, p)
}

// writeJSON sends a JSON response with the given status code.
//
// HEADER ORDER MATTERS:
// Headers and the status code must be set BEFORE writing the body. Once
// Encode calls w.Write(), the headers are sent and later changes are
// silently ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}
