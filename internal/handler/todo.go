package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/service"
	"github.com/sakif/todolist/internal/view"
)

// TodoHandler serves the todo pages. Every route sits behind
// auth.RequireAuth, so a principal is always in the request context.
//
// ROUTES:
//
//	GET    /todos            → HandleIndex
//	GET    /todos/create     → HandleCreate
//	POST   /todos            → HandleStore
//	GET    /todos/{id}       → HandleShow
//	GET    /todos/{id}/edit  → HandleEdit
//	PUT    /todos/{id}       → HandleUpdate
//	DELETE /todos/{id}       → HandleDestroy
type TodoHandler struct {
	responder
	todos *service.TodoService
}

func NewTodoHandler(todos *service.TodoService, views *view.Views, logger *slog.Logger) *TodoHandler {
	return &TodoHandler{
		responder: responder{views: views, logger: logger},
		todos:     todos,
	}
}

// HandleIndex lists the principal's todos, eight per page.
//
// HTTP: GET /todos?page=2
//
// A missing or malformed page number shows the first page.
func (h *TodoHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil {
		page = 1
	}

	todos, err := h.todos.List(r.Context(), principal, page)
	if err != nil {
		h.fail(w, r, err, "/todos")
		return
	}

	p := h.page(w, r, "My Todos")
	p.Data = todos
	h.render(w, r, http.StatusOK, view.TodoIndex, p)
}

// HandleCreate shows the empty create form.
func (h *TodoHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, view.TodoCreate, h.page(w, r, "Create a Todo"))
}

// HandleStore creates a todo from the submitted form.
//
// HTTP: POST /todos
// On success → 303 /todos with "Created a new Todo!"
// On invalid input → 303 /todos/create with the errors and old input
func (h *TodoHandler) HandleStore(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var form todoForm
	if !h.parseForm(w, r, &form) {
		return
	}

	result, err := h.todos.Create(r.Context(), principal, service.TodoInput{Title: form.Title, Body: form.Body})
	if err != nil {
		h.fail(w, r, err, "/todos/create")
		return
	}

	h.redirect(w, r, "/todos", flash{Status: result.Status})
}

// HandleShow displays one todo.
//
// HTTP: GET /todos/{id}
func (h *TodoHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	id, ok := h.todoID(w, r)
	if !ok {
		return
	}

	todo, err := h.todos.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "/todos")
		return
	}

	p := h.page(w, r, todo.Title)
	p.Data = todo
	h.render(w, r, http.StatusOK, view.TodoShow, p)
}

// HandleEdit shows the edit form, pre-filled from the stored todo or, after
// a failed update, from what was submitted.
//
// HTTP: GET /todos/{id}/edit
func (h *TodoHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := h.todoID(w, r)
	if !ok {
		return
	}

	todo, err := h.todos.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "/todos")
		return
	}

	p := h.page(w, r, "Edit Todo")
	p.Data = todo
	h.render(w, r, http.StatusOK, view.TodoEdit, p)
}

// HandleUpdate saves the submitted title and body.
//
// HTTP: PUT /todos/{id} (sent by the form as POST with _method=PUT)
// On success → 303 /todos/{id} with "Updated the selected Todo!"
func (h *TodoHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.todoID(w, r)
	if !ok {
		return
	}

	var form todoForm
	if !h.parseForm(w, r, &form) {
		return
	}

	result, err := h.todos.Update(r.Context(), id, service.TodoInput{Title: form.Title, Body: form.Body})
	if err != nil {
		h.fail(w, r, err, fmt.Sprintf("/todos/%d/edit", id))
		return
	}

	h.redirect(w, r, fmt.Sprintf("/todos/%d", result.Todo.ID), flash{Status: result.Status})
}

// HandleDestroy deletes a todo.
//
// HTTP: DELETE /todos/{id} (sent by the form as POST with _method=DELETE)
// On success → 303 /todos with "Deleted the selected Todo!"
func (h *TodoHandler) HandleDestroy(w http.ResponseWriter, r *http.Request) {
	id, ok := h.todoID(w, r)
	if !ok {
		return
	}

	status, err := h.todos.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err, "/todos")
		return
	}

	h.redirect(w, r, "/todos", flash{Status: status})
}

// todoID parses the {id} path parameter. Anything that is not a positive
// integer cannot name a todo, so it gets the 404 page.
func (h *TodoHandler) todoID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		h.notFound(w, r)
		return 0, false
	}
	return id, true
}
