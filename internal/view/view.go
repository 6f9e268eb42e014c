// Package view renders the HTML pages of the application.
//
// TEMPLATE COMPOSITION:
// Every page is parsed together with layout.html. The layout defines the
// overall document (nav bar, flash status) and calls {{template "content" .}};
// each page file fills that slot with {{define "content"}}...{{end}}.
//
// Because every page defines the same "content" block, each page gets its
// own clone of the layout. Parsing them all into one template set would let
// the last page win.
//
// EMBEDDING:
// Templates and the placeholder avatar are compiled into the binary with
// //go:embed, so the server has no runtime dependency on the working
// directory.
package view

import (
	"embed"
	"fmt"
	"html/template"
	"io"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/noimage.svg
var placeholder []byte

// Page names accepted by Render.
const (
	TodoIndex  = "todos_index"
	TodoCreate = "todos_create"
	TodoShow   = "todos_show"
	TodoEdit   = "todos_edit"
	Profile    = "profile"
	Login      = "login"
	Register   = "register"
	About      = "about"
	Error      = "error"
)

var pageNames = []string{
	TodoIndex, TodoCreate, TodoShow, TodoEdit,
	Profile, Login, Register, About, Error,
}

// Placeholder returns the SVG served for accounts without an uploaded
// avatar.
func Placeholder() []byte {
	return placeholder
}

// Page is the data every template receives.
//
// Status, Errors and Old come from the flash cookie of the previous
// request: the status message after a successful write, or the field
// errors and submitted values after a failed one.
type Page struct {
	Title  string
	User   *model.User
	Status string
	Errors apperror.FieldErrors
	Old    map[string]string
	Data   any
}

// Value returns the previously submitted value of field when the form is
// being redisplayed after a failed submit, and fallback otherwise.
//
//	<input name="title" value="{{.Value "title" .Data.Title}}">
func (p Page) Value(field, fallback string) string {
	if p.Old != nil {
		return p.Old[field]
	}
	return fallback
}

// Views holds one parsed template per page.
type Views struct {
	pages map[string]*template.Template
}

// New parses every embedded page. It fails on the first template with a
// syntax error, at startup rather than on the first request.
func New() (*Views, error) {
	layout, err := template.ParseFS(templateFS, "templates/layout.html")
	if err != nil {
		return nil, fmt.Errorf("view: parsing layout: %w", err)
	}

	v := &Views{pages: make(map[string]*template.Template, len(pageNames))}
	for _, name := range pageNames {
		t, err := layout.Clone()
		if err != nil {
			return nil, fmt.Errorf("view: cloning layout for %s: %w", name, err)
		}
		if _, err := t.ParseFS(templateFS, "templates/"+name+".html"); err != nil {
			return nil, fmt.Errorf("view: parsing %s: %w", name, err)
		}
		v.pages[name] = t
	}
	return v, nil
}

// Render writes the named page to w. On error, part of the page may
// already have been written; callers that need all-or-nothing output
// render into a buffer.
func (v *Views) Render(w io.Writer, name string, p Page) error {
	t, ok := v.pages[name]
	if !ok {
		return fmt.Errorf("view: unknown page %q", name)
	}
	if err := t.ExecuteTemplate(w, "layout", p); err != nil {
		return fmt.Errorf("view: rendering %s: %w", name, err)
	}
	return nil
}
