package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/schema"
)

// FORM DECODING:
// gorilla/schema fills a struct from url.Values using `schema:"..."` tags,
// the form-data counterpart of json.NewDecoder(r.Body).Decode(&v).
//
//	var f todoForm
//	if err := decodeForm(&f, r.PostForm); err != nil { ... }
//
// The decoder caches struct metadata and is safe for concurrent use, so one
// instance serves every request.
var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true) // _method, submit buttons, ...
	return d
}()

type todoForm struct {
	Title string `schema:"title"`
	Body  string `schema:"body"`
}

type profileForm struct {
	Name     string `schema:"name"`
	Email    string `schema:"email"`
	Password string `schema:"password"`
}

type loginForm struct {
	Email    string `schema:"email"`
	Password string `schema:"password"`
}

type registerForm struct {
	Name                 string `schema:"name"`
	Email                string `schema:"email"`
	Password             string `schema:"password"`
	PasswordConfirmation string `schema:"password_confirmation"`
}

// decodeForm trims every submitted value except passwords and decodes the
// result into dst.
func decodeForm(dst any, values url.Values) error {
	if err := formDecoder.Decode(dst, trimValues(values)); err != nil {
		return fmt.Errorf("decoding form: %w", err)
	}
	return nil
}

// isSecret reports whether field must be kept verbatim and never echoed.
func isSecret(field string) bool {
	return strings.HasPrefix(field, "password")
}

func trimValues(values url.Values) url.Values {
	out := make(url.Values, len(values))
	for key, vals := range values {
		if isSecret(key) {
			out[key] = vals
			continue
		}
		trimmed := make([]string, len(vals))
		for i, v := range vals {
			trimmed[i] = strings.TrimSpace(v)
		}
		out[key] = trimmed
	}
	return out
}

// oldInput is what a form is refilled with after a failed submit. Secret
// fields and the method override are left out.
func oldInput(values url.Values) map[string]string {
	old := make(map[string]string, len(values))
	for key := range values {
		if isSecret(key) || strings.HasPrefix(key, "_") {
			continue
		}
		old[key] = strings.TrimSpace(values.Get(key))
	}
	return old
}

// parseForm parses and decodes a urlencoded form body into dst, answering
// 400 itself when the body is malformed.
func (h responder) parseForm(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := r.ParseForm(); err != nil {
		h.logger.Warn("invalid form body", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		h.errorPage(w, r, http.StatusBadRequest, "Bad Request", "The submitted form could not be read.")
		return false
	}
	if err := decodeForm(dst, r.PostForm); err != nil {
		h.logger.Warn("invalid form fields", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
		h.errorPage(w, r, http.StatusBadRequest, "Bad Request", "The submitted form could not be read.")
		return false
	}
	return true
}
