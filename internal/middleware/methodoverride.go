package middleware

import (
	"errors"
	"net/http"
	"strings"
)

// MaxFormBytes caps the size of a request body. It leaves room for a
// 2 MB avatar plus the multipart framing.
const MaxFormBytes = 4 << 20

// formMemory is how much of a multipart body is kept in memory while
// parsing; the rest spills to temporary files.
const formMemory = 8 << 20

// overridable are the methods a form may ask for.
var overridable = map[string]bool{
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// MethodOverride lets HTML forms, which can only send GET and POST, reach
// PUT and DELETE routes.
//
//	<form method="POST" action="/todos/7">
//	  <input type="hidden" name="_method" value="DELETE">
//	</form>
//
// For POST, PUT, PATCH and DELETE the body is limited to MaxFormBytes and
// parsed (urlencoded or multipart). On a POST, a "_method" field naming
// PUT, PATCH or DELETE then replaces r.Method before routing. Chi matches
// routes on r.Method, so this middleware must be installed with
// router.Use.
//
// An oversized body is answered with 413 here, before any handler or
// temporary file sees it.
func MethodOverride(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost && !overridable[r.Method] {
			next.ServeHTTP(w, r)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, MaxFormBytes)

		var err error
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			err = r.ParseMultipartForm(formMemory)
		} else {
			err = r.ParseForm()
		}
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}
			// Malformed bodies are left for the handler to report.
		}

		if r.Method == http.MethodPost {
			if m := strings.ToUpper(r.PostFormValue("_method")); overridable[m] {
				r.Method = m
			}
		}

		next.ServeHTTP(w, r)
	})
}
