package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"sort"

	"github.com/sakif/todolist/internal/apperror"
)

// flashCookie carries data across exactly one redirect.
const flashCookie = "flash"

// flash is what one request leaves for the next page it redirects to.
type flash struct {
	Status string               `json:"status,omitempty"`
	Errors apperror.FieldErrors `json:"errors,omitempty"`
	Old    map[string]string    `json:"old,omitempty"`
}

func (f flash) empty() bool {
	return f.Status == "" && len(f.Errors) == 0 && len(f.Old) == 0
}

// maxFlashBytes bounds the encoded cookie value. Browsers drop cookies
// over about 4 KB, and with them the errors the user needs to see.
const maxFlashBytes = 3500

// setFlash stores f in a short-lived cookie as base64url-encoded JSON.
// Cookie values may not contain quotes, commas or semicolons, which JSON
// is full of.
//
// When the encoding is too large, old input is dropped longest value
// first until it fits. Status and errors are always kept.
func setFlash(w http.ResponseWriter, r *http.Request, f flash) error {
	value, err := encodeFlash(f)
	if err != nil {
		return err
	}

	if len(value) > maxFlashBytes && len(f.Old) > 0 {
		old := make(map[string]string, len(f.Old))
		keys := make([]string, 0, len(f.Old))
		for k, v := range f.Old {
			old[k] = v
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return len(old[keys[i]]) > len(old[keys[j]]) })

		f.Old = old
		for _, k := range keys {
			delete(f.Old, k)
			if value, err = encodeFlash(f); err != nil {
				return err
			}
			if len(value) <= maxFlashBytes {
				break
			}
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func encodeFlash(f flash) (string, error) {
	raw, err := json.Marshal(f)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// popFlash reads and clears the flash cookie. A missing or tampered
// cookie yields an empty flash.
func popFlash(w http.ResponseWriter, r *http.Request) flash {
	cookie, err := r.Cookie(flashCookie)
	if err != nil {
		return flash{}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	raw, err := base64.RawURLEncoding.DecodeString(cookie.Value)
	if err != nil {
		return flash{}
	}
	var f flash
	if err := json.Unmarshal(raw, &f); err != nil {
		return flash{}
	}
	return f
}
