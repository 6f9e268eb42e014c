package handler

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-chi/chi/v5"

	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/service"
	"github.com/sakif/todolist/internal/storage"
	"github.com/sakif/todolist/internal/view"
)

// sniffLen is how many leading bytes mimetype needs for detection.
const sniffLen = 3072

// avatarCSP stops an avatar opened directly in the browser from running
// scripts or loading anything. SVG may carry <script>.
const avatarCSP = "default-src 'none'; style-src 'unsafe-inline'; sandbox"

// AvatarHandler streams avatar images out of the blob store.
//
// HTTP: GET /avatars/{name}
//
// The placeholder is compiled into the binary and served from memory;
// every other name is looked up under the avatar prefix of the store.
// Blob names are unique per upload, so responses are cacheable.
type AvatarHandler struct {
	responder
	blobs storage.Store
}

func NewAvatarHandler(blobs storage.Store, views *view.Views, logger *slog.Logger) *AvatarHandler {
	return &AvatarHandler{
		responder: responder{views: views, logger: logger},
		blobs:     blobs,
	}
}

func (h *AvatarHandler) HandleAvatar(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		h.notFound(w, r)
		return
	}

	if name == model.DefaultAvatar {
		lockDown(w)
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		http.ServeContent(w, r, name, time.Time{}, bytes.NewReader(view.Placeholder()))
		return
	}

	blob, err := h.blobs.Open(r.Context(), service.AvatarPrefix+name)
	if err != nil {
		h.fail(w, r, err, "/profile")
		return
	}
	defer blob.Close()

	// Detect the type from the stored bytes; the name's extension was
	// derived the same way on upload.
	br := bufio.NewReaderSize(blob, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) {
		h.fail(w, r, err, "/profile")
		return
	}

	detected := mimetype.Detect(head)
	lockDown(w)
	w.Header().Set("Content-Type", detected.String())
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	if detected.Is("image/svg+xml") {
		// <img> tags still render it; navigating to it downloads instead.
		w.Header().Set("Content-Disposition", mimeAttachment(name))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, br); err != nil {
		h.logger.Warn("avatar stream interrupted", slog.String("name", name), slog.String("error", err.Error()))
	}
}

// lockDown sets the headers every avatar response carries.
func lockDown(w http.ResponseWriter) {
	w.Header().Set("Content-Security-Policy", avatarCSP)
	w.Header().Set("X-Content-Type-Options", "nosniff")
}

func mimeAttachment(name string) string {
	return mime.FormatMediaType("attachment", map[string]string{"filename": name})
}
