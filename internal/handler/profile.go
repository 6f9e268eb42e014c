package handler

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/service"
	"github.com/sakif/todolist/internal/view"
)

// maxUploadMemory is how much of a multipart body is held in memory; the
// rest spills to temporary files.
const maxUploadMemory = 8 << 20

// ProfileHandler serves the signed-in user's profile page.
type ProfileHandler struct {
	responder
	profiles *service.ProfileService
}

func NewProfileHandler(profiles *service.ProfileService, views *view.Views, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		responder: responder{views: views, logger: logger},
		profiles:  profiles,
	}
}

// HandleShow renders the profile form.
//
// HTTP: GET /profile
func (h *ProfileHandler) HandleShow(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	p := h.page(w, r, "Profile")
	p.Data = h.profiles.ViewProfile(principal)
	h.render(w, r, http.StatusOK, view.Profile, p)
}

// HandleUpdate saves the profile form.
//
// HTTP: PUT /profile (multipart/form-data, sent as POST with _method=PUT)
//
// FORM FIELDS:
//   - name, email: required
//   - password: optional; empty keeps the current password
//   - image: optional file; replaces the avatar
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	// A form without a file may arrive urlencoded; ParseMultipartForm then
	// reports ErrNotMultipart after having parsed it as a plain form.
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Warn("invalid profile form", slog.String("error", err.Error()))
		h.errorPage(w, r, http.StatusBadRequest, "Bad Request", "The submitted form could not be read.")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var form profileForm
	if err := decodeForm(&form, r.PostForm); err != nil {
		h.logger.Warn("invalid profile form", slog.String("error", err.Error()))
		h.errorPage(w, r, http.StatusBadRequest, "Bad Request", "The submitted form could not be read.")
		return
	}

	image, file, err := formUpload(r, "image")
	if err != nil {
		h.fail(w, r, err, "/profile")
		return
	}
	if file != nil {
		defer file.Close()
	}

	result, err := h.profiles.UpdateProfile(r.Context(), principal, service.ProfileInput{
		Name:     form.Name,
		Email:    form.Email,
		Password: form.Password,
		Image:    image,
	})
	if err != nil {
		h.fail(w, r, err, "/profile")
		return
	}

	h.redirect(w, r, "/profile", flash{Status: result.Status})
}

// formUpload returns the file submitted as field, or nil when none was
// chosen. Browsers send an empty part for an untouched file input.
// The caller closes the returned file.
func formUpload(r *http.Request, field string) (*model.Upload, multipart.File, error) {
	if r.MultipartForm == nil {
		return nil, nil, nil
	}

	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if header.Size == 0 && header.Filename == "" {
		file.Close()
		return nil, nil, nil
	}

	return &model.Upload{
		Filename: header.Filename,
		Size:     header.Size,
		Content:  file,
	}, file, nil
}
