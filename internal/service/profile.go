package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rs/xid"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
	"github.com/sakif/todolist/internal/storage"
	"github.com/sakif/todolist/internal/validate"
)

const (
	StatusProfileUpdated = "Your profile has been updated!"

	// AvatarPrefix is the blob key prefix for uploaded avatars.
	AvatarPrefix = "pics/"
)

// AvatarURL is the path the avatar named ref is served from.
func AvatarURL(ref string) string {
	if ref == "" {
		ref = model.DefaultAvatar
	}
	return "/avatars/" + ref
}

// ProfileView is what the profile page shows.
type ProfileView struct {
	Name      string
	Email     string
	AvatarRef string
	AvatarURL string
}

// ProfileInput is the submitted profile form. An empty Password keeps the
// current one; a nil Image keeps the current avatar.
type ProfileInput struct {
	Name     string
	Email    string
	Password string
	Image    *model.Upload
}

// ProfileResult pairs the saved user with the status message to flash.
type ProfileResult struct {
	User   *model.User
	Status string
}

// ProfileService reads and updates the signed-in user's own account.
type ProfileService struct {
	users     repository.UserRepository
	blobs     storage.Store
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func NewProfileService(
	users repository.UserRepository,
	blobs storage.Store,
	passwords *auth.PasswordService,
	logger *slog.Logger,
) *ProfileService {
	return &ProfileService{
		users:     users,
		blobs:     blobs,
		passwords: passwords,
		logger:    logger,
	}
}

var profileRules = validate.RuleSet{
	validate.Field("name", validate.Required(), validate.String(), validate.Min(3), validate.Max(191)),
	validate.Field("email", validate.Required(), validate.Email(), validate.Min(3), validate.Max(191)),
	validate.Field("password", validate.Nullable(), validate.String(), validate.Min(5), validate.Max(191)),
	validate.Field("image", validate.Nullable(), validate.Image(), validate.MaxKB(1999)),
}

// ViewProfile has no side effects.
func (s *ProfileService) ViewProfile(principal *model.User) ProfileView {
	return ProfileView{
		Name:      principal.Name,
		Email:     principal.Email,
		AvatarRef: principal.AvatarRef,
		AvatarURL: AvatarURL(principal.AvatarRef),
	}
}

// UpdateProfile validates in and applies it to principal's record.
//
// ORDER OF EFFECTS:
//  1. Validate every field. Any failure returns field errors and nothing
//     is written anywhere.
//  2. Hash the new password, if one was given.
//  3. Store the new avatar under a fresh unique name.
//  4. Save all changed columns in one update.
//  5. Delete the previous avatar unless it is the placeholder. A failed
//     delete is logged and otherwise ignored.
//
// Email is not checked for uniqueness here; a collision is rejected by the
// database and comes back as a field error on "email". When the save fails
// the new blob is removed again and the stored avatar is left untouched.
//
// principal itself is not modified; the saved copy is returned.
func (s *ProfileService) UpdateProfile(ctx context.Context, principal *model.User, in ProfileInput) (*ProfileResult, error) {
	input := validate.Input{
		Values: map[string]string{"name": in.Name, "email": in.Email, "password": in.Password},
	}
	if in.Image != nil {
		input.Files = map[string]*model.Upload{"image": in.Image}
	}
	if err := validate.Validate(ctx, profileRules, input, nil); err != nil {
		return nil, err
	}

	user := *principal
	user.Name = in.Name
	user.Email = in.Email

	if in.Password != "" {
		hash, err := s.passwords.Hash(in.Password)
		if err != nil {
			if errors.Is(err, auth.ErrPasswordTooLong) {
				return nil, apperror.ValidationFailed("password", "The password may not be greater than 72 bytes.")
			}
			return nil, fmt.Errorf("hashing password: %w", err)
		}
		user.PasswordHash = hash
	}

	if in.Image != nil {
		ref, err := s.storeAvatar(ctx, in.Image)
		if err != nil {
			return nil, err
		}
		user.AvatarRef = ref
	}

	if err := s.users.UpdateUser(ctx, &user); err != nil {
		if in.Image != nil {
			s.deleteAvatar(ctx, user.ID, user.AvatarRef, "failed to remove unsaved avatar")
		}
		return nil, fmt.Errorf("saving profile: %w", err)
	}

	if in.Image != nil && principal.HasCustomAvatar() {
		s.deleteAvatar(ctx, user.ID, principal.AvatarRef, "failed to delete previous avatar")
	}

	s.logger.Info("profile updated",
		slog.Int64("userID", user.ID),
		slog.Bool("passwordChanged", in.Password != ""),
		slog.Bool("avatarChanged", in.Image != nil),
	)

	return &ProfileResult{User: &user, Status: StatusProfileUpdated}, nil
}

// deleteAvatar removes an avatar blob, logging instead of failing.
func (s *ProfileService) deleteAvatar(ctx context.Context, userID int64, ref, msg string) {
	if err := s.blobs.Delete(ctx, AvatarPrefix+ref); err != nil {
		s.logger.Warn(msg,
			slog.Int64("userID", userID),
			slog.String("avatar", ref),
			slog.String("error", err.Error()),
		)
	}
}

// storeAvatar writes img under a new "<xid><ext>" name and returns that
// name. The extension comes from the sniffed content type.
func (s *ProfileService) storeAvatar(ctx context.Context, img *model.Upload) (string, error) {
	mime, ok, err := validate.SniffImage(img)
	if err != nil {
		return "", fmt.Errorf("reading avatar: %w", err)
	}
	if !ok {
		return "", apperror.ValidationFailed("image", "The image must be an image.")
	}

	ref := xid.New().String() + mime.Extension()
	if err := s.blobs.Put(ctx, AvatarPrefix+ref, img.Content, img.Size, mime.String()); err != nil {
		return "", fmt.Errorf("storing avatar: %w", err)
	}
	return ref, nil
}
