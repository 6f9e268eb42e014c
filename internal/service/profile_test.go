package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/auth"
	"github.com/sakif/todolist/internal/model"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func pngUpload() *model.Upload {
	return &model.Upload{Filename: "me.png", Size: int64(len(pngBytes)), Content: bytes.NewReader(pngBytes)}
}

type profileFixture struct {
	svc       *ProfileService
	users     *fakeUserRepo
	blobs     *fakeStore
	passwords *auth.PasswordService
	user      *model.User
}

func newProfileFixture(t *testing.T) *profileFixture {
	t.Helper()
	users := newFakeUserRepo()
	blobs := newFakeStore()
	passwords := auth.NewPasswordService(4)

	hash, err := passwords.Hash("original-password")
	require.NoError(t, err)
	user := &model.User{Name: "Alice", Email: "alice@example.com", PasswordHash: hash}
	require.NoError(t, users.Insert(context.Background(), user))

	return &profileFixture{
		svc:       NewProfileService(users, blobs, passwords, discardLogger()),
		users:     users,
		blobs:     blobs,
		passwords: passwords,
		user:      user,
	}
}

func (f *profileFixture) stored(t *testing.T) *model.User {
	t.Helper()
	u, err := f.users.GetUserByID(context.Background(), f.user.ID)
	require.NoError(t, err)
	return u
}

// =========================================================================
// VIEW
// =========================================================================

func TestViewProfile(t *testing.T) {
	f := newProfileFixture(t)

	view := f.svc.ViewProfile(f.user)

	assert.Equal(t, "Alice", view.Name)
	assert.Equal(t, "alice@example.com", view.Email)
	assert.Equal(t, model.DefaultAvatar, view.AvatarRef)
	assert.Equal(t, "/avatars/noimage.svg", view.AvatarURL)
}

// =========================================================================
// UPDATE WITHOUT IMAGE / PASSWORD
// =========================================================================

func TestUpdateProfile_NameAndEmailOnly(t *testing.T) {
	f := newProfileFixture(t)
	before := f.stored(t)

	res, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{
		Name:  "Joe",
		Email: "joe@x.com",
	})
	require.NoError(t, err)
	assert.Equal(t, StatusProfileUpdated, res.Status)

	after := f.stored(t)
	assert.Equal(t, "Joe", after.Name)
	assert.Equal(t, "joe@x.com", after.Email)
	assert.Equal(t, before.PasswordHash, after.PasswordHash, "password hash must be untouched")
	assert.Equal(t, before.AvatarRef, after.AvatarRef, "avatar must be untouched")
	assert.Empty(t, f.blobs.keys(), "no blob writes")
	assert.Equal(t, 1, f.users.updates, "exactly one save")
}

func TestUpdateProfile_TwoLetterNameRejected(t *testing.T) {
	f := newProfileFixture(t)

	_, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{Name: "Jo", Email: "jo@x.com"})

	fields, ok := apperror.AsFieldErrors(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, "The name must be at least 3 characters.", fields.First("name"))
	assert.Equal(t, "Alice", f.stored(t).Name)
}

func TestUpdateProfile_DoesNotMutatePrincipal(t *testing.T) {
	f := newProfileFixture(t)
	principal := *f.user

	_, err := f.svc.UpdateProfile(context.Background(), &principal, ProfileInput{Name: "Changed", Email: "changed@example.com"})
	require.NoError(t, err)

	assert.Equal(t, "Alice", principal.Name)
}

// =========================================================================
// VALIDATION
// =========================================================================

func TestUpdateProfile_ValidationFailureWritesNothing(t *testing.T) {
	f := newProfileFixture(t)

	_, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{
		Name:     "Al",
		Email:    "not-an-email",
		Password: "abc",
		Image:    pngUpload(),
	})

	require.True(t, errors.Is(err, apperror.ErrValidation))
	fields, _ := apperror.AsFieldErrors(err)
	assert.True(t, fields.Has("name"))
	assert.True(t, fields.Has("email"))
	assert.True(t, fields.Has("password"))
	assert.Empty(t, f.blobs.keys())
	assert.Zero(t, f.users.updates)
}

func TestUpdateProfile_NotAnImage(t *testing.T) {
	f := newProfileFixture(t)
	text := []byte("definitely not an image")

	_, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{
		Name:  "Alice",
		Email: "alice@example.com",
		Image: &model.Upload{Filename: "evil.png", Size: int64(len(text)), Content: bytes.NewReader(text)},
	})

	fields, ok := apperror.AsFieldErrors(err)
	require.True(t, ok)
	assert.Equal(t, "The image must be an image.", fields.First("image"))
	assert.Empty(t, f.blobs.keys())
}

func TestUpdateProfile_EmailTakenBySomeoneElse(t *testing.T) {
	f := newProfileFixture(t)
	require.NoError(t, f.users.Insert(context.Background(), &model.User{Name: "Bob", Email: "bob@example.com", PasswordHash: "x"}))

	_, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{Name: "Alice", Email: "bob@example.com"})

	fields, ok := apperror.AsFieldErrors(err)
	require.True(t, ok, "collision must surface as a field error, got %v", err)
	assert.True(t, fields.Has("email"))
	assert.Equal(t, "alice@example.com", f.stored(t).Email)
}

// =========================================================================
// PASSWORD
// =========================================================================

func TestUpdateProfile_NewPassword(t *testing.T) {
	f := newProfileFixture(t)
	before := f.stored(t)

	_, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{
		Name: "Alice", Email: "alice@example.com", Password: "brand-new-secret",
	})
	require.NoError(t, err)

	after := f.stored(t)
	assert.NotEqual(t, before.PasswordHash, after.PasswordHash)
	assert.NoError(t, f.passwords.Verify(after.PasswordHash, "brand-new-secret"))
}

func TestUpdateProfile_PasswordOverBcryptLimit(t *testing.T) {
	f := newProfileFixture(t)

	// 100 characters passes max:191 but exceeds bcrypt's 72 bytes.
	_, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{
		Name: "Alice", Email: "alice@example.com", Password: strings.Repeat("p", 100), Image: pngUpload(),
	})

	fields, ok := apperror.AsFieldErrors(err)
	require.True(t, ok, "got %v", err)
	assert.True(t, fields.Has("password"))
	assert.Empty(t, f.blobs.keys(), "nothing is stored when the password is rejected")
	assert.Zero(t, f.users.updates)
}

// =========================================================================
// AVATAR
// =========================================================================

func TestUpdateProfile_FirstAvatarKeepsPlaceholder(t *testing.T) {
	f := newProfileFixture(t)

	res, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{
		Name: "Alice", Email: "alice@example.com", Image: pngUpload(),
	})
	require.NoError(t, err)

	ref := res.User.AvatarRef
	assert.True(t, strings.HasSuffix(ref, ".png"), "ref = %q", ref)
	assert.Equal(t, []string{AvatarPrefix + ref}, f.blobs.keys())
	assert.Empty(t, f.blobs.deleted, "the placeholder is never deleted")
	assert.Equal(t, ref, f.stored(t).AvatarRef)
}

func TestUpdateProfile_ReplacesPreviousAvatar(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()

	first, err := f.svc.UpdateProfile(ctx, f.user, ProfileInput{Name: "Alice", Email: "alice@example.com", Image: pngUpload()})
	require.NoError(t, err)
	oldRef := first.User.AvatarRef

	second, err := f.svc.UpdateProfile(ctx, first.User, ProfileInput{Name: "Alice", Email: "alice@example.com", Image: pngUpload()})
	require.NoError(t, err)
	newRef := second.User.AvatarRef

	assert.NotEqual(t, oldRef, newRef)
	assert.Equal(t, []string{AvatarPrefix + newRef}, f.blobs.keys(), "exactly one blob remains")
	assert.Equal(t, []string{AvatarPrefix + oldRef}, f.blobs.deleted)
	assert.Equal(t, pngBytes, f.blobs.blobs[AvatarPrefix+newRef])
}

func TestUpdateProfile_OldAvatarDeleteFailureIsIgnored(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	first, err := f.svc.UpdateProfile(ctx, f.user, ProfileInput{Name: "Alice", Email: "alice@example.com", Image: pngUpload()})
	require.NoError(t, err)

	f.blobs.deleteErr = errors.New("permission denied")
	second, err := f.svc.UpdateProfile(ctx, first.User, ProfileInput{Name: "Alice", Email: "alice@example.com", Image: pngUpload()})

	require.NoError(t, err)
	assert.Equal(t, second.User.AvatarRef, f.stored(t).AvatarRef)
}

func TestUpdateProfile_BlobWriteFailure(t *testing.T) {
	f := newProfileFixture(t)
	f.blobs.putErr = errors.New("disk full")

	_, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{
		Name: "Alice", Email: "alice@example.com", Image: pngUpload(),
	})

	require.Error(t, err)
	assert.Zero(t, f.users.updates)
	assert.Equal(t, model.DefaultAvatar, f.stored(t).AvatarRef)
}

func TestUpdateProfile_SaveFailureRemovesNewBlob(t *testing.T) {
	f := newProfileFixture(t)
	f.users.updateErr = errDatabaseDown

	_, err := f.svc.UpdateProfile(context.Background(), f.user, ProfileInput{
		Name: "Alice", Email: "alice@example.com", Image: pngUpload(),
	})

	require.ErrorIs(t, err, errDatabaseDown)
	assert.Empty(t, f.blobs.keys())
	assert.Equal(t, model.DefaultAvatar, f.stored(t).AvatarRef)
}

func TestUpdateProfile_EmailConflictKeepsCurrentAvatar(t *testing.T) {
	f := newProfileFixture(t)
	ctx := context.Background()
	require.NoError(t, f.users.Insert(ctx, &model.User{Name: "Bob", Email: "bob@example.com", PasswordHash: "x"}))

	first, err := f.svc.UpdateProfile(ctx, f.user, ProfileInput{Name: "Alice", Email: "alice@example.com", Image: pngUpload()})
	require.NoError(t, err)
	current := first.User.AvatarRef

	_, err = f.svc.UpdateProfile(ctx, first.User, ProfileInput{Name: "Alice", Email: "bob@example.com", Image: pngUpload()})

	fields, ok := apperror.AsFieldErrors(err)
	require.True(t, ok, "got %v", err)
	assert.True(t, fields.Has("email"))

	assert.Equal(t, current, f.stored(t).AvatarRef)
	blob, err := f.blobs.Open(ctx, AvatarPrefix+current)
	require.NoError(t, err, "the stored avatar must still be readable")
	blob.Close()
	assert.Equal(t, []string{AvatarPrefix + current}, f.blobs.keys(), "the rejected upload is removed")
}
