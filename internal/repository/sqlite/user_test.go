package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
)

// newTestDB opens a fresh in-memory database per test.
// t.Cleanup closes it when the test (and its subtests) finish.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a user and fails the test if it errors.
func createTestUser(t *testing.T, db *DB, name, email string) *model.User {
	t.Helper()
	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: "$2a$04$not-a-real-hash",
	}
	if err := db.Insert(context.Background(), user); err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// =========================================================================
// INSERT TESTS
// =========================================================================

func TestUserInsert(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Name: "Alice", Email: "alice@example.com", PasswordHash: "hash"}
	if err := db.Insert(context.Background(), user); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if user.ID == 0 {
		t.Error("Insert() did not set user.ID")
	}
	if user.CreatedAt.IsZero() || user.UpdatedAt.IsZero() {
		t.Error("Insert() did not set timestamps")
	}
	if user.AvatarRef != model.DefaultAvatar {
		t.Errorf("AvatarRef = %q, want placeholder %q", user.AvatarRef, model.DefaultAvatar)
	}
}

func TestUserInsert_DuplicateEmail(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "First", "same@example.com")

	// Different case: the column is COLLATE NOCASE.
	dup := &model.User{Name: "Second", Email: "SAME@example.com", PasswordHash: "hash"}
	err := db.Insert(context.Background(), dup)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Insert() error = %v, want ErrConflict", err)
	}

	fields, ok := apperror.AsFieldErrors(err)
	if !ok || !fields.Has("email") {
		t.Errorf("conflict not bound to email: %v", err)
	}
}

func TestUserInsert_DuplicateGitHubID(t *testing.T) {
	db := newTestDB(t)
	gh := int64(4242)

	first := &model.User{Name: "First", Email: "a@example.com", PasswordHash: "x", GitHubID: &gh}
	if err := db.Insert(context.Background(), first); err != nil {
		t.Fatalf("Insert() first: %v", err)
	}

	second := &model.User{Name: "Second", Email: "b@example.com", PasswordHash: "x", GitHubID: &gh}
	err := db.Insert(context.Background(), second)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("Insert() error = %v, want ErrConflict", err)
	}
}

func TestUserInsert_ManyWithoutGitHubID(t *testing.T) {
	db := newTestDB(t)

	// NULL github_id must not trip the unique index.
	createTestUser(t, db, "One", "one@example.com")
	createTestUser(t, db, "Two", "two@example.com")
}

// =========================================================================
// LOOKUP TESTS
// =========================================================================

func TestUserGetByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "Getter", "getter@example.com")

	found, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Email != "getter@example.com" {
		t.Errorf("Email = %q, want %q", found.Email, "getter@example.com")
	}
	if found.GitHubID != nil {
		t.Errorf("GitHubID = %v, want nil", *found.GitHubID)
	}
}

func TestUserGetByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), 999)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestUserGetByEmail_CaseInsensitive(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "Mixed", "Mixed.Case@example.com")

	found, err := db.GetUserByEmail(context.Background(), "mixed.case@EXAMPLE.com")
	if err != nil {
		t.Fatalf("GetUserByEmail() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %d, want %d", found.ID, created.ID)
	}
}

func TestUserGetByGitHubID(t *testing.T) {
	db := newTestDB(t)
	gh := int64(778899)
	user := &model.User{Name: "Octo", Email: "octo@example.com", PasswordHash: "x", GitHubID: &gh}
	if err := db.Insert(context.Background(), user); err != nil {
		t.Fatalf("Insert(): %v", err)
	}

	found, err := db.GetUserByGitHubID(context.Background(), gh)
	if err != nil {
		t.Fatalf("GetUserByGitHubID() error = %v", err)
	}
	if found.GitHubID == nil || *found.GitHubID != gh {
		t.Errorf("GitHubID = %v, want %d", found.GitHubID, gh)
	}

	_, err = db.GetUserByGitHubID(context.Background(), 1)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByGitHubID(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestEmailTaken(t *testing.T) {
	db := newTestDB(t)
	owner := createTestUser(t, db, "Owner", "owner@example.com")
	ctx := context.Background()

	taken, err := db.EmailTaken(ctx, "owner@example.com", 0)
	if err != nil || !taken {
		t.Errorf("EmailTaken(any) = %v, %v; want true, nil", taken, err)
	}

	taken, err = db.EmailTaken(ctx, "owner@example.com", owner.ID)
	if err != nil || taken {
		t.Errorf("EmailTaken(except owner) = %v, %v; want false, nil", taken, err)
	}

	taken, err = db.EmailTaken(ctx, "nobody@example.com", 0)
	if err != nil || taken {
		t.Errorf("EmailTaken(unused) = %v, %v; want false, nil", taken, err)
	}
}

// =========================================================================
// UPDATE TESTS
// =========================================================================

func TestUpdateUser(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "Before", "before@example.com")

	user.Name = "After"
	user.Email = "after@example.com"
	user.AvatarRef = "cv37rs3pp9olc6atsptg.png"
	user.PasswordHash = "new-hash"
	if err := db.UpdateUser(context.Background(), user); err != nil {
		t.Fatalf("UpdateUser() error = %v", err)
	}

	found, err := db.GetUserByID(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Name != "After" || found.Email != "after@example.com" {
		t.Errorf("got name=%q email=%q", found.Name, found.Email)
	}
	if found.AvatarRef != "cv37rs3pp9olc6atsptg.png" {
		t.Errorf("AvatarRef = %q", found.AvatarRef)
	}
	if found.PasswordHash != "new-hash" {
		t.Errorf("PasswordHash = %q", found.PasswordHash)
	}
}

func TestUpdateUser_EmailCollision(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "Taken", "taken@example.com")
	other := createTestUser(t, db, "Other", "other@example.com")

	other.Email = "taken@example.com"
	err := db.UpdateUser(context.Background(), other)
	if !errors.Is(err, apperror.ErrConflict) {
		t.Fatalf("UpdateUser() error = %v, want ErrConflict", err)
	}
}

func TestUpdateUser_NotFound(t *testing.T) {
	db := newTestDB(t)

	err := db.UpdateUser(context.Background(), &model.User{ID: 404, Name: "x", Email: "x@example.com"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("UpdateUser() error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// MIGRATION TESTS
// =========================================================================

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)

	// New() already migrated once; a second run must be a no-op.
	if err := db.migrate(); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
}
