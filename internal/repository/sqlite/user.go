package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

var userColumns = []string{
	"id", "name", "email", "password_hash", "avatar_ref", "github_id", "created_at", "updated_at",
}

func scanUser(row scanner) (*model.User, error) {
	var (
		u        model.User
		githubID sql.NullInt64
	)
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.AvatarRef,
		&githubID,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	return &u, nil
}

// userConflict maps a UNIQUE failure on the users table to a field error.
func userConflict(err error) error {
	col, ok := uniqueViolation(err)
	if !ok {
		return nil
	}
	if col == "users.github_id" {
		return apperror.Conflict("github_id", "This GitHub account is already linked.")
	}
	return apperror.Conflict("email", "The email has already been taken.")
}

// Insert creates a user and fills in ID and timestamps. An empty AvatarRef
// is stored as the placeholder.
func (db *DB) Insert(ctx context.Context, user *model.User) error {
	if user.AvatarRef == "" {
		user.AvatarRef = model.DefaultAvatar
	}
	ts := now()
	user.CreatedAt = ts
	user.UpdatedAt = ts

	result, err := db.exec(ctx, sq.Insert("users").
		Columns("name", "email", "password_hash", "avatar_ref", "github_id", "created_at", "updated_at").
		Values(user.Name, user.Email, user.PasswordHash, user.AvatarRef, user.GitHubID, user.CreatedAt, user.UpdatedAt),
	)
	if err != nil {
		if conflict := userConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Email, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	user.ID = id
	return nil
}

func (db *DB) getUserWhere(ctx context.Context, where sq.Eq, describe any) (*model.User, error) {
	row, err := db.queryRow(ctx, sq.Select(userColumns...).From("users").Where(where))
	if err != nil {
		return nil, err
	}
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", describe)
		}
		return nil, fmt.Errorf("sqlite: getting user %v: %w", describe, err)
	}
	return u, nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return db.getUserWhere(ctx, sq.Eq{"id": id}, id)
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUserWhere(ctx, sq.Eq{"email": email}, email)
}

func (db *DB) GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error) {
	return db.getUserWhere(ctx, sq.Eq{"github_id": githubID}, githubID)
}

func (db *DB) EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error) {
	q := sq.Select("1").From("users").Where(sq.Eq{"email": email})
	if exceptID != 0 {
		q = q.Where(sq.NotEq{"id": exceptID})
	}
	taken, err := db.exists(ctx, q)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking email %q: %w", email, err)
	}
	return taken, nil
}

// UpdateUser writes every mutable column of user in one statement.
func (db *DB) UpdateUser(ctx context.Context, user *model.User) error {
	user.UpdatedAt = now()

	result, err := db.exec(ctx, sq.Update("users").
		Set("name", user.Name).
		Set("email", user.Email).
		Set("password_hash", user.PasswordHash).
		Set("avatar_ref", user.AvatarRef).
		Set("github_id", user.GitHubID).
		Set("updated_at", user.UpdatedAt).
		Where(sq.Eq{"id": user.ID}),
	)
	if err != nil {
		if conflict := userConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: updating user %d: %w", user.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("user", user.ID)
	}
	return nil
}
