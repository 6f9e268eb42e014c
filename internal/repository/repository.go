// Package repository declares the persistence contracts the services
// depend on. Implementations live in sub-packages (see repository/sqlite).
//
// Each repository exposes find / insert / update / delete for one entity
// type and keeps the entity a plain struct. Implementations translate
// driver errors: a missing row becomes apperror.ErrNotFound and a unique
// constraint violation becomes apperror.ErrConflict bound to the field.
package repository

import (
	"context"

	"github.com/sakif/todolist/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

type UserRepository interface {
	Insert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByGitHubID(ctx context.Context, githubID int64) (*model.User, error)
	// EmailTaken reports whether another user (id != exceptID) holds email.
	EmailTaken(ctx context.Context, email string, exceptID int64) (bool, error)
	UpdateUser(ctx context.Context, user *model.User) error
}

type TodoRepository interface {
	Create(ctx context.Context, todo *model.Todo) error
	GetByID(ctx context.Context, id int64) (*model.Todo, error)
	// ListByUser returns userID's todos, newest first.
	ListByUser(ctx context.Context, userID int64, opts ListOptions) ([]model.Todo, error)
	CountByUser(ctx context.Context, userID int64) (int, error)
	// TitleTaken reports whether a todo other than exceptID already uses
	// title. Pass 0 to check against every todo.
	TitleTaken(ctx context.Context, title string, exceptID int64) (bool, error)
	Update(ctx context.Context, todo *model.Todo) error
	Delete(ctx context.Context, id int64) error
}
