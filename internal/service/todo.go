// Package service contains the business rules of the application.
//
// THE THREE LAYERS:
//
//	Handler (HTTP)     → decodes forms, picks the redirect
//	Service (business) → validates, enforces rules, orchestrates
//	Repository (data)  → reads/writes the database
//
// Services take plain Go values (never *http.Request) and return domain
// errors from package apperror; the handler decides what status code or
// redirect each one becomes. Every dependency is an interface or a small
// struct passed to the constructor, so tests wire in in-memory fakes.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
	"github.com/sakif/todolist/internal/validate"
)

const (
	// TodosPerPage is the listing page size.
	TodosPerPage = 8

	TitleUniqueMessage = "Todo title should be unique"

	StatusTodoCreated = "Created a new Todo!"
	StatusTodoUpdated = "Updated the selected Todo!"
	StatusTodoDeleted = "Deleted the selected Todo!"
)

// TodoInput is the submitted create/edit form.
type TodoInput struct {
	Title string
	Body  string
}

// TodoResult pairs the saved todo with the status message to flash.
type TodoResult struct {
	Todo   *model.Todo
	Status string
}

// TodoService handles business logic for to-do items.
//
// OWNERSHIP:
// Listing is scoped to the signed-in user. Get, Update and Delete take only
// an id and do not check who owns the record: any signed-in user who knows
// an id can open, edit or delete it.
type TodoService struct {
	repo   repository.TodoRepository
	logger *slog.Logger
}

func NewTodoService(repo repository.TodoRepository, logger *slog.Logger) *TodoService {
	return &TodoService{repo: repo, logger: logger}
}

// rules builds the create/update rule set. Titles are unique across every
// user's todos; exceptID lets an update keep its own title.
func (s *TodoService) rules(exceptID int64) validate.RuleSet {
	titleFree := validate.UniqueFunc(func(ctx context.Context, title string) (bool, error) {
		return s.repo.TitleTaken(ctx, title, exceptID)
	})

	return validate.RuleSet{
		validate.Field("title",
			validate.Required(), validate.String(), validate.Unique(titleFree),
			validate.Min(2), validate.Max(191)),
		validate.Field("body",
			validate.Required(), validate.String(), validate.Min(5), validate.Max(1000)),
	}
}

var todoMessages = validate.Messages{
	"title.unique": TitleUniqueMessage,
}

func (s *TodoService) check(ctx context.Context, in TodoInput, exceptID int64) error {
	return validate.Validate(ctx, s.rules(exceptID), validate.Input{
		Values: map[string]string{"title": in.Title, "body": in.Body},
	}, todoMessages)
}

// List returns one page of principal's todos, newest first. Pages below 1
// are treated as page 1; a page past the end is empty.
func (s *TodoService) List(ctx context.Context, principal *model.User, page int) (*model.Page[model.Todo], error) {
	if page < 1 {
		page = 1
	}

	total, err := s.repo.CountByUser(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("counting todos: %w", err)
	}

	todos, err := s.repo.ListByUser(ctx, principal.ID, repository.ListOptions{
		Limit:  TodosPerPage,
		Offset: (page - 1) * TodosPerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("listing todos: %w", err)
	}

	return model.NewPage(todos, page, TodosPerPage, total), nil
}

// Get returns the todo with id, or an error matching apperror.ErrNotFound.
func (s *TodoService) Get(ctx context.Context, id int64) (*model.Todo, error) {
	return s.repo.GetByID(ctx, id)
}

// Create validates in and saves it as a new todo owned by principal.
func (s *TodoService) Create(ctx context.Context, principal *model.User, in TodoInput) (*TodoResult, error) {
	if err := s.check(ctx, in, 0); err != nil {
		return nil, err
	}

	todo := &model.Todo{
		Title:  in.Title,
		Body:   in.Body,
		UserID: principal.ID,
	}
	if err := s.repo.Create(ctx, todo); err != nil {
		return nil, fmt.Errorf("creating todo: %w", err)
	}

	s.logger.Info("todo created",
		slog.Int64("id", todo.ID),
		slog.Int64("userID", todo.UserID),
	)

	return &TodoResult{Todo: todo, Status: StatusTodoCreated}, nil
}

// Update validates in first and only then looks the todo up, so invalid
// input is reported even for an id that does not exist. Only title and
// body change.
func (s *TodoService) Update(ctx context.Context, id int64, in TodoInput) (*TodoResult, error) {
	if err := s.check(ctx, in, id); err != nil {
		return nil, err
	}

	todo, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	todo.Title = in.Title
	todo.Body = in.Body
	if err := s.repo.Update(ctx, todo); err != nil {
		return nil, fmt.Errorf("updating todo %d: %w", id, err)
	}

	s.logger.Info("todo updated", slog.Int64("id", todo.ID))

	return &TodoResult{Todo: todo, Status: StatusTodoUpdated}, nil
}

// Delete removes the todo with id and returns the status to flash.
func (s *TodoService) Delete(ctx context.Context, id int64) (string, error) {
	if err := s.repo.Delete(ctx, id); err != nil {
		return "", err
	}

	s.logger.Info("todo deleted", slog.Int64("id", id))

	return StatusTodoDeleted, nil
}
