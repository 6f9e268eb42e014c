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

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops satisfying TodoRepository the build fails here, not at the
// call site in server.go.
var _ repository.TodoRepository = (*DB)(nil)

// TitleConflictMessage is shown when the UNIQUE index on todos.title
// rejects a write that slipped past the service's pre-check.
const TitleConflictMessage = "Todo title should be unique"

var todoColumns = []string{"id", "title", "body", "user_id", "created_at", "updated_at"}

func scanTodo(row scanner) (*model.Todo, error) {
	var t model.Todo
	if err := row.Scan(&t.ID, &t.Title, &t.Body, &t.UserID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func todoConflict(err error) error {
	if col, ok := uniqueViolation(err); ok && (col == "todos.title" || col == "") {
		return apperror.Conflict("title", TitleConflictMessage)
	}
	return nil
}

// Create inserts todo and fills in ID and both timestamps.
func (db *DB) Create(ctx context.Context, todo *model.Todo) error {
	ts := now()
	todo.CreatedAt = ts
	todo.UpdatedAt = ts

	result, err := db.exec(ctx, sq.Insert("todos").
		Columns("title", "body", "user_id", "created_at", "updated_at").
		Values(todo.Title, todo.Body, todo.UserID, todo.CreatedAt, todo.UpdatedAt),
	)
	if err != nil {
		if conflict := todoConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: creating todo: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading todo id: %w", err)
	}
	todo.ID = id
	return nil
}

func (db *DB) GetByID(ctx context.Context, id int64) (*model.Todo, error) {
	row, err := db.queryRow(ctx, sq.Select(todoColumns...).From("todos").Where(sq.Eq{"id": id}))
	if err != nil {
		return nil, err
	}
	todo, err := scanTodo(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("todo", id)
		}
		return nil, fmt.Errorf("sqlite: getting todo %d: %w", id, err)
	}
	return todo, nil
}

// ListByUser orders by created_at DESC; id DESC breaks ties between rows
// written within the same clock tick.
func (db *DB) ListByUser(ctx context.Context, userID int64, opts repository.ListOptions) ([]model.Todo, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 8
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query, args, err := sq.Select(todoColumns...).
		From("todos").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: building list query: %w", err)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing todos for user %d: %w", userID, err)
	}
	defer rows.Close()

	todos := make([]model.Todo, 0, limit)
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning todo row: %w", err)
		}
		todos = append(todos, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating todos: %w", err)
	}
	return todos, nil
}

func (db *DB) CountByUser(ctx context.Context, userID int64) (int, error) {
	row, err := db.queryRow(ctx, sq.Select("COUNT(*)").From("todos").Where(sq.Eq{"user_id": userID}))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting todos for user %d: %w", userID, err)
	}
	return n, nil
}

func (db *DB) TitleTaken(ctx context.Context, title string, exceptID int64) (bool, error) {
	q := sq.Select("1").From("todos").Where(sq.Eq{"title": title})
	if exceptID != 0 {
		q = q.Where(sq.NotEq{"id": exceptID})
	}
	taken, err := db.exists(ctx, q)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking title %q: %w", title, err)
	}
	return taken, nil
}

// Update writes title and body. user_id is deliberately absent from the
// SET list: ownership never changes after creation.
func (db *DB) Update(ctx context.Context, todo *model.Todo) error {
	todo.UpdatedAt = now()

	result, err := db.exec(ctx, sq.Update("todos").
		Set("title", todo.Title).
		Set("body", todo.Body).
		Set("updated_at", todo.UpdatedAt).
		Where(sq.Eq{"id": todo.ID}),
	)
	if err != nil {
		if conflict := todoConflict(err); conflict != nil {
			return conflict
		}
		return fmt.Errorf("sqlite: updating todo %d: %w", todo.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("todo", todo.ID)
	}
	return nil
}

func (db *DB) Delete(ctx context.Context, id int64) error {
	result, err := db.exec(ctx, sq.Delete("todos").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %d: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("todo", id)
	}
	return nil
}
