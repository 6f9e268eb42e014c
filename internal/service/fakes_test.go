package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/todolist/internal/apperror"
	"github.com/sakif/todolist/internal/model"
	"github.com/sakif/todolist/internal/repository"
)

// =========================================================================
// FAKES
// =========================================================================
//
// In-memory implementations of the repository and storage interfaces.
// Hand-written fakes keep the tests readable: what the fake does is right
// here, and failures can be injected through the *Err fields.

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct {
	users  map[int64]*model.User
	nextID int64

	updateErr error
	updates   int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int64]*model.User)}
}

func (f *fakeUserRepo) emailOwner(email string) (*model.User, bool) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return nil, false
}

func (f *fakeUserRepo) Insert(_ context.Context, user *model.User) error {
	if _, taken := f.emailOwner(user.Email); taken {
		return apperror.Conflict("email", "The email has already been taken.")
	}
	if user.AvatarRef == "" {
		user.AvatarRef = model.DefaultAvatar
	}
	f.nextID++
	user.ID = f.nextID
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	u, ok := f.emailOwner(email)
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByGitHubID(_ context.Context, githubID int64) (*model.User, error) {
	for _, u := range f.users {
		if u.GitHubID != nil && *u.GitHubID == githubID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperror.NotFound("user", githubID)
}

func (f *fakeUserRepo) EmailTaken(_ context.Context, email string, exceptID int64) (bool, error) {
	u, ok := f.emailOwner(email)
	return ok && u.ID != exceptID, nil
}

func (f *fakeUserRepo) UpdateUser(_ context.Context, user *model.User) error {
	f.updates++
	if f.updateErr != nil {
		return f.updateErr
	}
	if _, ok := f.users[user.ID]; !ok {
		return apperror.NotFound("user", user.ID)
	}
	if owner, taken := f.emailOwner(user.Email); taken && owner.ID != user.ID {
		return apperror.Conflict("email", "The email has already been taken.")
	}
	user.UpdatedAt = time.Now().UTC()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

type fakeTodoRepo struct {
	todos  map[int64]*model.Todo
	nextID int64
	clock  time.Time

	titleTakenErr error
}

func newFakeTodoRepo() *fakeTodoRepo {
	return &fakeTodoRepo{
		todos: make(map[int64]*model.Todo),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick hands out strictly increasing timestamps so ordering is testable.
func (f *fakeTodoRepo) tick() time.Time {
	f.clock = f.clock.Add(time.Minute)
	return f.clock
}

func (f *fakeTodoRepo) Create(_ context.Context, todo *model.Todo) error {
	for _, t := range f.todos {
		if strings.EqualFold(t.Title, todo.Title) {
			return apperror.Conflict("title", TitleUniqueMessage)
		}
	}
	f.nextID++
	todo.ID = f.nextID
	todo.CreatedAt = f.tick()
	todo.UpdatedAt = todo.CreatedAt
	stored := *todo
	f.todos[todo.ID] = &stored
	return nil
}

func (f *fakeTodoRepo) GetByID(_ context.Context, id int64) (*model.Todo, error) {
	t, ok := f.todos[id]
	if !ok {
		return nil, apperror.NotFound("todo", id)
	}
	copied := *t
	return &copied, nil
}

func (f *fakeTodoRepo) ListByUser(_ context.Context, userID int64, opts repository.ListOptions) ([]model.Todo, error) {
	var todos []model.Todo
	for _, t := range f.todos {
		if t.UserID == userID {
			todos = append(todos, *t)
		}
	}
	sort.Slice(todos, func(i, j int) bool { return todos[i].CreatedAt.After(todos[j].CreatedAt) })

	if opts.Offset >= len(todos) {
		return []model.Todo{}, nil
	}
	todos = todos[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(todos) {
		todos = todos[:opts.Limit]
	}
	return todos, nil
}

func (f *fakeTodoRepo) CountByUser(_ context.Context, userID int64) (int, error) {
	n := 0
	for _, t := range f.todos {
		if t.UserID == userID {
			n++
		}
	}
	return n, nil
}

func (f *fakeTodoRepo) TitleTaken(_ context.Context, title string, exceptID int64) (bool, error) {
	if f.titleTakenErr != nil {
		return false, f.titleTakenErr
	}
	for _, t := range f.todos {
		if t.ID != exceptID && strings.EqualFold(t.Title, title) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTodoRepo) Update(_ context.Context, todo *model.Todo) error {
	stored, ok := f.todos[todo.ID]
	if !ok {
		return apperror.NotFound("todo", todo.ID)
	}
	stored.Title = todo.Title
	stored.Body = todo.Body
	stored.UpdatedAt = f.tick()
	todo.UpdatedAt = stored.UpdatedAt
	return nil
}

func (f *fakeTodoRepo) Delete(_ context.Context, id int64) error {
	if _, ok := f.todos[id]; !ok {
		return apperror.NotFound("todo", id)
	}
	delete(f.todos, id)
	return nil
}

// fakeStore is an in-memory storage.Store.
type fakeStore struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	putErr    error
	deleteErr error
	deleted   []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: make(map[string][]byte)}
}

func (f *fakeStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.putErr != nil {
		return f.putErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.blobs[key] = data
	return nil
}

func (f *fakeStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[key]
	if !ok {
		return nil, apperror.NotFound("blob", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (f *fakeStore) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, key)
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.blobs, key)
	return nil
}

func (f *fakeStore) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.blobs))
	for k := range f.blobs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var errDatabaseDown = errors.New("database is on fire")
