package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/sakif/idea-tracker/internal/apperror"
	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/policy"
	"github.com/sakif/idea-tracker/internal/repository"
)

// =========================================================================
// FAKE STORE
// =========================================================================

// fakeStore is an in-memory implementation of all three repositories.
// It mirrors the SQLite semantics the services rely on: NotFound on
// missing rows, Conflict on duplicate email, Stale on version mismatch.
type fakeStore struct {
	users   map[int64]*model.User
	ideas   map[int64]*model.Idea
	updates []model.Update
	nextID  int64

	// set to a non-nil error to simulate a database failure
	createUserErr error
}

var (
	_ repository.UserRepository   = (*fakeStore)(nil)
	_ repository.IdeaRepository   = (*fakeStore)(nil)
	_ repository.UpdateRepository = (*fakeStore)(nil)
)

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: make(map[int64]*model.User),
		ideas: make(map[int64]*model.Idea),
	}
}

func (f *fakeStore) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	if f.createUserErr != nil {
		return f.createUserErr
	}
	for _, existing := range f.users {
		if existing.Email == u.Email {
			return apperror.Conflict("email", "email already registered")
		}
	}
	u.ID = f.id()
	u.CreatedAt = time.Now().UTC()
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	out := *u
	return &out, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (f *fakeStore) ListUsers(_ context.Context, role model.Role) ([]model.User, error) {
	out := []model.User{}
	for _, u := range f.users {
		if role == "" || u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeStore) CreateIdea(_ context.Context, idea *model.Idea) error {
	if _, ok := f.users[idea.UserID]; !ok {
		return apperror.ValidationFailed("user_id", "unknown user")
	}
	now := time.Now().UTC()
	idea.ID = f.id()
	idea.Status = model.StatusPending
	idea.Version = 1
	idea.CreatedAt = now
	idea.UpdatedAt = now
	stored := *idea
	f.ideas[idea.ID] = &stored
	return nil
}

func (f *fakeStore) GetIdea(_ context.Context, id int64) (*model.Idea, error) {
	idea, ok := f.ideas[id]
	if !ok {
		return nil, apperror.NotFound("idea", id)
	}
	out := *idea
	if u, ok := f.users[idea.UserID]; ok {
		out.UserName, out.UserEmail, out.UserPhone = u.Name, u.Email, u.Phone
	}
	return &out, nil
}

func (f *fakeStore) ListIdeas(ctx context.Context, filter repository.IdeaFilter) ([]model.Idea, error) {
	out := []model.Idea{}
	for id := range f.ideas {
		idea, _ := f.GetIdea(ctx, id)
		if policy.Matches(filter, idea) {
			out = append(out, *idea)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeStore) UpdateIdea(_ context.Context, idea *model.Idea, expectedVersion int64) error {
	stored, ok := f.ideas[idea.ID]
	if !ok {
		return apperror.NotFound("idea", idea.ID)
	}
	if stored.Version != expectedVersion {
		return apperror.Stale("idea", idea.ID)
	}
	stored.Status = idea.Status
	stored.AssignedTo = idea.AssignedTo
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	idea.Version = stored.Version
	idea.UpdatedAt = stored.UpdatedAt
	return nil
}

func (f *fakeStore) CountIdeasByStatus(ctx context.Context, filter repository.IdeaFilter) (map[model.Status]int, error) {
	ideas, _ := f.ListIdeas(ctx, filter)
	counts := map[model.Status]int{}
	for _, idea := range ideas {
		counts[idea.Status]++
	}
	return counts, nil
}

func (f *fakeStore) CreateUpdate(_ context.Context, u *model.Update) error {
	if _, ok := f.ideas[u.IdeaID]; !ok {
		return errors.New("fake: foreign key violation")
	}
	u.ID = f.id()
	u.CreatedAt = time.Now().UTC()
	f.updates = append(f.updates, *u)
	return nil
}

func (f *fakeStore) ListUpdates(_ context.Context, ideaID int64) ([]model.Update, error) {
	out := []model.Update{}
	for i := len(f.updates) - 1; i >= 0; i-- {
		if f.updates[i].IdeaID == ideaID {
			out = append(out, f.updates[i])
		}
	}
	return out, nil
}

// addUser stores a user directly, bypassing registration rules (owners
// cannot self-register).
func (f *fakeStore) addUser(name string, role model.Role) model.Identity {
	u := &model.User{Name: name, Email: name + "@example.com", Role: role, PasswordHash: "x"}
	_ = f.CreateUser(context.Background(), u)
	return model.Identity{UserID: u.ID, Role: role}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
