// Package repository declares the storage contracts used by the service
// layer. Implementations live in subpackages (see repository/sqlite).
package repository

import (
	"context"

	"github.com/sakif/idea-tracker/internal/model"
)

// IdeaFilter narrows idea queries to a caller's visible set.
// A nil field means "no constraint"; the zero value matches every idea.
type IdeaFilter struct {
	SubmitterID *int64 // ideas.user_id
	AssigneeID  *int64 // ideas.assigned_to
}

type UserRepository interface {
	// CreateUser inserts u and sets its ID and CreatedAt. A duplicate
	// email returns an apperror.ErrConflict.
	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// ListUsers returns every user, or only those with the given role
	// when role is non-empty.
	ListUsers(ctx context.Context, role model.Role) ([]model.User, error)
}

type IdeaRepository interface {
	CreateIdea(ctx context.Context, idea *model.Idea) error
	GetIdea(ctx context.Context, id int64) (*model.Idea, error)
	ListIdeas(ctx context.Context, f IdeaFilter) ([]model.Idea, error)
	// UpdateIdea writes status and assignment only if the stored version
	// still equals expectedVersion, then bumps the version and
	// updated_at on idea. A mismatch returns apperror.ErrStale.
	UpdateIdea(ctx context.Context, idea *model.Idea, expectedVersion int64) error
	CountIdeasByStatus(ctx context.Context, f IdeaFilter) (map[model.Status]int, error)
}

type UpdateRepository interface {
	CreateUpdate(ctx context.Context, u *model.Update) error
	// ListUpdates returns an idea's updates newest first.
	ListUpdates(ctx context.Context, ideaID int64) ([]model.Update, error)
}
