// Package service contains the business logic layer of the application.
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → authorizes, validates, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Services take repository interfaces, never concrete stores, and return
// apperror values that the handler layer translates to status codes.
// Every method receives the caller's model.Identity; authorization is
// decided here through the policy package, not in the handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/sakif/idea-tracker/internal/apperror"
	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/policy"
	"github.com/sakif/idea-tracker/internal/repository"
)

// Validation limits, counted in characters.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 10000
	MaxMessageLength     = 5000
)

// IdeaService implements the idea lifecycle: submit, list, view, update
// status and assignment, comment, and per-status counts.
type IdeaService struct {
	ideas   repository.IdeaRepository
	updates repository.UpdateRepository
	users   repository.UserRepository
	logger  *slog.Logger

	// strict restricts detail reads, comments and developer updates to
	// ideas inside the caller's visible set.
	strict bool
}

func NewIdeaService(
	ideas repository.IdeaRepository,
	updates repository.UpdateRepository,
	users repository.UserRepository,
	strict bool,
	logger *slog.Logger,
) *IdeaService {
	return &IdeaService{
		ideas:   ideas,
		updates: updates,
		users:   users,
		strict:  strict,
		logger:  logger,
	}
}

// UpdateIdeaInput carries the optional fields of an idea update.
//
// SetAssignee distinguishes "assigned_to absent" (leave it alone) from
// "assigned_to: null" (unassign). AssigneeID is only read when
// SetAssignee is true.
type UpdateIdeaInput struct {
	Status      *string
	SetAssignee bool
	AssigneeID  *int64
	Version     *int64
}

// Create submits a new idea on behalf of a customer. The idea starts
// pending and unassigned.
func (s *IdeaService) Create(ctx context.Context, caller model.Identity, title, description string) (*model.Idea, error) {
	if !policy.Allows(caller.Role, policy.ActionCreateIdea) {
		return nil, apperror.Forbidden("only customers can submit ideas")
	}

	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)

	if title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return nil, apperror.ValidationFailed("title",
			fmt.Sprintf("title must be %d characters or less", MaxTitleLength))
	}
	if description == "" {
		return nil, apperror.ValidationFailed("description", "description is required")
	}
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return nil, apperror.ValidationFailed("description",
			fmt.Sprintf("description must be %d characters or less", MaxDescriptionLength))
	}

	idea := &model.Idea{
		Title:       title,
		Description: description,
		UserID:      caller.UserID,
	}
	if err := s.ideas.CreateIdea(ctx, idea); err != nil {
		s.logger.Error("failed to create idea",
			slog.Int64("userID", caller.UserID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating idea: %w", err)
	}

	s.logger.Info("idea created",
		slog.Int64("id", idea.ID),
		slog.Int64("userID", caller.UserID),
	)

	// Re-read so the response carries the submitter's details.
	created, err := s.ideas.GetIdea(ctx, idea.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading idea %d: %w", idea.ID, err)
	}
	return created, nil
}

// List returns the ideas visible to caller, newest first.
func (s *IdeaService) List(ctx context.Context, caller model.Identity) ([]model.Idea, error) {
	if !policy.Allows(caller.Role, policy.ActionListIdeas) {
		return nil, apperror.Forbidden("you are not allowed to list ideas")
	}

	ideas, err := s.ideas.ListIdeas(ctx, policy.ScopeFor(caller))
	if err != nil {
		s.logger.Error("failed to list ideas", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing ideas: %w", err)
	}
	return ideas, nil
}

// Get returns an idea with its update trail.
func (s *IdeaService) Get(ctx context.Context, caller model.Identity, id int64) (*model.IdeaDetail, error) {
	idea, err := s.visibleIdea(ctx, caller, policy.ActionViewIdea, id)
	if err != nil {
		return nil, err
	}

	updates, err := s.updates.ListUpdates(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing updates for idea %d: %w", id, err)
	}

	return &model.IdeaDetail{Idea: *idea, Updates: updates}, nil
}

// Update changes an idea's status and, for owners, its assignee.
//
// A developer's assigned_to is ignored. Supplying neither field still
// bumps the version and updated_at. The write is conditional on the
// version read here (or the one the client sent), so a concurrent change
// surfaces as apperror.ErrStale instead of being overwritten.
func (s *IdeaService) Update(ctx context.Context, caller model.Identity, id int64, in UpdateIdeaInput) (*model.Idea, error) {
	if !policy.Allows(caller.Role, policy.ActionUpdateStatus) {
		return nil, apperror.Forbidden("only owners and developers can update ideas")
	}

	idea, err := s.visibleIdea(ctx, caller, policy.ActionUpdateStatus, id)
	if err != nil {
		return nil, err
	}

	if in.Version != nil && *in.Version != idea.Version {
		return nil, apperror.Stale("idea", id)
	}
	expected := idea.Version

	if in.Status != nil {
		status, ok := model.ParseStatus(*in.Status)
		if !ok {
			return nil, apperror.ValidationFailed("status",
				"status must be one of pending, in_progress, completed")
		}
		idea.Status = status
	}

	if in.SetAssignee {
		if policy.Allows(caller.Role, policy.ActionReassign) {
			if err := s.checkAssignee(ctx, in.AssigneeID); err != nil {
				return nil, err
			}
			idea.AssignedTo = in.AssigneeID
		} else {
			s.logger.Debug("ignoring assigned_to from non-owner",
				slog.Int64("ideaID", id),
				slog.Int64("userID", caller.UserID),
				slog.String("role", string(caller.Role)),
			)
		}
	}

	if err := s.ideas.UpdateIdea(ctx, idea, expected); err != nil {
		if errors.Is(err, apperror.ErrStale) || errors.Is(err, apperror.ErrValidation) {
			return nil, err
		}
		s.logger.Error("failed to update idea",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating idea %d: %w", id, err)
	}

	s.logger.Info("idea updated",
		slog.Int64("id", id),
		slog.Int64("userID", caller.UserID),
		slog.String("status", string(idea.Status)),
		slog.Int64("version", idea.Version),
	)

	return idea, nil
}

// checkAssignee verifies a non-nil assignee is an existing developer.
func (s *IdeaService) checkAssignee(ctx context.Context, assignee *int64) error {
	if assignee == nil {
		return nil
	}

	u, err := s.users.GetUserByID(ctx, *assignee)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return apperror.ValidationFailed("assigned_to",
				fmt.Sprintf("no user with id %d", *assignee))
		}
		return fmt.Errorf("looking up assignee %d: %w", *assignee, err)
	}
	if u.Role != model.RoleDeveloper {
		return apperror.ValidationFailed("assigned_to",
			fmt.Sprintf("user %d is not a developer", *assignee))
	}
	return nil
}

// AddUpdate appends a comment to an idea. The idea itself is not
// modified.
func (s *IdeaService) AddUpdate(ctx context.Context, caller model.Identity, ideaID int64, message string) (*model.Update, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperror.ValidationFailed("message", "message is required")
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return nil, apperror.ValidationFailed("message",
			fmt.Sprintf("message must be %d characters or less", MaxMessageLength))
	}

	if _, err := s.visibleIdea(ctx, caller, policy.ActionComment, ideaID); err != nil {
		return nil, err
	}

	author, err := s.users.GetUserByID(ctx, caller.UserID)
	if err != nil {
		return nil, fmt.Errorf("looking up author %d: %w", caller.UserID, err)
	}

	u := &model.Update{
		IdeaID:   ideaID,
		UserID:   caller.UserID,
		Message:  message,
		UserName: author.Name,
		UserRole: author.Role,
	}
	if err := s.updates.CreateUpdate(ctx, u); err != nil {
		s.logger.Error("failed to add update",
			slog.Int64("ideaID", ideaID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("adding update to idea %d: %w", ideaID, err)
	}

	s.logger.Info("update added",
		slog.Int64("id", u.ID),
		slog.Int64("ideaID", ideaID),
		slog.Int64("userID", caller.UserID),
	)

	return u, nil
}

// Stats counts the caller's visible ideas per status.
func (s *IdeaService) Stats(ctx context.Context, caller model.Identity) (*model.Stats, error) {
	if !policy.Allows(caller.Role, policy.ActionStats) {
		return nil, apperror.Forbidden("you are not allowed to view stats")
	}

	counts, err := s.ideas.CountIdeasByStatus(ctx, policy.ScopeFor(caller))
	if err != nil {
		return nil, fmt.Errorf("counting ideas: %w", err)
	}

	st := &model.Stats{
		Pending:    counts[model.StatusPending],
		InProgress: counts[model.StatusInProgress],
		Completed:  counts[model.StatusCompleted],
	}
	st.Total = st.Pending + st.InProgress + st.Completed
	return st, nil
}

// visibleIdea loads an idea and, in strict mode, rejects callers whose
// scope does not include it. Owners always pass.
func (s *IdeaService) visibleIdea(ctx context.Context, caller model.Identity, action policy.Action, id int64) (*model.Idea, error) {
	if !policy.Allows(caller.Role, action) {
		return nil, apperror.Forbidden("you are not allowed to do that")
	}

	idea, err := s.ideas.GetIdea(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.strict && !policy.CanSee(caller, idea) {
		return nil, apperror.Forbidden("you do not have access to this idea")
	}
	return idea, nil
}
