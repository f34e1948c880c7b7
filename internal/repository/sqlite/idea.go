package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sakif/idea-tracker/internal/apperror"
	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/repository"
)

var _ repository.IdeaRepository = (*DB)(nil)

// ideaSelect joins the submitter so list and detail views can show who
// raised the idea without a second query.
const ideaSelect = `
	SELECT i.id, i.title, i.description, i.status, i.user_id, i.assigned_to,
	       i.version, i.created_at, i.updated_at,
	       u.name AS user_name, u.email AS user_email, u.phone AS user_phone
	FROM ideas i
	JOIN users u ON u.id = i.user_id`

// where renders f as a SQL predicate over the "i" alias.
func where(f repository.IdeaFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.SubmitterID != nil {
		clauses = append(clauses, "i.user_id = ?")
		args = append(args, *f.SubmitterID)
	}
	if f.AssigneeID != nil {
		clauses = append(clauses, "i.assigned_to = ?")
		args = append(args, *f.AssigneeID)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// nullableID maps an optional id to a driver value: nil becomes NULL.
func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// CreateIdea inserts idea with status pending and version 1, and fills
// in its ID and timestamps.
func (db *DB) CreateIdea(ctx context.Context, idea *model.Idea) error {
	now := time.Now().UTC()
	idea.CreatedAt = now
	idea.UpdatedAt = now
	idea.Version = 1
	if idea.Status == "" {
		idea.Status = model.StatusPending
	}

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO ideas (title, description, status, user_id, assigned_to, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		idea.Title,
		idea.Description,
		string(idea.Status),
		idea.UserID,
		nullableID(idea.AssignedTo),
		idea.Version,
		idea.CreatedAt,
		idea.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return foreignKeyError("user_id")
		}
		return fmt.Errorf("sqlite: creating idea: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading idea id: %w", err)
	}
	idea.ID = id

	return nil
}

func (db *DB) GetIdea(ctx context.Context, id int64) (*model.Idea, error) {
	var idea model.Idea

	err := db.conn.GetContext(ctx, &idea, ideaSelect+` WHERE i.id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("idea", id)
		}
		return nil, fmt.Errorf("sqlite: getting idea %d: %w", id, err)
	}

	return &idea, nil
}

// ListIdeas returns every idea matching f, newest first. There is no
// pagination.
func (db *DB) ListIdeas(ctx context.Context, f repository.IdeaFilter) ([]model.Idea, error) {
	cond, args := where(f)

	ideas := []model.Idea{}
	err := db.conn.SelectContext(ctx, &ideas,
		ideaSelect+cond+` ORDER BY i.created_at DESC, i.id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing ideas: %w", err)
	}

	return ideas, nil
}

// UpdateIdea persists status and assignment guarded by expectedVersion.
//
// The version check and the write happen in one statement, so two
// concurrent updates that read the same version cannot both succeed.
func (db *DB) UpdateIdea(ctx context.Context, idea *model.Idea, expectedVersion int64) error {
	now := time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE ideas
		 SET status = ?, assigned_to = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(idea.Status),
		nullableID(idea.AssignedTo),
		now,
		idea.ID,
		expectedVersion,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return foreignKeyError("assigned_to")
		}
		return fmt.Errorf("sqlite: updating idea %d: %w", idea.ID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		var exists int
		err := db.conn.GetContext(ctx, &exists, `SELECT COUNT(*) FROM ideas WHERE id = ?`, idea.ID)
		if err != nil {
			return fmt.Errorf("sqlite: checking idea %d: %w", idea.ID, err)
		}
		if exists == 0 {
			return apperror.NotFound("idea", idea.ID)
		}
		return apperror.Stale("idea", idea.ID)
	}

	idea.Version = expectedVersion + 1
	idea.UpdatedAt = now
	return nil
}

// CountIdeasByStatus groups the ideas matching f by status.
// Statuses with no ideas are absent from the map.
func (db *DB) CountIdeasByStatus(ctx context.Context, f repository.IdeaFilter) (map[model.Status]int, error) {
	cond, args := where(f)

	var rows []struct {
		Status model.Status `db:"status"`
		N      int          `db:"n"`
	}
	err := db.conn.SelectContext(ctx, &rows,
		`SELECT i.status AS status, COUNT(*) AS n FROM ideas i`+cond+` GROUP BY i.status`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: counting ideas: %w", err)
	}

	counts := make(map[model.Status]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}
