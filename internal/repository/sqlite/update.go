package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/repository"
)

var _ repository.UpdateRepository = (*DB)(nil)

// CreateUpdate appends a note to an idea. Updates are never modified
// afterwards.
func (db *DB) CreateUpdate(ctx context.Context, u *model.Update) error {
	u.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO updates (idea_id, user_id, message, created_at)
		 VALUES (?, ?, ?, ?)`,
		u.IdeaID,
		u.UserID,
		u.Message,
		u.CreatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return foreignKeyError("user_id")
		}
		return fmt.Errorf("sqlite: creating update for idea %d: %w", u.IdeaID, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading update id: %w", err)
	}
	u.ID = id

	return nil
}

func (db *DB) ListUpdates(ctx context.Context, ideaID int64) ([]model.Update, error) {
	updates := []model.Update{}

	err := db.conn.SelectContext(ctx, &updates,
		`SELECT up.id, up.idea_id, up.user_id, up.message, up.created_at,
		        u.name AS user_name, u.role AS user_role
		 FROM updates up
		 JOIN users u ON u.id = up.user_id
		 WHERE up.idea_id = ?
		 ORDER BY up.created_at DESC, up.id DESC`,
		ideaID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing updates for idea %d: %w", ideaID, err)
	}

	return updates, nil
}
