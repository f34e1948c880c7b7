package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/idea-tracker/internal/apperror"
	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, name, email, phone, password_hash, role, created_at`

// CreateUser inserts u and fills in its ID and CreatedAt.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	u.CreatedAt = time.Now().UTC()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (name, email, phone, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		u.Name,
		u.Email,
		u.Phone,
		u.PasswordHash,
		string(u.Role),
		u.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("email", "email already registered")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", u.Email, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("sqlite: reading user id: %w", err)
	}
	u.ID = id

	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	var u model.User

	err := db.conn.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %d: %w", id, err)
	}

	return &u, nil
}

// GetUserByEmail looks up a user by exact email. Callers normalize the
// address before storing and before looking it up.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User

	err := db.conn.GetContext(ctx, &u,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email: %w", err)
	}

	return &u, nil
}

func (db *DB) ListUsers(ctx context.Context, role model.Role) ([]model.User, error) {
	users := []model.User{}

	var err error
	if role == "" {
		err = db.conn.SelectContext(ctx, &users,
			`SELECT `+userColumns+` FROM users ORDER BY id`)
	} else {
		err = db.conn.SelectContext(ctx, &users,
			`SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY id`, string(role))
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}

	return users, nil
}
