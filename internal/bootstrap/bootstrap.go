// Package bootstrap seeds accounts at startup: owners from a YAML seed
// file, then customers and developers from the side files written by the
// mirror package. Every step is idempotent per email, so it runs on each
// boot.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/sakif/idea-tracker/internal/apperror"
	"github.com/sakif/idea-tracker/internal/auth"
	"github.com/sakif/idea-tracker/internal/mirror"
	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/repository"
)

// Account is a seeded user. Exactly one of Password and PasswordHash
// should be set; a plaintext password is hashed before storage.
type Account struct {
	Name         string `yaml:"name"`
	Email        string `yaml:"email"`
	Phone        string `yaml:"phone"`
	Password     string `yaml:"password"`
	PasswordHash string `yaml:"password_hash"`
}

// Seed is the seed file layout:
//
//	owners:
//	  - name: Jane Owner
//	    email: owner@example.com
//	    password_hash: $2a$12$...
type Seed struct {
	Owners []Account `yaml:"owners"`
}

// LoadSeedFile parses the seed file at path. An empty path means no
// seeding and returns an empty Seed.
func LoadSeedFile(path string) (*Seed, error) {
	if path == "" {
		return &Seed{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: reading seed file: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("bootstrap: parsing seed file %s: %w", path, err)
	}
	return &seed, nil
}

// Result counts what a Run did.
type Result struct {
	Created int
	Skipped int
}

type Bootstrapper struct {
	users     repository.UserRepository
	passwords *auth.PasswordService
	logger    *slog.Logger
}

func New(users repository.UserRepository, passwords *auth.PasswordService, logger *slog.Logger) *Bootstrapper {
	return &Bootstrapper{users: users, passwords: passwords, logger: logger}
}

// Run seeds the owners in seed, then imports the side files found in
// sideDir. An empty sideDir skips the import.
//
// Malformed entries are logged and skipped; only storage failures abort.
func (b *Bootstrapper) Run(ctx context.Context, seed *Seed, sideDir string) (Result, error) {
	var res Result

	if seed != nil {
		for _, acc := range seed.Owners {
			if err := b.ensure(ctx, acc, model.RoleOwner, &res); err != nil {
				return res, err
			}
		}
	}

	if sideDir != "" {
		for _, role := range []model.Role{model.RoleCustomer, model.RoleDeveloper} {
			path := filepath.Join(sideDir, mirror.Files[role])
			entries, err := mirror.ReadFile(path)
			if err != nil {
				return res, fmt.Errorf("bootstrap: %w", err)
			}
			for _, e := range entries {
				acc := Account{
					Name:         e.Name,
					Email:        e.Email,
					Phone:        e.Phone,
					Password:     e.Password,
					PasswordHash: e.PasswordHash,
				}
				if err := b.ensure(ctx, acc, role, &res); err != nil {
					return res, err
				}
			}
		}
	}

	b.logger.Info("bootstrap complete",
		slog.Int("created", res.Created),
		slog.Int("skipped", res.Skipped),
	)
	return res, nil
}

// ensure creates acc with role unless its email is already registered.
func (b *Bootstrapper) ensure(ctx context.Context, acc Account, role model.Role, res *Result) error {
	email := model.NormalizeEmail(acc.Email)
	if email == "" || acc.Name == "" {
		b.logger.Warn("skipping seed account without name or email", slog.String("role", string(role)))
		res.Skipped++
		return nil
	}

	_, err := b.users.GetUserByEmail(ctx, email)
	if err == nil {
		res.Skipped++
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("bootstrap: looking up %s: %w", email, err)
	}

	hash, ok := b.hashFor(acc, email)
	if !ok {
		res.Skipped++
		return nil
	}

	u := &model.User{
		Name:         acc.Name,
		Email:        email,
		Phone:        acc.Phone,
		PasswordHash: hash,
		Role:         role,
	}
	if err := b.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			res.Skipped++
			return nil
		}
		return fmt.Errorf("bootstrap: creating %s: %w", email, err)
	}

	b.logger.Info("seeded account",
		slog.Int64("userID", u.ID),
		slog.String("role", string(role)),
	)
	res.Created++
	return nil
}

// hashFor returns the bcrypt hash to store for acc. A stored hash wins;
// otherwise a legacy plaintext password is hashed.
func (b *Bootstrapper) hashFor(acc Account, email string) (string, bool) {
	switch {
	case acc.PasswordHash != "":
		if !auth.IsHash(acc.PasswordHash) {
			b.logger.Warn("skipping seed account with invalid password hash", slog.String("email", email))
			return "", false
		}
		return acc.PasswordHash, true

	case acc.Password != "":
		hash, err := b.passwords.Hash(acc.Password)
		if err != nil {
			b.logger.Warn("skipping seed account with unusable password",
				slog.String("email", email),
				slog.String("error", err.Error()),
			)
			return "", false
		}
		return hash, true
	}

	b.logger.Warn("skipping seed account without a password", slog.String("email", email))
	return "", false
}
