// Package mirror keeps a JSON copy of self-registered accounts in
// per-role side files (customers.json, developers.json) alongside the
// database. The bootstrap package reads the same files back at startup.
//
// Entries hold the bcrypt hash only; legacy plaintext found on rewrite is
// hashed before the file is written back. Each append rewrites the whole file
// through a temp file and rename, under a mutex, so concurrent
// registrations cannot interleave or lose entries.
package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/moby/sys/atomicwriter"

	"github.com/sakif/idea-tracker/internal/model"
)

// Entry is one account as written to a side file. It has no plaintext
// password field, so nothing written by Append can carry one.
type Entry struct {
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at,omitzero"`
}

// Record is one account as read from a side file. Files written by older
// deployments stored the plaintext password; Password holds it so the
// importer and Append can hash it.
type Record struct {
	Entry
	Password string `json:"password,omitempty"`
}

// Hasher turns a plaintext password into a stored hash.
// *auth.PasswordService satisfies it.
type Hasher interface {
	Hash(plaintext string) (string, error)
}

// Files lists the side file for every self-registrable role.
var Files = map[model.Role]string{
	model.RoleCustomer:  "customers.json",
	model.RoleDeveloper: "developers.json",
}

// Writer appends registrations to the side files under dir.
type Writer struct {
	dir    string
	hasher Hasher
	logger *slog.Logger

	mu sync.Mutex
}

func New(dir string, hasher Hasher, logger *slog.Logger) *Writer {
	return &Writer{dir: dir, hasher: hasher, logger: logger}
}

// Path returns the side file for role, or "" if the role has none.
func (w *Writer) Path(role model.Role) string {
	name, ok := Files[role]
	if !ok {
		return ""
	}
	return filepath.Join(w.dir, name)
}

// Append adds u to its role's side file. Roles without a side file
// (owners) are ignored.
func (w *Writer) Append(ctx context.Context, u *model.User) error {
	path := w.Path(u.Role)
	if path == "" {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	records, err := ReadFile(path)
	if err != nil {
		return err
	}

	entries, err := w.scrub(path, records)
	if err != nil {
		return err
	}

	entries = append(entries, Entry{
		Name:         u.Name,
		Email:        u.Email,
		Phone:        u.Phone,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
	})

	data, err := json.MarshalIndent(entries, "", "    ")
	if err != nil {
		return fmt.Errorf("mirror: encoding %s: %w", path, err)
	}

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mirror: creating %s: %w", w.dir, err)
	}
	if err := atomicwriter.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("mirror: writing %s: %w", path, err)
	}

	w.logger.Debug("mirrored registration",
		slog.String("file", path),
		slog.Int("entries", len(entries)),
	)
	return nil
}

// scrub converts records to entries. A legacy plaintext password is
// hashed when the record has no hash yet and dropped otherwise, so the
// rewritten file never contains plaintext.
func (w *Writer) scrub(path string, records []Record) ([]Entry, error) {
	entries := make([]Entry, 0, len(records)+1)
	for _, r := range records {
		e := r.Entry
		if r.Password != "" && e.PasswordHash == "" {
			hash, err := w.hasher.Hash(r.Password)
			if err != nil {
				return nil, fmt.Errorf("mirror: hashing legacy password for %s in %s: %w", r.Email, path, err)
			}
			e.PasswordHash = hash
			w.logger.Info("hashed legacy plaintext password",
				slog.String("file", path),
				slog.String("email", r.Email),
			)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// ReadFile decodes a side file. A missing file is not an error and
// yields no records.
func ReadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("mirror: reading %s: %w", path, err)
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("mirror: decoding %s: %w", path, err)
	}
	return records, nil
}
