package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/idea-tracker/internal/model"
)

func newTestWriter(t *testing.T) *Writer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(t.TempDir(), stubHasher{}, logger)
}

// stubHasher prefixes instead of running bcrypt.
type stubHasher struct{ err error }

func (h stubHasher) Hash(plaintext string) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return "hashed:" + plaintext, nil
}

func user(name string, role model.Role) *model.User {
	return &model.User{
		Name:         name,
		Email:        name + "@example.com",
		Phone:        "555",
		PasswordHash: "$2a$04$abcdefghijklmnopqrstuuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ",
		Role:         role,
	}
}

func TestPath(t *testing.T) {
	w := New("/data", stubHasher{}, slog.Default())

	assert.Equal(t, filepath.Join("/data", "customers.json"), w.Path(model.RoleCustomer))
	assert.Equal(t, filepath.Join("/data", "developers.json"), w.Path(model.RoleDeveloper))
	assert.Empty(t, w.Path(model.RoleOwner))
}

func TestAppend_WritesHashNotPlaintext(t *testing.T) {
	w := newTestWriter(t)
	ctx := context.Background()

	require.NoError(t, w.Append(ctx, user("alice", model.RoleCustomer)))
	require.NoError(t, w.Append(ctx, user("bob", model.RoleCustomer)))
	require.NoError(t, w.Append(ctx, user("dev", model.RoleDeveloper)))

	customers, err := ReadFile(w.Path(model.RoleCustomer))
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, "alice@example.com", customers[0].Email)
	assert.Equal(t, "bob@example.com", customers[1].Email)
	for _, e := range customers {
		assert.NotEmpty(t, e.PasswordHash)
		assert.Empty(t, e.Password)
	}

	developers, err := ReadFile(w.Path(model.RoleDeveloper))
	require.NoError(t, err)
	require.Len(t, developers, 1)

	raw, err := os.ReadFile(w.Path(model.RoleCustomer))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"password":`)
}

func TestAppend_OwnerIsIgnored(t *testing.T) {
	w := newTestWriter(t)

	require.NoError(t, w.Append(context.Background(), user("boss", model.RoleOwner)))

	entries, err := os.ReadDir(w.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppend_Concurrent(t *testing.T) {
	w := newTestWriter(t)
	const n = 20

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, w.Append(context.Background(), user(fmt.Sprintf("c%02d", i), model.RoleCustomer)))
		}(i)
	}
	wg.Wait()

	entries, err := ReadFile(w.Path(model.RoleCustomer))
	require.NoError(t, err)
	assert.Len(t, entries, n, "no registration may be lost")
}

func TestAppend_CorruptFile(t *testing.T) {
	w := newTestWriter(t)
	require.NoError(t, os.WriteFile(w.Path(model.RoleCustomer), []byte("{not json"), 0o600))

	err := w.Append(context.Background(), user("alice", model.RoleCustomer))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "decoding"))
}

func TestReadFile_Missing(t *testing.T) {
	entries, err := ReadFile(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	assert.Nil(t, entries)
}

func TestReadFile_LegacyPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "customers.json")
	legacy := `[{"name": "Old", "email": "old@example.com", "phone": "", "password": "hunter22"}]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o600))

	entries, err := ReadFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hunter22", entries[0].Password)
	assert.Empty(t, entries[0].PasswordHash)
	assert.True(t, entries[0].CreatedAt.IsZero())
}

func TestAppend_HashesLegacyPlaintext(t *testing.T) {
	w := newTestWriter(t)
	legacy := `[
		{"name": "Old", "email": "old@example.com", "phone": "", "password": "plain-secret"},
		{"name": "Both", "email": "both@example.com", "phone": "", "password": "other-secret", "password_hash": "$2a$04$kept"}
	]`
	require.NoError(t, os.WriteFile(w.Path(model.RoleCustomer), []byte(legacy), 0o600))

	require.NoError(t, w.Append(context.Background(), user("alice", model.RoleCustomer)))

	raw, err := os.ReadFile(w.Path(model.RoleCustomer))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), `"password"`)
	assert.NotContains(t, string(raw), `"plain-secret"`)
	assert.NotContains(t, string(raw), "other-secret")

	records, err := ReadFile(w.Path(model.RoleCustomer))
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "hashed:plain-secret", records[0].PasswordHash)
	assert.Equal(t, "$2a$04$kept", records[1].PasswordHash)
	for _, r := range records {
		assert.Empty(t, r.Password)
	}
}

func TestAppend_LegacyHashFailureLeavesFileUntouched(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	w := New(t.TempDir(), stubHasher{err: errors.New("boom")}, logger)
	legacy := `[{"name": "Old", "email": "old@example.com", "phone": "", "password": "plain-secret"}]`
	require.NoError(t, os.WriteFile(w.Path(model.RoleCustomer), []byte(legacy), 0o600))

	err := w.Append(context.Background(), user("alice", model.RoleCustomer))
	require.Error(t, err)

	raw, err := os.ReadFile(w.Path(model.RoleCustomer))
	require.NoError(t, err)
	assert.Equal(t, legacy, string(raw))
}
