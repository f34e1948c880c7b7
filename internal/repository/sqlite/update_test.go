package sqlite

import (
	"context"
	"testing"

	"github.com/sakif/idea-tracker/internal/model"
)

func TestCreateUpdate_AndList(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice", model.RoleCustomer)
	dev := createTestUser(t, db, "dev", model.RoleDeveloper)
	idea := createTestIdea(t, db, alice, "Fix bug")

	for _, msg := range []string{"started", "halfway", "done"} {
		u := &model.Update{IdeaID: idea.ID, UserID: dev.ID, Message: msg}
		if err := db.CreateUpdate(context.Background(), u); err != nil {
			t.Fatalf("CreateUpdate(%q) error = %v", msg, err)
		}
		if u.ID == 0 || u.CreatedAt.IsZero() {
			t.Errorf("CreateUpdate(%q) did not set ID/CreatedAt", msg)
		}
	}

	updates, err := db.ListUpdates(context.Background(), idea.ID)
	if err != nil {
		t.Fatalf("ListUpdates() error = %v", err)
	}
	if len(updates) != 3 {
		t.Fatalf("len(updates) = %d, want 3", len(updates))
	}

	// Newest first.
	want := []string{"done", "halfway", "started"}
	for i, u := range updates {
		if u.Message != want[i] {
			t.Errorf("updates[%d].Message = %q, want %q", i, u.Message, want[i])
		}
		if u.UserName != "dev" || u.UserRole != model.RoleDeveloper {
			t.Errorf("updates[%d] author = %q/%q, want dev/developer", i, u.UserName, u.UserRole)
		}
	}
}

func TestCreateUpdate_DoesNotTouchIdea(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice", model.RoleCustomer)
	idea := createTestIdea(t, db, alice, "Fix bug")

	if err := db.CreateUpdate(context.Background(), &model.Update{IdeaID: idea.ID, UserID: alice.ID, Message: "any news?"}); err != nil {
		t.Fatalf("CreateUpdate() error = %v", err)
	}

	got, _ := db.GetIdea(context.Background(), idea.ID)
	if got.Version != idea.Version || got.Status != idea.Status {
		t.Errorf("idea changed after CreateUpdate: version %d→%d status %q→%q",
			idea.Version, got.Version, idea.Status, got.Status)
	}
}

func TestListUpdates_Empty(t *testing.T) {
	db := newTestDB(t)

	updates, err := db.ListUpdates(context.Background(), 1)
	if err != nil {
		t.Fatalf("ListUpdates() error = %v", err)
	}
	if updates == nil || len(updates) != 0 {
		t.Errorf("ListUpdates() = %v, want empty non-nil slice", updates)
	}
}

func TestUpdates_CascadeWithIdea(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice", model.RoleCustomer)
	idea := createTestIdea(t, db, alice, "Fix bug")
	if err := db.CreateUpdate(context.Background(), &model.Update{IdeaID: idea.ID, UserID: alice.ID, Message: "note"}); err != nil {
		t.Fatalf("CreateUpdate() error = %v", err)
	}

	// There is no API to delete ideas; exercise the schema directly.
	if _, err := db.conn.Exec(`DELETE FROM ideas WHERE id = ?`, idea.ID); err != nil {
		t.Fatalf("deleting idea: %v", err)
	}

	var n int
	if err := db.conn.Get(&n, `SELECT COUNT(*) FROM updates WHERE idea_id = ?`, idea.ID); err != nil {
		t.Fatalf("counting updates: %v", err)
	}
	if n != 0 {
		t.Errorf("updates left after deleting idea = %d, want 0", n)
	}
}
