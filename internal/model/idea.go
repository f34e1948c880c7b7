package model

import "time"

// Status is the lifecycle state of an idea. Any authorized caller may move
// an idea between states in any direction; there is no terminal state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Statuses lists the canonical states in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}

// ParseStatus converts a raw string into a Status, rejecting anything
// outside the closed set.
func ParseStatus(s string) (Status, bool) {
	for _, st := range Statuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Idea is a customer-submitted request tracked through a status lifecycle.
//
// UserName, UserEmail and UserPhone are the submitter's details, joined in
// by list and detail queries. Version increments on every mutation and is
// used for optimistic concurrency on updates.
type Idea struct {
	ID          int64     `json:"id"          db:"id"`
	Title       string    `json:"title"       db:"title"`
	Description string    `json:"description" db:"description"`
	Status      Status    `json:"status"      db:"status"`
	UserID      int64     `json:"user_id"     db:"user_id"`
	AssignedTo  *int64    `json:"assigned_to" db:"assigned_to"`
	Version     int64     `json:"version"     db:"version"`
	CreatedAt   time.Time `json:"created_at"  db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"  db:"updated_at"`

	UserName  string `json:"user_name"  db:"user_name"`
	UserEmail string `json:"user_email" db:"user_email"`
	UserPhone string `json:"user_phone" db:"user_phone"`
}

// Update is an immutable note attached to an idea.
type Update struct {
	ID        int64     `json:"id"         db:"id"`
	IdeaID    int64     `json:"idea_id"    db:"idea_id"`
	UserID    int64     `json:"user_id"    db:"user_id"`
	Message   string    `json:"message"    db:"message"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	UserName string `json:"user_name" db:"user_name"`
	UserRole Role   `json:"user_role" db:"user_role"`
}

// IdeaDetail is an idea together with its update trail, newest first.
type IdeaDetail struct {
	Idea
	Updates []Update `json:"updates"`
}

// Stats holds per-status idea counts over a caller's visible set.
// Total always equals Pending + InProgress + Completed.
type Stats struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}
