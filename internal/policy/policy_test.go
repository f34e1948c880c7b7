package policy

import (
	"testing"

	"github.com/sakif/idea-tracker/internal/model"
)

func TestAllows(t *testing.T) {
	tests := []struct {
		role   model.Role
		action Action
		want   bool
	}{
		{model.RoleCustomer, ActionCreateIdea, true},
		{model.RoleOwner, ActionCreateIdea, false},
		{model.RoleDeveloper, ActionCreateIdea, false},

		{model.RoleOwner, ActionUpdateStatus, true},
		{model.RoleDeveloper, ActionUpdateStatus, true},
		{model.RoleCustomer, ActionUpdateStatus, false},

		{model.RoleOwner, ActionReassign, true},
		{model.RoleDeveloper, ActionReassign, false},
		{model.RoleCustomer, ActionReassign, false},

		{model.RoleOwner, ActionListUsers, true},
		{model.RoleCustomer, ActionListUsers, false},
		{model.RoleDeveloper, ActionListDevelopers, false},
		{model.RoleOwner, ActionListDevelopers, true},

		{model.RoleCustomer, ActionComment, true},
		{model.RoleDeveloper, ActionStats, true},
		{model.RoleOwner, ActionListIdeas, true},

		{model.Role("admin"), ActionListIdeas, false},
		{model.RoleOwner, Action("idea:delete"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.action), func(t *testing.T) {
			if got := Allows(tt.role, tt.action); got != tt.want {
				t.Errorf("Allows(%q, %q) = %v, want %v", tt.role, tt.action, got, tt.want)
			}
		})
	}
}

func TestCanSee(t *testing.T) {
	dev := int64(30)
	otherDev := int64(31)

	idea := &model.Idea{ID: 1, UserID: 10, AssignedTo: &dev}
	unassigned := &model.Idea{ID: 2, UserID: 10}
	reassigned := &model.Idea{ID: 3, UserID: 11, AssignedTo: &otherDev}

	tests := []struct {
		name   string
		caller model.Identity
		idea   *model.Idea
		want   bool
	}{
		{"submitter sees own idea", model.Identity{UserID: 10, Role: model.RoleCustomer}, idea, true},
		{"other customer does not", model.Identity{UserID: 11, Role: model.RoleCustomer}, idea, false},
		{"assignee sees idea", model.Identity{UserID: 30, Role: model.RoleDeveloper}, idea, true},
		{"developer does not see unassigned", model.Identity{UserID: 30, Role: model.RoleDeveloper}, unassigned, false},
		{"developer does not see others' work", model.Identity{UserID: 30, Role: model.RoleDeveloper}, reassigned, false},
		{"owner sees everything", model.Identity{UserID: 1, Role: model.RoleOwner}, reassigned, true},
		{"unknown role sees nothing", model.Identity{UserID: 10, Role: "guest"}, idea, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanSee(tt.caller, tt.idea); got != tt.want {
				t.Errorf("CanSee() = %v, want %v", got, tt.want)
			}
		})
	}
}
