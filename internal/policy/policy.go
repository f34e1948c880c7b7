// Package policy holds the authorization rules: which roles may perform
// which actions, and which ideas each caller is allowed to see.
package policy

import (
	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/repository"
)

type Action string

const (
	ActionCreateIdea     Action = "idea:create"
	ActionListIdeas      Action = "idea:list"
	ActionViewIdea       Action = "idea:view"
	ActionUpdateStatus   Action = "idea:update_status"
	ActionReassign       Action = "idea:reassign"
	ActionComment        Action = "idea:comment"
	ActionListUsers      Action = "user:list"
	ActionListDevelopers Action = "user:list_developers"
	ActionStats          Action = "stats:view"
)

// anyRole marks actions open to every authenticated caller.
var anyRole = []model.Role{model.RoleOwner, model.RoleCustomer, model.RoleDeveloper}

var rules = map[Action][]model.Role{
	ActionCreateIdea:     {model.RoleCustomer},
	ActionListIdeas:      anyRole,
	ActionViewIdea:       anyRole,
	ActionUpdateStatus:   {model.RoleOwner, model.RoleDeveloper},
	ActionReassign:       {model.RoleOwner},
	ActionComment:        anyRole,
	ActionListUsers:      {model.RoleOwner},
	ActionListDevelopers: {model.RoleOwner},
	ActionStats:          anyRole,
}

// Allows reports whether role may perform action. Unknown actions and
// unknown roles are always denied.
func Allows(role model.Role, action Action) bool {
	for _, r := range rules[action] {
		if r == role {
			return true
		}
	}
	return false
}

// ScopeFor returns the filter selecting the ideas visible to id:
// customers see what they submitted, developers see what is assigned to
// them, owners see everything.
func ScopeFor(id model.Identity) repository.IdeaFilter {
	userID := id.UserID
	switch id.Role {
	case model.RoleCustomer:
		return repository.IdeaFilter{SubmitterID: &userID}
	case model.RoleDeveloper:
		return repository.IdeaFilter{AssigneeID: &userID}
	case model.RoleOwner:
		return repository.IdeaFilter{}
	}
	// Unknown roles see nothing.
	none := int64(-1)
	return repository.IdeaFilter{SubmitterID: &none}
}

// CanSee reports whether idea falls inside id's visible set.
func CanSee(id model.Identity, idea *model.Idea) bool {
	return Matches(ScopeFor(id), idea)
}

// Matches applies f to a single idea in memory.
func Matches(f repository.IdeaFilter, idea *model.Idea) bool {
	if f.SubmitterID != nil && idea.UserID != *f.SubmitterID {
		return false
	}
	if f.AssigneeID != nil && (idea.AssignedTo == nil || *idea.AssignedTo != *f.AssigneeID) {
		return false
	}
	return true
}
