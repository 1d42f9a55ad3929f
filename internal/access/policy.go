package access

import (
	"strings"

	"taskshare/internal/model"
)

// Action is an operation a user may attempt on a resource.
type Action string

const (
	ActionView   Action = "ver"
	ActionEdit   Action = "editar"
	ActionDelete Action = "eliminar"
	ActionMove   Action = "mover"
	ActionShare  Action = "compartir"
)

// ParseAction accepts the stored action names and their English spelling.
func ParseAction(raw string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "ver", "view":
		return ActionView, true
	case "editar", "edit":
		return ActionEdit, true
	case "eliminar", "delete":
		return ActionDelete, true
	case "mover", "move":
		return ActionMove, true
	case "compartir", "share":
		return ActionShare, true
	}
	return "", false
}

// Verb is the English verb used in denial messages.
func (a Action) Verb() string {
	switch a {
	case ActionView:
		return "view"
	case ActionEdit:
		return "edit"
	case ActionDelete:
		return "delete"
	case ActionMove:
		return "move"
	case ActionShare:
		return "share"
	}
	return string(a)
}

// Permissions is the set of actions a role allows.
type Permissions struct {
	View   bool `json:"ver"`
	Edit   bool `json:"editar"`
	Delete bool `json:"eliminar"`
	Move   bool `json:"mover"`
	Share  bool `json:"compartir"`
}

// Allows reports whether the action is in the set. Unknown actions are denied.
func (p Permissions) Allows(action Action) bool {
	switch action {
	case ActionView:
		return p.View
	case ActionEdit:
		return p.Edit
	case ActionDelete:
		return p.Delete
	case ActionMove:
		return p.Move
	case ActionShare:
		return p.Share
	}
	return false
}

var fullPermissions = Permissions{View: true, Edit: true, Delete: true, Move: true, Share: true}

var policy = map[model.Role]Permissions{
	model.RoleOwner:        fullPermissions,
	model.RoleAdmin:        fullPermissions,
	model.RoleEditor:       {View: true, Edit: true, Delete: true, Move: true},
	model.RoleCollaborator: {View: true, Edit: true},
	model.RoleViewer:       {View: true},
}

// PermissionsFor returns the policy of a role. Unknown roles get the viewer policy.
func PermissionsFor(role model.Role) Permissions {
	if perms, ok := policy[model.ParseRole(string(role))]; ok {
		return perms
	}
	return policy[model.RoleViewer]
}
