package model

import "strings"

// Kind names a shareable resource type. The values double as the resource
// type stored in invitacion and auditoria_compartidos.
type Kind string

const (
	KindCategory Kind = "categoria"
	KindList     Kind = "lista"
	KindTask     Kind = "tarea"
)

// ParseKind accepts the stored names plus their English spelling.
func ParseKind(raw string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "categoria", "category":
		return KindCategory, true
	case "lista", "list":
		return KindList, true
	case "tarea", "task":
		return KindTask, true
	}
	return "", false
}

// Shareable reports whether the kind carries its own grant table.
func (k Kind) Shareable() bool {
	return k == KindCategory || k == KindList
}

// ShareTable is the grant table for the kind. Empty for tasks.
func (k Kind) ShareTable() string {
	switch k {
	case KindCategory:
		return CategoryShare{}.TableName()
	case KindList:
		return ListShare{}.TableName()
	}
	return ""
}

// ShareColumn is the resource column of the kind's grant table.
func (k Kind) ShareColumn() string {
	switch k {
	case KindCategory:
		return "category_id"
	case KindList:
		return "list_id"
	}
	return ""
}

// Label is the human name used in messages.
func (k Kind) Label() string {
	switch k {
	case KindCategory:
		return "category"
	case KindList:
		return "list"
	case KindTask:
		return "task"
	}
	return "resource"
}

func (k Kind) String() string { return string(k) }

// Role is a named permission bundle.
type Role string

const (
	RoleOwner        Role = "propietario"
	RoleAdmin        Role = "admin"
	RoleEditor       Role = "editor"
	RoleCollaborator Role = "colaborador"
	RoleViewer       Role = "lector"
)

// ParseRole normalizes a role name. "visor" is an alias of lector.
func ParseRole(raw string) Role {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role == "visor" {
		return RoleViewer
	}
	return role
}

// Grantable reports whether a share grant may carry the role.
func (r Role) Grantable() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleCollaborator, RoleViewer:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
