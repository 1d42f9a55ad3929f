package access

import (
	"fmt"

	"taskshare/internal/model"
)

// Outcome is the kind of answer a Decision carries.
type Outcome uint8

const (
	OutcomeNotFound Outcome = iota
	OutcomeDenied
	OutcomeGranted
	OutcomeOwner
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNotFound:
		return "not_found"
	case OutcomeDenied:
		return "denied"
	case OutcomeGranted:
		return "granted"
	case OutcomeOwner:
		return "owner"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Via tells whether a grant sits on the resource itself or on an ancestor.
type Via uint8

const (
	ViaNone Via = iota
	ViaDirect
	ViaInherited
)

func (v Via) String() string {
	switch v {
	case ViaDirect:
		return "direct"
	case ViaInherited:
		return "inherited"
	}
	return "none"
}

// DenyReason separates "no access at all" from "access, but not for this action".
type DenyReason uint8

const (
	ReasonNone DenyReason = iota
	ReasonNoAccess
	ReasonRoleForbids
)

func (r DenyReason) String() string {
	switch r {
	case ReasonNoAccess:
		return "no_access"
	case ReasonRoleForbids:
		return "role_forbids"
	}
	return "none"
}

// Decision is the answer to "may actor perform action on resource".
type Decision struct {
	Outcome    Outcome
	Kind       model.Kind
	ResourceID uint
	Action     Action

	// Role is the effective role. Owners get model.RoleOwner.
	Role model.Role
	Via  Via
	// Level is the kind of the resource the grant or ownership was found on.
	Level       model.Kind
	IsCreator   bool
	Reason      DenyReason
	Permissions Permissions
}

// Allowed reports whether the requested action may proceed.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeOwner || d.Outcome == OutcomeGranted
}

// IsOwner reports whether the actor owns the resource itself.
func (d Decision) IsOwner() bool { return d.Outcome == OutcomeOwner }

// HasAccess reports whether the actor can see the resource at all.
func (d Decision) HasAccess() bool {
	return d.Allowed() || d.Reason == ReasonRoleForbids
}

// Message renders the caller-facing explanation of a refusal.
func (d Decision) Message() string {
	switch d.Outcome {
	case OutcomeNotFound:
		return fmt.Sprintf("%s not found", d.Kind.Label())
	case OutcomeDenied:
		if d.Reason == ReasonRoleForbids {
			if d.Via == ViaInherited {
				return fmt.Sprintf("your role %q in the %s does not permit you to %s this %s",
					d.Role, d.Level.Label(), d.Action.Verb(), d.Kind.Label())
			}
			return fmt.Sprintf("your role %q does not permit you to %s this %s",
				d.Role, d.Action.Verb(), d.Kind.Label())
		}
		return fmt.Sprintf("you have no access to this %s", d.Kind.Label())
	}
	return ""
}

// Err converts a refusal into an error value; nil when allowed.
func (d Decision) Err() error {
	switch d.Outcome {
	case OutcomeNotFound:
		return &NotFoundError{Kind: d.Kind, ID: d.ResourceID}
	case OutcomeDenied:
		return &DeniedError{Decision: d}
	}
	return nil
}
