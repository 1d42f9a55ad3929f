package access

import (
	"context"
	"fmt"

	"taskshare/internal/model"
)

// maxChainDepth covers task -> list -> category.
const maxChainDepth = 3

// Node is a resource together with the link to its immediate parent.
type Node struct {
	Kind       model.Kind
	ID         uint
	OwnerID    uint
	ParentKind model.Kind
	ParentID   *uint
}

// Locator loads a single resource. ok is false when the id does not exist.
type Locator interface {
	Load(ctx context.Context, kind model.Kind, id uint) (node Node, ok bool, err error)
}

// GrantFinder returns the grant row of a user on a resource, in any state.
type GrantFinder interface {
	FindGrant(ctx context.Context, kind model.Kind, resourceID, userID uint) (grant model.Grant, ok bool, err error)
}

// Resolver decides whether an actor may act on a resource. It never writes.
type Resolver struct {
	locator Locator
	grants  GrantFinder
}

func NewResolver(locator Locator, grants GrantFinder) *Resolver {
	return &Resolver{locator: locator, grants: grants}
}

// Resolve walks the ownership chain of the resource. The closest level with
// an active and accepted grant, or owned by the actor, decides. Only
// infrastructure failures are returned as errors.
func (r *Resolver) Resolve(ctx context.Context, actorID uint, kind model.Kind, id uint, action Action) (Decision, error) {
	decision := Decision{Kind: kind, ResourceID: id, Action: action}

	node, ok, err := r.locator.Load(ctx, kind, id)
	if err != nil {
		return decision, fmt.Errorf("load %s %d: %w", kind, id, err)
	}
	if !ok {
		decision.Outcome = OutcomeNotFound
		return decision, nil
	}

	if node.OwnerID == actorID {
		decision.Outcome = OutcomeOwner
		decision.Role = model.RoleOwner
		decision.Via = ViaDirect
		decision.Level = kind
		decision.IsCreator = true
		decision.Permissions = fullPermissions
		return decision, nil
	}

	level, via := node, ViaDirect
	for depth := 0; depth < maxChainDepth; depth++ {
		if via == ViaInherited && level.OwnerID == actorID {
			return grantedAt(decision, model.RoleOwner, via, level.Kind, false), nil
		}

		if level.Kind.Shareable() {
			grant, found, err := r.grants.FindGrant(ctx, level.Kind, level.ID, actorID)
			if err != nil {
				return decision, fmt.Errorf("find grant on %s %d: %w", level.Kind, level.ID, err)
			}
			if found && grant.Effective() {
				return grantedAt(decision, grant.Role, via, level.Kind, grant.IsCreator), nil
			}
		}

		if level.ParentID == nil {
			break
		}
		parent, ok, err := r.locator.Load(ctx, level.ParentKind, *level.ParentID)
		if err != nil {
			return decision, fmt.Errorf("load %s %d: %w", level.ParentKind, *level.ParentID, err)
		}
		if !ok {
			// Orphaned parent: nothing further up can grant access.
			break
		}
		level, via = parent, ViaInherited
	}

	decision.Outcome = OutcomeDenied
	decision.Reason = ReasonNoAccess
	return decision, nil
}

func grantedAt(decision Decision, role model.Role, via Via, level model.Kind, isCreator bool) Decision {
	role = model.ParseRole(string(role))
	decision.Role = role
	decision.Via = via
	decision.Level = level
	decision.IsCreator = isCreator
	decision.Permissions = PermissionsFor(role)
	if decision.Permissions.Allows(decision.Action) {
		decision.Outcome = OutcomeGranted
	} else {
		decision.Outcome = OutcomeDenied
		decision.Reason = ReasonRoleForbids
	}
	return decision
}
