package sharing

import (
	"context"
	"errors"
	"net/mail"

	"gorm.io/gorm"

	"taskshare/internal/access"
	"taskshare/internal/audit"
	"taskshare/internal/model"
	"taskshare/internal/repository"
)

// InviteResult tells whether the invite became a grant right away or an
// emailed invitation.
type InviteResult struct {
	Registered bool
	UserID     uint
	Invitation *model.Invitation
}

// Invite shares a resource with an email address. Registered users get an
// accepted grant immediately; other addresses get an Invitation.
func (d *Directory) Invite(ctx context.Context, kind model.Kind, resourceID, actorID uint, email string, role model.Role) (InviteResult, error) {
	var result InviteResult
	role = model.ParseRole(string(role))
	if !role.Grantable() {
		return result, ErrInvalidRole
	}
	email = repository.NormalizeEmail(email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return result, ErrInvalidEmail
	}
	if _, err := d.authorize(ctx, kind, resourceID, actorID, access.ActionShare); err != nil {
		return result, err
	}

	user, err := d.users.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return d.grantRegistered(ctx, kind, resourceID, actorID, user, role)
	case !errors.Is(err, repository.ErrUserNotFound):
		return result, err
	}

	token, err := d.newToken()
	if err != nil {
		return result, err
	}
	now := d.now()
	inv := &model.Invitation{
		Kind:       kind,
		ResourceID: resourceID,
		Email:      email,
		Role:       role,
		Token:      token,
		InvitedBy:  actorID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(d.invitationTTL),
		Active:     true,
	}
	if err := d.invitations.Create(ctx, inv); err != nil {
		return result, err
	}
	result.Invitation = inv

	d.committed(ctx, audit.Entry{
		Kind: kind, ResourceID: resourceID, UserID: actorID, Action: audit.ActionSendInvitation,
		Details: map[string]any{"email": email, "rol": role, "expira": inv.ExpiresAt},
	}, Event{Type: EventInvitationCreated, Kind: kind, ResourceID: resourceID, ActorID: actorID, Email: email, Role: role, Token: token})
	return result, nil
}

func (d *Directory) grantRegistered(ctx context.Context, kind model.Kind, resourceID, actorID uint, user *model.User, role model.Role) (InviteResult, error) {
	result := InviteResult{Registered: true, UserID: user.ID}
	now := d.now()
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := d.ownerOf(ctx, tx, kind, resourceID); err != nil {
			return err
		}
		owns, err := d.ownsChain(ctx, tx, kind, resourceID, user.ID)
		if err != nil {
			return err
		}
		if owns {
			return ErrCannotInviteOwner
		}
		shares := d.shares.WithTx(tx)
		existing, found, err := shares.LockGrant(ctx, kind, resourceID, user.ID)
		if err != nil {
			return err
		}
		if found && (existing.Active || existing.IsCreator) {
			return ErrAlreadyShared
		}
		return shares.UpsertGrant(ctx, kind, model.Grant{
			ResourceID: resourceID,
			UserID:     user.ID,
			Role:       role,
			GrantedBy:  actorID,
			Accepted:   true,
			Active:     true,
			GrantedAt:  now,
		})
	})
	if err != nil {
		return InviteResult{}, err
	}

	d.committed(ctx, audit.Entry{
		Kind: kind, ResourceID: resourceID, UserID: actorID, Action: audit.ActionInviteUser,
		Details: map[string]any{"idUsuario": user.ID, "email": user.Email, "rol": role},
	}, Event{Type: EventGranted, Kind: kind, ResourceID: resourceID, ActorID: actorID, TargetUserID: user.ID, Email: user.Email, Role: role})
	return result, nil
}

// ModifyRole changes the role of another member. Creator grants cannot change.
func (d *Directory) ModifyRole(ctx context.Context, kind model.Kind, resourceID, targetUserID uint, role model.Role, actorID uint) error {
	role = model.ParseRole(string(role))
	if !role.Grantable() {
		return ErrInvalidRole
	}
	if _, err := d.authorize(ctx, kind, resourceID, actorID, access.ActionShare); err != nil {
		return err
	}

	var previous model.Role
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shares := d.shares.WithTx(tx)
		grant, found, err := shares.LockGrant(ctx, kind, resourceID, targetUserID)
		if err != nil {
			return err
		}
		if !found || grant.IsCreator {
			return ErrImmutableGrant
		}
		previous = grant.Role
		_, err = shares.UpdateGrant(ctx, kind, resourceID, targetUserID, map[string]any{"role": role}, true)
		return err
	})
	if err != nil {
		return err
	}

	d.committed(ctx, audit.Entry{
		Kind: kind, ResourceID: resourceID, UserID: actorID, Action: audit.ActionModifyRole,
		Details: map[string]any{"idUsuario": targetUserID, "rolAnterior": previous, "rolNuevo": role},
	}, Event{Type: EventRoleChanged, Kind: kind, ResourceID: resourceID, ActorID: actorID, TargetUserID: targetUserID, Role: role})
	return nil
}

// Revoke deactivates another member's grant. Revoking an inactive grant is a
// no-op. Creator grants cannot be revoked.
func (d *Directory) Revoke(ctx context.Context, kind model.Kind, resourceID, targetUserID, actorID uint) error {
	if _, err := d.authorize(ctx, kind, resourceID, actorID, access.ActionShare); err != nil {
		return err
	}

	changed := false
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		shares := d.shares.WithTx(tx)
		grant, found, err := shares.LockGrant(ctx, kind, resourceID, targetUserID)
		if err != nil {
			return err
		}
		if !found || grant.IsCreator {
			return ErrImmutableGrant
		}
		if !grant.Active {
			return nil
		}
		changed = true
		_, err = shares.UpdateGrant(ctx, kind, resourceID, targetUserID, map[string]any{"active": false}, true)
		return err
	})
	if err != nil || !changed {
		return err
	}

	d.committed(ctx, audit.Entry{
		Kind: kind, ResourceID: resourceID, UserID: actorID, Action: audit.ActionRevokeAccess,
		Details: map[string]any{"idUsuario": targetUserID},
	}, Event{Type: EventRevoked, Kind: kind, ResourceID: resourceID, ActorID: actorID, TargetUserID: targetUserID})
	return nil
}

// Leave deactivates the actor's own grant.
func (d *Directory) Leave(ctx context.Context, kind model.Kind, resourceID, actorID uint) error {
	if !kind.Shareable() {
		return ErrNotShareable
	}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ownerID, err := d.ownerOf(ctx, tx, kind, resourceID)
		if err != nil {
			return err
		}
		if ownerID == actorID {
			return ErrCreatorCannotLeave
		}
		shares := d.shares.WithTx(tx)
		grant, found, err := shares.LockGrant(ctx, kind, resourceID, actorID)
		if err != nil {
			return err
		}
		if !found || !grant.Active {
			return ErrNoGrant
		}
		if grant.IsCreator {
			return ErrCreatorCannotLeave
		}
		_, err = shares.UpdateGrant(ctx, kind, resourceID, actorID, map[string]any{"active": false}, true)
		return err
	})
	if err != nil {
		return err
	}

	d.committed(ctx, audit.Entry{
		Kind: kind, ResourceID: resourceID, UserID: actorID, Action: audit.ActionLeave,
	}, Event{Type: EventLeft, Kind: kind, ResourceID: resourceID, ActorID: actorID, TargetUserID: actorID})
	return nil
}

// Members lists the active members of a resource the actor can view.
func (d *Directory) Members(ctx context.Context, kind model.Kind, resourceID, actorID uint) ([]repository.Member, error) {
	if _, err := d.authorize(ctx, kind, resourceID, actorID, access.ActionView); err != nil {
		return nil, err
	}
	return d.shares.Members(ctx, kind, resourceID)
}

// SharedWith lists resources of the kind that others shared with the actor.
func (d *Directory) SharedWith(ctx context.Context, kind model.Kind, actorID uint) ([]repository.SharedResource, error) {
	if !kind.Shareable() {
		return nil, ErrNotShareable
	}
	return d.shares.SharedWith(ctx, kind, actorID)
}

// History returns the audit trail of a resource to members allowed to share it.
func (d *Directory) History(ctx context.Context, kind model.Kind, resourceID, actorID uint, limit int) ([]model.AuditEntry, error) {
	if _, err := d.authorize(ctx, kind, resourceID, actorID, access.ActionShare); err != nil {
		return nil, err
	}
	return d.audit.History(ctx, kind, resourceID, limit)
}
