package sharing

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"taskshare/internal/audit"
	"taskshare/internal/model"
	"taskshare/internal/repository"
)

// AcceptResult describes the grant an accepted invitation produced.
type AcceptResult struct {
	Kind       model.Kind `json:"tipo"`
	ResourceID uint       `json:"id"`
	Role       model.Role `json:"rol"`
}

// AcceptInvitation turns an invitation into an accepted, active grant for the
// actor. The invitation becomes inert.
func (d *Directory) AcceptInvitation(ctx context.Context, token string, actorID uint, actorEmail string) (AcceptResult, error) {
	var (
		result    AcceptResult
		invitedBy uint
	)
	now := d.now()
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitations := d.invitations.WithTx(tx)
		inv, err := d.consumable(ctx, invitations, token, actorEmail)
		if err != nil {
			return err
		}
		switch {
		case inv.Accepted:
			return ErrInvitationUsed
		case inv.Expired(now):
			return ErrInvitationExpired
		case !inv.Active:
			return ErrInvalidToken
		}

		if _, err := d.ownerOf(ctx, tx, inv.Kind, inv.ResourceID); err != nil {
			return err
		}
		owns, err := d.ownsChain(ctx, tx, inv.Kind, inv.ResourceID, actorID)
		if err != nil {
			return err
		}
		if owns {
			return ErrAlreadyOwner
		}

		shares := d.shares.WithTx(tx)
		existing, found, err := shares.LockGrant(ctx, inv.Kind, inv.ResourceID, actorID)
		if err != nil {
			return err
		}
		// Creator rows keep their role whatever the invitation says.
		if found && existing.IsCreator {
			return ErrAlreadyMember
		}
		if err := shares.UpsertGrant(ctx, inv.Kind, model.Grant{
			ResourceID: inv.ResourceID,
			UserID:     actorID,
			Role:       inv.Role,
			GrantedBy:  inv.InvitedBy,
			Accepted:   true,
			Active:     true,
			GrantedAt:  now,
		}); err != nil {
			return err
		}
		if err := invitations.MarkAccepted(ctx, inv.ID); err != nil {
			return err
		}
		result = AcceptResult{Kind: inv.Kind, ResourceID: inv.ResourceID, Role: inv.Role}
		invitedBy = inv.InvitedBy
		return nil
	})
	if err != nil {
		return AcceptResult{}, err
	}

	d.committed(ctx, audit.Entry{
		Kind: result.Kind, ResourceID: result.ResourceID, UserID: actorID, Action: audit.ActionAcceptInvitation,
		Details: map[string]any{"rol": result.Role, "invitadoPor": invitedBy},
	}, Event{Type: EventInvitationAccepted, Kind: result.Kind, ResourceID: result.ResourceID, ActorID: actorID, TargetUserID: invitedBy, Role: result.Role})
	return result, nil
}

// RejectInvitation deactivates an invitation without creating a grant.
func (d *Directory) RejectInvitation(ctx context.Context, token string, actorID uint, actorEmail string) error {
	var inv *model.Invitation
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invitations := d.invitations.WithTx(tx)
		var err error
		inv, err = d.consumable(ctx, invitations, token, actorEmail)
		if err != nil {
			return err
		}
		if inv.Accepted || !inv.Active {
			return ErrInvalidToken
		}
		return invitations.Deactivate(ctx, inv.ID)
	})
	if err != nil {
		return err
	}

	d.committed(ctx, audit.Entry{
		Kind: inv.Kind, ResourceID: inv.ResourceID, UserID: actorID, Action: audit.ActionRejectInvitation,
		Details: map[string]any{"email": inv.Email},
	}, Event{Type: EventInvitationRejected, Kind: inv.Kind, ResourceID: inv.ResourceID, ActorID: actorID, TargetUserID: inv.InvitedBy, Email: inv.Email})
	return nil
}

// consumable loads the invitation behind token and checks it belongs to email.
func (d *Directory) consumable(ctx context.Context, invitations *repository.InvitationRepository, token, email string) (*model.Invitation, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	inv, err := invitations.LockByToken(ctx, token)
	if errors.Is(err, repository.ErrInvitationNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	if repository.NormalizeEmail(inv.Email) != repository.NormalizeEmail(email) {
		return nil, ErrEmailMismatch
	}
	return inv, nil
}

// PendingInvitations lists the invitations still open for email.
func (d *Directory) PendingInvitations(ctx context.Context, email string) ([]model.Invitation, error) {
	return d.invitations.Pending(ctx, email, d.now())
}

// SweepExpiredInvitations deactivates pending invitations past their expiry.
// Accepting one of them still reports ErrInvitationExpired.
func (d *Directory) SweepExpiredInvitations(ctx context.Context) (int64, error) {
	n, err := d.invitations.DeactivateExpired(ctx, d.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		d.log.InfoContext(ctx, "expired invitations deactivated", "count", n)
	}
	return n, nil
}
