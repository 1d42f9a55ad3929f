package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskshare/internal/model"
)

// ErrInvitationNotFound is returned for unknown tokens.
var ErrInvitationNotFound = errors.New("invitation not found")

// InvitationRepository persists invitations for unregistered emails.
type InvitationRepository struct {
	db *gorm.DB
}

func NewInvitationRepository(db *gorm.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *InvitationRepository) WithTx(tx *gorm.DB) *InvitationRepository {
	return &InvitationRepository{db: tx}
}

func (r *InvitationRepository) Create(ctx context.Context, inv *model.Invitation) error {
	if err := r.db.WithContext(ctx).Create(inv).Error; err != nil {
		return fmt.Errorf("create invitation: %w", translate(err))
	}
	return nil
}

// LockByToken loads an invitation in any state under a row lock.
func (r *InvitationRepository) LockByToken(ctx context.Context, token string) (*model.Invitation, error) {
	var inv model.Invitation
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("token = ?", token).Take(&inv).Error
	switch {
	case err == nil:
		return &inv, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrInvitationNotFound
	default:
		return nil, fmt.Errorf("find invitation: %w", err)
	}
}

// Pending lists active, unaccepted and unexpired invitations for email.
func (r *InvitationRepository) Pending(ctx context.Context, email string, now time.Time) ([]model.Invitation, error) {
	var invitations []model.Invitation
	if err := r.db.WithContext(ctx).
		Where("email = ? AND active = ? AND accepted = ? AND expires_at > ?", NormalizeEmail(email), true, false, now).
		Order("created_at DESC").
		Find(&invitations).Error; err != nil {
		return nil, fmt.Errorf("list pending invitations: %w", err)
	}
	return invitations, nil
}

// MarkAccepted makes the invitation inert after its grant was materialized.
func (r *InvitationRepository) MarkAccepted(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Invitation{}).Where("id = ?", id).
		Updates(map[string]any{"accepted": true, "active": false}).Error; err != nil {
		return fmt.Errorf("accept invitation: %w", err)
	}
	return nil
}

func (r *InvitationRepository) Deactivate(ctx context.Context, id uint) error {
	if err := r.db.WithContext(ctx).Model(&model.Invitation{}).Where("id = ?", id).
		Update("active", false).Error; err != nil {
		return fmt.Errorf("deactivate invitation: %w", err)
	}
	return nil
}

// DeactivateExpired switches off pending invitations whose expiry passed.
func (r *InvitationRepository) DeactivateExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Invitation{}).
		Where("active = ? AND accepted = ? AND expires_at < ?", true, false, now).
		Update("active", false)
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate expired invitations: %w", res.Error)
	}
	return res.RowsAffected, nil
}
