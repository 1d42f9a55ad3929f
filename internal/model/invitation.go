package model

import "time"

// Invitation is a pending offer of access for an email without an account.
type Invitation struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Kind       Kind      `gorm:"size:20;not null;index:idx_invitacion_recurso,priority:1" json:"tipo"`
	ResourceID uint      `gorm:"not null;index:idx_invitacion_recurso,priority:2" json:"idRecurso"`
	Email      string    `gorm:"size:255;not null;index" json:"email"`
	Role       Role      `gorm:"size:20;not null" json:"rol"`
	Token      string    `gorm:"size:64;not null;uniqueIndex" json:"token"`
	InvitedBy  uint      `json:"invitadoPor"`
	CreatedAt  time.Time `json:"fechaCreacion"`
	ExpiresAt  time.Time `gorm:"index" json:"fechaExpiracion"`
	Accepted   bool      `gorm:"not null" json:"aceptada"`
	Active     bool      `gorm:"not null" json:"activa"`
}

func (Invitation) TableName() string { return "invitacion" }

// Expired reports whether the invitation can no longer be consumed at now.
func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}
