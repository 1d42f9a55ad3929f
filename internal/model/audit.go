package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditEntry records a sharing action. Rows are never updated or deleted.
type AuditEntry struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Kind       Kind           `gorm:"size:20;not null;index:idx_auditoria_entidad,priority:1" json:"tipo"`
	ResourceID uint           `gorm:"not null;index:idx_auditoria_entidad,priority:2" json:"idRecurso"`
	UserID     uint           `gorm:"index" json:"idUsuario"`
	Action     string         `gorm:"size:50;not null" json:"accion"`
	Details    datatypes.JSON `json:"detalles,omitempty"`
	CreatedAt  time.Time      `json:"fecha"`
}

func (AuditEntry) TableName() string { return "auditoria_compartidos" }

// All lists every model in migration order.
func All() []any {
	return []any{
		&User{},
		&Category{},
		&List{},
		&Task{},
		&CategoryShare{},
		&ListShare{},
		&Invitation{},
		&AuditEntry{},
	}
}
