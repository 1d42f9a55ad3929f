package model

import "time"

// Category groups lists. It is owned by the user who created it.
type Category struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"idUsuario"`
	Name      string    `gorm:"size:100;not null" json:"nombre"`
	ShareKey  *string   `gorm:"size:8;uniqueIndex" json:"claveCompartir,omitempty"`
	Shareable bool      `json:"compartible"`
	CreatedAt time.Time `json:"fechaCreacion"`
	UpdatedAt time.Time `json:"fechaActualizacion"`
	Lists     []List    `gorm:"foreignKey:CategoryID" json:"listas,omitempty"`
}

func (Category) TableName() string { return "categoria" }
