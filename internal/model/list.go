package model

import "time"

// List holds tasks and optionally belongs to a category.
type List struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"index;not null" json:"idUsuario"`
	CategoryID *uint     `gorm:"index" json:"idCategoria"`
	Name       string    `gorm:"size:100;not null" json:"nombre"`
	Color      string    `gorm:"size:20" json:"color,omitempty"`
	Icon       string    `gorm:"size:50" json:"icono,omitempty"`
	Important  bool      `json:"importante"`
	ShareKey   *string   `gorm:"size:8;uniqueIndex" json:"claveCompartir,omitempty"`
	Shareable  bool      `json:"compartible"`
	CreatedAt  time.Time `json:"fechaCreacion"`
	UpdatedAt  time.Time `json:"fechaActualizacion"`
}

func (List) TableName() string { return "lista" }
