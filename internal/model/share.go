package model

import "time"

// CategoryShare grants a user access to a category.
type CategoryShare struct {
	ID         uint `gorm:"primaryKey"`
	CategoryID uint `gorm:"not null;uniqueIndex:idx_categoria_compartida_usuario,priority:1"`
	UserID     uint `gorm:"not null;index;uniqueIndex:idx_categoria_compartida_usuario,priority:2"`
	Role       Role `gorm:"size:20;not null"`
	IsCreator  bool `gorm:"not null"`
	GrantedBy  uint
	Accepted   bool `gorm:"not null"`
	Active     bool `gorm:"not null"`
	GrantedAt  time.Time
}

func (CategoryShare) TableName() string { return "categoria_compartida" }

// ListShare grants a user access to a list.
type ListShare struct {
	ID        uint `gorm:"primaryKey"`
	ListID    uint `gorm:"not null;uniqueIndex:idx_lista_compartida_usuario,priority:1"`
	UserID    uint `gorm:"not null;index;uniqueIndex:idx_lista_compartida_usuario,priority:2"`
	Role      Role `gorm:"size:20;not null"`
	IsCreator bool `gorm:"not null"`
	GrantedBy uint
	Accepted  bool `gorm:"not null"`
	Active    bool `gorm:"not null"`
	GrantedAt time.Time
}

func (ListShare) TableName() string { return "lista_compartida" }

// Grant is the kind-independent view of a CategoryShare or ListShare row.
type Grant struct {
	ResourceID uint
	UserID     uint
	Role       Role
	IsCreator  bool
	GrantedBy  uint
	Accepted   bool
	Active     bool
	GrantedAt  time.Time
}

// Effective reports whether the row authorizes anything.
func (g Grant) Effective() bool { return g.Active && g.Accepted }
