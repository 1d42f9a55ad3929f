package model

import "time"

// User is an account that can own and share resources.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Name         string    `gorm:"size:100" json:"nombre"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	CreatedAt    time.Time `json:"fechaCreacion"`
	UpdatedAt    time.Time `json:"-"`
}

func (User) TableName() string { return "usuario" }
