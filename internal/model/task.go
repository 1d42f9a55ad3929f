package model

import (
	"strings"
	"time"
)

// TaskState tracks completion of a task.
type TaskState string

const (
	TaskPending   TaskState = "pendiente"
	TaskCompleted TaskState = "completada"
)

// ParseTaskState accepts the state names and their one-letter forms.
func ParseTaskState(raw string) (TaskState, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "pendiente", "p":
		return TaskPending, true
	case "completada", "c":
		return TaskCompleted, true
	}
	return "", false
}

// Task represents a single item in a list.
type Task struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	UserID      uint       `gorm:"index;not null" json:"idUsuario"`
	ListID      *uint      `gorm:"index" json:"idLista"`
	Name        string     `gorm:"size:255;not null" json:"nombre"`
	Description string     `json:"descripcion,omitempty"`
	State       TaskState  `gorm:"size:20;not null" json:"estado"`
	Priority    int        `json:"prioridad"`
	MyDay       bool       `gorm:"not null;default:false" json:"miDia"`
	DueAt       *time.Time `json:"fechaVencimiento,omitempty"`
	CompletedAt *time.Time `json:"fechaCompletada,omitempty"`
	CreatedAt   time.Time  `json:"fechaCreacion"`
	UpdatedAt   time.Time  `json:"fechaActualizacion"`
}

func (Task) TableName() string { return "tarea" }
