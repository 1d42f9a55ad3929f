package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"taskshare/internal/model"
)

// AuditRepository appends and reads sharing audit entries.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Insert(ctx context.Context, entry *model.AuditEntry) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByResource returns the newest entries first.
func (r *AuditRepository) ListByResource(ctx context.Context, kind model.Kind, resourceID uint, limit int) ([]model.AuditEntry, error) {
	var entries []model.AuditEntry
	if err := r.db.WithContext(ctx).Where("kind = ? AND resource_id = ?", kind, resourceID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}
