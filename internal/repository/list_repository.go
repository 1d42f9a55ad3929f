package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taskshare/internal/model"
)

// ListRepository manages lists.
type ListRepository struct {
	db *gorm.DB
}

func NewListRepository(db *gorm.DB) *ListRepository {
	return &ListRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *ListRepository) WithTx(tx *gorm.DB) *ListRepository {
	return &ListRepository{db: tx}
}

func (r *ListRepository) Create(ctx context.Context, list *model.List) error {
	if err := r.db.WithContext(ctx).Create(list).Error; err != nil {
		return fmt.Errorf("create list: %w", translate(err))
	}
	return nil
}

// GetByID returns the list or gorm.ErrRecordNotFound.
func (r *ListRepository) GetByID(ctx context.Context, id uint) (*model.List, error) {
	var list model.List
	if err := r.db.WithContext(ctx).First(&list, id).Error; err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *ListRepository) ListByUser(ctx context.Context, userID uint) ([]model.List, error) {
	var lists []model.List
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&lists).Error; err != nil {
		return nil, err
	}
	return lists, nil
}

// ListImportant returns the user's lists flagged important.
func (r *ListRepository) ListImportant(ctx context.Context, userID uint) ([]model.List, error) {
	var lists []model.List
	if err := r.db.WithContext(ctx).Where("user_id = ? AND important = ?", userID, true).
		Order("name ASC").Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("list important lists: %w", err)
	}
	return lists, nil
}

func (r *ListRepository) ListByCategory(ctx context.Context, categoryID uint) ([]model.List, error) {
	var lists []model.List
	if err := r.db.WithContext(ctx).Where("category_id = ?", categoryID).Order("id ASC").Find(&lists).Error; err != nil {
		return nil, fmt.Errorf("list category lists: %w", err)
	}
	return lists, nil
}

func (r *ListRepository) FindByShareKey(ctx context.Context, key string) (*model.List, error) {
	var list model.List
	err := r.db.WithContext(ctx).Where("share_key = ?", key).First(&list).Error
	switch {
	case err == nil:
		return &list, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("find list by key: %w", err)
	}
}

// Update saves the editable fields of a list.
func (r *ListRepository) Update(ctx context.Context, list *model.List) error {
	if err := r.db.WithContext(ctx).Model(list).Select("name", "color", "icon", "important", "category_id").
		Updates(list).Error; err != nil {
		return fmt.Errorf("update list: %w", err)
	}
	return nil
}

// SetShareKey stores key (nil clears it) together with the shareable flag.
func (r *ListRepository) SetShareKey(ctx context.Context, id uint, key *string, shareable bool) error {
	if err := r.db.WithContext(ctx).Model(&model.List{}).Where("id = ?", id).
		Updates(map[string]any{"share_key": key, "shareable": shareable}).Error; err != nil {
		return fmt.Errorf("set list share key: %w", translate(err))
	}
	return nil
}

// Delete removes the list with its tasks and grants.
func (r *ListRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("list_id = ?", id).Delete(&model.Task{}).Error; err != nil {
			return fmt.Errorf("delete list tasks: %w", err)
		}
		if err := tx.Where("list_id = ?", id).Delete(&model.ListShare{}).Error; err != nil {
			return fmt.Errorf("delete list grants: %w", err)
		}
		if err := tx.Delete(&model.List{}, id).Error; err != nil {
			return fmt.Errorf("delete list: %w", err)
		}
		return nil
	})
}
