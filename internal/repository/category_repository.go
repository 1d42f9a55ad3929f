package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"taskshare/internal/model"
)

// CategoryRepository manages categories.
type CategoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *CategoryRepository) WithTx(tx *gorm.DB) *CategoryRepository {
	return &CategoryRepository{db: tx}
}

func (r *CategoryRepository) Create(ctx context.Context, category *model.Category) error {
	if err := r.db.WithContext(ctx).Create(category).Error; err != nil {
		return fmt.Errorf("create category: %w", translate(err))
	}
	return nil
}

// GetByID returns the category or gorm.ErrRecordNotFound.
func (r *CategoryRepository) GetByID(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

// GetWithLists loads the category and its lists.
func (r *CategoryRepository) GetWithLists(ctx context.Context, id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.WithContext(ctx).Preload("Lists", func(db *gorm.DB) *gorm.DB {
		return db.Order("name ASC")
	}).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) ListByUser(ctx context.Context, userID uint) ([]model.Category, error) {
	var categories []model.Category
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *CategoryRepository) FindByShareKey(ctx context.Context, key string) (*model.Category, error) {
	var category model.Category
	err := r.db.WithContext(ctx).Where("share_key = ?", key).First(&category).Error
	switch {
	case err == nil:
		return &category, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	default:
		return nil, fmt.Errorf("find category by key: %w", err)
	}
}

func (r *CategoryRepository) Rename(ctx context.Context, id uint, name string) error {
	if err := r.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id).
		Update("name", name).Error; err != nil {
		return fmt.Errorf("rename category: %w", err)
	}
	return nil
}

// SetShareKey stores key (nil clears it) together with the shareable flag.
func (r *CategoryRepository) SetShareKey(ctx context.Context, id uint, key *string, shareable bool) error {
	if err := r.db.WithContext(ctx).Model(&model.Category{}).Where("id = ?", id).
		Updates(map[string]any{"share_key": key, "shareable": shareable}).Error; err != nil {
		return fmt.Errorf("set category share key: %w", translate(err))
	}
	return nil
}

// Delete removes the category and its grants. Child lists are detached.
func (r *CategoryRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.List{}).Where("category_id = ?", id).
			Update("category_id", nil).Error; err != nil {
			return fmt.Errorf("detach lists: %w", err)
		}
		if err := tx.Where("category_id = ?", id).Delete(&model.CategoryShare{}).Error; err != nil {
			return fmt.Errorf("delete category grants: %w", err)
		}
		if err := tx.Delete(&model.Category{}, id).Error; err != nil {
			return fmt.Errorf("delete category: %w", err)
		}
		return nil
	})
}
