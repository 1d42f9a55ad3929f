package service

import (
	"context"

	"taskshare/internal/access"
	"taskshare/internal/model"
	"taskshare/internal/repository"
)

const maxCategoryName = 100

// CategoryService provides permission-checked access to categories.
type CategoryService struct {
	repo  *repository.CategoryRepository
	authz Authorizer
}

func NewCategoryService(repo *repository.CategoryRepository, authz Authorizer) *CategoryService {
	return &CategoryService{repo: repo, authz: authz}
}

func (s *CategoryService) Create(ctx context.Context, actorID uint, name string) (*model.Category, error) {
	name, err := cleanName("nombre", name, maxCategoryName)
	if err != nil {
		return nil, err
	}
	category := model.Category{UserID: actorID, Name: name}
	if err := s.repo.Create(ctx, &category); err != nil {
		return nil, err
	}
	return &category, nil
}

// List returns the categories the actor owns.
func (s *CategoryService) List(ctx context.Context, actorID uint) ([]model.Category, error) {
	return s.repo.ListByUser(ctx, actorID)
}

// Get returns the category with its lists.
func (s *CategoryService) Get(ctx context.Context, actorID, id uint) (*model.Category, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindCategory, id, access.ActionView); err != nil {
		return nil, err
	}
	category, err := s.repo.GetWithLists(ctx, id)
	if err != nil {
		return nil, missing(model.KindCategory, id, err)
	}
	return category, nil
}

func (s *CategoryService) Rename(ctx context.Context, actorID, id uint, name string) (*model.Category, error) {
	name, err := cleanName("nombre", name, maxCategoryName)
	if err != nil {
		return nil, err
	}
	if _, err := authorize(ctx, s.authz, actorID, model.KindCategory, id, access.ActionEdit); err != nil {
		return nil, err
	}
	if err := s.repo.Rename(ctx, id, name); err != nil {
		return nil, err
	}
	category, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, missing(model.KindCategory, id, err)
	}
	return category, nil
}

// Delete removes the category. Its lists survive without a category.
func (s *CategoryService) Delete(ctx context.Context, actorID, id uint) error {
	if _, err := authorize(ctx, s.authz, actorID, model.KindCategory, id, access.ActionDelete); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
