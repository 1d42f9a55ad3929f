package service

import (
	"context"
	"time"

	"taskshare/internal/access"
	"taskshare/internal/model"
	"taskshare/internal/repository"
)

const (
	maxListName  = 100
	maxListColor = 20
	maxListIcon  = 50
)

// ListInput carries the editable fields of a list. Nil fields are left as is
// on update.
type ListInput struct {
	Name       *string
	Color      *string
	Icon       *string
	Important  *bool
	CategoryID *uint
	// ClearCategory detaches the list from its category.
	ClearCategory bool
}

// ListService provides permission-checked access to lists.
type ListService struct {
	repo  *repository.ListRepository
	tasks *repository.TaskRepository
	authz Authorizer
}

func NewListService(repo *repository.ListRepository, tasks *repository.TaskRepository, authz Authorizer) *ListService {
	return &ListService{repo: repo, tasks: tasks, authz: authz}
}

// Create adds a list owned by the actor. Placing it in a category requires
// edit permission on that category.
func (s *ListService) Create(ctx context.Context, actorID uint, in ListInput) (*model.List, error) {
	if in.Name == nil {
		return nil, &ValidationError{Field: "nombre", Message: "is required"}
	}
	list := model.List{UserID: actorID}
	if err := applyListInput(&list, in); err != nil {
		return nil, err
	}
	if list.CategoryID != nil {
		if _, err := authorize(ctx, s.authz, actorID, model.KindCategory, *list.CategoryID, access.ActionEdit); err != nil {
			return nil, err
		}
	}
	if err := s.repo.Create(ctx, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// List returns the lists the actor owns.
func (s *ListService) List(ctx context.Context, actorID uint) ([]model.List, error) {
	return s.repo.ListByUser(ctx, actorID)
}

// Important returns the actor's lists flagged important.
func (s *ListService) Important(ctx context.Context, actorID uint) ([]model.List, error) {
	return s.repo.ListImportant(ctx, actorID)
}

// ByCategory returns the lists of a category the actor can view.
func (s *ListService) ByCategory(ctx context.Context, actorID, categoryID uint) ([]model.List, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindCategory, categoryID, access.ActionView); err != nil {
		return nil, err
	}
	return s.repo.ListByCategory(ctx, categoryID)
}

// Stats counts the tasks of a list the actor can view. Overdue counts
// unfinished tasks due before the start of the day containing now.
func (s *ListService) Stats(ctx context.Context, actorID, id uint, now time.Time) (repository.ListStats, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindList, id, access.ActionView); err != nil {
		return repository.ListStats{}, err
	}
	return s.tasks.StatsByList(ctx, id, startOfDay(now))
}

func (s *ListService) Get(ctx context.Context, actorID, id uint) (*model.List, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindList, id, access.ActionView); err != nil {
		return nil, err
	}
	list, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, missing(model.KindList, id, err)
	}
	return list, nil
}

// Tasks returns the tasks of a list the actor can view.
func (s *ListService) Tasks(ctx context.Context, actorID, id uint) ([]model.Task, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindList, id, access.ActionView); err != nil {
		return nil, err
	}
	return s.tasks.ListByList(ctx, id)
}

// Update edits a list. Changing its category also needs move permission on
// the list and edit permission on the new category.
func (s *ListService) Update(ctx context.Context, actorID, id uint, in ListInput) (*model.List, error) {
	if _, err := authorize(ctx, s.authz, actorID, model.KindList, id, access.ActionEdit); err != nil {
		return nil, err
	}
	list, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, missing(model.KindList, id, err)
	}
	previous := list.CategoryID
	if err := applyListInput(list, in); err != nil {
		return nil, err
	}
	if !sameParent(previous, list.CategoryID) {
		if _, err := authorize(ctx, s.authz, actorID, model.KindList, id, access.ActionMove); err != nil {
			return nil, err
		}
		if list.CategoryID != nil {
			if _, err := authorize(ctx, s.authz, actorID, model.KindCategory, *list.CategoryID, access.ActionEdit); err != nil {
				return nil, err
			}
		}
	}
	if err := s.repo.Update(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Delete removes the list together with its tasks.
func (s *ListService) Delete(ctx context.Context, actorID, id uint) error {
	if _, err := authorize(ctx, s.authz, actorID, model.KindList, id, access.ActionDelete); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}

func applyListInput(list *model.List, in ListInput) error {
	if in.Name != nil {
		name, err := cleanName("nombre", *in.Name, maxListName)
		if err != nil {
			return err
		}
		list.Name = name
	}
	if in.Color != nil {
		if len(*in.Color) > maxListColor {
			return &ValidationError{Field: "color", Message: "is too long"}
		}
		list.Color = *in.Color
	}
	if in.Icon != nil {
		if len(*in.Icon) > maxListIcon {
			return &ValidationError{Field: "icono", Message: "is too long"}
		}
		list.Icon = *in.Icon
	}
	if in.Important != nil {
		list.Important = *in.Important
	}
	switch {
	case in.ClearCategory:
		list.CategoryID = nil
	case in.CategoryID != nil:
		id := *in.CategoryID
		list.CategoryID = &id
	}
	return nil
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
