package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskshare/internal/model"
)

// ShareRepository persists grants for categories and lists.
type ShareRepository struct {
	db *gorm.DB
}

func NewShareRepository(db *gorm.DB) *ShareRepository {
	return &ShareRepository{db: db}
}

// WithTx returns a copy bound to tx.
func (r *ShareRepository) WithTx(tx *gorm.DB) *ShareRepository {
	return &ShareRepository{db: tx}
}

// Member is an active grant joined with the grantee account.
type Member struct {
	UserID    uint       `json:"idUsuario"`
	Name      string     `json:"nombre"`
	Email     string     `json:"email"`
	Role      model.Role `json:"rol"`
	IsCreator bool       `json:"esCreador"`
	GrantedBy uint       `json:"compartidoPor"`
	GrantedAt time.Time  `json:"fechaCompartido"`
}

// SharedResource is a category or list some other user shared with the caller.
type SharedResource struct {
	ID        uint       `json:"id"`
	Name      string     `json:"nombre"`
	OwnerID   uint       `json:"idPropietario"`
	OwnerName string     `json:"propietario"`
	Role      model.Role `json:"rol"`
	GrantedAt time.Time  `json:"fechaCompartido"`
}

func shareModel(kind model.Kind) (any, error) {
	switch kind {
	case model.KindCategory:
		return &model.CategoryShare{}, nil
	case model.KindList:
		return &model.ListShare{}, nil
	}
	return nil, fmt.Errorf("%s has no grants", kind)
}

func shareRow(kind model.Kind, g model.Grant) (any, error) {
	switch kind {
	case model.KindCategory:
		return &model.CategoryShare{
			CategoryID: g.ResourceID, UserID: g.UserID, Role: g.Role, IsCreator: g.IsCreator,
			GrantedBy: g.GrantedBy, Accepted: g.Accepted, Active: g.Active, GrantedAt: g.GrantedAt,
		}, nil
	case model.KindList:
		return &model.ListShare{
			ListID: g.ResourceID, UserID: g.UserID, Role: g.Role, IsCreator: g.IsCreator,
			GrantedBy: g.GrantedBy, Accepted: g.Accepted, Active: g.Active, GrantedAt: g.GrantedAt,
		}, nil
	}
	return nil, fmt.Errorf("%s has no grants", kind)
}

func (r *ShareRepository) grantQuery(ctx context.Context, kind model.Kind, resourceID, userID uint) (*gorm.DB, error) {
	m, err := shareModel(kind)
	if err != nil {
		return nil, err
	}
	return r.db.WithContext(ctx).Model(m).
		Select(kind.ShareColumn()+" AS resource_id, user_id, role, is_creator, granted_by, accepted, active, granted_at").
		Where(kind.ShareColumn()+" = ? AND user_id = ?", resourceID, userID), nil
}

// FindGrant returns the user's grant row in any state. It implements access.GrantFinder.
func (r *ShareRepository) FindGrant(ctx context.Context, kind model.Kind, resourceID, userID uint) (model.Grant, bool, error) {
	q, err := r.grantQuery(ctx, kind, resourceID, userID)
	if err != nil {
		return model.Grant{}, false, err
	}
	return takeGrant(q)
}

// LockGrant is FindGrant under a row lock. Call it inside a transaction.
func (r *ShareRepository) LockGrant(ctx context.Context, kind model.Kind, resourceID, userID uint) (model.Grant, bool, error) {
	q, err := r.grantQuery(ctx, kind, resourceID, userID)
	if err != nil {
		return model.Grant{}, false, err
	}
	return takeGrant(q.Clauses(clause.Locking{Strength: "UPDATE"}))
}

func takeGrant(q *gorm.DB) (model.Grant, bool, error) {
	var grant model.Grant
	err := q.Take(&grant).Error
	switch {
	case err == nil:
		return grant, true, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return model.Grant{}, false, nil
	default:
		return model.Grant{}, false, fmt.Errorf("find grant: %w", err)
	}
}

// CreateGrant inserts a new row. A concurrent insert for the same pair
// surfaces as ErrDuplicate.
func (r *ShareRepository) CreateGrant(ctx context.Context, kind model.Kind, grant model.Grant) error {
	row, err := shareRow(kind, grant)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("create grant: %w", translate(err))
	}
	return nil
}

// UpsertGrant inserts the row or overwrites the existing one for the same pair.
func (r *ShareRepository) UpsertGrant(ctx context.Context, kind model.Kind, grant model.Grant) error {
	row, err := shareRow(kind, grant)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: kind.ShareColumn()}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "is_creator", "granted_by", "accepted", "active", "granted_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

// UpdateGrant changes a grant row. With skipCreator set, creator rows are
// left untouched. Returns the number of rows matched.
func (r *ShareRepository) UpdateGrant(ctx context.Context, kind model.Kind, resourceID, userID uint, updates map[string]any, skipCreator bool) (int64, error) {
	m, err := shareModel(kind)
	if err != nil {
		return 0, err
	}
	q := r.db.WithContext(ctx).Model(m).Where(kind.ShareColumn()+" = ? AND user_id = ?", resourceID, userID)
	if skipCreator {
		q = q.Where("is_creator = ?", false)
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return 0, fmt.Errorf("update grant: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeleteExcept hard-deletes every grant on the resource not held by keepUserID.
func (r *ShareRepository) DeleteExcept(ctx context.Context, kind model.Kind, resourceID, keepUserID uint) (int64, error) {
	m, err := shareModel(kind)
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where(kind.ShareColumn()+" = ? AND user_id <> ?", resourceID, keepUserID).Delete(m)
	if res.Error != nil {
		return 0, fmt.Errorf("delete grants: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Members lists active grants, creator rows first, then oldest first.
func (r *ShareRepository) Members(ctx context.Context, kind model.Kind, resourceID uint) ([]Member, error) {
	if !kind.Shareable() {
		return nil, fmt.Errorf("%s has no grants", kind)
	}
	var members []Member
	err := r.db.WithContext(ctx).Table(kind.ShareTable()+" AS g").
		Select("g.user_id, COALESCE(u.name, '') AS name, u.email, g.role, g.is_creator, g.granted_by, g.granted_at").
		Joins("JOIN "+model.User{}.TableName()+" AS u ON u.id = g.user_id").
		Where("g."+kind.ShareColumn()+" = ? AND g.active = ?", resourceID, true).
		Order("g.is_creator DESC, g.granted_at ASC").
		Scan(&members).Error
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// SharedWith lists resources of the kind other users shared with userID.
func (r *ShareRepository) SharedWith(ctx context.Context, kind model.Kind, userID uint) ([]SharedResource, error) {
	var table string
	switch kind {
	case model.KindCategory:
		table = model.Category{}.TableName()
	case model.KindList:
		table = model.List{}.TableName()
	default:
		return nil, fmt.Errorf("%s has no grants", kind)
	}
	var shared []SharedResource
	err := r.db.WithContext(ctx).Table(kind.ShareTable()+" AS g").
		Select("r.id, r.name, r.user_id AS owner_id, COALESCE(u.name, '') AS owner_name, g.role, g.granted_at").
		Joins("JOIN "+table+" AS r ON r.id = g."+kind.ShareColumn()).
		Joins("LEFT JOIN "+model.User{}.TableName()+" AS u ON u.id = r.user_id").
		Where("g.user_id = ? AND g.active = ? AND g.accepted = ? AND r.user_id <> ?", userID, true, true, userID).
		Order("g.granted_at DESC").
		Scan(&shared).Error
	if err != nil {
		return nil, fmt.Errorf("list shared %s: %w", kind, err)
	}
	return shared, nil
}

// KeyInUse reports whether any category or list already carries key.
func (r *ShareRepository) KeyInUse(ctx context.Context, key string) (bool, error) {
	for _, m := range []any{&model.Category{}, &model.List{}} {
		var count int64
		if err := r.db.WithContext(ctx).Model(m).Where("share_key = ?", key).Count(&count).Error; err != nil {
			return false, fmt.Errorf("check share key: %w", err)
		}
		if count > 0 {
			return true, nil
		}
	}
	return false, nil
}
