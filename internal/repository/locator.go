package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"taskshare/internal/access"
	"taskshare/internal/model"
)

// Locator loads resources with the link to their parent for the resolver.
type Locator struct {
	db        *gorm.DB
	forUpdate bool
}

func NewLocator(db *gorm.DB) *Locator {
	return &Locator{db: db}
}

// ForUpdate returns a copy whose reads lock the loaded row until the
// surrounding transaction ends.
func (l *Locator) ForUpdate() *Locator {
	return &Locator{db: l.db, forUpdate: true}
}

type chainRow struct {
	ID       uint
	UserID   uint
	ParentID *uint
}

// Load implements access.Locator with one single-row query per level.
func (l *Locator) Load(ctx context.Context, kind model.Kind, id uint) (access.Node, bool, error) {
	node := access.Node{Kind: kind, ID: id}

	var (
		table  string
		parent string
	)
	switch kind {
	case model.KindCategory:
		table = model.Category{}.TableName()
	case model.KindList:
		table, parent = model.List{}.TableName(), "category_id"
		node.ParentKind = model.KindCategory
	case model.KindTask:
		table, parent = model.Task{}.TableName(), "list_id"
		node.ParentKind = model.KindList
	default:
		return node, false, fmt.Errorf("unknown resource kind %q", kind)
	}

	columns := "id, user_id"
	if parent != "" {
		columns += ", " + parent + " AS parent_id"
	}

	q := l.db.WithContext(ctx).Table(table).Select(columns).Where("id = ?", id)
	if l.forUpdate {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var row chainRow
	res := q.Limit(1).Scan(&row)
	if res.Error != nil {
		return node, false, fmt.Errorf("load %s: %w", kind, res.Error)
	}
	if res.RowsAffected == 0 {
		return node, false, nil
	}

	node.OwnerID = row.UserID
	node.ParentID = row.ParentID
	return node, true, nil
}
