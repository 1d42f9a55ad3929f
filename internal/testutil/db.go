// Package testutil builds throwaway databases and rows for tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"taskshare/internal/model"
	"taskshare/internal/repository"
)

// Logger discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewDB opens a migrated in-memory SQLite database private to the test.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repository.NewDB(dsn, repository.Options{Logger: Logger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = repository.Close(db) })
	return db
}

// Fixture inserts rows directly, bypassing permission checks.
type Fixture struct {
	t  testing.TB
	DB *gorm.DB
}

func NewFixture(t testing.TB) *Fixture {
	return &Fixture{t: t, DB: NewDB(t)}
}

func (f *Fixture) create(v any) {
	f.t.Helper()
	require.NoError(f.t, f.DB.WithContext(context.Background()).Create(v).Error)
}

func (f *Fixture) User(email string) model.User {
	f.t.Helper()
	u := model.User{Email: email, Name: email}
	f.create(&u)
	return u
}

func (f *Fixture) Category(ownerID uint, name string) model.Category {
	f.t.Helper()
	c := model.Category{UserID: ownerID, Name: name}
	f.create(&c)
	return c
}

func (f *Fixture) List(ownerID uint, categoryID *uint, name string) model.List {
	f.t.Helper()
	l := model.List{UserID: ownerID, CategoryID: categoryID, Name: name}
	f.create(&l)
	return l
}

func (f *Fixture) Task(ownerID uint, listID *uint, name string) model.Task {
	f.t.Helper()
	task := model.Task{UserID: ownerID, ListID: listID, Name: name, State: model.TaskPending}
	f.create(&task)
	return task
}

// Grant inserts a grant row in the given state.
func (f *Fixture) Grant(kind model.Kind, resourceID, userID uint, role model.Role, active, accepted bool) {
	f.t.Helper()
	now := time.Now()
	switch kind {
	case model.KindCategory:
		f.create(&model.CategoryShare{CategoryID: resourceID, UserID: userID, Role: role, Active: active, Accepted: accepted, GrantedAt: now})
	case model.KindList:
		f.create(&model.ListShare{ListID: resourceID, UserID: userID, Role: role, Active: active, Accepted: accepted, GrantedAt: now})
	default:
		f.t.Fatalf("no grants for %s", kind)
	}
}

// Ptr returns a pointer to v.
func Ptr(v uint) *uint { return &v }
