package sharing_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskshare/internal/access"
	"taskshare/internal/audit"
	"taskshare/internal/model"
	"taskshare/internal/repository"
	"taskshare/internal/sharing"
	"taskshare/internal/testutil"
)

type env struct {
	*testutil.Fixture
	dir      *sharing.Directory
	resolver *access.Resolver
	shares   *repository.ShareRepository
	events   []sharing.Event
	now      time.Time
}

func newEnv(t *testing.T, opts ...sharing.Option) *env {
	t.Helper()
	f := testutil.NewFixture(t)
	e := &env{
		Fixture:  f,
		resolver: access.NewResolver(repository.NewLocator(f.DB), repository.NewShareRepository(f.DB)),
		shares:   repository.NewShareRepository(f.DB),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	recorder := audit.NewRecorder(repository.NewAuditRepository(f.DB), testutil.Logger())
	base := []sharing.Option{
		sharing.WithLogger(testutil.Logger()),
		sharing.WithClock(func() time.Time { return e.now }),
		sharing.WithPublisher(sharing.PublisherFunc(func(_ context.Context, ev sharing.Event) {
			e.events = append(e.events, ev)
		})),
	}
	e.dir = sharing.NewDirectory(f.DB, e.resolver, recorder, append(base, opts...)...)
	return e
}

func (e *env) resolve(t *testing.T, actor uint, kind model.Kind, id uint, action access.Action) access.Decision {
	t.Helper()
	d, err := e.resolver.Resolve(context.Background(), actor, kind, id, action)
	require.NoError(t, err)
	return d
}

func (e *env) grant(t *testing.T, kind model.Kind, id, user uint) (model.Grant, bool) {
	t.Helper()
	g, ok, err := e.shares.FindGrant(context.Background(), kind, id, user)
	require.NoError(t, err)
	return g, ok
}

func (e *env) auditCount(t *testing.T, action audit.Action) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.DB.Model(&model.AuditEntry{}).Where("action = ?", string(action)).Count(&n).Error)
	return n
}

func TestGenerateShareKeyCascadesToLists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	cat := e.Category(owner.ID, "Work")
	l1 := e.List(owner.ID, &cat.ID, "Backlog")
	l2 := e.List(owner.ID, &cat.ID, "Done")

	res, err := e.dir.GenerateShareKey(ctx, model.KindCategory, cat.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, sharing.ValidKey(res.Key))
	assert.False(t, res.Reused)
	require.Len(t, res.Lists, 2)

	var stored model.Category
	require.NoError(t, e.DB.First(&stored, cat.ID).Error)
	require.NotNil(t, stored.ShareKey)
	assert.Equal(t, res.Key, *stored.ShareKey)
	assert.True(t, stored.Shareable)

	for _, id := range []uint{l1.ID, l2.ID} {
		var list model.List
		require.NoError(t, e.DB.First(&list, id).Error)
		assert.True(t, list.Shareable)
		require.NotNil(t, list.ShareKey)
		assert.NotEqual(t, res.Key, *list.ShareKey)

		g, ok := e.grant(t, model.KindList, id, owner.ID)
		require.True(t, ok)
		assert.True(t, g.IsCreator)
		assert.Equal(t, model.RoleAdmin, g.Role)
	}

	again, err := e.dir.GenerateShareKey(ctx, model.KindCategory, cat.ID, owner.ID)
	require.NoError(t, err)
	assert.True(t, again.Reused)
	assert.Equal(t, res.Key, again.Key)

	var rows int64
	require.NoError(t, e.DB.Model(&model.ListShare{}).Where("user_id = ?", owner.ID).Count(&rows).Error)
	assert.Equal(t, int64(2), rows, "creator rows are upserted, never duplicated")

	assert.Equal(t, int64(1), e.auditCount(t, audit.ActionGenerateKey))
	assert.Equal(t, int64(1), e.auditCount(t, audit.ActionReuseKey))
}

func TestGenerateShareKeyRequiresOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	admin := e.User("admin@example.com")
	stranger := e.User("stranger@example.com")
	list := e.List(owner.ID, nil, "Groceries")
	e.Grant(model.KindList, list.ID, admin.ID, model.RoleAdmin, true, true)

	_, err := e.dir.GenerateShareKey(ctx, model.KindList, list.ID, admin.ID)
	assert.ErrorIs(t, err, sharing.ErrOwnerOnly)

	_, err = e.dir.GenerateShareKey(ctx, model.KindList, list.ID, stranger.ID)
	assert.ErrorIs(t, err, access.ErrAccessDenied)

	_, err = e.dir.GenerateShareKey(ctx, model.KindList, 9999, owner.ID)
	assert.ErrorIs(t, err, access.ErrNotFound)

	_, err = e.dir.GenerateShareKey(ctx, model.KindTask, 1, owner.ID)
	assert.ErrorIs(t, err, sharing.ErrNotShareable)

	assert.Empty(t, e.events)
}

func TestJoinCategoryByKeyDoesNotCascadeToLists(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	cat := e.Category(owner.ID, "Family")
	list := e.List(owner.ID, &cat.ID, "Shopping")
	task := e.Task(owner.ID, &list.ID, "Bread")

	res, err := e.dir.GenerateShareKey(ctx, model.KindCategory, cat.ID, owner.ID)
	require.NoError(t, err)

	joined, err := e.dir.JoinByKey(ctx, model.KindCategory, res.Key, guest.ID)
	require.NoError(t, err)
	assert.Equal(t, cat.ID, joined.ResourceID)
	assert.Equal(t, model.RoleCollaborator, joined.Role)
	assert.False(t, joined.Reactivated)

	d := e.resolve(t, guest.ID, model.KindCategory, cat.ID, access.ActionView)
	assert.Equal(t, access.OutcomeGranted, d.Outcome)
	assert.Equal(t, model.RoleCollaborator, d.Role)
	assert.Equal(t, access.ViaDirect, d.Via)

	_, ok := e.grant(t, model.KindList, list.ID, guest.ID)
	assert.False(t, ok, "joiners must not receive list rows")

	d = e.resolve(t, guest.ID, model.KindList, list.ID, access.ActionEdit)
	assert.Equal(t, access.OutcomeGranted, d.Outcome)
	assert.Equal(t, access.ViaInherited, d.Via)

	d = e.resolve(t, guest.ID, model.KindTask, task.ID, access.ActionDelete)
	assert.Equal(t, access.OutcomeDenied, d.Outcome)
	assert.Equal(t, access.ReasonRoleForbids, d.Reason)

	require.Len(t, e.events, 2)
	assert.Equal(t, sharing.EventJoined, e.events[1].Type)
	assert.Equal(t, owner.ID, e.events[1].TargetUserID)
}

func TestJoinListByKeyRoundTrip(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	list := e.List(owner.ID, nil, "Reading")

	res, err := e.dir.GenerateShareKey(ctx, model.KindList, list.ID, owner.ID)
	require.NoError(t, err)

	_, err = e.dir.JoinByKey(ctx, model.KindList, res.Key, guest.ID)
	require.NoError(t, err)

	d := e.resolve(t, guest.ID, model.KindList, list.ID, access.ActionEdit)
	assert.Equal(t, access.OutcomeGranted, d.Outcome)
	assert.Equal(t, model.RoleCollaborator, d.Role)
	assert.Equal(t, access.ViaDirect, d.Via)
}

func TestJoinByKeyRejections(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	list := e.List(owner.ID, nil, "Errands")

	res, err := e.dir.GenerateShareKey(ctx, model.KindList, list.ID, owner.ID)
	require.NoError(t, err)

	tests := []struct {
		name  string
		key   string
		actor uint
		want  error
	}{
		{"malformed", "AB-12", guest.ID, sharing.ErrInvalidKey},
		{"unknown", "ZZZZZZZZ", guest.ID, sharing.ErrKeyNotFound},
		{"owner", res.Key, owner.ID, sharing.ErrAlreadyOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.dir.JoinByKey(ctx, model.KindList, tt.key, tt.actor)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("key is case insensitive", func(t *testing.T) {
		lower := []byte(res.Key)
		for i, c := range lower {
			if c >= 'A' && c <= 'Z' {
				lower[i] = c + ('a' - 'A')
			}
		}
		_, err := e.dir.JoinByKey(ctx, model.KindList, " "+string(lower)+" ", guest.ID)
		require.NoError(t, err)
	})

	t.Run("second join", func(t *testing.T) {
		_, err := e.dir.JoinByKey(ctx, model.KindList, res.Key, guest.ID)
		assert.ErrorIs(t, err, sharing.ErrAlreadyMember)
	})

	t.Run("wrong kind", func(t *testing.T) {
		_, err := e.dir.JoinByKey(ctx, model.KindCategory, res.Key, guest.ID)
		assert.ErrorIs(t, err, sharing.ErrKeyNotFound)
	})
}

func TestJoinByKeyReactivatesRevokedGrant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	cat := e.Category(owner.ID, "Projects")

	res, err := e.dir.GenerateShareKey(ctx, model.KindCategory, cat.ID, owner.ID)
	require.NoError(t, err)
	_, err = e.dir.JoinByKey(ctx, model.KindCategory, res.Key, guest.ID)
	require.NoError(t, err)
	require.NoError(t, e.dir.Revoke(ctx, model.KindCategory, cat.ID, guest.ID, owner.ID))

	joined, err := e.dir.JoinByKey(ctx, model.KindCategory, res.Key, guest.ID)
	require.NoError(t, err)
	assert.True(t, joined.Reactivated)

	var rows int64
	require.NoError(t, e.DB.Model(&model.CategoryShare{}).Where("category_id = ? AND user_id = ?", cat.ID, guest.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)

	g, ok := e.grant(t, model.KindCategory, cat.ID, guest.ID)
	require.True(t, ok)
	assert.True(t, g.Effective())
}

func TestCreatorGrantIsImmutable(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	admin := e.User("admin@example.com")
	cat := e.Category(owner.ID, "Team")
	list := e.List(owner.ID, &cat.ID, "Board")

	_, err := e.dir.GenerateShareKey(ctx, model.KindCategory, cat.ID, owner.ID)
	require.NoError(t, err)
	_, err = e.dir.Invite(ctx, model.KindCategory, cat.ID, owner.ID, admin.Email, model.RoleAdmin)
	require.NoError(t, err)

	for _, actor := range []uint{owner.ID, admin.ID} {
		for _, target := range []struct {
			kind model.Kind
			id   uint
		}{{model.KindCategory, cat.ID}, {model.KindList, list.ID}} {
			err := e.dir.ModifyRole(ctx, target.kind, target.id, owner.ID, model.RoleViewer, actor)
			assert.ErrorIs(t, err, sharing.ErrImmutableGrant)
			err = e.dir.Revoke(ctx, target.kind, target.id, owner.ID, actor)
			assert.ErrorIs(t, err, sharing.ErrImmutableGrant)
		}
	}

	g, ok := e.grant(t, model.KindList, list.ID, owner.ID)
	require.True(t, ok)
	assert.Equal(t, model.RoleAdmin, g.Role)
	assert.True(t, g.Active)
}

func TestRevokeIsIdempotent(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	list := e.List(owner.ID, nil, "Ideas")
	e.Grant(model.KindList, list.ID, guest.ID, model.RoleEditor, true, true)

	require.NoError(t, e.dir.Revoke(ctx, model.KindList, list.ID, guest.ID, owner.ID))
	require.NoError(t, e.dir.Revoke(ctx, model.KindList, list.ID, guest.ID, owner.ID))

	g, ok := e.grant(t, model.KindList, list.ID, guest.ID)
	require.True(t, ok)
	assert.False(t, g.Active)
	assert.Equal(t, int64(1), e.auditCount(t, audit.ActionRevokeAccess))

	d := e.resolve(t, guest.ID, model.KindList, list.ID, access.ActionView)
	assert.Equal(t, access.ReasonNoAccess, d.Reason)

	err := e.dir.Revoke(ctx, model.KindList, list.ID, 4242, owner.ID)
	assert.ErrorIs(t, err, sharing.ErrImmutableGrant)
}

func TestModifyRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	helper := e.User("helper@example.com")
	list := e.List(owner.ID, nil, "Garden")
	e.Grant(model.KindList, list.ID, guest.ID, model.RoleViewer, true, true)
	e.Grant(model.KindList, list.ID, helper.ID, model.RoleCollaborator, true, true)

	require.NoError(t, e.dir.ModifyRole(ctx, model.KindList, list.ID, guest.ID, "visor", owner.ID))
	require.NoError(t, e.dir.ModifyRole(ctx, model.KindList, list.ID, guest.ID, model.RoleEditor, owner.ID))
	d := e.resolve(t, guest.ID, model.KindList, list.ID, access.ActionMove)
	assert.Equal(t, access.OutcomeGranted, d.Outcome)

	err := e.dir.ModifyRole(ctx, model.KindList, list.ID, guest.ID, model.RoleOwner, owner.ID)
	assert.ErrorIs(t, err, sharing.ErrInvalidRole)

	err = e.dir.ModifyRole(ctx, model.KindList, list.ID, guest.ID, model.RoleViewer, helper.ID)
	var denied *access.DeniedError
	require.True(t, errors.As(err, &denied))
	assert.Equal(t, access.ReasonRoleForbids, denied.Decision.Reason)
}

func TestInviteRegisteredUserIsImmediate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	editor := e.User("editor@example.com")
	cat := e.Category(owner.ID, "Home")
	e.Grant(model.KindCategory, cat.ID, editor.ID, model.RoleEditor, true, true)

	res, err := e.dir.Invite(ctx, model.KindCategory, cat.ID, owner.ID, "  Guest@Example.com ", model.RoleViewer)
	require.NoError(t, err)
	assert.True(t, res.Registered)
	assert.Equal(t, guest.ID, res.UserID)
	assert.Nil(t, res.Invitation)

	d := e.resolve(t, guest.ID, model.KindCategory, cat.ID, access.ActionView)
	assert.Equal(t, access.OutcomeGranted, d.Outcome)
	assert.Equal(t, model.RoleViewer, d.Role)

	tests := []struct {
		name  string
		actor uint
		email string
		role  model.Role
		want  error
	}{
		{"already shared", owner.ID, guest.Email, model.RoleAdmin, sharing.ErrAlreadyShared},
		{"owner", owner.ID, owner.Email, model.RoleAdmin, sharing.ErrCannotInviteOwner},
		{"bad email", owner.ID, "not-an-email", model.RoleAdmin, sharing.ErrInvalidEmail},
		{"owner role", owner.ID, "new@example.com", model.RoleOwner, sharing.ErrInvalidRole},
		{"editor cannot share", editor.ID, "new@example.com", model.RoleViewer, access.ErrAccessDenied},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.dir.Invite(ctx, model.KindCategory, cat.ID, tt.actor, tt.email, tt.role)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestInvitationLifecycle(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	list := e.List(owner.ID, nil, "Holiday")

	res, err := e.dir.Invite(ctx, model.KindList, list.ID, owner.ID, "late@example.com", model.RoleEditor)
	require.NoError(t, err)
	assert.False(t, res.Registered)
	require.NotNil(t, res.Invitation)
	inv := res.Invitation
	assert.Len(t, inv.Token, 64)
	assert.Equal(t, e.now.Add(sharing.DefaultInvitationTTL), inv.ExpiresAt)

	last := e.events[len(e.events)-1]
	assert.Equal(t, sharing.EventInvitationCreated, last.Type)
	assert.Equal(t, inv.Token, last.Token)

	pending, err := e.dir.PendingInvitations(ctx, "LATE@example.com")
	require.NoError(t, err)
	require.Len(t, pending, 1)

	late := e.User("late@example.com")
	other := e.User("other@example.com")

	_, err = e.dir.AcceptInvitation(ctx, inv.Token, other.ID, other.Email)
	assert.ErrorIs(t, err, sharing.ErrEmailMismatch)

	_, err = e.dir.AcceptInvitation(ctx, "unknown", late.ID, late.Email)
	assert.ErrorIs(t, err, sharing.ErrInvalidToken)

	accepted, err := e.dir.AcceptInvitation(ctx, inv.Token, late.ID, late.Email)
	require.NoError(t, err)
	assert.Equal(t, model.RoleEditor, accepted.Role)

	d := e.resolve(t, late.ID, model.KindList, list.ID, access.ActionDelete)
	assert.Equal(t, access.OutcomeGranted, d.Outcome)

	_, err = e.dir.AcceptInvitation(ctx, inv.Token, late.ID, late.Email)
	assert.ErrorIs(t, err, sharing.ErrInvitationUsed)

	pending, err = e.dir.PendingInvitations(ctx, late.Email)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Equal(t, int64(1), e.auditCount(t, audit.ActionAcceptInvitation))
}

func TestExpiredInvitationAlwaysFails(t *testing.T) {
	e := newEnv(t, sharing.WithInvitationTTL(48*time.Hour))
	ctx := context.Background()
	owner := e.User("owner@example.com")
	cat := e.Category(owner.ID, "Club")

	res, err := e.dir.Invite(ctx, model.KindCategory, cat.ID, owner.ID, "late@example.com", model.RoleViewer)
	require.NoError(t, err)
	late := e.User("late@example.com")

	e.now = e.now.Add(49 * time.Hour)

	_, err = e.dir.AcceptInvitation(ctx, res.Invitation.Token, late.ID, late.Email)
	assert.ErrorIs(t, err, sharing.ErrInvitationExpired)

	n, err := e.dir.SweepExpiredInvitations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = e.dir.AcceptInvitation(ctx, res.Invitation.Token, late.ID, late.Email)
	assert.ErrorIs(t, err, sharing.ErrInvitationExpired)

	_, ok := e.grant(t, model.KindCategory, cat.ID, late.ID)
	assert.False(t, ok)
}

func TestRejectInvitation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	list := e.List(owner.ID, nil, "Books")

	res, err := e.dir.Invite(ctx, model.KindList, list.ID, owner.ID, "no@example.com", model.RoleViewer)
	require.NoError(t, err)
	no := e.User("no@example.com")

	err = e.dir.RejectInvitation(ctx, res.Invitation.Token, owner.ID, owner.Email)
	assert.ErrorIs(t, err, sharing.ErrEmailMismatch)

	require.NoError(t, e.dir.RejectInvitation(ctx, res.Invitation.Token, no.ID, no.Email))

	err = e.dir.RejectInvitation(ctx, res.Invitation.Token, no.ID, no.Email)
	assert.ErrorIs(t, err, sharing.ErrInvalidToken)

	_, err = e.dir.AcceptInvitation(ctx, res.Invitation.Token, no.ID, no.Email)
	assert.ErrorIs(t, err, sharing.ErrInvalidToken)

	_, ok := e.grant(t, model.KindList, list.ID, no.ID)
	assert.False(t, ok)
}

func TestLeave(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	cat := e.Category(owner.ID, "Gym")

	res, err := e.dir.GenerateShareKey(ctx, model.KindCategory, cat.ID, owner.ID)
	require.NoError(t, err)
	_, err = e.dir.JoinByKey(ctx, model.KindCategory, res.Key, guest.ID)
	require.NoError(t, err)

	require.NoError(t, e.dir.Leave(ctx, model.KindCategory, cat.ID, guest.ID))
	d := e.resolve(t, guest.ID, model.KindCategory, cat.ID, access.ActionView)
	assert.Equal(t, access.OutcomeDenied, d.Outcome)

	assert.ErrorIs(t, e.dir.Leave(ctx, model.KindCategory, cat.ID, guest.ID), sharing.ErrNoGrant)
	assert.ErrorIs(t, e.dir.Leave(ctx, model.KindCategory, cat.ID, owner.ID), sharing.ErrCreatorCannotLeave)
	assert.ErrorIs(t, e.dir.Leave(ctx, model.KindCategory, 9999, guest.ID), access.ErrNotFound)
}

func TestLeaveCascadedCreatorRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	catOwner := e.User("cat@example.com")
	listOwner := e.User("list@example.com")
	cat := e.Category(catOwner.ID, "Shared")
	list := e.List(listOwner.ID, &cat.ID, "Someone else's list")

	_, err := e.dir.GenerateShareKey(ctx, model.KindCategory, cat.ID, catOwner.ID)
	require.NoError(t, err)

	g, ok := e.grant(t, model.KindList, list.ID, catOwner.ID)
	require.True(t, ok)
	assert.True(t, g.IsCreator)

	err = e.dir.Leave(ctx, model.KindList, list.ID, catOwner.ID)
	assert.ErrorIs(t, err, sharing.ErrCreatorCannotLeave)
}

func TestUnshareCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	joiner := e.User("joiner@example.com")
	direct := e.User("direct@example.com")
	cat := e.Category(owner.ID, "Office")
	list := e.List(owner.ID, &cat.ID, "Supplies")

	res, err := e.dir.GenerateShareKey(ctx, model.KindCategory, cat.ID, owner.ID)
	require.NoError(t, err)
	_, err = e.dir.JoinByKey(ctx, model.KindCategory, res.Key, joiner.ID)
	require.NoError(t, err)
	_, err = e.dir.Invite(ctx, model.KindList, list.ID, owner.ID, direct.Email, model.RoleCollaborator)
	require.NoError(t, err)

	_, err = e.dir.Unshare(ctx, model.KindCategory, cat.ID, joiner.ID)
	assert.ErrorIs(t, err, sharing.ErrOwnerOnly)

	out, err := e.dir.Unshare(ctx, model.KindCategory, cat.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), out.RemovedGrants)
	assert.Equal(t, 1, out.Lists)

	var storedCat model.Category
	require.NoError(t, e.DB.First(&storedCat, cat.ID).Error)
	assert.Nil(t, storedCat.ShareKey)
	assert.False(t, storedCat.Shareable)

	var storedList model.List
	require.NoError(t, e.DB.First(&storedList, list.ID).Error)
	assert.Nil(t, storedList.ShareKey)
	assert.False(t, storedList.Shareable)

	_, ok := e.grant(t, model.KindCategory, cat.ID, joiner.ID)
	assert.False(t, ok, "unshare hard-deletes")
	_, ok = e.grant(t, model.KindList, list.ID, direct.ID)
	assert.False(t, ok)
	_, ok = e.grant(t, model.KindList, list.ID, owner.ID)
	assert.True(t, ok, "the owner's own rows stay")

	_, err = e.dir.JoinByKey(ctx, model.KindCategory, res.Key, joiner.ID)
	assert.ErrorIs(t, err, sharing.ErrKeyNotFound)
}

func TestShareKeyCollisionRetry(t *testing.T) {
	taken := "TAKEN234"
	fresh := "FRESH567"

	t.Run("retries until a free key", func(t *testing.T) {
		seq := []string{taken, taken, fresh}
		e := newEnv(t, sharing.WithKeyGenerator(func() (string, error) {
			k := seq[0]
			seq = seq[1:]
			return k, nil
		}))
		owner := e.User("owner@example.com")
		first := e.List(owner.ID, nil, "First")
		second := e.List(owner.ID, nil, "Second")
		require.NoError(t, repository.NewListRepository(e.DB).SetShareKey(context.Background(), first.ID, &taken, true))

		res, err := e.dir.GenerateShareKey(context.Background(), model.KindList, second.ID, owner.ID)
		require.NoError(t, err)
		assert.Equal(t, fresh, res.Key)
	})

	t.Run("gives up after ten attempts", func(t *testing.T) {
		calls := 0
		e := newEnv(t, sharing.WithKeyGenerator(func() (string, error) {
			calls++
			return taken, nil
		}))
		owner := e.User("owner@example.com")
		cat := e.Category(owner.ID, "Keys")
		first := e.List(owner.ID, nil, "First")
		e.List(owner.ID, &cat.ID, "Child")
		require.NoError(t, repository.NewListRepository(e.DB).SetShareKey(context.Background(), first.ID, &taken, true))

		_, err := e.dir.GenerateShareKey(context.Background(), model.KindCategory, cat.ID, owner.ID)
		assert.ErrorIs(t, err, sharing.ErrKeyExhausted)
		assert.Equal(t, 10, calls)

		var stored model.Category
		require.NoError(t, e.DB.First(&stored, cat.ID).Error)
		assert.Nil(t, stored.ShareKey)
		assert.Empty(t, e.events)
	})
}

func TestAuditFailureDoesNotFailOperation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	list := e.List(owner.ID, nil, "Audit")

	res, err := e.dir.GenerateShareKey(ctx, model.KindList, list.ID, owner.ID)
	require.NoError(t, err)
	require.NoError(t, e.DB.Migrator().DropTable(&model.AuditEntry{}))

	_, err = e.dir.JoinByKey(ctx, model.KindList, res.Key, guest.ID)
	require.NoError(t, err)

	d := e.resolve(t, guest.ID, model.KindList, list.ID, access.ActionView)
	assert.Equal(t, access.OutcomeGranted, d.Outcome)
}

func TestMembersAndHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	guest := e.User("guest@example.com")
	list := e.List(owner.ID, nil, "Team")

	res, err := e.dir.GenerateShareKey(ctx, model.KindList, list.ID, owner.ID)
	require.NoError(t, err)
	e.now = e.now.Add(time.Minute)
	_, err = e.dir.JoinByKey(ctx, model.KindList, res.Key, guest.ID)
	require.NoError(t, err)

	members, err := e.dir.Members(ctx, model.KindList, list.ID, guest.ID)
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, owner.ID, members[0].UserID)
	assert.True(t, members[0].IsCreator)
	assert.Equal(t, guest.ID, members[1].UserID)

	shared, err := e.dir.SharedWith(ctx, model.KindList, guest.ID)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, list.ID, shared[0].ID)

	history, err := e.dir.History(ctx, model.KindList, list.ID, owner.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, string(audit.ActionJoinByKey), history[0].Action)

	_, err = e.dir.History(ctx, model.KindList, list.ID, guest.ID, 0)
	assert.ErrorIs(t, err, access.ErrAccessDenied)
}

func TestAncestorOwnerCannotBeShadowedByDirectGrant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	catOwner := e.User("cat@example.com")
	listOwner := e.User("list@example.com")
	cat := e.Category(catOwner.ID, "Home")
	list := e.List(listOwner.ID, &cat.ID, "Groceries")

	before := e.resolve(t, catOwner.ID, model.KindList, list.ID, access.ActionDelete)
	require.True(t, before.Allowed())
	assert.Equal(t, model.RoleOwner, before.Role)
	assert.Equal(t, access.ViaInherited, before.Via)

	res, err := e.dir.GenerateShareKey(ctx, model.KindList, list.ID, listOwner.ID)
	require.NoError(t, err)

	_, err = e.dir.JoinByKey(ctx, model.KindList, res.Key, catOwner.ID)
	assert.ErrorIs(t, err, sharing.ErrAlreadyOwner)

	_, err = e.dir.Invite(ctx, model.KindList, list.ID, listOwner.ID, catOwner.Email, model.RoleViewer)
	assert.ErrorIs(t, err, sharing.ErrCannotInviteOwner)

	_, found := e.grant(t, model.KindList, list.ID, catOwner.ID)
	assert.False(t, found)
	after := e.resolve(t, catOwner.ID, model.KindList, list.ID, access.ActionDelete)
	assert.True(t, after.Allowed())
	assert.Equal(t, model.RoleOwner, after.Role)
}

func TestAcceptInvitationByAncestorOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	listOwner := e.User("list@example.com")
	list := e.List(listOwner.ID, nil, "Groceries")

	res, err := e.dir.Invite(ctx, model.KindList, list.ID, listOwner.ID, "later@example.com", model.RoleViewer)
	require.NoError(t, err)
	require.NotNil(t, res.Invitation)

	later := e.User("later@example.com")
	cat := e.Category(later.ID, "Theirs")
	require.NoError(t, e.DB.Model(&model.List{}).Where("id = ?", list.ID).Update("category_id", cat.ID).Error)

	_, err = e.dir.AcceptInvitation(ctx, res.Invitation.Token, later.ID, later.Email)
	assert.ErrorIs(t, err, sharing.ErrAlreadyOwner)
	_, found := e.grant(t, model.KindList, list.ID, later.ID)
	assert.False(t, found)
}

func TestInvitationKeepsCreatorRole(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := e.User("owner@example.com")
	list := e.List(owner.ID, nil, "Groceries")

	res, err := e.dir.Invite(ctx, model.KindList, list.ID, owner.ID, "former@example.com", model.RoleViewer)
	require.NoError(t, err)

	// A creator row left behind by a category the list no longer belongs to.
	former := e.User("former@example.com")
	require.NoError(t, e.shares.UpsertGrant(ctx, model.KindList, model.Grant{
		ResourceID: list.ID, UserID: former.ID, Role: model.RoleAdmin, IsCreator: true,
		GrantedBy: former.ID, Accepted: true, Active: true, GrantedAt: e.now,
	}))

	_, err = e.dir.AcceptInvitation(ctx, res.Invitation.Token, former.ID, former.Email)
	assert.ErrorIs(t, err, sharing.ErrAlreadyMember)

	_, err = e.dir.Invite(ctx, model.KindList, list.ID, owner.ID, former.Email, model.RoleViewer)
	assert.ErrorIs(t, err, sharing.ErrAlreadyShared)

	g, ok := e.grant(t, model.KindList, list.ID, former.ID)
	require.True(t, ok)
	assert.True(t, g.IsCreator)
	assert.Equal(t, model.RoleAdmin, g.Role)
}

// alwaysOwner answers Owner for every question, standing in for a decision
// that went stale before the transaction started.
type alwaysOwner struct{}

func (alwaysOwner) Resolve(_ context.Context, _ uint, kind model.Kind, id uint, action access.Action) (access.Decision, error) {
	return access.Decision{Kind: kind, ResourceID: id, Action: action, Outcome: access.OutcomeOwner, Role: model.RoleOwner}, nil
}

func TestOwnershipIsRecheckedInsideTransaction(t *testing.T) {
	f := testutil.NewFixture(t)
	ctx := context.Background()
	owner := f.User("owner@example.com")
	other := f.User("other@example.com")
	cat := f.Category(owner.ID, "Home")
	f.Grant(model.KindCategory, cat.ID, other.ID, model.RoleCollaborator, true, true)

	recorder := audit.NewRecorder(repository.NewAuditRepository(f.DB), testutil.Logger())
	dir := sharing.NewDirectory(f.DB, alwaysOwner{}, recorder, sharing.WithLogger(testutil.Logger()))

	_, err := dir.GenerateShareKey(ctx, model.KindCategory, cat.ID, other.ID)
	assert.ErrorIs(t, err, sharing.ErrOwnerOnly)
	_, err = dir.Unshare(ctx, model.KindCategory, cat.ID, other.ID)
	assert.ErrorIs(t, err, sharing.ErrOwnerOnly)
	_, err = dir.GenerateShareKey(ctx, model.KindCategory, 9999, other.ID)
	assert.ErrorIs(t, err, access.ErrNotFound)

	var reloaded model.Category
	require.NoError(t, f.DB.First(&reloaded, cat.ID).Error)
	assert.Nil(t, reloaded.ShareKey)
	var grants int64
	require.NoError(t, f.DB.Model(&model.CategoryShare{}).Where("category_id = ?", cat.ID).Count(&grants).Error)
	assert.Equal(t, int64(1), grants)
}
