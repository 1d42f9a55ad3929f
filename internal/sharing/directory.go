// Package sharing manages share grants, share keys and invitations.
package sharing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"taskshare/internal/access"
	"taskshare/internal/audit"
	"taskshare/internal/model"
	"taskshare/internal/repository"
)

// DefaultInvitationTTL is how long an emailed invitation stays valid.
const DefaultInvitationTTL = 7 * 24 * time.Hour

// maxChainDepth covers task -> list -> category.
const maxChainDepth = 3

// Authorizer answers permission questions.
type Authorizer interface {
	Resolve(ctx context.Context, actorID uint, kind model.Kind, id uint, action access.Action) (access.Decision, error)
}

// Directory is the only writer of grants and invitations.
type Directory struct {
	db          *gorm.DB
	authz       Authorizer
	users       *repository.UserRepository
	categories  *repository.CategoryRepository
	lists       *repository.ListRepository
	shares      *repository.ShareRepository
	invitations *repository.InvitationRepository
	audit       *audit.Recorder
	events      Publisher
	log         *slog.Logger

	newKey        func() (string, error)
	newToken      func() (string, error)
	now           func() time.Time
	invitationTTL time.Duration
}

// Option configures a Directory.
type Option func(*Directory)

func WithPublisher(p Publisher) Option { return func(d *Directory) { d.events = p } }

func WithLogger(log *slog.Logger) Option { return func(d *Directory) { d.log = log } }

func WithClock(now func() time.Time) Option { return func(d *Directory) { d.now = now } }

func WithKeyGenerator(gen func() (string, error)) Option {
	return func(d *Directory) { d.newKey = gen }
}

func WithInvitationTTL(ttl time.Duration) Option {
	return func(d *Directory) {
		if ttl > 0 {
			d.invitationTTL = ttl
		}
	}
}

func NewDirectory(db *gorm.DB, authz Authorizer, recorder *audit.Recorder, opts ...Option) *Directory {
	d := &Directory{
		db:            db,
		authz:         authz,
		users:         repository.NewUserRepository(db),
		categories:    repository.NewCategoryRepository(db),
		lists:         repository.NewListRepository(db),
		shares:        repository.NewShareRepository(db),
		invitations:   repository.NewInvitationRepository(db),
		audit:         recorder,
		events:        nopPublisher{},
		log:           slog.Default(),
		newKey:        NewKey,
		newToken:      NewToken,
		now:           time.Now,
		invitationTTL: DefaultInvitationTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// KeyResult describes the outcome of GenerateShareKey.
type KeyResult struct {
	Key    string    `json:"clave"`
	Reused bool      `json:"reutilizada"`
	Lists  []ListKey `json:"listas,omitempty"`
}

// ListKey is the key a cascaded child list ended up with.
type ListKey struct {
	ListID uint   `json:"idLista"`
	Key    string `json:"clave"`
}

// JoinResult describes the grant obtained through a share key.
type JoinResult struct {
	Kind        model.Kind `json:"tipo"`
	ResourceID  uint       `json:"id"`
	Name        string     `json:"nombre"`
	Role        model.Role `json:"rol"`
	Reactivated bool       `json:"reactivado"`
}

// UnshareResult counts what Unshare removed.
type UnshareResult struct {
	RemovedGrants int64 `json:"accesosEliminados"`
	Lists         int   `json:"listas"`
}

// GenerateShareKey opens a resource for sharing. Only the owner may call it.
// An existing key is kept. For categories every child list is opened too and
// the category owner gets a creator grant on each of them.
func (d *Directory) GenerateShareKey(ctx context.Context, kind model.Kind, resourceID, actorID uint) (KeyResult, error) {
	var result KeyResult
	if err := d.requireOwner(ctx, kind, resourceID, actorID); err != nil {
		return result, err
	}

	now := d.now()
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := d.lockOwned(ctx, tx, kind, resourceID, actorID); err != nil {
			return err
		}
		shares := d.shares.WithTx(tx)

		current, err := d.currentKey(ctx, tx, kind, resourceID)
		if err != nil {
			return err
		}
		key := current
		if key == "" {
			if key, err = d.uniqueKey(ctx, shares); err != nil {
				return err
			}
		}
		result.Key, result.Reused = key, current != ""

		if err := d.setKey(ctx, tx, kind, resourceID, &key); err != nil {
			return err
		}
		if err := shares.UpsertGrant(ctx, kind, creatorGrant(resourceID, actorID, now)); err != nil {
			return err
		}

		if kind != model.KindCategory {
			return nil
		}
		lists := d.lists.WithTx(tx)
		children, err := lists.ListByCategory(ctx, resourceID)
		if err != nil {
			return err
		}
		for _, child := range children {
			childKey := ""
			if child.ShareKey != nil {
				childKey = *child.ShareKey
			}
			if childKey == "" {
				if childKey, err = d.uniqueKey(ctx, shares); err != nil {
					return err
				}
			}
			if err := lists.SetShareKey(ctx, child.ID, &childKey, true); err != nil {
				return err
			}
			if err := shares.UpsertGrant(ctx, model.KindList, creatorGrant(child.ID, actorID, now)); err != nil {
				return err
			}
			result.Lists = append(result.Lists, ListKey{ListID: child.ID, Key: childKey})
		}
		return nil
	})
	if err != nil {
		return KeyResult{}, err
	}

	action := audit.ActionGenerateKey
	if result.Reused {
		action = audit.ActionReuseKey
	}
	d.committed(ctx, audit.Entry{
		Kind: kind, ResourceID: resourceID, UserID: actorID, Action: action,
		Details: map[string]any{"clave": result.Key, "listas": len(result.Lists)},
	}, Event{Type: EventKeyGenerated, Kind: kind, ResourceID: resourceID, ActorID: actorID})
	return result, nil
}

// JoinByKey grants the actor colaborador access to the resource carrying key.
// A revoked grant is reactivated instead of inserting a new row.
func (d *Directory) JoinByKey(ctx context.Context, kind model.Kind, key string, actorID uint) (JoinResult, error) {
	result := JoinResult{Kind: kind, Role: model.RoleCollaborator}
	if !kind.Shareable() {
		return result, ErrNotShareable
	}
	key = strings.ToUpper(strings.TrimSpace(key))
	if !ValidKey(key) {
		return result, ErrInvalidKey
	}

	now := d.now()
	var ownerID uint
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, owner, name, err := d.findByKey(ctx, tx, kind, key)
		if err != nil {
			return err
		}
		result.ResourceID, result.Name, ownerID = id, name, owner
		owns, err := d.ownsChain(ctx, tx, kind, id, actorID)
		if err != nil {
			return err
		}
		if owns {
			return ErrAlreadyOwner
		}

		shares := d.shares.WithTx(tx)
		grant, found, err := shares.LockGrant(ctx, kind, id, actorID)
		if err != nil {
			return err
		}
		switch {
		case found && grant.Active:
			return ErrAlreadyMember
		case found:
			result.Reactivated = true
			_, err := shares.UpdateGrant(ctx, kind, id, actorID, map[string]any{
				"role":       model.RoleCollaborator,
				"granted_by": owner,
				"accepted":   true,
				"active":     true,
				"granted_at": now,
			}, false)
			return err
		default:
			err := shares.CreateGrant(ctx, kind, model.Grant{
				ResourceID: id, UserID: actorID, Role: model.RoleCollaborator,
				GrantedBy: owner, Accepted: true, Active: true, GrantedAt: now,
			})
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAlreadyMember
			}
			return err
		}
	})
	if err != nil {
		return JoinResult{}, err
	}

	d.committed(ctx, audit.Entry{
		Kind: kind, ResourceID: result.ResourceID, UserID: actorID, Action: audit.ActionJoinByKey,
		Details: map[string]any{"clave": key, "reactivado": result.Reactivated, "propietario": ownerID},
	}, Event{Type: EventJoined, Kind: kind, ResourceID: result.ResourceID, ActorID: actorID, TargetUserID: ownerID, Role: model.RoleCollaborator})
	return result, nil
}

// Unshare removes every grant not held by the owner and clears the share
// key. Categories cascade to their child lists.
func (d *Directory) Unshare(ctx context.Context, kind model.Kind, resourceID, actorID uint) (UnshareResult, error) {
	var result UnshareResult
	if err := d.requireOwner(ctx, kind, resourceID, actorID); err != nil {
		return result, err
	}

	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := d.lockOwned(ctx, tx, kind, resourceID, actorID); err != nil {
			return err
		}
		shares := d.shares.WithTx(tx)
		removed, err := shares.DeleteExcept(ctx, kind, resourceID, actorID)
		if err != nil {
			return err
		}
		result.RemovedGrants += removed
		if err := d.setKey(ctx, tx, kind, resourceID, nil); err != nil {
			return err
		}

		if kind != model.KindCategory {
			return nil
		}
		lists := d.lists.WithTx(tx)
		children, err := lists.ListByCategory(ctx, resourceID)
		if err != nil {
			return err
		}
		for _, child := range children {
			removed, err := shares.DeleteExcept(ctx, model.KindList, child.ID, child.UserID)
			if err != nil {
				return err
			}
			result.RemovedGrants += removed
			if err := lists.SetShareKey(ctx, child.ID, nil, false); err != nil {
				return err
			}
			result.Lists++
		}
		return nil
	})
	if err != nil {
		return UnshareResult{}, err
	}

	d.committed(ctx, audit.Entry{
		Kind: kind, ResourceID: resourceID, UserID: actorID, Action: audit.ActionUnshare,
		Details: map[string]any{"accesosEliminados": result.RemovedGrants, "listas": result.Lists},
	}, Event{Type: EventUnshared, Kind: kind, ResourceID: resourceID, ActorID: actorID})
	return result, nil
}

func creatorGrant(resourceID, ownerID uint, now time.Time) model.Grant {
	return model.Grant{
		ResourceID: resourceID,
		UserID:     ownerID,
		Role:       model.RoleAdmin,
		IsCreator:  true,
		GrantedBy:  ownerID,
		Accepted:   true,
		Active:     true,
		GrantedAt:  now,
	}
}

// authorize resolves the decision and turns refusals into errors.
func (d *Directory) authorize(ctx context.Context, kind model.Kind, resourceID, actorID uint, action access.Action) (access.Decision, error) {
	if !kind.Shareable() {
		return access.Decision{}, ErrNotShareable
	}
	decision, err := d.authz.Resolve(ctx, actorID, kind, resourceID, action)
	if err != nil {
		return decision, err
	}
	return decision, decision.Err()
}

func (d *Directory) requireOwner(ctx context.Context, kind model.Kind, resourceID, actorID uint) error {
	decision, err := d.authorize(ctx, kind, resourceID, actorID, access.ActionShare)
	switch {
	case decision.IsOwner():
		return nil
	case err != nil && !errors.Is(err, access.ErrAccessDenied):
		return err
	case decision.HasAccess():
		return ErrOwnerOnly
	default:
		return err
	}
}

func (d *Directory) uniqueKey(ctx context.Context, shares *repository.ShareRepository) (string, error) {
	for attempt := 0; attempt < maxKeyAttempts; attempt++ {
		key, err := d.newKey()
		if err != nil {
			return "", err
		}
		used, err := shares.KeyInUse(ctx, key)
		if err != nil {
			return "", err
		}
		if !used {
			return key, nil
		}
	}
	return "", ErrKeyExhausted
}

func (d *Directory) currentKey(ctx context.Context, tx *gorm.DB, kind model.Kind, id uint) (string, error) {
	var key *string
	switch kind {
	case model.KindCategory:
		c, err := d.categories.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return "", notFound(kind, id, err)
		}
		key = c.ShareKey
	case model.KindList:
		l, err := d.lists.WithTx(tx).GetByID(ctx, id)
		if err != nil {
			return "", notFound(kind, id, err)
		}
		key = l.ShareKey
	default:
		return "", ErrNotShareable
	}
	if key == nil {
		return "", nil
	}
	return *key, nil
}

func (d *Directory) setKey(ctx context.Context, tx *gorm.DB, kind model.Kind, id uint, key *string) error {
	shareable := key != nil
	switch kind {
	case model.KindCategory:
		return d.categories.WithTx(tx).SetShareKey(ctx, id, key, shareable)
	case model.KindList:
		return d.lists.WithTx(tx).SetShareKey(ctx, id, key, shareable)
	}
	return ErrNotShareable
}

func (d *Directory) findByKey(ctx context.Context, tx *gorm.DB, kind model.Kind, key string) (id, ownerID uint, name string, err error) {
	switch kind {
	case model.KindCategory:
		c, err := d.categories.WithTx(tx).FindByShareKey(ctx, key)
		if err != nil {
			return 0, 0, "", keyLookupErr(err)
		}
		if !c.Shareable {
			return 0, 0, "", ErrKeyNotFound
		}
		return c.ID, c.UserID, c.Name, nil
	case model.KindList:
		l, err := d.lists.WithTx(tx).FindByShareKey(ctx, key)
		if err != nil {
			return 0, 0, "", keyLookupErr(err)
		}
		if !l.Shareable {
			return 0, 0, "", ErrKeyNotFound
		}
		return l.ID, l.UserID, l.Name, nil
	}
	return 0, 0, "", ErrNotShareable
}

// ownerOf returns the owner of a resource, or access.ErrNotFound.
func (d *Directory) ownerOf(ctx context.Context, tx *gorm.DB, kind model.Kind, id uint) (uint, error) {
	node, ok, err := repository.NewLocator(tx).Load(ctx, kind, id)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, &access.NotFoundError{Kind: kind, ID: id}
	}
	return node.OwnerID, nil
}

// lockOwned re-reads the owner of a resource with a row lock and fails
// unless it is actorID.
func (d *Directory) lockOwned(ctx context.Context, tx *gorm.DB, kind model.Kind, id, actorID uint) error {
	node, ok, err := repository.NewLocator(tx).ForUpdate().Load(ctx, kind, id)
	switch {
	case err != nil:
		return err
	case !ok:
		return &access.NotFoundError{Kind: kind, ID: id}
	case node.OwnerID != actorID:
		return ErrOwnerOnly
	}
	return nil
}

// ownsChain reports whether userID owns the resource or any of its
// ancestors. Owners of an ancestor already hold propietario access, so a
// direct grant would only shadow it.
func (d *Directory) ownsChain(ctx context.Context, tx *gorm.DB, kind model.Kind, id, userID uint) (bool, error) {
	locator := repository.NewLocator(tx)
	for depth := 0; depth < maxChainDepth; depth++ {
		node, ok, err := locator.Load(ctx, kind, id)
		if err != nil || !ok {
			return false, err
		}
		if node.OwnerID == userID {
			return true, nil
		}
		if node.ParentID == nil {
			return false, nil
		}
		kind, id = node.ParentKind, *node.ParentID
	}
	return false, nil
}

// committed runs the best-effort side effects of a successful mutation.
func (d *Directory) committed(ctx context.Context, entry audit.Entry, event Event) {
	if d.audit != nil {
		d.audit.Record(ctx, entry)
	}
	if event.At.IsZero() {
		event.At = d.now()
	}
	d.events.Publish(ctx, event)
}

func notFound(kind model.Kind, id uint, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &access.NotFoundError{Kind: kind, ID: id}
	}
	return fmt.Errorf("load %s: %w", kind, err)
}

func keyLookupErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrKeyNotFound
	}
	return err
}
