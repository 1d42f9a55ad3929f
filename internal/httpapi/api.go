// Package httpapi exposes the task and sharing operations over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"taskshare/internal/access"
	"taskshare/internal/auth"
	"taskshare/internal/model"
	"taskshare/internal/repository"
	"taskshare/internal/service"
	"taskshare/internal/sharing"
)

// Pinger reports database health.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Authz      service.Authorizer
	Categories *service.CategoryService
	Lists      *service.ListService
	Tasks      *service.TaskService
	Directory  *sharing.Directory
	Users      *repository.UserRepository
	Tokens     *auth.Tokens
	DB         Pinger
	Log        *slog.Logger
	Now        func() time.Time
}

type api struct {
	authz      service.Authorizer
	categories *service.CategoryService
	lists      *service.ListService
	tasks      *service.TaskService
	dir        *sharing.Directory
	users      *repository.UserRepository
	tokens     *auth.Tokens
	db         Pinger
	log        *slog.Logger
	now        func() time.Time
}

// NewHandler builds the routed, logged HTTP handler.
func NewHandler(d Deps) http.Handler {
	a := &api{
		authz:      d.Authz,
		categories: d.Categories,
		lists:      d.Lists,
		tasks:      d.Tasks,
		dir:        d.Directory,
		users:      d.Users,
		tokens:     d.Tokens,
		db:         d.DB,
		log:        d.Log,
		now:        d.Now,
	}
	if a.log == nil {
		a.log = slog.Default()
	}
	if a.now == nil {
		a.now = time.Now
	}
	mux := http.NewServeMux()
	a.routes(mux)
	return withLogging(a.log, mux)
}

func (a *api) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", a.handleHealth)

	category := fixed(model.KindCategory)
	mux.HandleFunc("POST /api/categorias", a.requireAuth(a.handleCreateCategory))
	mux.HandleFunc("GET /api/categorias", a.requireAuth(a.handleListCategories))
	mux.HandleFunc("GET /api/categorias/{id}", a.requireAuth(a.requirePermission(category, access.ActionView, a.handleGetCategory)))
	mux.HandleFunc("PUT /api/categorias/{id}", a.requireAuth(a.requirePermission(category, access.ActionEdit, a.handleUpdateCategory)))
	mux.HandleFunc("DELETE /api/categorias/{id}", a.requireAuth(a.requirePermission(category, access.ActionDelete, a.handleDeleteCategory)))
	mux.HandleFunc("GET /api/categorias/{id}/listas", a.requireAuth(a.requirePermission(category, access.ActionView, a.handleCategoryLists)))

	list := fixed(model.KindList)
	mux.HandleFunc("POST /api/listas", a.requireAuth(a.handleCreateList))
	mux.HandleFunc("GET /api/listas", a.requireAuth(a.handleListLists))
	mux.HandleFunc("GET /api/listas/{id}", a.requireAuth(a.requirePermission(list, access.ActionView, a.handleGetList)))
	mux.HandleFunc("GET /api/listas/importantes", a.requireAuth(a.handleImportantLists))
	mux.HandleFunc("GET /api/listas/{id}/tareas", a.requireAuth(a.requirePermission(list, access.ActionView, a.handleListTasks)))
	mux.HandleFunc("GET /api/listas/{id}/estadisticas", a.requireAuth(a.requirePermission(list, access.ActionView, a.handleListStats)))
	mux.HandleFunc("PUT /api/listas/{id}", a.requireAuth(a.requirePermission(list, access.ActionEdit, a.handleUpdateList)))
	mux.HandleFunc("DELETE /api/listas/{id}", a.requireAuth(a.requirePermission(list, access.ActionDelete, a.handleDeleteList)))

	task := fixed(model.KindTask)
	mux.HandleFunc("POST /api/tareas", a.requireAuth(a.handleCreateTask))
	mux.HandleFunc("GET /api/tareas", a.requireAuth(a.handleListUnfiled))
	mux.HandleFunc("GET /api/tareas/estado/{estado}", a.requireAuth(a.handleTasksByState))
	mux.HandleFunc("GET /api/tareas/prioridad/{prioridad}", a.requireAuth(a.handleTasksByPriority))
	mux.HandleFunc("GET /api/tareas/filtros/vencidas", a.requireAuth(a.handleOverdueTasks))
	mux.HandleFunc("GET /api/tareas/filtros/mi-dia", a.requireAuth(a.handleMyDayTasks))
	mux.HandleFunc("GET /api/tareas/lista/{id}", a.requireAuth(a.requirePermission(list, access.ActionView, a.handleListTasks)))
	mux.HandleFunc("GET /api/tareas/{id}", a.requireAuth(a.requirePermission(task, access.ActionView, a.handleGetTask)))
	mux.HandleFunc("PUT /api/tareas/{id}", a.requireAuth(a.requirePermission(task, access.ActionEdit, a.handleUpdateTask)))
	mux.HandleFunc("DELETE /api/tareas/{id}", a.requireAuth(a.requirePermission(task, access.ActionDelete, a.handleDeleteTask)))
	mux.HandleFunc("POST /api/tareas/{id}/completar", a.requireAuth(a.requirePermission(task, access.ActionEdit, a.handleCompleteTask)))
	mux.HandleFunc("PATCH /api/tareas/{id}/mover", a.requireAuth(a.requirePermission(task, access.ActionMove, a.handleMoveTask)))
	mux.HandleFunc("PATCH /api/tareas/{id}/mi-dia", a.requireAuth(a.requirePermission(task, access.ActionEdit, a.handleSetMyDay)))

	mux.HandleFunc("POST /api/compartir/{tipo}/unirse", a.requireAuth(a.handleJoin))
	mux.HandleFunc("GET /api/compartir/{tipo}/compartidas", a.requireAuth(a.handleSharedWith))
	mux.HandleFunc("POST /api/compartir/{tipo}/{id}/clave", a.requireAuth(a.requirePermission(sharedKind, access.ActionShare, a.handleGenerateKey)))
	mux.HandleFunc("POST /api/compartir/{tipo}/{id}/invitar", a.requireAuth(a.requirePermission(sharedKind, access.ActionShare, a.handleInvite)))
	mux.HandleFunc("GET /api/compartir/{tipo}/{id}/usuarios", a.requireAuth(a.requirePermission(sharedKind, access.ActionView, a.handleMembers)))
	mux.HandleFunc("PUT /api/compartir/{tipo}/{id}/usuarios/{usuario}", a.requireAuth(a.requirePermission(sharedKind, access.ActionShare, a.handleModifyRole)))
	mux.HandleFunc("DELETE /api/compartir/{tipo}/{id}/usuarios/{usuario}", a.requireAuth(a.requirePermission(sharedKind, access.ActionShare, a.handleRevoke)))
	mux.HandleFunc("POST /api/compartir/{tipo}/{id}/salir", a.requireAuth(a.handleLeave))
	mux.HandleFunc("DELETE /api/compartir/{tipo}/{id}", a.requireAuth(a.requirePermission(sharedKind, access.ActionShare, a.handleUnshare)))
	mux.HandleFunc("GET /api/compartir/{tipo}/{id}/auditoria", a.requireAuth(a.requirePermission(sharedKind, access.ActionShare, a.handleHistory)))

	mux.HandleFunc("GET /api/invitaciones/pendientes", a.requireAuth(a.handlePendingInvitations))
	mux.HandleFunc("POST /api/invitaciones/{token}/aceptar", a.requireAuth(a.handleAcceptInvitation))
	mux.HandleFunc("POST /api/invitaciones/{token}/rechazar", a.requireAuth(a.handleRejectInvitation))
}

func (a *api) handleHealth(w http.ResponseWriter, r *http.Request) {
	if a.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.db.PingContext(ctx); err != nil {
			a.log.ErrorContext(r.Context(), "health check", "err", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"success": false, "error": "database unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "ts": a.now().UTC().Format(time.RFC3339)})
}
