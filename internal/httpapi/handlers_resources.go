package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"taskshare/internal/model"
	"taskshare/internal/service"
)

func (a *api) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nombre string `json:"nombre"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	category, err := a.categories.Create(r.Context(), caller(r).UserID, req.Nombre)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, category)
}

func (a *api) handleListCategories(w http.ResponseWriter, r *http.Request) {
	items, err := a.categories.List(r.Context(), caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	category, err := a.categories.Get(r.Context(), caller(r).UserID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeWithPermisos(w, r, category)
}

func (a *api) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	var req struct {
		Nombre string `json:"nombre"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	category, err := a.categories.Rename(r.Context(), caller(r).UserID, id, req.Nombre)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, category)
}

func (a *api) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	if err := a.categories.Delete(r.Context(), caller(r).UserID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type listRequest struct {
	Nombre       *string `json:"nombre"`
	Color        *string `json:"color"`
	Icono        *string `json:"icono"`
	Importante   *bool   `json:"importante"`
	IDCategoria  *uint   `json:"idCategoria"`
	SinCategoria bool    `json:"sinCategoria"`
}

func (req listRequest) input() service.ListInput {
	return service.ListInput{
		Name:          req.Nombre,
		Color:         req.Color,
		Icon:          req.Icono,
		Important:     req.Importante,
		CategoryID:    req.IDCategoria,
		ClearCategory: req.SinCategoria,
	}
}

func (a *api) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req listRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	list, err := a.lists.Create(r.Context(), caller(r).UserID, req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, list)
}

// handleListLists returns the caller's lists, or the lists of one category
// with ?categoria={id}.
func (a *api) handleListLists(w http.ResponseWriter, r *http.Request) {
	var (
		items []model.List
		err   error
	)
	if raw := r.URL.Query().Get("categoria"); raw != "" {
		categoryID, perr := parseID(raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid categoria")
			return
		}
		items, err = a.lists.ByCategory(r.Context(), caller(r).UserID, categoryID)
	} else {
		items, err = a.lists.List(r.Context(), caller(r).UserID)
	}
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handleGetList(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	list, err := a.lists.Get(r.Context(), caller(r).UserID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeWithPermisos(w, r, list)
}

func (a *api) handleListTasks(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	items, err := a.lists.Tasks(r.Context(), caller(r).UserID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeWithPermisos(w, r, items)
}

func (a *api) handleCategoryLists(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	items, err := a.lists.ByCategory(r.Context(), caller(r).UserID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeWithPermisos(w, r, items)
}

func (a *api) handleImportantLists(w http.ResponseWriter, r *http.Request) {
	items, err := a.lists.Important(r.Context(), caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handleListStats(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	stats, err := a.lists.Stats(r.Context(), caller(r).UserID, id, a.now())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeWithPermisos(w, r, stats)
}

func (a *api) handleUpdateList(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	var req listRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	list, err := a.lists.Update(r.Context(), caller(r).UserID, id, req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (a *api) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	if err := a.lists.Delete(r.Context(), caller(r).UserID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

type taskRequest struct {
	Nombre           *string    `json:"nombre"`
	Descripcion      *string    `json:"descripcion"`
	Prioridad        *int       `json:"prioridad"`
	FechaVencimiento *time.Time `json:"fechaVencimiento"`
	IDLista          *uint      `json:"idLista"`
}

func (req taskRequest) input() service.TaskInput {
	return service.TaskInput{
		Name:        req.Nombre,
		Description: req.Descripcion,
		Priority:    req.Prioridad,
		DueAt:       req.FechaVencimiento,
		ListID:      req.IDLista,
	}
}

func (a *api) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	task, err := a.tasks.CreateTask(r.Context(), caller(r).UserID, req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, task)
}

func (a *api) handleListUnfiled(w http.ResponseWriter, r *http.Request) {
	items, err := a.tasks.ListUnfiled(r.Context(), caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handleTasksByState(w http.ResponseWriter, r *http.Request) {
	items, err := a.tasks.TasksByState(r.Context(), caller(r).UserID, r.PathValue("estado"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handleTasksByPriority(w http.ResponseWriter, r *http.Request) {
	priority, err := strconv.Atoi(r.PathValue("prioridad"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid prioridad")
		return
	}
	items, err := a.tasks.TasksByPriority(r.Context(), caller(r).UserID, priority)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handleOverdueTasks(w http.ResponseWriter, r *http.Request) {
	items, err := a.tasks.OverdueTasks(r.Context(), caller(r).UserID, a.now())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handleMyDayTasks(w http.ResponseWriter, r *http.Request) {
	items, err := a.tasks.MyDayTasks(r.Context(), caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handleSetMyDay(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	var req struct {
		MiDia *bool `json:"miDia"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.MiDia == nil {
		writeError(w, http.StatusBadRequest, "miDia is required")
		return
	}
	task, err := a.tasks.SetMyDay(r.Context(), caller(r).UserID, id, *req.MiDia)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

func (a *api) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	task, err := a.tasks.GetTask(r.Context(), caller(r).UserID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeWithPermisos(w, r, task)
}

func (a *api) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	var req taskRequest
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.IDLista != nil {
		writeError(w, http.StatusBadRequest, "use PATCH /api/tareas/{id}/mover to change the list")
		return
	}
	task, err := a.tasks.UpdateTask(r.Context(), caller(r).UserID, id, req.input())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

func (a *api) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	task, err := a.tasks.CompleteTask(r.Context(), caller(r).UserID, id, a.now())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

func (a *api) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	var req struct {
		IDLista *uint `json:"idLista"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	task, err := a.tasks.MoveTask(r.Context(), caller(r).UserID, id, req.IDLista)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, task)
}

func (a *api) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	id, _ := parseID(r.PathValue("id"))
	if err := a.tasks.DeleteTask(r.Context(), caller(r).UserID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *api) writeWithPermisos(w http.ResponseWriter, r *http.Request, data any) {
	body := map[string]any{"success": true, "data": data}
	if p, ok := permisos(r); ok {
		body["permisos"] = p
	}
	writeJSON(w, http.StatusOK, body)
}
