package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"taskshare/internal/model"
)

// sharedTarget parses {tipo} and {id}; the permission middleware has already
// validated both when it guards the route.
func sharedTarget(r *http.Request) (model.Kind, uint, error) {
	kind, err := sharedKind(r)
	if err != nil {
		return "", 0, err
	}
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		return "", 0, err
	}
	return kind, id, nil
}

func (a *api) handleGenerateKey(w http.ResponseWriter, r *http.Request) {
	kind, id, _ := sharedTarget(r)
	res, err := a.dir.GenerateShareKey(r.Context(), kind, id, caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (a *api) handleJoin(w http.ResponseWriter, r *http.Request) {
	kind, err := sharedKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Clave string `json:"clave"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := a.dir.JoinByKey(r.Context(), kind, req.Clave, caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

type invitationView struct {
	Email     string     `json:"email"`
	Role      model.Role `json:"rol"`
	ExpiresAt time.Time  `json:"fechaExpiracion"`
}

func (a *api) handleInvite(w http.ResponseWriter, r *http.Request) {
	kind, id, _ := sharedTarget(r)
	var req struct {
		Email string `json:"email"`
		Rol   string `json:"rol"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	res, err := a.dir.Invite(r.Context(), kind, id, caller(r).UserID, req.Email, model.Role(req.Rol))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	body := map[string]any{"registrado": res.Registered}
	if res.Registered {
		body["idUsuario"] = res.UserID
	}
	if res.Invitation != nil {
		body["invitacion"] = invitationView{
			Email:     res.Invitation.Email,
			Role:      res.Invitation.Role,
			ExpiresAt: res.Invitation.ExpiresAt,
		}
	}
	writeData(w, http.StatusCreated, body)
}

func (a *api) handleMembers(w http.ResponseWriter, r *http.Request) {
	kind, id, _ := sharedTarget(r)
	members, err := a.dir.Members(r.Context(), kind, id, caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeWithPermisos(w, r, members)
}

func (a *api) handleModifyRole(w http.ResponseWriter, r *http.Request) {
	kind, id, _ := sharedTarget(r)
	target, err := parseID(r.PathValue("usuario"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req struct {
		Rol string `json:"rol"`
	}
	if err := readJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := a.dir.ModifyRole(r.Context(), kind, id, target, model.Role(req.Rol), caller(r).UserID); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *api) handleRevoke(w http.ResponseWriter, r *http.Request) {
	kind, id, _ := sharedTarget(r)
	target, err := parseID(r.PathValue("usuario"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.dir.Revoke(r.Context(), kind, id, target, caller(r).UserID); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *api) handleLeave(w http.ResponseWriter, r *http.Request) {
	kind, id, err := sharedTarget(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := a.dir.Leave(r.Context(), kind, id, caller(r).UserID); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *api) handleUnshare(w http.ResponseWriter, r *http.Request) {
	kind, id, _ := sharedTarget(r)
	res, err := a.dir.Unshare(r.Context(), kind, id, caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (a *api) handleHistory(w http.ResponseWriter, r *http.Request) {
	kind, id, _ := sharedTarget(r)
	limit := 0
	if raw := r.URL.Query().Get("limite"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limite must be a positive integer")
			return
		}
		limit = n
	}
	entries, err := a.dir.History(r.Context(), kind, id, caller(r).UserID, limit)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, entries)
}

func (a *api) handleSharedWith(w http.ResponseWriter, r *http.Request) {
	kind, err := sharedKind(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := a.dir.SharedWith(r.Context(), kind, caller(r).UserID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handlePendingInvitations(w http.ResponseWriter, r *http.Request) {
	email, err := a.callerEmail(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.dir.PendingInvitations(r.Context(), email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, items)
}

func (a *api) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	email, err := a.callerEmail(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	res, err := a.dir.AcceptInvitation(r.Context(), r.PathValue("token"), caller(r).UserID, email)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (a *api) handleRejectInvitation(w http.ResponseWriter, r *http.Request) {
	email, err := a.callerEmail(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.dir.RejectInvitation(r.Context(), r.PathValue("token"), caller(r).UserID, email); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// callerEmail prefers the account email over the token claim.
func (a *api) callerEmail(r *http.Request) (string, error) {
	p := caller(r)
	if a.users == nil {
		return p.Email, nil
	}
	user, err := a.users.FindByID(r.Context(), p.UserID)
	if err != nil {
		return "", err
	}
	return user.Email, nil
}
