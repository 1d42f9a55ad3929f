package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"taskshare/internal/access"
	"taskshare/internal/auth"
	"taskshare/internal/repository"
	"taskshare/internal/service"
	"taskshare/internal/sharing"
)

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, r.Body)
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, map[string]any{"success": true, "data": data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "error": msg})
}

func parseID(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 0)
	if err != nil || v == 0 {
		return 0, errors.New("bad id")
	}
	return uint(v), nil
}

// fail writes the response for err. Unclassified errors are logged and
// reported as a generic 500.
func (a *api) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.log.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "request_id", requestID(r.Context()), "err", err)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	var denied *access.DeniedError
	switch {
	case errors.As(err, &denied):
		return http.StatusForbidden
	case errors.Is(err, access.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, repository.ErrUserNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, sharing.ErrNotShareable),
		errors.Is(err, sharing.ErrInvalidKey),
		errors.Is(err, sharing.ErrInvalidRole),
		errors.Is(err, sharing.ErrInvalidEmail),
		errors.Is(err, sharing.ErrCannotInviteOwner):
		return http.StatusBadRequest
	case errors.Is(err, sharing.ErrOwnerOnly),
		errors.Is(err, sharing.ErrCreatorCannotLeave),
		errors.Is(err, sharing.ErrEmailMismatch):
		return http.StatusForbidden
	case errors.Is(err, sharing.ErrKeyNotFound),
		errors.Is(err, sharing.ErrImmutableGrant),
		errors.Is(err, sharing.ErrNoGrant),
		errors.Is(err, sharing.ErrInvalidToken):
		return http.StatusNotFound
	case errors.Is(err, sharing.ErrAlreadyOwner),
		errors.Is(err, sharing.ErrAlreadyMember),
		errors.Is(err, sharing.ErrAlreadyShared),
		errors.Is(err, sharing.ErrInvitationUsed):
		return http.StatusConflict
	case errors.Is(err, sharing.ErrInvitationExpired):
		return http.StatusGone
	case errors.Is(err, sharing.ErrKeyExhausted):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
