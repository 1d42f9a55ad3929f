package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"taskshare/internal/access"
	"taskshare/internal/auth"
	"taskshare/internal/model"
)

type contextKey string

const (
	principalKey contextKey = "principal"
	permisosKey  contextKey = "permisos"
	requestIDKey contextKey = "request_id"
)

// principal is the authenticated caller.
type principal struct {
	UserID uint
	Email  string
}

// Permisos is what the caller may do on the resource named in the path.
type Permisos struct {
	Rol           model.Role         `json:"rol"`
	EsCreador     bool               `json:"esCreador"`
	EsPropietario bool               `json:"esPropietario"`
	Via           string             `json:"via"`
	Puede         access.Permissions `json:"puede"`
}

func permisosFrom(d access.Decision) Permisos {
	return Permisos{
		Rol:           d.Role,
		EsCreador:     d.IsCreator,
		EsPropietario: d.IsOwner(),
		Via:           d.Via.String(),
		Puede:         d.Permissions,
	}
}

func withLogging(log *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		sw := &statusWriter{ResponseWriter: w, status: 200}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Info("http", "method", r.Method, "path", r.URL.Path, "status", sw.status,
			"dur_ms", time.Since(start).Milliseconds(), "request_id", id)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) { w.status = code; w.ResponseWriter.WriteHeader(code) }

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// requireAuth verifies the bearer token and stores the caller in the context.
func (a *api) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := auth.BearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		claims, err := a.tokens.Verify(raw)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				writeError(w, http.StatusUnauthorized, "token expired")
				return
			}
			a.log.DebugContext(r.Context(), "token rejected", "err", err)
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		p := principal{UserID: claims.UserID, Email: claims.Email}
		ctx := context.WithValue(r.Context(), principalKey, p)
		next(w, r.WithContext(ctx))
	}
}

func caller(r *http.Request) principal {
	p, _ := r.Context().Value(principalKey).(principal)
	return p
}

// kindOf extracts the resource kind a route works on.
type kindOf func(r *http.Request) (model.Kind, error)

func fixed(kind model.Kind) kindOf {
	return func(*http.Request) (model.Kind, error) { return kind, nil }
}

// sharedKind reads the {tipo} path value; only categories and lists qualify.
func sharedKind(r *http.Request) (model.Kind, error) {
	kind, ok := model.ParseKind(r.PathValue("tipo"))
	if !ok || !kind.Shareable() {
		return "", errBadKind
	}
	return kind, nil
}

var errBadKind = errors.New("tipo must be categoria or lista")

// requirePermission resolves the caller's decision on the {id} resource and
// rejects the request unless action is allowed. The permissions are kept in
// the context for the handler.
func (a *api) requirePermission(kinds kindOf, action access.Action, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind, err := kinds(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		id, err := parseID(r.PathValue("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		decision, err := a.authz.Resolve(r.Context(), caller(r).UserID, kind, id, action)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		switch decision.Outcome {
		case access.OutcomeNotFound:
			writeError(w, http.StatusNotFound, decision.Message())
			return
		case access.OutcomeDenied:
			writeError(w, http.StatusForbidden, decision.Message())
			return
		}
		ctx := context.WithValue(r.Context(), permisosKey, permisosFrom(decision))
		next(w, r.WithContext(ctx))
	}
}

func permisos(r *http.Request) (Permisos, bool) {
	p, ok := r.Context().Value(permisosKey).(Permisos)
	return p, ok
}
