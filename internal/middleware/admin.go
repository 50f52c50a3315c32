package middleware

import (
	"context"
	"net/http"

	"savingscredit/internal/store"
)

type AdminStore interface {
	Status(ctx context.Context, userID string) (store.AdminStatus, error)
	HasRole(ctx context.Context, userID, role string) (bool, error)
}

// RequireAdmin lets super admins through unconditionally. Other admins need
// role, unless role is empty.
func RequireAdmin(adminStore AdminStore, role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			status, err := adminStore.Status(r.Context(), userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "unable to verify admin")
				return
			}
			if !status.IsAdmin {
				writeError(w, http.StatusForbidden, "admin privileges required")
				return
			}
			if status.IsSuper || role == "" {
				next.ServeHTTP(w, r)
				return
			}
			hasRole, err := adminStore.HasRole(r.Context(), userID, role)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "unable to verify role")
				return
			}
			if !hasRole {
				writeError(w, http.StatusForbidden, "missing required role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin guards operations that change who is an admin.
func RequireSuperAdmin(adminStore AdminStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := UserIDFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			status, err := adminStore.Status(r.Context(), userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "unable to verify admin")
				return
			}
			if !status.IsSuper {
				writeError(w, http.StatusForbidden, "super admin privileges required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
