package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"savingscredit/internal/auth"
)

type contextKey string

const userIDKey contextKey = "user_id"

func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDKey).(string)
	return userID, ok && userID != ""
}

// WithUserID is used by tests and by handlers that authenticate on their own.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}

// bearerToken reads the Authorization header. Browsers cannot set headers on
// a websocket handshake, so upgrade requests may pass ?token= instead.
func bearerToken(r *http.Request) (string, string) {
	header := r.Header.Get("Authorization")
	if header == "" {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			if token := r.URL.Query().Get("token"); token != "" {
				return token, ""
			}
		}
		return "", "missing authorization header"
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", "invalid authorization header"
	}
	return strings.TrimSpace(parts[1]), ""
}

func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				writeError(w, http.StatusUnauthorized, problem)
				return
			}
			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), claims.UserID)))
		})
	}
}
