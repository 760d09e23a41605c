package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"campusnet/internal/auth"
	"campusnet/internal/db"
)

type contextKey string

const userIDKey contextKey = "userID"

type AuthMiddleware struct {
	tokens *auth.TokenService
	users  *db.UserRepository
}

func NewAuthMiddleware(tokens *auth.TokenService, users *db.UserRepository) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, users: users}
}

// RequireAuth validates the bearer access token and attaches the user id to
// the request context. The user is re-checked against the store rather than
// trusted from the signature alone, so deactivation takes effect before the
// token expires.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			unauthorized(w, "Access token is missing")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			unauthorized(w, "Invalid authorization header format")
			return
		}

		claims, err := m.tokens.ValidateAccessToken(parts[1])
		if err != nil {
			forbidden(w, "Invalid or expired access token")
			return
		}

		if _, err := m.users.FindActiveByID(r.Context(), claims.UserID); err != nil {
			if errors.Is(err, db.ErrNotFound) {
				notFound(w, "User not found")
				return
			}
			slog.Error("error loading user for access check", "error", err)
			internalError(w)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func GetUserID(r *http.Request) string {
	if v := r.Context().Value(userIDKey); v != nil {
		if userID, ok := v.(string); ok {
			return userID
		}
	}
	return ""
}
