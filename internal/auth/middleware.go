package auth

import (
	"context"
	"net/http"
	"strings"

	"hotpot-chat/internal/models"
	apperrors "hotpot-chat/pkg/errors"
	"hotpot-chat/pkg/response"
)

type contextKey string

const userKey contextKey = "auth.user"

// Middleware authenticates requests with a bearer token, falling back to the
// token query parameter used by websocket clients.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := tokenFromRequest(r)
		if token == "" {
			response.Error(w, r, apperrors.Unauthorized("missing authorization token"))
			return
		}

		user, err := s.GetUserFromToken(r.Context(), token)
		if err != nil {
			response.Error(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

func tokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil
}

// UserIDFromContext returns the current user id or an unauthorized error.
func UserIDFromContext(ctx context.Context) (int, error) {
	user, ok := UserFromContext(ctx)
	if !ok {
		return 0, apperrors.Unauthorized("missing identity")
	}
	return user.ID, nil
}
