package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/ButyrinIA/socialfeed/internal/models"
	"github.com/ButyrinIA/socialfeed/internal/storage"
)

type contextKey string

const identityKey contextKey = "identity"

// requireAuth проверяет Bearer-токен и кладет идентичность в контекст запроса
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if header == "" || token == header {
			writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}

		uid, err := s.auth.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		identity := &models.Identity{UID: uid}
		if profile, err := s.store.GetProfile(r.Context(), uid); err == nil {
			identity.DisplayName = profile.Name
		} else if !errors.Is(err, storage.ErrProfileNotFound) {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey, identity)
		next(w, r.WithContext(ctx))
	}
}

// identityFrom достает идентичность, положенную requireAuth
func identityFrom(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityKey).(*models.Identity)
	return identity
}
