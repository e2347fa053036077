package rest

import (
	"context"
	"net/http"
	"strings"

	"github.com/askarthikey/cleverSM/internal/core/domain"
)

// Clé privée pour le contexte (évite les collisions)
type contextKey struct{ name string }

var sessionCtxKey = &contextKey{"session"}

// requireAuth valide le bearer token et injecte la domain.Session dans le contexte.
func (h *Handler) requireAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, r, domain.ErrInvalidToken)
			return
		}

		session, err := h.identity.ValidateToken(r.Context(), token)
		if err != nil {
			writeError(w, r, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
	})
}

func WithSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionCtxKey, s)
}

// SessionFrom récupère l'appelant authentifié. Toujours présent derrière requireAuth.
func SessionFrom(ctx context.Context) *domain.Session {
	s, _ := ctx.Value(sessionCtxKey).(*domain.Session)
	return s
}
