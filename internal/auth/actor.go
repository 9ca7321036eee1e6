package auth

import (
	"context"
	"net/http"

	"ticket-marketplace/internal/models"
)

const actorKey contextKey = "actor"

// UserLoader resolves an authenticated principal to the stored account,
// creating it on first sight (registration via identity provider).
type UserLoader interface {
	EnsureUser(ctx context.Context, principal Principal) (*models.User, error)
}

// WithActor loads the stored user for the verified principal and attaches
// it to the context. The stored role is authoritative; nothing from the
// token beyond the subject is trusted.
func WithActor(loader UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFrom(r.Context())
			if !ok {
				http.Error(w, "not authenticated", http.StatusUnauthorized)
				return
			}

			actor, err := loader.EnsureUser(r.Context(), principal)
			if err != nil {
				http.Error(w, "failed to load account", http.StatusInternalServerError)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequireRole gates a route subtree to one role. Mismatches get 403 so the
// frontend can redirect to the caller's own dashboard.
func RequireRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFrom(r.Context())
			if !ok {
				http.Error(w, "not authenticated", http.StatusUnauthorized)
				return
			}
			if actor.Role != role {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ContextWithActor attaches a stored user to the context.
func ContextWithActor(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, actorKey, user)
}

// ActorFrom returns the stored user attached by WithActor.
func ActorFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(actorKey).(*models.User)
	return u, ok
}
