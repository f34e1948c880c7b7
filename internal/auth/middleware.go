package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sakif/idea-tracker/internal/model"
	"github.com/sakif/idea-tracker/internal/policy"
)

// contextKey is unexported so no other package can read or shadow the
// identity stored by this middleware.
type contextKey string

const identityKey contextKey = "identity"

var errMissingBearer = errors.New("auth: missing bearer token")

const (
	unauthorizedBody = `{"error":"unauthorized","message":"valid authentication required"}`
	forbiddenBody    = `{"error":"forbidden","message":"your role is not allowed to perform this action"}`
)

// RequireAuth enforces authentication on protected routes.
//
// It reads "Authorization: Bearer <jwt>", validates the token and stores
// the caller's identity in the request context. A missing or invalid
// token ends the request with 401.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := extractIdentity(r, tokens)
			if err != nil {
				writeRaw(w, http.StatusUnauthorized, unauthorizedBody)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAction rejects callers whose role may not perform action with
// 403. It must run after RequireAuth.
func RequireAction(action policy.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFromContext(r.Context())
			if !ok {
				writeRaw(w, http.StatusUnauthorized, unauthorizedBody)
				return
			}
			if !policy.Allows(id.Role, action) {
				writeRaw(w, http.StatusForbidden, forbiddenBody)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// IdentityFromContext retrieves the authenticated caller.
// Returns false if the request never passed through RequireAuth.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok && id.UserID != 0
}

func extractIdentity(r *http.Request, tokens *TokenService) (model.Identity, error) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return model.Identity{}, errMissingBearer
	}

	token = strings.TrimSpace(token)
	if token == "" {
		return model.Identity{}, errMissingBearer
	}

	return tokens.Validate(token)
}

func writeRaw(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
