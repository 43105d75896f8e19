package jwt

import (
	"errors"
	"net/http"

	"delivery-dispatch/internal/domain/user"
)

// AuthMiddlewareFunc authenticates the bearer credential and injects the session into the request context.
func AuthMiddlewareFunc(gk *Gatekeeper, allowedRoles ...user.Role) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			raw, err := FromAuthorization(r)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			s, err := gk.Authenticate(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			if err := RoleAllowed(s, allowedRoles...); err != nil {
				http.Error(w, err.Error(), http.StatusForbidden)
				return
			}

			next(w, r.WithContext(InjectSession(r.Context(), s)))
		}
	}
}

// RequireSession extracts the session injected by AuthMiddlewareFunc.
func RequireSession(r *http.Request) (*Session, error) {
	s, ok := FromContext(r.Context())
	if !ok {
		return nil, errors.New("no session in request context")
	}
	return s, nil
}
