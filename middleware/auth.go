package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aoe4hub/tournament-engine/services"
)

type contextKey string

const claimsContextKey contextKey = "authClaims"

var ErrNoAuthContext = errors.New("no authenticated user in request context")

// Authenticate validates the Authorization bearer token and stores the claims
// in the request context. Requests without a valid token get a 401.
func Authenticate(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "authentication required", http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaimsFromContext returns the claims stored by Authenticate.
func GetClaimsFromContext(ctx context.Context) (*services.Claims, error) {
	claims, ok := ctx.Value(claimsContextKey).(*services.Claims)
	if !ok || claims == nil {
		return nil, ErrNoAuthContext
	}
	return claims, nil
}

// GetUserIDFromContext is a shortcut for handlers that only need the id.
func GetUserIDFromContext(ctx context.Context) (int, error) {
	claims, err := GetClaimsFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return claims.UserID, nil
}
