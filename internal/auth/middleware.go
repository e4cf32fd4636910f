package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/userhub/accounts/internal/errors"
)

type contextKey string

const UserContextKey contextKey = "user"

type UserContext struct {
	UserID      uuid.UUID
	Email       string
	Permissions []string
}

// Middleware rejects requests without a valid, unexpired bearer token.
func Middleware(signer *Signer) func(http.Handler) http.Handler {
	return authenticate(signer, false)
}

// MiddlewareAllowExpired verifies the bearer token's signature but tolerates
// expiry. It guards the refresh route, which is called once the access token
// has run out.
func MiddlewareAllowExpired(signer *Signer) func(http.Handler) http.Handler {
	return authenticate(signer, true)
}

func authenticate(signer *Signer, allowExpired bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(r)
			if !ok {
				apperrors.WriteError(w, r, apperrors.Unauthorized())
				return
			}

			claims, err := signer.ParseAccess(tokenString, allowExpired)
			if err != nil {
				if errors.Is(err, ErrTokenExpired) {
					apperrors.WriteError(w, r, apperrors.TokenExpired())
					return
				}
				apperrors.WriteError(w, r, apperrors.Unauthorized())
				return
			}

			userCtx := &UserContext{
				UserID:      uuid.MustParse(claims.UserID),
				Email:       claims.Email,
				Permissions: claims.Permissions,
			}

			ctx := context.WithValue(r.Context(), UserContextKey, userCtx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func GetUserFromContext(ctx context.Context) *UserContext {
	user, ok := ctx.Value(UserContextKey).(*UserContext)
	if !ok {
		return nil
	}
	return user
}
