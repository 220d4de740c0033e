package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/opsdeck/opsdeck/internal/api/response"
	"github.com/opsdeck/opsdeck/internal/api/session"
	"github.com/opsdeck/opsdeck/internal/auth"
	"github.com/opsdeck/opsdeck/internal/user"
)

const currentUserKey contextKey = "currentUser"

// Session is middleware that authenticates requests by session cookie. The
// token must verify and must not be revoked; the resolved user is stored in
// the request context in sanitized form. Failures return 401.
func Session(authService *auth.Service, directory user.Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			subject, err := authService.Subject(r.Context(), session.Token(r))
			if err != nil {
				if errors.Is(err, auth.ErrMissingToken) || errors.Is(err, auth.ErrInvalidToken) {
					response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "A valid session is required", requestID)
					return
				}
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
				return
			}

			u, err := directory.FindByID(r.Context(), subject)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					// The account behind a still-valid token is gone.
					response.Err(w, http.StatusUnauthorized, "UNAUTHORIZED", "A valid session is required", requestID)
					return
				}
				response.Err(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Authentication failed", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), currentUserKey, u.Sanitize())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCurrentUser retrieves the authenticated user from the request context.
func GetCurrentUser(ctx context.Context) *user.Sanitized {
	if u, ok := ctx.Value(currentUserKey).(*user.Sanitized); ok {
		return u
	}
	return nil
}
