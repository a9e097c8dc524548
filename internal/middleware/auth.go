package middleware

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ayush/ivr-designer/internal/apperr"
	"github.com/ayush/ivr-designer/internal/auth"
	"github.com/ayush/ivr-designer/internal/respond"
)

// RequireAuth is middleware that validates the session cookie and
// injects the user id into the request context.
func RequireAuth(sessions auth.Sessions, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(auth.SessionCookie)
			if err != nil {
				respond.Error(w, r, logger, apperr.Unauthenticated())
				return
			}

			userID, err := sessions.Get(r.Context(), cookie.Value)
			if err != nil {
				respond.Error(w, r, logger, apperr.Storage("Session lookup failed", err))
				return
			}
			if userID == "" {
				respond.Error(w, r, logger, apperr.Unauthenticated())
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), userID)))
		})
	}
}
