package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/jwtauth/v5"

	"meeting-scheduler-api/internal/auth"
)

type ctxKey string

const (
	userIDKey    ctxKey = "uid"
	requestIDKey ctxKey = "rid"
	clientIPKey  ctxKey = "ip"
)

// Authenticate attaches the caller's user id when the request carries a valid
// bearer token. Requests without one, or with a bad one, continue anonymously;
// operations that need identity reject them later.
func Authenticate(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := jwtauth.TokenFromHeader(r); raw != "" {
				if uid, err := tokens.Verify(raw); err == nil {
					r = r.WithContext(WithUserID(r.Context(), uid))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithUserID(ctx context.Context, uid string) context.Context {
	return context.WithValue(ctx, userIDKey, uid)
}

// UserID returns the authenticated user id, if any.
func UserID(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok && uid != ""
}
