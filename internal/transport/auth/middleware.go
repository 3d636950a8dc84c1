package auth

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"fee-ledger/internal/domain"
)

type ctxKey string

const SessionKey ctxKey = "session"

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (domain.Session, error)
}

// TokenFromRequest reads a bearer token from the Authorization header, falling
// back to the token query parameter used by websocket clients.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); token != "" {
			return token
		}
	}
	return r.URL.Query().Get("token")
}

// SessionMiddleware rejects requests without a live session and stores the
// session in the request context.
func SessionMiddleware(resolver SessionResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := resolver.Resolve(r.Context(), token)
			if err != nil {
				if !errors.Is(err, domain.ErrSessionNotFound) {
					log.Printf("[AUTH] resolve session: %v", err)
				}
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin must run after SessionMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := GetSession(r.Context())
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if !sess.IsAdmin {
			log.Printf("[AUTH] %s denied admin route %s %s", sess.Username, r.Method, r.URL.Path)
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetSession(ctx context.Context) (domain.Session, error) {
	sess, ok := ctx.Value(SessionKey).(domain.Session)
	if !ok {
		return domain.Session{}, errors.New("session not found in context")
	}
	return sess, nil
}

// WithSession returns a copy of ctx carrying sess.
func WithSession(ctx context.Context, sess domain.Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}
