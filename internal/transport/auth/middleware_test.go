package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"fee-ledger/internal/domain"
)

type stubResolver map[string]domain.Session

func (s stubResolver) Resolve(ctx context.Context, token string) (domain.Session, error) {
	sess, ok := s[token]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

func TestSessionMiddleware(t *testing.T) {
	resolver := stubResolver{
		"clerk-token": {Token: "clerk-token", Username: "clerk"},
		"admin-token": {Token: "admin-token", Username: "admin", IsAdmin: true},
	}

	var seen string
	h := SessionMiddleware(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := GetSession(r.Context())
		if err != nil {
			t.Fatalf("session missing from context: %v", err)
		}
		seen = sess.Username
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		header   string
		query    string
		wantCode int
		wantUser string
	}{
		{name: "no token", wantCode: http.StatusUnauthorized},
		{name: "unknown token", header: "Bearer nope", wantCode: http.StatusUnauthorized},
		{name: "non-bearer header", header: "Basic clerk-token", wantCode: http.StatusUnauthorized},
		{name: "bearer header", header: "Bearer clerk-token", wantCode: http.StatusNoContent, wantUser: "clerk"},
		{name: "query token", query: "?token=admin-token", wantCode: http.StatusNoContent, wantUser: "admin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/students"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			if seen != tt.wantUser {
				t.Fatalf("expected user %q, got %q", tt.wantUser, seen)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name     string
		ctx      context.Context
		wantCode int
	}{
		{"no session", context.Background(), http.StatusUnauthorized},
		{"clerk", WithSession(context.Background(), domain.Session{Username: "clerk"}), http.StatusForbidden},
		{"admin", WithSession(context.Background(), domain.Session{Username: "admin", IsAdmin: true}), http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/accounts", nil).WithContext(tt.ctx)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
		})
	}
}
