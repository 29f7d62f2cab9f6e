package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/model"
)

// newChainRouter はIdentity -> CSRF -> RequireRole のチェーンを組んだchi.Routerを返す。
func newChainRouter() http.Handler {
	resolver := &mockResolver{
		resolveSessionFn: func(ctx context.Context, id string) (*auth.Principal, error) {
			switch id {
			case "student-session":
				return &auth.Principal{UserID: "student-1", Role: model.RoleStudent, Via: auth.ViaSession}, nil
			case "admin-session":
				return &auth.Principal{UserID: "admin-1", Role: model.RoleAdmin, Via: auth.ViaSession}, nil
			}
			return nil, nil
		},
		resolveBearerFn: func(ctx context.Context, token string) (*auth.Principal, error) {
			if token == "admin-jwt" {
				return &auth.Principal{UserID: "admin-1", Role: model.RoleAdmin, Via: auth.ViaBearer}, nil
			}
			return nil, auth.ErrInvalidToken
		},
	}
	csrf := CSRFConfig{}

	r := chi.NewRouter()
	r.Get("/api/csrf-token", NewCSRFTokenHandler(csrf).ServeHTTP)
	r.Group(func(r chi.Router) {
		r.Use(NewIdentityMiddleware(resolver))
		r.Use(NewCSRFMiddleware(csrf))

		r.Get("/api/get-classrooms", func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"user_id": auth.PrincipalFrom(r.Context()).UserID})
		})
		r.With(RequireRole(model.RoleAdmin)).Post("/api/approve-request", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
	})
	return r
}

func TestMiddlewareChain(t *testing.T) {
	router := newChainRouter()

	tests := []struct {
		name    string
		method  string
		path    string
		session string
		bearer  string
		csrf    string
		want    int
	}{
		{"学生のGET", http.MethodGet, "/api/get-classrooms", "student-session", "", "", http.StatusOK},
		{"未認証のGET", http.MethodGet, "/api/get-classrooms", "", "", "", http.StatusUnauthorized},
		{"学生の管理者操作は403", http.MethodPost, "/api/approve-request", "student-session", "", "t", http.StatusForbidden},
		{"管理者Cookie認証でCSRFなしは403", http.MethodPost, "/api/approve-request", "admin-session", "", "", http.StatusForbidden},
		{"管理者Cookie認証でCSRFあり", http.MethodPost, "/api/approve-request", "admin-session", "", "t", http.StatusOK},
		{"管理者Bearer認証はCSRF不要", http.MethodPost, "/api/approve-request", "", "admin-jwt", "", http.StatusOK},
		{"不正なBearer", http.MethodPost, "/api/approve-request", "", "forged", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.session != "" {
				req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: tt.session})
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			if tt.csrf != "" {
				req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.csrf})
				req.Header.Set(csrfHeaderName, tt.csrf)
			}
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}
