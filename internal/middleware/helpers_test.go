package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/model"
)

// --- モック定義 ---

type mockResolver struct {
	resolveSessionFn func(ctx context.Context, sessionID string) (*auth.Principal, error)
	resolveBearerFn  func(ctx context.Context, token string) (*auth.Principal, error)
}

func (m *mockResolver) ResolveSession(ctx context.Context, sessionID string) (*auth.Principal, error) {
	if m.resolveSessionFn != nil {
		return m.resolveSessionFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockResolver) ResolveBearer(ctx context.Context, token string) (*auth.Principal, error) {
	if m.resolveBearerFn != nil {
		return m.resolveBearerFn(ctx, token)
	}
	return nil, auth.ErrInvalidToken
}

var _ PrincipalResolver = (*mockResolver)(nil)

func withPrincipal(req *http.Request, userID string, role model.Role, via auth.Via) *http.Request {
	p := &auth.Principal{UserID: userID, Email: userID + "@example.edu", Role: role, Via: via}
	return req.WithContext(auth.WithPrincipal(req.Context(), p))
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
