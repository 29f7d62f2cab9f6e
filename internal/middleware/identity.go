// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/model"
)

// SessionCookieName はセッションIDを保持するHTTP Only Cookieの名前。
const SessionCookieName = "session_id"

// PrincipalResolver は認証情報からPrincipalを解決する。
// auth.Service がこのインターフェースを満たす。
type PrincipalResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*auth.Principal, error)
	ResolveBearer(ctx context.Context, token string) (*auth.Principal, error)
}

// NewIdentityMiddleware はリクエストごとにPrincipalを解決してコンテキストに注入するミドルウェアを返す。
// Authorization: Bearer ヘッダーがあればそれを、なければセッションCookieを使う。
// どちらでも解決できない場合は401 Unauthorizedを返す。
func NewIdentityMiddleware(resolver PrincipalResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := resolvePrincipal(r, resolver)
			if err != nil {
				if !errors.Is(err, auth.ErrInvalidToken) && !errors.Is(err, auth.ErrTokenRevoked) {
					slog.Error("failed to resolve principal",
						slog.String("error", err.Error()),
					)
				}
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			if principal == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := auth.WithPrincipal(r.Context(), principal)
			setLogUserID(ctx, principal.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func resolvePrincipal(r *http.Request, resolver PrincipalResolver) (*auth.Principal, error) {
	if token := BearerToken(r); token != "" {
		return resolver.ResolveBearer(r.Context(), token)
	}

	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}
	return resolver.ResolveSession(r.Context(), cookie.Value)
}

// BearerToken はAuthorizationヘッダーからBearerトークンを取り出す。無い場合は空文字を返す。
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireRole は指定したいずれかの役割を持つPrincipalのみ通すミドルウェアを返す。
// IdentityMiddlewareの後に配置する。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := auth.PrincipalFrom(r.Context())
			if p == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			for _, role := range roles {
				if p.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			slog.Warn("role check failed",
				slog.String("user_id", p.UserID),
				slog.String("role", string(p.Role)),
				slog.String("path", r.URL.Path),
			)
			WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
		})
	}
}
