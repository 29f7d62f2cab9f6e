package auth

import (
	"context"

	"github.com/hitoshi/roombook/internal/model"
)

// Via は認証情報の経路を表す。
type Via string

const (
	// ViaSession はセッションCookieによる認証。
	ViaSession Via = "session"
	// ViaBearer はAuthorizationヘッダーのBearerトークンによる認証。
	ViaBearer Via = "bearer"
)

// Principal はリクエストごとに解決される認証済み主体。
// ハンドラーはこの値だけを見て権限判定を行う。
type Principal struct {
	UserID string
	Email  string
	Role   model.Role
	Via    Via

	// TokenID はBearer認証時のjti。ログアウト時の失効に使う。
	TokenID string
}

// IsAdmin は管理者かどうかを返す。
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == model.RoleAdmin
}

// CanActFor は対象ユーザーの情報にアクセスできるかを返す。
// 管理者は全員、学生は本人のみ。
func (p *Principal) CanActFor(userID, email string) bool {
	if p == nil {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	if userID != "" && p.UserID == userID {
		return true
	}
	return email != "" && p.Email == email
}

type principalKey struct{}

// WithPrincipal はコンテキストにPrincipalを格納する。
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom はコンテキストからPrincipalを取り出す。未認証の場合はnilを返す。
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
