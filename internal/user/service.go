// Package user はユーザーの参照と管理者による事前登録を提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/security"
)

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(userRepo repository.UserRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{userRepo: userRepo, sanitizer: sanitizer}
}

// GetByEmail はメールアドレスでユーザーを返す。
// 学生は自分自身のメールアドレスのみ参照できる。
func (s *Service) GetByEmail(ctx context.Context, p *auth.Principal, email string) (*model.User, error) {
	email = normalizeEmail(email)
	if !p.CanActFor("", email) {
		return nil, model.NewForbiddenError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// AddUser は管理者がユーザーを事前登録する。
// 登録されたユーザーは初回Googleログイン時にメールアドレスで照合され、この役割を引き継ぐ。
func (s *Service) AddUser(ctx context.Context, email string, role model.Role, name string) (*model.User, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, model.NewValidationError("email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, model.NewValidationError(fmt.Sprintf("invalid email %q", email))
	}
	if !role.Valid() {
		return nil, model.NewValidationError(fmt.Sprintf("role must be %q or %q", model.RoleAdmin, model.RoleStudent))
	}
	name, err := s.sanitizer.Clean(name)
	if err != nil {
		return nil, model.NewValidationError("name must not contain HTML markup")
	}

	now := time.Now()
	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		Name:      name,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, model.NewUserConflictError(email)
		}
		return nil, fmt.Errorf("ユーザーの登録に失敗しました: %w", err)
	}

	slog.Info("user added",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return user, nil
}

// normalizeEmail はメールアドレスを照合用に小文字化する。
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
