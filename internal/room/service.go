// Package room は教室の登録・編集・削除と参照を提供する。
package room

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/security"
)

// maxNameLength は教室名の最大文字数。
const maxNameLength = 100

// Service は教室管理のサービス層。
type Service struct {
	roomRepo  repository.RoomRepository
	sanitizer security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(roomRepo repository.RoomRepository, sanitizer security.TextSanitizer) *Service {
	return &Service{roomRepo: roomRepo, sanitizer: sanitizer}
}

// List は全教室を登録順に返す。教室が無い場合は空スライスを返す。
func (s *Service) List(ctx context.Context) ([]*model.Room, error) {
	rooms, err := s.roomRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("教室一覧の取得に失敗しました: %w", err)
	}
	if rooms == nil {
		rooms = []*model.Room{}
	}
	return rooms, nil
}

// Get は指定IDの教室を返す。
func (s *Service) Get(ctx context.Context, id string) (*model.Room, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewRoomNotFoundError(id)
	}
	room, err := s.roomRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("教室の取得に失敗しました: %w", err)
	}
	if room == nil {
		return nil, model.NewRoomNotFoundError(id)
	}
	return room, nil
}

// GetByName は教室名で教室を返す。
func (s *Service) GetByName(ctx context.Context, name string) (*model.Room, error) {
	room, err := s.roomRepo.FindByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("教室の取得に失敗しました: %w", err)
	}
	if room == nil {
		return nil, model.NewRoomNotFoundError(name)
	}
	return room, nil
}

// Add は教室を登録する。同名の教室がある場合はROOM_NAME_CONFLICTを返す。
func (s *Service) Add(ctx context.Context, name string, capacity int) (*model.Room, error) {
	name, err := s.validate(name, capacity)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	room := &model.Room{
		ID:        uuid.New().String(),
		Name:      name,
		Capacity:  capacity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, model.NewRoomNameConflictError(name)
		}
		return nil, fmt.Errorf("教室の登録に失敗しました: %w", err)
	}

	slog.Info("room added",
		slog.String("room_id", room.ID),
		slog.String("name", room.Name),
		slog.Int("capacity", room.Capacity),
	)
	return room, nil
}

// Edit は教室名と定員を更新する。
// 既存予約の教室名スナップショットは更新しない。
func (s *Service) Edit(ctx context.Context, id, name string, capacity int) (*model.Room, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewRoomNotFoundError(id)
	}
	name, err := s.validate(name, capacity)
	if err != nil {
		return nil, err
	}

	room := &model.Room{ID: id, Name: name, Capacity: capacity}
	if err := s.roomRepo.Update(ctx, room); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewRoomNotFoundError(id)
		case errors.Is(err, repository.ErrConflict):
			return nil, model.NewRoomNameConflictError(name)
		}
		return nil, fmt.Errorf("教室の更新に失敗しました: %w", err)
	}

	slog.Info("room edited",
		slog.String("room_id", room.ID),
		slog.String("name", room.Name),
		slog.Int("capacity", room.Capacity),
	)
	return room, nil
}

// Delete は教室を削除する。予約は削除せず、教室名スナップショットで参照できる。
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return model.NewRoomNotFoundError(id)
	}
	if err := s.roomRepo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewRoomNotFoundError(id)
		}
		return fmt.Errorf("教室の削除に失敗しました: %w", err)
	}

	slog.Info("room deleted", slog.String("room_id", id))
	return nil
}

// validate は入力を検証し、保存用の教室名を返す。
func (s *Service) validate(name string, capacity int) (string, error) {
	name, err := s.sanitizer.Clean(name)
	if err != nil {
		return "", model.NewValidationError("room_name must not contain HTML markup")
	}
	if name == "" {
		return "", model.NewValidationError("room_name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", model.NewValidationError(fmt.Sprintf("room_name must be at most %d characters", maxNameLength))
	}
	if capacity <= 0 {
		return "", model.NewValidationError("capacity must be a positive integer")
	}
	return name, nil
}
