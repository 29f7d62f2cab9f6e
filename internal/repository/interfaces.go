// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスが重複する場合はErrConflictを返す。
	Create(ctx context.Context, user *model.User) error

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// UpdateName は表示名を更新する。
	UpdateName(ctx context.Context, id, name string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)

	// Create は既存ユーザーにidentityを紐付ける。
	Create(ctx context.Context, identity *model.Identity) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// RoomRepository は教室データの永続化インターフェース。
type RoomRepository interface {
	// List は全教室を登録順に返す。
	List(ctx context.Context) ([]*model.Room, error)
	// FindByID は指定IDの教室を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Room, error)
	// FindByName は教室名で教室を取得する。見つからない場合はnilを返す。
	FindByName(ctx context.Context, name string) (*model.Room, error)
	// Create は教室を作成する。名前が重複する場合はErrConflictを返す。
	Create(ctx context.Context, room *model.Room) error
	// Update は教室名と定員を更新する。
	// 対象が存在しない場合はErrNotFound、名前が重複する場合はErrConflictを返す。
	Update(ctx context.Context, room *model.Room) error
	// Delete は教室を削除する。対象が存在しない場合はErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// ReservationRepository は予約申請の永続化インターフェース。
type ReservationRepository interface {
	// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Reservation, error)

	// ListBlockingOnDay は指定日の pending / approved の予約を返す。
	ListBlockingOnDay(ctx context.Context, day time.Time) ([]*model.Reservation, error)

	// CreateChecked は教室行をロックし、時間帯の重複を再確認してから予約を作成する。
	// 教室が存在しない場合はErrNotFound、重複がある場合はErrConflictを返す。
	// 教室が存在すれば、重複時も含め reservation.RoomName にロック時点の教室名を設定する。
	CreateChecked(ctx context.Context, reservation *model.Reservation) error

	// Approve は予約を承認し、却下理由を削除する。
	// 予約が存在しない場合はErrNotFound、遷移できない状態の場合は*TransitionErrorを返す。
	Approve(ctx context.Context, id string) (*model.Reservation, error)

	// Reject は予約を却下し、却下理由をUPSERTする。
	// 予約が存在しない場合はErrNotFound、遷移できない状態の場合は*TransitionErrorを返す。
	Reject(ctx context.Context, id, reason string) (*model.Reservation, error)

	// ListRejections は予約に対する却下理由を返す（0件または1件）。
	ListRejections(ctx context.Context, reservationID string) ([]*model.RejectedRequest, error)

	// ListFrom は day 以降の予約を日付・開始時刻順に返す。
	ListFrom(ctx context.Context, day time.Time) ([]*model.Reservation, error)

	// ListBefore は day より前の予約を日付・開始時刻順に返す。
	ListBefore(ctx context.Context, day time.Time) ([]*model.Reservation, error)

	// ListByUser はユーザーの予約を日付の新しい順に返す。
	ListByUser(ctx context.Context, userID string) ([]*model.Reservation, error)
}

// NotificationRepository はアプリ内通知の永続化インターフェース。
type NotificationRepository interface {
	// Create は通知を作成する。
	Create(ctx context.Context, notification *model.Notification) error
	// ListByUser はユーザーの通知を新しい順に最大limit件返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
	// MarkRead は本人の通知を既読にする。対象が存在しない場合はErrNotFoundを返す。
	MarkRead(ctx context.Context, id, userID string) error
	// DeleteReadBefore は before より前に作成された既読通知を削除し、削除件数を返す。
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}
