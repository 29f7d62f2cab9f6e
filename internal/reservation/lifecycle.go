package reservation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/notify"
	"github.com/hitoshi/roombook/internal/repository"
	"github.com/hitoshi/roombook/internal/security"
)

// maxReasonLength は利用目的・却下理由の最大文字数。
const maxReasonLength = 500

// CreateInput は予約申請の入力。
type CreateInput struct {
	RoomID    string
	Date      string
	StartTime string
	EndTime   string
	Reason    string
}

// Lifecycle は予約申請の作成と承認・却下の状態遷移を扱う。
//
//	pending  --Approve--> approved
//	pending  --Reject-->  rejected
//	rejected --Approve--> approved（却下理由は削除される）
//
// それ以外の遷移は INVALID_TRANSITION となり、何も変更しない。
// 各操作はコミット後に申請者へ通知する。通知に失敗した場合は確定済みの予約と
// NOTIFICATION_FAILED を両方返す。
type Lifecycle struct {
	reservations repository.ReservationRepository
	users        repository.UserRepository
	notifier     notify.Notifier
	sanitizer    security.TextSanitizer
	metrics      metrics.MetricsCollector
	loc          *time.Location
	now          func() time.Time
}

// NewLifecycle はLifecycleを生成する。
func NewLifecycle(
	reservations repository.ReservationRepository,
	users repository.UserRepository,
	notifier notify.Notifier,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	loc *time.Location,
) *Lifecycle {
	if loc == nil {
		loc = time.UTC
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Lifecycle{
		reservations: reservations,
		users:        users,
		notifier:     notifier,
		sanitizer:    sanitizer,
		metrics:      collector,
		loc:          loc,
		now:          time.Now,
	}
}

// Create は認証済みユーザーの予約申請を pending で作成する。
// 申請者の氏名・メールアドレスはユーザーレコードから、教室名は教室レコードから複写する。
func (l *Lifecycle) Create(ctx context.Context, p *auth.Principal, in CreateInput) (*model.Reservation, error) {
	if in.RoomID == "" || in.Date == "" || in.StartTime == "" || in.EndTime == "" {
		return nil, model.NewValidationError("room_id, date, start_time, end_time and reason are required")
	}
	reason, err := l.cleanText("reason", in.Reason)
	if err != nil {
		return nil, err
	}
	day, err := model.ParseDay(in.Date, l.loc)
	if err != nil {
		return nil, model.NewValidationError(err.Error())
	}
	window, err := model.ParseWindow(in.StartTime, in.EndTime)
	if err != nil {
		return nil, model.NewInvalidTimeRangeError(err.Error())
	}
	if _, err := uuid.Parse(in.RoomID); err != nil {
		return nil, model.NewRoomNotFoundError(in.RoomID)
	}

	user, err := l.users.FindByID(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("申請者の取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	now := l.now()
	res := &model.Reservation{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		UserEmail: user.Email,
		UserName:  user.Name,
		RoomID:    in.RoomID,
		Date:      day,
		StartTime: window.Start,
		EndTime:   window.End,
		Reason:    reason,
		Status:    model.ReservationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := l.reservations.CreateChecked(ctx, res); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, model.NewRoomNotFoundError(in.RoomID)
		case errors.Is(err, repository.ErrConflict):
			return nil, model.NewRoomUnavailableError(res.RoomName)
		}
		return nil, fmt.Errorf("予約の作成に失敗しました: %w", err)
	}

	l.metrics.RecordReservationCreated()
	slog.Info("reservation created",
		slog.String("reservation_id", res.ID),
		slog.String("user_id", res.UserID),
		slog.String("room_id", res.RoomID),
		slog.String("date", res.Date.Format(model.DateLayout)),
		slog.String("start_time", res.StartTime),
		slog.String("end_time", res.EndTime),
	)

	return res, l.notified(notify.EventSubmitted, res, l.notifier.ReservationSubmitted(ctx, res))
}

// Approve は予約を承認する。却下済みの予約は再承認でき、その際に却下理由は削除される。
// 却下後に同じ時間帯へ別の予約が入っていた場合はROOM_UNAVAILABLEを返す。
func (l *Lifecycle) Approve(ctx context.Context, id string) (*model.Reservation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewReservationNotFoundError(id)
	}

	res, err := l.reservations.Approve(ctx, id)
	if errors.Is(err, repository.ErrConflict) {
		return nil, l.unavailable(ctx, id)
	}
	if err != nil {
		return nil, transitionError(id, err)
	}

	l.metrics.RecordTransition(string(model.ReservationStatusApproved))
	slog.Info("reservation approved", slog.String("reservation_id", id))

	return res, l.notified(notify.EventApproved, res, l.notifier.ReservationApproved(ctx, res))
}

// Reject は pending の予約を却下し、却下理由を記録する。
func (l *Lifecycle) Reject(ctx context.Context, id, reason string) (*model.Reservation, error) {
	reason, err := l.cleanText("reject_reason", reason)
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewReservationNotFoundError(id)
	}

	res, err := l.reservations.Reject(ctx, id, reason)
	if err != nil {
		return nil, transitionError(id, err)
	}

	l.metrics.RecordTransition(string(model.ReservationStatusRejected))
	slog.Info("reservation rejected", slog.String("reservation_id", id))

	return res, l.notified(notify.EventRejected, res, l.notifier.ReservationRejected(ctx, res, reason))
}

// RejectionsFor は予約に対する却下理由を返す（0件または1件）。
// 学生は自分の予約のみ参照できる。
func (l *Lifecycle) RejectionsFor(ctx context.Context, p *auth.Principal, reservationID string) ([]*model.RejectedRequest, error) {
	res, err := l.find(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !p.CanActFor(res.UserID, "") {
		return nil, model.NewForbiddenError()
	}

	rejections, err := l.reservations.ListRejections(ctx, reservationID)
	if err != nil {
		return nil, fmt.Errorf("却下理由の取得に失敗しました: %w", err)
	}
	if rejections == nil {
		rejections = []*model.RejectedRequest{}
	}
	return rejections, nil
}

// ListFuture は now を基準タイムゾーンに直した当日以降の予約を返す。
func (l *Lifecycle) ListFuture(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	list, err := l.reservations.ListFrom(ctx, model.StartOfDay(now, l.loc))
	if err != nil {
		return nil, fmt.Errorf("今後の予約の取得に失敗しました: %w", err)
	}
	return nonNil(list), nil
}

// ListPast は now を基準タイムゾーンに直した前日以前の予約を返す。
func (l *Lifecycle) ListPast(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	list, err := l.reservations.ListBefore(ctx, model.StartOfDay(now, l.loc))
	if err != nil {
		return nil, fmt.Errorf("過去の予約の取得に失敗しました: %w", err)
	}
	return nonNil(list), nil
}

// ListByUser はユーザーの予約を日付の新しい順に返す。
// 学生は自分の予約のみ参照できる。
func (l *Lifecycle) ListByUser(ctx context.Context, p *auth.Principal, userID string) ([]*model.Reservation, error) {
	if !p.CanActFor(userID, "") {
		return nil, model.NewForbiddenError()
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, model.NewUserNotFoundError()
	}

	list, err := l.reservations.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("予約一覧の取得に失敗しました: %w", err)
	}
	return nonNil(list), nil
}

func (l *Lifecycle) find(ctx context.Context, id string) (*model.Reservation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewReservationNotFoundError(id)
	}
	res, err := l.reservations.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("予約の取得に失敗しました: %w", err)
	}
	if res == nil {
		return nil, model.NewReservationNotFoundError(id)
	}
	return res, nil
}

func (l *Lifecycle) cleanText(field, raw string) (string, error) {
	text, err := l.sanitizer.Clean(raw)
	if err != nil {
		return "", model.NewValidationError(field + " must not contain HTML markup")
	}
	if text == "" {
		return "", model.NewValidationError(field + " is required")
	}
	if utf8.RuneCountInString(text) > maxReasonLength {
		return "", model.NewValidationError(fmt.Sprintf("%s must be at most %d characters", field, maxReasonLength))
	}
	return text, nil
}

// notified は通知結果を記録し、失敗時は NOTIFICATION_FAILED を返す。再送はしない。
func (l *Lifecycle) notified(event notify.Event, res *model.Reservation, err error) error {
	if err == nil {
		return nil
	}
	l.metrics.RecordNotificationFailure(string(event))
	slog.Error("reservation notification failed",
		slog.String("event", string(event)),
		slog.String("reservation_id", res.ID),
		slog.String("error", err.Error()),
	)
	return model.NewNotificationFailedError()
}

// transitionError はリポジトリのエラーをAPIエラーに変換する。
// unavailable は承認時の重複をROOM_UNAVAILABLEに変換する。教室名は予約のスナップショットから取る。
func (l *Lifecycle) unavailable(ctx context.Context, id string) error {
	res, err := l.find(ctx, id)
	if err != nil {
		return err
	}
	return model.NewRoomUnavailableError(res.RoomName)
}

func transitionError(id string, err error) error {
	var te *repository.TransitionError
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return model.NewReservationNotFoundError(id)
	case errors.As(err, &te):
		return model.NewInvalidTransitionError(te.From, te.To)
	}
	return fmt.Errorf("予約状態の更新に失敗しました: %w", err)
}

func nonNil(list []*model.Reservation) []*model.Reservation {
	if list == nil {
		return []*model.Reservation{}
	}
	return list
}
