// Package notify は予約の状態変更を申請者へ知らせる通知先を提供する。
package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hitoshi/roombook/internal/model"
)

// Event は通知の契機となる予約イベント。
type Event string

const (
	EventSubmitted Event = "submitted"
	EventApproved  Event = "approved"
	EventRejected  Event = "rejected"
)

// Notifier は予約イベントを申請者へ通知する。
// 呼び出しは状態変更のコミット後に同期的に行われ、失敗しても状態は巻き戻らない。
type Notifier interface {
	ReservationSubmitted(ctx context.Context, r *model.Reservation) error
	ReservationApproved(ctx context.Context, r *model.Reservation) error
	ReservationRejected(ctx context.Context, r *model.Reservation, reason string) error
}

// MultiNotifier は全ての通知先を順に呼び出し、エラーをまとめて返す。
// 途中の通知先が失敗しても後続は呼び出す。
type MultiNotifier []Notifier

func (m MultiNotifier) ReservationSubmitted(ctx context.Context, r *model.Reservation) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.ReservationSubmitted(ctx, r))
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) ReservationApproved(ctx context.Context, r *model.Reservation) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.ReservationApproved(ctx, r))
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) ReservationRejected(ctx context.Context, r *model.Reservation, reason string) error {
	var errs []error
	for _, n := range m {
		errs = append(errs, n.ReservationRejected(ctx, r, reason))
	}
	return errors.Join(errs...)
}

// NopNotifier はSMTP未設定時に使う通知先。ログ出力のみ行う。
type NopNotifier struct{}

func (NopNotifier) ReservationSubmitted(_ context.Context, r *model.Reservation) error {
	logSkipped(EventSubmitted, r)
	return nil
}

func (NopNotifier) ReservationApproved(_ context.Context, r *model.Reservation) error {
	logSkipped(EventApproved, r)
	return nil
}

func (NopNotifier) ReservationRejected(_ context.Context, r *model.Reservation, _ string) error {
	logSkipped(EventRejected, r)
	return nil
}

func logSkipped(event Event, r *model.Reservation) {
	slog.Debug("email notification skipped: SMTP not configured",
		slog.String("event", string(event)),
		slog.String("reservation_id", r.ID),
	)
}

var (
	_ Notifier = MultiNotifier(nil)
	_ Notifier = NopNotifier{}
)
