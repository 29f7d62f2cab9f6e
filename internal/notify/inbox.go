package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
)

// InboxNotifier は申請者のアプリ内通知として1件ずつ保存する。
type InboxNotifier struct {
	repo repository.NotificationRepository
	now  func() time.Time
}

// NewInboxNotifier はInboxNotifierを生成する。
func NewInboxNotifier(repo repository.NotificationRepository) *InboxNotifier {
	return &InboxNotifier{repo: repo, now: time.Now}
}

func (n *InboxNotifier) ReservationSubmitted(ctx context.Context, r *model.Reservation) error {
	return n.save(ctx, r, fmt.Sprintf("%s %s %s-%s の予約申請を受け付けました。",
		r.RoomName, r.Date.Format(model.DateLayout), r.StartTime, r.EndTime))
}

func (n *InboxNotifier) ReservationApproved(ctx context.Context, r *model.Reservation) error {
	return n.save(ctx, r, fmt.Sprintf("%s %s %s-%s の予約が承認されました。",
		r.RoomName, r.Date.Format(model.DateLayout), r.StartTime, r.EndTime))
}

func (n *InboxNotifier) ReservationRejected(ctx context.Context, r *model.Reservation, reason string) error {
	return n.save(ctx, r, fmt.Sprintf("%s %s %s-%s の予約は却下されました。理由: %s",
		r.RoomName, r.Date.Format(model.DateLayout), r.StartTime, r.EndTime, reason))
}

func (n *InboxNotifier) save(ctx context.Context, r *model.Reservation, message string) error {
	err := n.repo.Create(ctx, &model.Notification{
		ID:        uuid.New().String(),
		UserID:    r.UserID,
		Message:   message,
		CreatedAt: n.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save notification for reservation %s: %w", r.ID, err)
	}
	return nil
}

var _ Notifier = (*InboxNotifier)(nil)
