// Package reservation は空き教室の検索と予約申請のライフサイクルを提供する。
package reservation

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/roombook/internal/metrics"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
)

// AvailabilityChecker は指定日・時間帯に予約可能な教室を求める。
type AvailabilityChecker struct {
	rooms        repository.RoomRepository
	reservations repository.ReservationRepository
	loc          *time.Location
	metrics      metrics.MetricsCollector
}

// NewAvailabilityChecker はAvailabilityCheckerを生成する。
// loc は日付を暦日として解釈する基準タイムゾーン。
func NewAvailabilityChecker(
	rooms repository.RoomRepository,
	reservations repository.ReservationRepository,
	loc *time.Location,
	collector metrics.MetricsCollector,
) *AvailabilityChecker {
	if loc == nil {
		loc = time.UTC
	}
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &AvailabilityChecker{rooms: rooms, reservations: reservations, loc: loc, metrics: collector}
}

// FindAvailableRooms は date の [start, end) に pending / approved の予約が重ならない教室を
// 登録順に返す。空き教室が無い場合は空スライスを返す。
func (c *AvailabilityChecker) FindAvailableRooms(ctx context.Context, date, start, end string) ([]*model.Room, error) {
	if date == "" || start == "" || end == "" {
		return nil, model.NewValidationError("date, start_time and end_time are required")
	}
	day, err := model.ParseDay(date, c.loc)
	if err != nil {
		return nil, model.NewValidationError(err.Error())
	}
	window, err := model.ParseWindow(start, end)
	if err != nil {
		return nil, model.NewInvalidTimeRangeError(err.Error())
	}

	began := time.Now()
	defer func() { c.metrics.RecordAvailabilityLatency(time.Since(began)) }()

	booked, err := c.reservations.ListBlockingOnDay(ctx, day)
	if err != nil {
		slog.Error("availability query failed",
			slog.String("date", day.Format(model.DateLayout)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAvailabilityQueryFailedError()
	}

	blocked := make(map[string]struct{})
	for _, r := range booked {
		if r.Window().Overlaps(window) {
			blocked[r.RoomID] = struct{}{}
		}
	}

	rooms, err := c.rooms.List(ctx)
	if err != nil {
		slog.Error("availability query failed",
			slog.String("date", day.Format(model.DateLayout)),
			slog.String("error", err.Error()),
		)
		return nil, model.NewAvailabilityQueryFailedError()
	}

	available := make([]*model.Room, 0, len(rooms))
	for _, room := range rooms {
		if _, ok := blocked[room.ID]; !ok {
			available = append(available, room)
		}
	}
	return available, nil
}
