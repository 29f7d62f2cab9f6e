// Package cleanup は期限切れデータの自動削除ジョブを提供する。
// 期限切れのセッションと、保持期間（デフォルト90日）を超過した既読通知を
// 日次バッチで削除する。予約と却下理由は削除しない。
package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/roombook/internal/metrics"
)

// SessionPurger は期限切れセッションを削除する。
// repository.SessionRepository がこのインターフェースを満たす。
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// NotificationPurger は古い既読通知を削除する。
// repository.NotificationRepository がこのインターフェースを満たす。
type NotificationPurger interface {
	DeleteReadBefore(ctx context.Context, before time.Time) (int64, error)
}

// CleanupJob は期限切れデータの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	sessions      SessionPurger
	notifications NotificationPurger
	metrics       metrics.MetricsCollector
	logger        *slog.Logger
	now           func() time.Time
	RetentionDays int // 既読通知の保持日数（デフォルト: 90）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は90日。
func NewCleanupJob(sessions SessionPurger, notifications NotificationPurger, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		sessions:      sessions,
		notifications: notifications,
		metrics:       collector,
		logger:        logger,
		now:           time.Now,
		RetentionDays: 90,
	}
}

// Run は期限切れセッションと保持期間を超過した既読通知を削除する。
// 片方が失敗してももう片方は実行し、両方のエラーをまとめて返す。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := j.now()

	sessions, sessErr := j.sessions.DeleteExpired(ctx, start)
	if sessErr != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", sessErr.Error()),
		)
		sessErr = fmt.Errorf("セッションクリーンアップの実行に失敗: %w", sessErr)
	}

	before := start.AddDate(0, 0, -j.RetentionDays)
	notifications, notifErr := j.notifications.DeleteReadBefore(ctx, before)
	if notifErr != nil {
		j.logger.Error("通知クリーンアップの実行に失敗しました",
			slog.String("error", notifErr.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		notifErr = fmt.Errorf("通知クリーンアップの実行に失敗: %w", notifErr)
	}

	j.metrics.RecordCleanup(sessions, notifications)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_notifications", notifications),
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return errors.Join(sessErr, notifErr)
}

// Start は起動直後に1回実行し、その後intervalごとにRunを繰り返す。
// ctxがキャンセルされるまでブロックする。個々の実行の失敗はログに残して継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
