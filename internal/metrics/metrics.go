// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 予約サービス、HTTPミドルウェア、ワーカーから利用する。
type MetricsCollector interface {
	RecordReservationCreated()
	RecordTransition(toStatus string)
	RecordNotificationFailure(event string)
	RecordAvailabilityLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordCleanup(sessions, notifications int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	reservationsCreated prometheus.Counter
	transitions         *prometheus.CounterVec
	notificationFail    *prometheus.CounterVec
	availabilityLatency prometheus.Histogram
	httpStatus          *prometheus.CounterVec
	cleanupDeleted      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		reservationsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "roombook_reservations_created_total",
			Help: "作成された予約の合計数",
		}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_reservation_transitions_total",
			Help: "遷移先ステータス別の予約状態遷移数",
		}, []string{"status"}),
		notificationFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_notification_failures_total",
			Help: "イベント別の通知送信失敗数",
		}, []string{"event"}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "roombook_availability_query_seconds",
			Help:    "空き教室検索のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "roombook_cleanup_deleted_total",
			Help: "クリーンアップで削除された行数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.reservationsCreated,
		c.transitions,
		c.notificationFail,
		c.availabilityLatency,
		c.httpStatus,
		c.cleanupDeleted,
	)

	return c
}

// RecordReservationCreated は予約作成を記録する。
func (c *Collector) RecordReservationCreated() {
	c.reservationsCreated.Inc()
}

// RecordTransition は予約の状態遷移を遷移先ステータスで記録する。
func (c *Collector) RecordTransition(toStatus string) {
	c.transitions.WithLabelValues(toStatus).Inc()
}

// RecordNotificationFailure は通知送信の失敗を記録する。
func (c *Collector) RecordNotificationFailure(event string) {
	c.notificationFail.WithLabelValues(event).Inc()
}

// RecordAvailabilityLatency は空き教室検索のレイテンシを記録する。
func (c *Collector) RecordAvailabilityLatency(duration time.Duration) {
	c.availabilityLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanup はクリーンアップで削除した件数を記録する。
func (c *Collector) RecordCleanup(sessions, notifications int64) {
	c.cleanupDeleted.WithLabelValues("sessions").Add(float64(sessions))
	c.cleanupDeleted.WithLabelValues("notifications").Add(float64(notifications))
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordReservationCreated() {}
func (Nop) RecordTransition(string) {}
func (Nop) RecordNotificationFailure(string) {}
func (Nop) RecordAvailabilityLatency(time.Duration) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) RecordCleanup(int64, int64) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
