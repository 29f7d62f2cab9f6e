// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, reservation, room, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation              = "VALIDATION_ERROR"
	ErrCodeInvalidTimeRange        = "INVALID_TIME_RANGE"
	ErrCodeReservationNotFound     = "RESERVATION_NOT_FOUND"
	ErrCodeRoomNotFound            = "ROOM_NOT_FOUND"
	ErrCodeUserNotFound            = "USER_NOT_FOUND"
	ErrCodeNotificationNotFound    = "NOTIFICATION_NOT_FOUND"
	ErrCodeRoomNameConflict        = "ROOM_NAME_CONFLICT"
	ErrCodeUserConflict            = "USER_CONFLICT"
	ErrCodeRoomUnavailable         = "ROOM_UNAVAILABLE"
	ErrCodeInvalidTransition       = "INVALID_TRANSITION"
	ErrCodeAvailabilityQueryFailed = "AVAILABILITY_QUERY_FAILED"
	ErrCodeNotificationFailed      = "NOTIFICATION_FAILED"
	ErrCodeUnauthorized            = "UNAUTHORIZED"
	ErrCodeForbidden               = "FORBIDDEN"
	ErrCodeCSRF                    = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited             = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal                = "INTERNAL_ERROR"
)

// NewValidationError は入力不備エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("入力内容に誤りがあります: %s", reason),
		Category: "validation",
		Action:   "必須項目がすべて入力されているか確認してください。",
	}
}

// NewInvalidTimeRangeError は時間帯の指定が不正な場合のエラーを生成する。
func NewInvalidTimeRangeError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTimeRange,
		Message:  fmt.Sprintf("時間帯の指定が不正です: %s", reason),
		Category: "validation",
		Action:   "開始時刻と終了時刻をHH:MM形式で、終了時刻が開始時刻より後になるよう指定してください。",
	}
}

// NewReservationNotFoundError は予約が見つからない場合のエラーを生成する。
func NewReservationNotFoundError(reservationID string) *APIError {
	return &APIError{
		Code:     ErrCodeReservationNotFound,
		Message:  fmt.Sprintf("指定された予約が見つかりません: %s", reservationID),
		Category: "reservation",
		Action:   "予約IDを確認してください。",
	}
}

// NewRoomNotFoundError は教室が見つからない場合のエラーを生成する。
func NewRoomNotFoundError(key string) *APIError {
	return &APIError{
		Code:     ErrCodeRoomNotFound,
		Message:  fmt.Sprintf("指定された教室が見つかりません: %s", key),
		Category: "room",
		Action:   "教室一覧から対象の教室を選択してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewNotificationNotFoundError は通知が見つからない場合のエラーを生成する。
func NewNotificationNotFoundError(notificationID string) *APIError {
	return &APIError{
		Code:     ErrCodeNotificationNotFound,
		Message:  fmt.Sprintf("指定された通知が見つかりません: %s", notificationID),
		Category: "reservation",
		Action:   "通知一覧を再読み込みしてください。",
	}
}

// NewRoomNameConflictError は教室名が重複している場合のエラーを生成する。
func NewRoomNameConflictError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeRoomNameConflict,
		Message:  fmt.Sprintf("同じ名前の教室が既に存在します: %s", name),
		Category: "room",
		Action:   "別の教室名を指定してください。",
	}
}

// NewUserConflictError はメールアドレスが重複している場合のエラーを生成する。
func NewUserConflictError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeUserConflict,
		Message:  fmt.Sprintf("このメールアドレスのユーザーは既に存在します: %s", email),
		Category: "auth",
		Action:   "ユーザー一覧を確認してください。",
	}
}

// NewRoomUnavailableError は指定時間帯に教室が既に予約されている場合のエラーを生成する。
func NewRoomUnavailableError(roomName string) *APIError {
	return &APIError{
		Code:     ErrCodeRoomUnavailable,
		Message:  fmt.Sprintf("指定された時間帯は既に予約されています: %s", roomName),
		Category: "reservation",
		Action:   "空き教室を再検索してから申請してください。",
	}
}

// NewInvalidTransitionError は許可されていない状態遷移のエラーを生成する。
func NewInvalidTransitionError(from, to ReservationStatus) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidTransition,
		Message:  fmt.Sprintf("予約の状態を %s から %s に変更できません。", from, to),
		Category: "reservation",
		Action:   "予約一覧を再読み込みして最新の状態を確認してください。",
	}
}

// NewAvailabilityQueryFailedError は空き教室検索の失敗エラーを生成する。
func NewAvailabilityQueryFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAvailabilityQueryFailed,
		Message:  "空き教室の検索に失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNotificationFailedError は状態変更後の通知送信に失敗した場合のエラーを生成する。
// 状態変更自体は確定済みでありロールバックされない。
func NewNotificationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotificationFailed,
		Message:  "予約は更新されましたが、通知メールの送信に失敗しました。",
		Category: "system",
		Action:   "必要に応じて申請者へ直接連絡してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を行う権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewCSRFError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
