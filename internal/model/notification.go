package model

import "time"

// Notification はユーザーごとのアプリ内通知を表す。
// 予約の申請・承認・却下のたびにメール送信と並んで1件作成される。
type Notification struct {
	ID        string
	UserID    string
	Message   string
	IsRead    bool
	CreatedAt time.Time
}
