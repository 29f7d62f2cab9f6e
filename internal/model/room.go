package model

import "time"

// Room は予約対象の教室を表す。
// 名前は一意で、管理者のみが作成・編集・削除できる。
type Room struct {
	ID        string
	Name      string
	Capacity  int
	CreatedAt time.Time
	UpdatedAt time.Time
}
