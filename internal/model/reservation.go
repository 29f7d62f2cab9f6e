package model

import (
	"fmt"
	"time"
)

// DateLayout は予約日付の入出力フォーマット。
const DateLayout = "2006-01-02"

// TimeLayout は予約時刻の入出力フォーマット（ゼロ埋め24時間表記）。
const TimeLayout = "15:04"

// ReservationStatus は予約申請の状態を表す。
type ReservationStatus string

const (
	// ReservationStatusPending は審査待ち。作成直後の状態。
	ReservationStatusPending ReservationStatus = "pending"
	// ReservationStatusApproved は承認済み。終端状態。
	ReservationStatusApproved ReservationStatus = "approved"
	// ReservationStatusRejected は却下済み。再承認のみ可能。
	ReservationStatusRejected ReservationStatus = "rejected"
)

// BlockingStatuses は空き判定で教室を塞ぐ状態の一覧。
var BlockingStatuses = []ReservationStatus{
	ReservationStatusPending,
	ReservationStatusApproved,
}

// CanApprove は現在の状態から承認へ遷移できるかを返す。
// pending と rejected（再承認）のみ許可される。
func (s ReservationStatus) CanApprove() bool {
	return s == ReservationStatusPending || s == ReservationStatusRejected
}

// CanReject は現在の状態から却下へ遷移できるかを返す。
func (s ReservationStatus) CanReject() bool {
	return s == ReservationStatusPending
}

// Reservation は教室の予約申請を表す。
// UserEmail、UserName、RoomName は作成時点のスナップショットであり、
// 以後のユーザー・教室の変更には追従しない。
type Reservation struct {
	ID        string
	UserID    string
	UserEmail string
	UserName  string
	RoomID    string
	RoomName  string
	Date      time.Time // 日付のみ有効（基準タイムゾーンの暦日）
	StartTime string    // "HH:MM"
	EndTime   string    // "HH:MM"
	Reason    string
	Status    ReservationStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Window は同一日内の時間帯 [Start, End) を表す。
func (r *Reservation) Window() Window {
	return Window{Start: r.StartTime, End: r.EndTime}
}

// RejectedRequest は却下理由を保持する。予約IDごとに高々1件。
type RejectedRequest struct {
	ID            string
	ReservationID string
	RejectReason  string
	CreatedAt     time.Time
}

// Window は "HH:MM" 形式の半開区間 [Start, End) を表す。
// 固定幅のゼロ埋め24時間表記のため、文字列の辞書順比較で時刻順が保たれる。
type Window struct {
	Start string
	End   string
}

// ParseWindow は開始・終了時刻を検証してWindowを返す。
// いずれかの形式が不正、または start >= end の場合はエラーを返す。
func ParseWindow(start, end string) (Window, error) {
	if !validClock(start) {
		return Window{}, fmt.Errorf("invalid start_time %q", start)
	}
	if !validClock(end) {
		return Window{}, fmt.Errorf("invalid end_time %q", end)
	}
	if start >= end {
		return Window{}, fmt.Errorf("start_time %s must be before end_time %s", start, end)
	}
	return Window{Start: start, End: end}, nil
}

// Overlaps は2つの半開区間が重なるかを返す。
// 端点が接するだけ（a.End == b.Start）の場合は重ならない。
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && w.End > other.Start
}

func validClock(s string) bool {
	if len(s) != len(TimeLayout) {
		return false
	}
	_, err := time.Parse(TimeLayout, s)
	return err == nil
}

// ParseDay は予約日付を基準タイムゾーンの暦日（0時0分）に正規化する。
// "YYYY-MM-DD" とRFC 3339形式を受け付ける。RFC 3339の場合は
// 基準タイムゾーンに変換してから日付を取り出す。
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(DateLayout, s, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return StartOfDay(t, loc), nil
}

// StartOfDay はtを基準タイムゾーンでの当日0時0分に丸める。
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
