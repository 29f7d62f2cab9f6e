package apiclient

import "time"

// Room は教室。
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReserveInput は予約申請の入力。Date は "YYYY-MM-DD"、時刻は "HH:MM"。
type ReserveInput struct {
	RoomID    string `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

// Reservation は予約。UserEmail、UserName、RoomName は申請時点の値。
type Reservation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	UserEmail string    `json:"user_email"`
	UserName  string    `json:"user_name"`
	RoomID    string    `json:"room_id"`
	RoomName  string    `json:"room_name"`
	Date      string    `json:"date"`
	StartTime string    `json:"start_time"`
	EndTime   string    `json:"end_time"`
	Reason    string    `json:"reason"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Rejection は却下理由。
type Rejection struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservation_id"`
	RejectReason  string    `json:"reject_reason"`
	CreatedAt     time.Time `json:"created_at"`
}

// User はユーザー。
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

// Notification はアプリ内通知。
type Notification struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
