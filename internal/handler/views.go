package handler

import (
	"time"

	"github.com/hitoshi/roombook/internal/model"
)

// roomResponse は教室情報のAPIレスポンス。
type roomResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRoomResponse(r *model.Room) roomResponse {
	return roomResponse{
		ID:        r.ID,
		Name:      r.Name,
		Capacity:  r.Capacity,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toRoomResponses(rooms []*model.Room) []roomResponse {
	out := make([]roomResponse, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, toRoomResponse(r))
	}
	return out
}

// reservationResponse は予約情報のAPIレスポンス。
// user_email、user_name、room_name は作成時点のスナップショット。
type reservationResponse struct {
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

func toReservationResponse(r *model.Reservation) reservationResponse {
	return reservationResponse{
		ID:        r.ID,
		UserID:    r.UserID,
		UserEmail: r.UserEmail,
		UserName:  r.UserName,
		RoomID:    r.RoomID,
		RoomName:  r.RoomName,
		Date:      r.Date.Format(model.DateLayout),
		StartTime: r.StartTime,
		EndTime:   r.EndTime,
		Reason:    r.Reason,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func toReservationResponses(list []*model.Reservation) []reservationResponse {
	out := make([]reservationResponse, 0, len(list))
	for _, r := range list {
		out = append(out, toReservationResponse(r))
	}
	return out
}

// rejectionResponse は却下理由のAPIレスポンス。
type rejectionResponse struct {
	ID            string    `json:"id"`
	ReservationID string    `json:"reservation_id"`
	RejectReason  string    `json:"reject_reason"`
	CreatedAt     time.Time `json:"created_at"`
}

func toRejectionResponses(list []*model.RejectedRequest) []rejectionResponse {
	out := make([]rejectionResponse, 0, len(list))
	for _, r := range list {
		out = append(out, rejectionResponse{
			ID:            r.ID,
			ReservationID: r.ReservationID,
			RejectReason:  r.RejectReason,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  string `json:"role"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:    u.ID,
		Email: u.Email,
		Name:  u.Name,
		Role:  string(u.Role),
	}
}

// notificationResponse はアプリ内通知のAPIレスポンス。
type notificationResponse struct {
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func toNotificationResponses(list []*model.Notification) []notificationResponse {
	out := make([]notificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, notificationResponse{
			ID:        n.ID,
			Message:   n.Message,
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt,
		})
	}
	return out
}
