// Package apiclient はroombook APIのGoクライアントを提供する。
// 認証情報は呼び出しごとに Credential として渡し、クライアント自身は保持しない。
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Credential は /auth/login/success で取得したBearerトークン。
type Credential string

// Client はroombook APIを呼び出すHTTPクライアント。
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New はタイムアウト付きのClientを生成する。
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Error はAPIが返したエラーレスポンス。
// NOTIFICATION_FAILED のように状態変更が確定している場合、結果は戻り値側に入る。
type Error struct {
	StatusCode int
	Code       string
	Message    string
	Category   string
	Action     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("roombook api: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsCode はerrがAPIエラーで、コードがcodeと一致するかを返す。
func IsCode(err error, code string) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == code
}

type envelope struct {
	Success  bool            `json:"success"`
	Data     json.RawMessage `json:"data"`
	Error    string          `json:"error"`
	Code     string          `json:"code"`
	Category string          `json:"category"`
	Action   string          `json:"action"`
}

// do はリクエストを送信し、エンベロープのdataをoutにデコードする。
// エラーレスポンスでもdataがあればoutに入れたうえで *Error を返す。
func (c *Client) do(ctx context.Context, cred Credential, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != "" {
		req.Header.Set("Authorization", "Bearer "+string(cred))
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("roombook request failed: %w", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response (%s): %w", resp.Status, err)
	}

	if out != nil && len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("failed to decode data: %w", err)
		}
	}

	if resp.StatusCode >= 300 || !env.Success {
		return &Error{
			StatusCode: resp.StatusCode,
			Code:       env.Code,
			Message:    env.Error,
			Category:   env.Category,
			Action:     env.Action,
		}
	}
	return nil
}

// AvailableRooms は指定日・時間帯に予約可能な教室を返す。
func (c *Client) AvailableRooms(ctx context.Context, cred Credential, date, start, end string) ([]Room, error) {
	q := url.Values{}
	q.Set("date", date)
	q.Set("start_time", start)
	q.Set("end_time", end)

	var rooms []Room
	err := c.do(ctx, cred, http.MethodGet, "/api/available-rooms?"+q.Encode(), nil, &rooms)
	return rooms, err
}

// ReserveRoom は予約申請を作成する。
func (c *Client) ReserveRoom(ctx context.Context, cred Credential, in ReserveInput) (*Reservation, error) {
	var res Reservation
	if err := c.do(ctx, cred, http.MethodPost, "/api/reserve-room", in, &res); err != nil {
		if res.ID != "" {
			return &res, err
		}
		return nil, err
	}
	return &res, nil
}

// BookRoom はユーザー確認、教室名からの教室検索、予約申請の3リクエストを順に行う。
// 各リクエストは独立しており、途中で失敗した場合もそれまでの結果は取り消されない。
func (c *Client) BookRoom(ctx context.Context, cred Credential, email, roomName, date, start, end, reason string) (*Reservation, error) {
	if _, err := c.UserByEmail(ctx, cred, email); err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	room, err := c.RoomByName(ctx, cred, roomName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up room: %w", err)
	}

	return c.ReserveRoom(ctx, cred, ReserveInput{
		RoomID:    room.ID,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		Reason:    reason,
	})
}

// ApproveRequest は予約を承認する（管理者）。
func (c *Client) ApproveRequest(ctx context.Context, cred Credential, reservationID string) (*Reservation, error) {
	return c.transition(ctx, cred, "/api/approve-request", map[string]string{
		"reservation_id": reservationID,
	})
}

// RejectRequest は予約を却下する（管理者）。
func (c *Client) RejectRequest(ctx context.Context, cred Credential, reservationID, reason string) (*Reservation, error) {
	return c.transition(ctx, cred, "/api/rejected-request", map[string]string{
		"reservation_id": reservationID,
		"reject_reason":  reason,
	})
}

func (c *Client) transition(ctx context.Context, cred Credential, path string, body any) (*Reservation, error) {
	var res Reservation
	if err := c.do(ctx, cred, http.MethodPost, path, body, &res); err != nil {
		if res.ID != "" {
			return &res, err
		}
		return nil, err
	}
	return &res, nil
}

// Rejections は予約の却下理由を返す。
func (c *Client) Rejections(ctx context.Context, cred Credential, reservationID string) ([]Rejection, error) {
	var list []Rejection
	err := c.do(ctx, cred, http.MethodGet, "/api/rejected/"+url.PathEscape(reservationID), nil, &list)
	return list, err
}

// FutureReservations は本日以降の予約を返す（管理者）。
func (c *Client) FutureReservations(ctx context.Context, cred Credential) ([]Reservation, error) {
	var list []Reservation
	err := c.do(ctx, cred, http.MethodGet, "/api/future-reservations", nil, &list)
	return list, err
}

// PastReservations は前日以前の予約を返す（管理者）。
func (c *Client) PastReservations(ctx context.Context, cred Credential) ([]Reservation, error) {
	var list []Reservation
	err := c.do(ctx, cred, http.MethodGet, "/api/past-reservations", nil, &list)
	return list, err
}

// StudentReservations は学生の予約を返す。
func (c *Client) StudentReservations(ctx context.Context, cred Credential, userID string) ([]Reservation, error) {
	var list []Reservation
	err := c.do(ctx, cred, http.MethodGet, "/api/reservations/student/"+url.PathEscape(userID), nil, &list)
	return list, err
}

// Rooms は全教室を返す。
func (c *Client) Rooms(ctx context.Context, cred Credential) ([]Room, error) {
	var rooms []Room
	err := c.do(ctx, cred, http.MethodGet, "/api/get-classrooms", nil, &rooms)
	return rooms, err
}

// Room はIDで教室を返す。
func (c *Client) Room(ctx context.Context, cred Credential, id string) (*Room, error) {
	var room Room
	if err := c.do(ctx, cred, http.MethodGet, "/api/room/"+url.PathEscape(id), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// RoomByName は教室名で教室を返す。
func (c *Client) RoomByName(ctx context.Context, cred Credential, name string) (*Room, error) {
	var room Room
	if err := c.do(ctx, cred, http.MethodGet, "/api/room-name/"+url.PathEscape(name), nil, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// AddClassroom は教室を追加する（管理者）。
func (c *Client) AddClassroom(ctx context.Context, cred Credential, name string, capacity int) (*Room, error) {
	var room Room
	body := map[string]any{"room_name": name, "capacity": capacity}
	if err := c.do(ctx, cred, http.MethodPost, "/api/add-classroom", body, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// EditClassroom は教室名と定員を更新する（管理者）。
func (c *Client) EditClassroom(ctx context.Context, cred Credential, id, name string, capacity int) (*Room, error) {
	var room Room
	body := map[string]any{"classroom_id": id, "room_name": name, "capacity": capacity}
	if err := c.do(ctx, cred, http.MethodPost, "/api/edit-classroom", body, &room); err != nil {
		return nil, err
	}
	return &room, nil
}

// DeleteClassroom は教室を削除する（管理者）。
func (c *Client) DeleteClassroom(ctx context.Context, cred Credential, id string) error {
	return c.do(ctx, cred, http.MethodPost, "/api/delete-classroom", map[string]string{"classroom_id": id}, nil)
}

// UserByEmail はメールアドレスでユーザーを返す。
func (c *Client) UserByEmail(ctx context.Context, cred Credential, email string) (*User, error) {
	var u User
	if err := c.do(ctx, cred, http.MethodGet, "/api/user/"+url.PathEscape(email), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AddUser はユーザーを事前登録する（管理者）。
func (c *Client) AddUser(ctx context.Context, cred Credential, email, role string) (*User, error) {
	var u User
	if err := c.do(ctx, cred, http.MethodPost, "/api/add-user", map[string]string{"email": email, "role": role}, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Notifications は本人のアプリ内通知を返す。
func (c *Client) Notifications(ctx context.Context, cred Credential) ([]Notification, error) {
	var list []Notification
	err := c.do(ctx, cred, http.MethodGet, "/api/notifications", nil, &list)
	return list, err
}

// MarkNotificationRead は通知を既読にする。
func (c *Client) MarkNotificationRead(ctx context.Context, cred Credential, id string) error {
	return c.do(ctx, cred, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}
