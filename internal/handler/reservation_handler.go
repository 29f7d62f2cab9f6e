package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/reservation"
)

// AvailabilityServiceInterface は空き教室検索に必要なサービスインターフェース。
type AvailabilityServiceInterface interface {
	FindAvailableRooms(ctx context.Context, date, start, end string) ([]*model.Room, error)
}

// ReservationServiceInterface は予約ハンドラーが必要とするサービスインターフェース。
// Create・Approve・Reject は NOTIFICATION_FAILED の場合も確定済みの予約を返す。
type ReservationServiceInterface interface {
	Create(ctx context.Context, p *auth.Principal, in reservation.CreateInput) (*model.Reservation, error)
	Approve(ctx context.Context, id string) (*model.Reservation, error)
	Reject(ctx context.Context, id, reason string) (*model.Reservation, error)
	RejectionsFor(ctx context.Context, p *auth.Principal, reservationID string) ([]*model.RejectedRequest, error)
	ListFuture(ctx context.Context, now time.Time) ([]*model.Reservation, error)
	ListPast(ctx context.Context, now time.Time) ([]*model.Reservation, error)
	ListByUser(ctx context.Context, p *auth.Principal, userID string) ([]*model.Reservation, error)
}

// ReservationHandler は空き検索と予約ライフサイクルのHTTPハンドラー。
type ReservationHandler struct {
	availability AvailabilityServiceInterface
	service      ReservationServiceInterface
	now          func() time.Time
}

// NewReservationHandler はReservationHandlerを生成する。
func NewReservationHandler(availability AvailabilityServiceInterface, service ReservationServiceInterface) *ReservationHandler {
	return &ReservationHandler{
		availability: availability,
		service:      service,
		now:          time.Now,
	}
}

type reserveRoomRequest struct {
	RoomID    string `json:"room_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Reason    string `json:"reason"`
}

type approveRequest struct {
	ReservationID string `json:"reservation_id"`
}

type rejectRequest struct {
	ReservationID string `json:"reservation_id"`
	RejectReason  string `json:"reject_reason"`
}

// AvailableRooms は指定日・時間帯に予約可能な教室を返す。
// GET /api/available-rooms?date=YYYY-MM-DD&start_time=HH:MM&end_time=HH:MM
func (h *ReservationHandler) AvailableRooms(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	rooms, err := h.availability.FindAvailableRooms(r.Context(), q.Get("date"), q.Get("start_time"), q.Get("end_time"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomResponses(rooms))
}

// ReserveRoom は予約申請を作成する。
// POST /api/reserve-room
func (h *ReservationHandler) ReserveRoom(w http.ResponseWriter, r *http.Request) {
	p := principalOrAbort(w, r)
	if p == nil {
		return
	}

	var req reserveRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := h.service.Create(r.Context(), p, reservation.CreateInput{
		RoomID:    req.RoomID,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Reason:    req.Reason,
	})
	h.writeCommitted(w, http.StatusCreated, res, err)
}

// FutureReservations は本日以降の予約一覧を返す。
// GET /api/future-reservations
func (h *ReservationHandler) FutureReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListFuture(r.Context(), h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponses(list))
}

// PastReservations は前日以前の予約一覧を返す。
// GET /api/past-reservations
func (h *ReservationHandler) PastReservations(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListPast(r.Context(), h.now())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponses(list))
}

// ApproveRequest は予約を承認する。
// POST /api/approve-request
func (h *ReservationHandler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReservationID == "" {
		handleServiceError(w, model.NewValidationError("reservation_id is required"))
		return
	}

	res, err := h.service.Approve(r.Context(), req.ReservationID)
	h.writeCommitted(w, http.StatusOK, res, err)
}

// RejectRequest は予約を却下する。
// POST /api/rejected-request
func (h *ReservationHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ReservationID == "" {
		handleServiceError(w, model.NewValidationError("reservation_id is required"))
		return
	}

	res, err := h.service.Reject(r.Context(), req.ReservationID, req.RejectReason)
	h.writeCommitted(w, http.StatusOK, res, err)
}

// Rejections は予約の却下理由を返す。
// GET /api/rejected/{id}
func (h *ReservationHandler) Rejections(w http.ResponseWriter, r *http.Request) {
	p := principalOrAbort(w, r)
	if p == nil {
		return
	}

	list, err := h.service.RejectionsFor(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRejectionResponses(list))
}

// StudentReservations は学生の予約一覧を返す。
// GET /api/reservations/student/{id}
func (h *ReservationHandler) StudentReservations(w http.ResponseWriter, r *http.Request) {
	p := principalOrAbort(w, r)
	if p == nil {
		return
	}

	list, err := h.service.ListByUser(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponses(list))
}

// writeCommitted は状態変更系のレスポンスを書き込む。
// 通知失敗などで予約が確定済みの場合は、エラーに予約を添えて返す。
func (h *ReservationHandler) writeCommitted(w http.ResponseWriter, status int, res *model.Reservation, err error) {
	if err != nil {
		if res != nil {
			handleServiceErrorWithData(w, err, toReservationResponse(res))
			return
		}
		handleServiceError(w, err)
		return
	}
	writeJSON(w, status, toReservationResponse(res))
}
