package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/model"
)

// RoomServiceInterface は教室ハンドラーが必要とするサービスインターフェース。
type RoomServiceInterface interface {
	List(ctx context.Context) ([]*model.Room, error)
	Get(ctx context.Context, id string) (*model.Room, error)
	GetByName(ctx context.Context, name string) (*model.Room, error)
	Add(ctx context.Context, name string, capacity int) (*model.Room, error)
	Edit(ctx context.Context, id, name string, capacity int) (*model.Room, error)
	Delete(ctx context.Context, id string) error
}

// RoomHandler は教室管理のHTTPハンドラー。
type RoomHandler struct {
	service RoomServiceInterface
}

// NewRoomHandler はRoomHandlerを生成する。
func NewRoomHandler(service RoomServiceInterface) *RoomHandler {
	return &RoomHandler{service: service}
}

type addRoomRequest struct {
	RoomName string `json:"room_name"`
	Capacity int    `json:"capacity"`
}

type editRoomRequest struct {
	ClassroomID string `json:"classroom_id"`
	RoomName    string `json:"room_name"`
	Capacity    int    `json:"capacity"`
}

type deleteRoomRequest struct {
	ClassroomID string `json:"classroom_id"`
}

// List は全教室を返す。
// GET /api/get-classrooms
func (h *RoomHandler) List(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomResponses(rooms))
}

// Get はIDで教室を返す。
// GET /api/room/{id}
func (h *RoomHandler) Get(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomResponse(room))
}

// GetByName は名前で教室を返す。
// GET /api/room-name/{name}
func (h *RoomHandler) GetByName(w http.ResponseWriter, r *http.Request) {
	room, err := h.service.GetByName(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomResponse(room))
}

// Add は教室を追加する。
// POST /api/add-classroom
func (h *RoomHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	room, err := h.service.Add(r.Context(), req.RoomName, req.Capacity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRoomResponse(room))
}

// Edit は教室名と定員を更新する。
// POST /api/edit-classroom
func (h *RoomHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req editRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	room, err := h.service.Edit(r.Context(), req.ClassroomID, req.RoomName, req.Capacity)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRoomResponse(room))
}

// Delete は教室を削除する。
// POST /api/delete-classroom
func (h *RoomHandler) Delete(w http.ResponseWriter, r *http.Request) {
	var req deleteRoomRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.service.Delete(r.Context(), req.ClassroomID); err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ClassroomID})
}
