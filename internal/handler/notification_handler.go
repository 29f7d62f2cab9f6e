package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
)

// notificationListLimit は一覧で返す通知の最大件数。
const notificationListLimit = 50

// NotificationStore はアプリ内通知の参照・既読化のためのインターフェース。
// repository.NotificationRepository の一部だけを要求する。
type NotificationStore interface {
	ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
	MarkRead(ctx context.Context, id, userID string) error
}

// NotificationHandler はアプリ内通知のHTTPハンドラー。
type NotificationHandler struct {
	store NotificationStore
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(store NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// List は本人の通知を新しい順に返す。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	p := principalOrAbort(w, r)
	if p == nil {
		return
	}

	list, err := h.store.ListByUser(r.Context(), p.UserID, notificationListLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponses(list))
}

// MarkRead は本人の通知を既読にする。他人の通知は存在しないものとして扱う。
// POST /api/notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	p := principalOrAbort(w, r)
	if p == nil {
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		handleServiceError(w, model.NewNotificationNotFoundError(id))
		return
	}
	if err := h.store.MarkRead(r.Context(), id, p.UserID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			handleServiceError(w, model.NewNotificationNotFoundError(id))
			return
		}
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "is_read": true})
}
