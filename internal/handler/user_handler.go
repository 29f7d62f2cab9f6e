package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// GetByEmail はメールアドレスでユーザーを返す。学生は本人のみ参照できる。
	GetByEmail(ctx context.Context, p *auth.Principal, email string) (*model.User, error)
	// AddUser は役割を指定してユーザーを事前登録する。
	AddUser(ctx context.Context, email string, role model.Role, name string) (*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

type addUserRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	Name  string `json:"name"`
}

// GetByEmail はメールアドレスでユーザーを返す。
// GET /api/user/{email}
func (h *UserHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	p := principalOrAbort(w, r)
	if p == nil {
		return
	}

	user, err := h.service.GetByEmail(r.Context(), p, chi.URLParam(r, "email"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// AddUser はユーザーを事前登録する。
// POST /api/add-user
func (h *UserHandler) AddUser(w http.ResponseWriter, r *http.Request) {
	var req addUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.service.AddUser(r.Context(), req.Email, model.Role(req.Role), req.Name)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}
