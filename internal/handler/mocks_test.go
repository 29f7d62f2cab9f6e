package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/roombook/internal/auth"
	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/reservation"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*model.Session, *model.User, error)
	logoutFn         func(ctx context.Context, sessionID, bearer string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
	issueTokenFn     func(user *model.User) (string, time.Time, error)
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*model.Session, *model.User, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil, nil
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID, bearer string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID, bearer)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, nil
}

func (m *mockAuthService) IssueToken(user *model.User) (string, time.Time, error) {
	if m.issueTokenFn != nil {
		return m.issueTokenFn(user)
	}
	return "", time.Time{}, nil
}

type mockAvailabilityService struct {
	findFn func(ctx context.Context, date, start, end string) ([]*model.Room, error)
}

func (m *mockAvailabilityService) FindAvailableRooms(ctx context.Context, date, start, end string) ([]*model.Room, error) {
	if m.findFn != nil {
		return m.findFn(ctx, date, start, end)
	}
	return []*model.Room{}, nil
}

type mockReservationService struct {
	createFn        func(ctx context.Context, p *auth.Principal, in reservation.CreateInput) (*model.Reservation, error)
	approveFn       func(ctx context.Context, id string) (*model.Reservation, error)
	rejectFn        func(ctx context.Context, id, reason string) (*model.Reservation, error)
	rejectionsForFn func(ctx context.Context, p *auth.Principal, id string) ([]*model.RejectedRequest, error)
	listFutureFn    func(ctx context.Context, now time.Time) ([]*model.Reservation, error)
	listPastFn      func(ctx context.Context, now time.Time) ([]*model.Reservation, error)
	listByUserFn    func(ctx context.Context, p *auth.Principal, userID string) ([]*model.Reservation, error)
}

func (m *mockReservationService) Create(ctx context.Context, p *auth.Principal, in reservation.CreateInput) (*model.Reservation, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p, in)
	}
	return nil, nil
}

func (m *mockReservationService) Approve(ctx context.Context, id string) (*model.Reservation, error) {
	if m.approveFn != nil {
		return m.approveFn(ctx, id)
	}
	return nil, nil
}

func (m *mockReservationService) Reject(ctx context.Context, id, reason string) (*model.Reservation, error) {
	if m.rejectFn != nil {
		return m.rejectFn(ctx, id, reason)
	}
	return nil, nil
}

func (m *mockReservationService) RejectionsFor(ctx context.Context, p *auth.Principal, id string) ([]*model.RejectedRequest, error) {
	if m.rejectionsForFn != nil {
		return m.rejectionsForFn(ctx, p, id)
	}
	return []*model.RejectedRequest{}, nil
}

func (m *mockReservationService) ListFuture(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	if m.listFutureFn != nil {
		return m.listFutureFn(ctx, now)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationService) ListPast(ctx context.Context, now time.Time) ([]*model.Reservation, error) {
	if m.listPastFn != nil {
		return m.listPastFn(ctx, now)
	}
	return []*model.Reservation{}, nil
}

func (m *mockReservationService) ListByUser(ctx context.Context, p *auth.Principal, userID string) ([]*model.Reservation, error) {
	if m.listByUserFn != nil {
		return m.listByUserFn(ctx, p, userID)
	}
	return []*model.Reservation{}, nil
}

type mockRoomService struct {
	listFn      func(ctx context.Context) ([]*model.Room, error)
	getFn       func(ctx context.Context, id string) (*model.Room, error)
	getByNameFn func(ctx context.Context, name string) (*model.Room, error)
	addFn       func(ctx context.Context, name string, capacity int) (*model.Room, error)
	editFn      func(ctx context.Context, id, name string, capacity int) (*model.Room, error)
	deleteFn    func(ctx context.Context, id string) error
}

func (m *mockRoomService) List(ctx context.Context) ([]*model.Room, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return []*model.Room{}, nil
}

func (m *mockRoomService) Get(ctx context.Context, id string) (*model.Room, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, model.NewRoomNotFoundError(id)
}

func (m *mockRoomService) GetByName(ctx context.Context, name string) (*model.Room, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, name)
	}
	return nil, model.NewRoomNotFoundError(name)
}

func (m *mockRoomService) Add(ctx context.Context, name string, capacity int) (*model.Room, error) {
	if m.addFn != nil {
		return m.addFn(ctx, name, capacity)
	}
	return &model.Room{ID: "room-new", Name: name, Capacity: capacity}, nil
}

func (m *mockRoomService) Edit(ctx context.Context, id, name string, capacity int) (*model.Room, error) {
	if m.editFn != nil {
		return m.editFn(ctx, id, name, capacity)
	}
	return &model.Room{ID: id, Name: name, Capacity: capacity}, nil
}

func (m *mockRoomService) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

type mockUserService struct {
	getByEmailFn func(ctx context.Context, p *auth.Principal, email string) (*model.User, error)
	addUserFn    func(ctx context.Context, email string, role model.Role, name string) (*model.User, error)
}

func (m *mockUserService) GetByEmail(ctx context.Context, p *auth.Principal, email string) (*model.User, error) {
	if m.getByEmailFn != nil {
		return m.getByEmailFn(ctx, p, email)
	}
	return nil, model.NewUserNotFoundError()
}

func (m *mockUserService) AddUser(ctx context.Context, email string, role model.Role, name string) (*model.User, error) {
	if m.addUserFn != nil {
		return m.addUserFn(ctx, email, role, name)
	}
	return &model.User{ID: "user-new", Email: email, Role: role, Name: name}, nil
}

type mockNotificationStore struct {
	listFn     func(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
	markReadFn func(ctx context.Context, id, userID string) error
}

func (m *mockNotificationStore) ListByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, limit)
	}
	return nil, nil
}

func (m *mockNotificationStore) MarkRead(ctx context.Context, id, userID string) error {
	if m.markReadFn != nil {
		return m.markReadFn(ctx, id, userID)
	}
	return nil
}

// --- ヘルパー ---

var (
	studentPrincipal = &auth.Principal{UserID: "student-1", Email: "taro@example.edu", Role: model.RoleStudent, Via: auth.ViaSession}
	adminPrincipal   = &auth.Principal{UserID: "admin-1", Email: "admin@example.edu", Role: model.RoleAdmin, Via: auth.ViaSession}
)

// asPrincipal はPrincipalを注入したリクエストを返す。
func asPrincipal(r *http.Request, p *auth.Principal) *http.Request {
	return r.WithContext(auth.WithPrincipal(r.Context(), p))
}

// envelope はレスポンスボディの共通部分。
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return env
}

func decodeData(t *testing.T, env envelope, v any) {
	t.Helper()
	if err := json.Unmarshal(env.Data, v); err != nil {
		t.Fatalf("failed to decode data %s: %v", env.Data, err)
	}
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status = %d, want %d (body=%s)", w.Code, want, w.Body.String())
	}
}

func sampleReservation(status model.ReservationStatus) *model.Reservation {
	return &model.Reservation{
		ID:        "res-1",
		UserID:    "student-1",
		UserEmail: "taro@example.edu",
		UserName:  "Taro",
		RoomID:    "room-1",
		RoomName:  "A-101",
		Date:      time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		StartTime: "09:00",
		EndTime:   "10:00",
		Reason:    "ゼミ",
		Status:    status,
	}
}
