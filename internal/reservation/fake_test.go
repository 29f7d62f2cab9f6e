package reservation

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/model"
	"github.com/hitoshi/roombook/internal/repository"
)

// fakeStore はリポジトリの契約をメモリ上で再現するテスト用実装。
type fakeStore struct {
	mu         sync.Mutex
	rooms      []*model.Room
	users      map[string]*model.User
	res        map[string]*model.Reservation
	rejections map[string]*model.RejectedRequest

	failList error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]*model.User),
		res:        make(map[string]*model.Reservation),
		rejections: make(map[string]*model.RejectedRequest),
	}
}

func (f *fakeStore) addRoom(name string, capacity int) *model.Room {
	room := &model.Room{ID: uuid.New().String(), Name: name, Capacity: capacity}
	f.rooms = append(f.rooms, room)
	return room
}

func (f *fakeStore) addUser(email string, role model.Role) *model.User {
	u := &model.User{ID: uuid.New().String(), Email: email, Name: "User " + email, Role: role}
	f.users[u.ID] = u
	return u
}

func (f *fakeStore) status(id string) model.ReservationStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.res[id].Status
}

// --- RoomRepository ---

type fakeRoomRepo struct{ *fakeStore }

func (f fakeRoomRepo) List(context.Context) ([]*model.Room, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	return append([]*model.Room(nil), f.rooms...), nil
}

func (f fakeRoomRepo) FindByID(_ context.Context, id string) (*model.Room, error) {
	for _, r := range f.rooms {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (f fakeRoomRepo) FindByName(_ context.Context, name string) (*model.Room, error) {
	for _, r := range f.rooms {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, nil
}

func (f fakeRoomRepo) Create(context.Context, *model.Room) error { return errors.New("not used") }
func (f fakeRoomRepo) Update(context.Context, *model.Room) error { return errors.New("not used") }
func (f fakeRoomRepo) Delete(context.Context, string) error { return errors.New("not used") }

// --- UserRepository ---

type fakeUserRepo struct{ *fakeStore }

func (f fakeUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	return f.users[id], nil
}

func (f fakeUserRepo) FindByEmail(context.Context, string) (*model.User, error) { return nil, nil }
func (f fakeUserRepo) Create(context.Context, *model.User) error { return nil }
func (f fakeUserRepo) CreateWithIdentity(context.Context, *model.User, *model.Identity) error {
	return nil
}
func (f fakeUserRepo) UpdateName(context.Context, string, string) error { return nil }

// --- ReservationRepository ---

type fakeReservationRepo struct{ *fakeStore }

func (f fakeReservationRepo) FindByID(_ context.Context, id string) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.res[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func blocking(s model.ReservationStatus) bool {
	for _, b := range model.BlockingStatuses {
		if s == b {
			return true
		}
	}
	return false
}

func (f fakeReservationRepo) ListBlockingOnDay(_ context.Context, day time.Time) ([]*model.Reservation, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reservation
	for _, r := range f.res {
		if r.Date.Equal(day) && blocking(r.Status) {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f fakeReservationRepo) CreateChecked(_ context.Context, res *model.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var room *model.Room
	for _, r := range f.rooms {
		if r.ID == res.RoomID {
			room = r
		}
	}
	if room == nil {
		return repository.ErrNotFound
	}
	res.RoomName = room.Name
	for _, e := range f.res {
		if e.RoomID == res.RoomID && e.Date.Equal(res.Date) && blocking(e.Status) && e.Window().Overlaps(res.Window()) {
			return repository.ErrConflict
		}
	}
	cp := *res
	f.res[res.ID] = &cp
	return nil
}

func (f fakeReservationRepo) transition(id string, to model.ReservationStatus, allowed func(model.ReservationStatus) bool, check func(*model.Reservation) error, after func()) (*model.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, ok := f.res[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if !allowed(r.Status) {
		return nil, &repository.TransitionError{From: r.Status, To: to}
	}
	if err := check(r); err != nil {
		return nil, err
	}
	r.Status = to
	after()
	cp := *r
	return &cp, nil
}

// overlapsOther は呼び出し側でロック済みであることを前提とする。
func (f fakeReservationRepo) overlapsOther(res *model.Reservation) error {
	for _, e := range f.res {
		if e.ID != res.ID && e.RoomID == res.RoomID && e.Date.Equal(res.Date) && blocking(e.Status) && e.Window().Overlaps(res.Window()) {
			return repository.ErrConflict
		}
	}
	return nil
}

func (f fakeReservationRepo) Approve(_ context.Context, id string) (*model.Reservation, error) {
	return f.transition(id, model.ReservationStatusApproved, model.ReservationStatus.CanApprove, f.overlapsOther, func() {
		delete(f.rejections, id)
	})
}

func (f fakeReservationRepo) Reject(_ context.Context, id, reason string) (*model.Reservation, error) {
	noCheck := func(*model.Reservation) error { return nil }
	return f.transition(id, model.ReservationStatusRejected, model.ReservationStatus.CanReject, noCheck, func() {
		f.rejections[id] = &model.RejectedRequest{ID: uuid.New().String(), ReservationID: id, RejectReason: reason}
	})
}

func (f fakeReservationRepo) ListRejections(_ context.Context, id string) ([]*model.RejectedRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.rejections[id]; ok {
		return []*model.RejectedRequest{r}, nil
	}
	return nil, nil
}

func (f fakeReservationRepo) list(keep func(*model.Reservation) bool) []*model.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Reservation
	for _, r := range f.res {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}

func (f fakeReservationRepo) ListFrom(_ context.Context, day time.Time) ([]*model.Reservation, error) {
	return f.list(func(r *model.Reservation) bool { return !r.Date.Before(day) }), nil
}

func (f fakeReservationRepo) ListBefore(_ context.Context, day time.Time) ([]*model.Reservation, error) {
	return f.list(func(r *model.Reservation) bool { return r.Date.Before(day) }), nil
}

func (f fakeReservationRepo) ListByUser(_ context.Context, userID string) ([]*model.Reservation, error) {
	return f.list(func(r *model.Reservation) bool { return r.UserID == userID }), nil
}

var (
	_ repository.RoomRepository        = fakeRoomRepo{}
	_ repository.UserRepository        = fakeUserRepo{}
	_ repository.ReservationRepository = fakeReservationRepo{}
)
