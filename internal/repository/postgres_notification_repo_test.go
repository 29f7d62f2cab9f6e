package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/roombook/internal/model"
)

func TestPostgresNotificationRepo_ImplementsInterface(t *testing.T) {
	var _ NotificationRepository = (*PostgresNotificationRepo)(nil)
}

func TestPostgresNotificationRepo_Lifecycle(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgresNotificationRepo(db)
	ctx := context.Background()

	owner := seedUser(t, db, "owner@example.com", model.RoleStudent)
	other := seedUser(t, db, "other@example.com", model.RoleStudent)

	old := &model.Notification{ID: uuid.New().String(), UserID: owner.ID, Message: "old", CreatedAt: time.Now().Add(-100 * 24 * time.Hour)}
	recent := &model.Notification{ID: uuid.New().String(), UserID: owner.ID, Message: "recent", CreatedAt: time.Now()}
	for _, n := range []*model.Notification{old, recent} {
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	list, err := repo.ListByUser(ctx, owner.ID, 10)
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if len(list) != 2 || list[0].ID != recent.ID {
		t.Fatalf("ListByUser = %+v, want newest first", list)
	}

	if err := repo.MarkRead(ctx, old.ID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("MarkRead by other user: err = %v, want ErrNotFound", err)
	}
	if err := repo.MarkRead(ctx, old.ID, owner.ID); err != nil {
		t.Fatalf("MarkRead returned error: %v", err)
	}

	// 未読のrecentは保持期間に関係なく残る
	n, err := repo.DeleteReadBefore(ctx, time.Now().Add(-90*24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteReadBefore returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}
	list, _ = repo.ListByUser(ctx, owner.ID, 10)
	if len(list) != 1 || list[0].ID != recent.ID {
		t.Errorf("remaining = %+v, want [recent]", list)
	}
}
