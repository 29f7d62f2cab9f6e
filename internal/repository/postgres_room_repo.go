package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/roombook/internal/model"
)

// PostgresRoomRepo はPostgreSQLを使用した教室リポジトリ。
type PostgresRoomRepo struct {
	db *sql.DB
}

// NewPostgresRoomRepo はPostgresRoomRepoを生成する。
func NewPostgresRoomRepo(db *sql.DB) *PostgresRoomRepo {
	return &PostgresRoomRepo{db: db}
}

const roomColumns = `id, name, capacity, created_at, updated_at`

func scanRoom(row interface{ Scan(...any) error }) (*model.Room, error) {
	room := &model.Room{}
	if err := row.Scan(&room.ID, &room.Name, &room.Capacity, &room.CreatedAt, &room.UpdatedAt); err != nil {
		return nil, err
	}
	return room, nil
}

// List は全教室を登録順に返す。
func (r *PostgresRoomRepo) List(ctx context.Context) ([]*model.Room, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+roomColumns+` FROM rooms ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	defer rows.Close()

	rooms := make([]*model.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan room: %w", err)
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rooms: %w", err)
	}
	return rooms, nil
}

// FindByID は指定IDの教室を取得する。見つからない場合はnilを返す。
func (r *PostgresRoomRepo) FindByID(ctx context.Context, id string) (*model.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find room by ID: %w", err)
	}
	return room, nil
}

// FindByName は教室名で教室を取得する。見つからない場合はnilを返す。
func (r *PostgresRoomRepo) FindByName(ctx context.Context, name string) (*model.Room, error) {
	room, err := scanRoom(r.db.QueryRowContext(ctx,
		`SELECT `+roomColumns+` FROM rooms WHERE name = $1`, name,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find room by name: %w", err)
	}
	return room, nil
}

// Create は教室を作成する。名前が重複する場合はErrConflictを返す。
func (r *PostgresRoomRepo) Create(ctx context.Context, room *model.Room) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO rooms (id, name, capacity, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		room.ID, room.Name, room.Capacity, room.CreatedAt, room.UpdatedAt,
	)
	if uniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert room: %w", err)
	}
	return nil
}

// Update は教室名と定員を更新する。
func (r *PostgresRoomRepo) Update(ctx context.Context, room *model.Room) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE rooms SET name = $2, capacity = $3, updated_at = now()
		 WHERE id = $1
		 RETURNING created_at, updated_at`,
		room.ID, room.Name, room.Capacity,
	).Scan(&room.CreatedAt, &room.UpdatedAt)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if uniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	return nil
}

// Delete は教室を削除する。予約側の room_name スナップショットはそのまま残る。
func (r *PostgresRoomRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ RoomRepository = (*PostgresRoomRepo)(nil)
