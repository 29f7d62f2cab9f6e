package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/roombook/internal/model"
)

// PostgresReservationRepo はPostgreSQLを使用した予約リポジトリ。
// date列はDATE型で保持し、読み出し時に基準タイムゾーンの暦日へ戻す。
type PostgresReservationRepo struct {
	db  *sql.DB
	loc *time.Location
}

// NewPostgresReservationRepo はPostgresReservationRepoを生成する。
// locがnilの場合はUTCを基準タイムゾーンとする。
func NewPostgresReservationRepo(db *sql.DB, loc *time.Location) *PostgresReservationRepo {
	if loc == nil {
		loc = time.UTC
	}
	return &PostgresReservationRepo{db: db, loc: loc}
}

const reservationColumns = `id, user_id, user_email, user_name, room_id, room_name,
	date, start_time, end_time, reason, status, created_at, updated_at`

var allStatuses = []model.ReservationStatus{
	model.ReservationStatusPending,
	model.ReservationStatusApproved,
	model.ReservationStatusRejected,
}

func statusArray(statuses []model.ReservationStatus) interface{} {
	s := make([]string, len(statuses))
	for i, st := range statuses {
		s[i] = string(st)
	}
	return pq.Array(s)
}

func statusesWhere(pred func(model.ReservationStatus) bool) []model.ReservationStatus {
	var out []model.ReservationStatus
	for _, s := range allStatuses {
		if pred(s) {
			out = append(out, s)
		}
	}
	return out
}

func (r *PostgresReservationRepo) dayParam(day time.Time) string {
	return day.In(r.loc).Format(model.DateLayout)
}

func (r *PostgresReservationRepo) scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	res := &model.Reservation{}
	var date time.Time
	var status string
	err := row.Scan(
		&res.ID, &res.UserID, &res.UserEmail, &res.UserName, &res.RoomID, &res.RoomName,
		&date, &res.StartTime, &res.EndTime, &res.Reason, &status, &res.CreatedAt, &res.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	res.Date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, r.loc)
	res.Status = model.ReservationStatus(status)
	return res, nil
}

func (r *PostgresReservationRepo) queryList(ctx context.Context, q queryer, query string, args ...any) ([]*model.Reservation, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]*model.Reservation, 0)
	for rows.Next() {
		res, err := r.scanReservation(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, res)
	}
	return list, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// FindByID は指定IDの予約を取得する。見つからない場合はnilを返す。
func (r *PostgresReservationRepo) FindByID(ctx context.Context, id string) (*model.Reservation, error) {
	res, err := r.scanReservation(r.db.QueryRowContext(ctx,
		`SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find reservation by ID: %w", err)
	}
	return res, nil
}

// ListBlockingOnDay は指定日の pending / approved の予約を返す。
func (r *PostgresReservationRepo) ListBlockingOnDay(ctx context.Context, day time.Time) ([]*model.Reservation, error) {
	list, err := r.queryList(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE date = $1::date AND status = ANY($2)
		 ORDER BY room_id, start_time`,
		r.dayParam(day), statusArray(model.BlockingStatuses),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocking reservations: %w", err)
	}
	return list, nil
}

// CreateChecked は教室行を FOR UPDATE でロックし、同じ教室・同じ日の
// pending / approved と時間帯が重ならないことを確認してから予約を作成する。
// 同一教室への作成はロックにより直列化される。
func (r *PostgresReservationRepo) CreateChecked(ctx context.Context, res *model.Reservation) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	roomName, err := r.lockRoom(ctx, tx, res.RoomID)
	if err != nil {
		return err
	}
	res.RoomName = roomName

	if err := r.checkOverlap(ctx, tx, res); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO reservations (id, user_id, user_email, user_name, room_id, room_name,
			date, start_time, end_time, reason, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10, $11, $12, $13)`,
		res.ID, res.UserID, res.UserEmail, res.UserName, res.RoomID, res.RoomName,
		r.dayParam(res.Date), res.StartTime, res.EndTime, res.Reason, string(res.Status),
		res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert reservation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// lockRoom は教室行を FOR UPDATE でロックし、教室名を返す。
func (r *PostgresReservationRepo) lockRoom(ctx context.Context, tx *sql.Tx, roomID string) (string, error) {
	var name string
	err := tx.QueryRowContext(ctx,
		`SELECT name FROM rooms WHERE id = $1 FOR UPDATE`, roomID,
	).Scan(&name)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to lock room: %w", err)
	}
	return name, nil
}

// checkOverlap は同じ教室・同じ日の pending / approved のうち、res 自身を除いて
// 時間帯が重なるものがあればErrConflictを返す。
func (r *PostgresReservationRepo) checkOverlap(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	existing, err := r.queryList(ctx, tx,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE room_id = $1 AND date = $2::date AND status = ANY($3) AND id <> $4`,
		res.RoomID, r.dayParam(res.Date), statusArray(model.BlockingStatuses), res.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to check overlapping reservations: %w", err)
	}
	for _, e := range existing {
		if e.Window().Overlaps(res.Window()) {
			return ErrConflict
		}
	}
	return nil
}

// Approve は予約を承認し、同一トランザクションで却下理由を削除する。
// 却下中に同じ時間帯へ別の予約が入っている場合があるため、教室行をロックして
// 重複を再確認し、重なればErrConflictを返す。
func (r *PostgresReservationRepo) Approve(ctx context.Context, id string) (*model.Reservation, error) {
	from := statusesWhere(model.ReservationStatus.CanApprove)
	return r.transition(ctx, id, model.ReservationStatusApproved, from, func(tx *sql.Tx, res *model.Reservation) error {
		// 削除済みの教室はロック対象がないため重複確認のみ行う
		if _, err := r.lockRoom(ctx, tx, res.RoomID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := r.checkOverlap(ctx, tx, res); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM rejected_requests WHERE reservation_id = $1`, id,
		); err != nil {
			return fmt.Errorf("failed to delete rejected request: %w", err)
		}
		return nil
	})
}

// Reject は予約を却下し、同一トランザクションで却下理由をUPSERTする。
func (r *PostgresReservationRepo) Reject(ctx context.Context, id, reason string) (*model.Reservation, error) {
	from := statusesWhere(model.ReservationStatus.CanReject)
	return r.transition(ctx, id, model.ReservationStatusRejected, from, func(tx *sql.Tx, _ *model.Reservation) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rejected_requests (id, reservation_id, reject_reason, created_at)
			 VALUES ($1, $2, $3, now())
			 ON CONFLICT (reservation_id)
			 DO UPDATE SET reject_reason = EXCLUDED.reject_reason, created_at = EXCLUDED.created_at`,
			uuid.New().String(), id, reason,
		); err != nil {
			return fmt.Errorf("failed to upsert rejected request: %w", err)
		}
		return nil
	})
}

// transition は現在の状態が from に含まれる場合に限り to へ更新する。
// 条件付きUPDATEのため、並行する管理者操作が終端状態を上書きすることはない。
func (r *PostgresReservationRepo) transition(
	ctx context.Context,
	id string,
	to model.ReservationStatus,
	from []model.ReservationStatus,
	after func(tx *sql.Tx, res *model.Reservation) error,
) (*model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := r.scanReservation(tx.QueryRowContext(ctx,
		`UPDATE reservations SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = ANY($3)
		 RETURNING `+reservationColumns,
		id, string(to), statusArray(from),
	))
	if err == sql.ErrNoRows {
		var current string
		err = tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = $1`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read reservation status: %w", err)
		}
		return nil, &TransitionError{From: model.ReservationStatus(current), To: to}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation status: %w", err)
	}

	if err := after(tx, res); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return res, nil
}

// ListRejections は予約に対する却下理由を返す。
func (r *PostgresReservationRepo) ListRejections(ctx context.Context, reservationID string) ([]*model.RejectedRequest, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, reservation_id, reject_reason, created_at
		 FROM rejected_requests
		 WHERE reservation_id = $1`,
		reservationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list rejected requests: %w", err)
	}
	defer rows.Close()

	list := make([]*model.RejectedRequest, 0, 1)
	for rows.Next() {
		rr := &model.RejectedRequest{}
		if err := rows.Scan(&rr.ID, &rr.ReservationID, &rr.RejectReason, &rr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan rejected request: %w", err)
		}
		list = append(list, rr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rejected requests: %w", err)
	}
	return list, nil
}

// ListFrom は day 以降の予約を日付・開始時刻順に返す。
func (r *PostgresReservationRepo) ListFrom(ctx context.Context, day time.Time) ([]*model.Reservation, error) {
	list, err := r.queryList(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE date >= $1::date
		 ORDER BY date, start_time, created_at`,
		r.dayParam(day),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list future reservations: %w", err)
	}
	return list, nil
}

// ListBefore は day より前の予約を日付・開始時刻順に返す。
func (r *PostgresReservationRepo) ListBefore(ctx context.Context, day time.Time) ([]*model.Reservation, error) {
	list, err := r.queryList(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE date < $1::date
		 ORDER BY date, start_time, created_at`,
		r.dayParam(day),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list past reservations: %w", err)
	}
	return list, nil
}

// ListByUser はユーザーの予約を日付の新しい順に返す。
func (r *PostgresReservationRepo) ListByUser(ctx context.Context, userID string) ([]*model.Reservation, error) {
	list, err := r.queryList(ctx, r.db,
		`SELECT `+reservationColumns+` FROM reservations
		 WHERE user_id = $1
		 ORDER BY date DESC, start_time DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations by user: %w", err)
	}
	return list, nil
}

var _ ReservationRepository = (*PostgresReservationRepo)(nil)
