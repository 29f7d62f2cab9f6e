package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/roombook/internal/model"
)

var (
	// ErrNotFound は更新・削除対象の行が存在しないことを表す。
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict は一意制約違反または予約時間帯の重複を表す。
	ErrConflict = errors.New("repository: conflict")
)

// TransitionError は現在の状態から要求された状態へ遷移できないことを表す。
type TransitionError struct {
	From model.ReservationStatus
	To   model.ReservationStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("repository: cannot transition reservation from %s to %s", e.From, e.To)
}

// uniqueViolation はPostgreSQLの一意制約違反（SQLSTATE 23505）かどうかを返す。
func uniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
