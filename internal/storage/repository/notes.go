package repository

import (
	"context"
	"fmt"
)

// CountActiveNotes подсчитывает неудалённые заметки пользователя.
// CRUD заметок живёт в соседнем сервисе; здесь нужен только счётчик
// для проверки квоты на количество заметок.
func (s *Storage) CountActiveNotes(ctx context.Context, userUID string) (int, error) {
	const op = "storage.CountActiveNotes"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*)
			  FROM notes
			  WHERE user_uid = $1 AND deleted_at IS NULL`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
