package repository

import (
	"context"
	"fmt"
)

// MarkEventProcessed фиксирует внешний идентификатор обработанного события
// провайдера. Возвращает false, если событие уже было обработано, —
// повторная доставка при этом пропускается без изменений состояния.
func (s *Storage) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	const op = "storage.MarkEventProcessed"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO webhook_events (event_id, event_type)
			  VALUES ($1, $2)
			  ON CONFLICT (event_id) DO NOTHING`
	result, err := s.DB.ExecContext(ctx, query, eventID, eventType)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}
