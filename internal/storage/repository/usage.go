package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/magabrotheeeer/notevault/internal/models"
)

// CreateUsageRecord вставляет запись об использовании и возвращает её ID.
func (s *Storage) CreateUsageRecord(ctx context.Context, rec models.UsageRecord) (string, error) {
	const op = "storage.CreateUsageRecord"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO usage_records (user_uid, note_id, operation, tokens_used, cost, metadata)
			  VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
			  RETURNING id`
	var newID string
	err = s.DB.QueryRowContext(ctx, query,
		rec.UserUID, rec.NoteID, rec.Operation, rec.TokensUsed, rec.Cost, metadata).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// CountOperationsSince подсчитывает записи об использовании операции,
// созданные начиная с переданного момента.
func (s *Storage) CountOperationsSince(ctx context.Context, userUID string,
	operation models.Operation, since time.Time) (int, error) {
	const op = "storage.CountOperationsSince"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*)
			  FROM usage_records
			  WHERE user_uid = $1 AND operation = $2 AND created_at >= $3`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, userUID, operation, since).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ReserveOperation выполняет проверку квоты и резервирование места в одной
// транзакции: строка пользователя блокируется, использование пересчитывается
// и запись вставляется, только если лимит не достигнут. Две конкурентные
// проверки не могут обе пройти мимо лимита. Возвращает ID зарезервированной
// записи (пустой, если лимит исчерпан) и актуальный счётчик.
func (s *Storage) ReserveOperation(ctx context.Context, userUID string,
	operation models.Operation, since time.Time, limit int) (string, int, error) {
	const op = "storage.ReserveOperation"
	select {
	case <-ctx.Done():
		return "", 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var uid string
	if err := tx.QueryRowContext(ctx,
		`SELECT uid FROM users WHERE uid = $1 FOR UPDATE`, userUID).Scan(&uid); err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_records
		 WHERE user_uid = $1 AND operation = $2 AND created_at >= $3`,
		userUID, operation, since).Scan(&count); err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}

	if count >= limit {
		if err := tx.Commit(); err != nil {
			return "", 0, fmt.Errorf("%s: %w", op, err)
		}
		return "", count, nil
	}

	var newID string
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO usage_records (user_uid, operation, tokens_used, cost, metadata)
		 VALUES ($1, $2, 0, 0, '{}'::jsonb)
		 RETURNING id`, userUID, operation).Scan(&newID); err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return "", 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, count, nil
}

// FinishUsageRecord дописывает в зарезервированную запись фактические
// токены, стоимость и метаданные после завершения операции.
func (s *Storage) FinishUsageRecord(ctx context.Context, id string, tokensUsed int,
	cost float64, noteID string, metadata map[string]string) error {
	const op = "storage.FinishUsageRecord"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	query := `UPDATE usage_records
			  SET tokens_used = $1, cost = $2, note_id = NULLIF($3, ''), metadata = $4
			  WHERE id = $5`
	_, err = s.DB.ExecContext(ctx, query, tokensUsed, cost, noteID, meta, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
