package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/magabrotheeeer/notevault/internal/models"
)

// CreatePaymentRecord сохраняет запись о платеже. Вставка условная по
// уникальному provider_payment_id: повторная доставка того же события
// не добавляет дубликат. Возвращает true, если строка была вставлена.
func (s *Storage) CreatePaymentRecord(ctx context.Context, rec models.PaymentRecord) (bool, error) {
	const op = "storage.CreatePaymentRecord"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	metadata, err := json.Marshal(rec.Metadata)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	query := `INSERT INTO payment_records (user_uid, provider_payment_id, amount_cents,
			      currency, plan_type, status, metadata)
			  VALUES ($1, $2, $3, $4, $5, $6, $7)
			  ON CONFLICT (provider_payment_id) DO NOTHING`
	result, err := s.DB.ExecContext(ctx, query,
		rec.UserUID, rec.ProviderPaymentID, rec.AmountCents, rec.Currency,
		rec.PlanType, rec.Status, metadata)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return rowsAffected > 0, nil
}

// ListRecentPayments возвращает последние платежи пользователя.
func (s *Storage) ListRecentPayments(ctx context.Context, userUID string, limit int) ([]*models.PaymentRecord, error) {
	const op = "storage.ListRecentPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, provider_payment_id, amount_cents, currency,
			      plan_type, status, metadata, created_at
			  FROM payment_records
			  WHERE user_uid = $1
			  ORDER BY created_at DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PaymentRecord
	for rows.Next() {
		var rec models.PaymentRecord
		var metadata []byte
		if err := rows.Scan(&rec.ID, &rec.UserUID, &rec.ProviderPaymentID, &rec.AmountCents,
			&rec.Currency, &rec.PlanType, &rec.Status, &metadata, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
		}
		result = append(result, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
