package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/models"
)

// CreatePendingGuestCheckout сохраняет привязку гостевой сессии оплаты
// к email и тарифу до появления аккаунта.
func (s *Storage) CreatePendingGuestCheckout(ctx context.Context, p models.PendingGuestCheckout) error {
	const op = "storage.CreatePendingGuestCheckout"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO pending_guest_checkouts (session_id, email, plan_type, billing_cycle)
			  VALUES ($1, $2, $3, $4)`
	_, err := s.DB.ExecContext(ctx, query, p.SessionID, p.Email, p.PlanType, p.BillingCycle)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// FindPendingGuestCheckout возвращает ещё не потреблённую гостевую сессию.
// Чтение без побочных эффектов, для неизвестной или уже потреблённой
// сессии возвращает errs.ErrNotFound.
func (s *Storage) FindPendingGuestCheckout(ctx context.Context, sessionID string) (*models.PendingGuestCheckout, error) {
	const op = "storage.FindPendingGuestCheckout"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT session_id, email, plan_type, billing_cycle, created_at
			  FROM pending_guest_checkouts
			  WHERE session_id = $1 AND consumed_at IS NULL`
	var p models.PendingGuestCheckout
	err := s.DB.QueryRowContext(ctx, query, sessionID).Scan(
		&p.SessionID, &p.Email, &p.PlanType, &p.BillingCycle, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &p, nil
}

// ConsumePendingGuestCheckout помечает гостевую сессию потреблённой и
// возвращает её данные. Строка потребляется ровно один раз: повторный
// вызов c тем же session_id возвращает errs.ErrNotFound.
func (s *Storage) ConsumePendingGuestCheckout(ctx context.Context, sessionID string) (*models.PendingGuestCheckout, error) {
	const op = "storage.ConsumePendingGuestCheckout"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE pending_guest_checkouts
			  SET consumed_at = NOW()
			  WHERE session_id = $1 AND consumed_at IS NULL
			  RETURNING session_id, email, plan_type, billing_cycle, created_at, consumed_at`
	var p models.PendingGuestCheckout
	var consumedAt sql.NullTime
	err := s.DB.QueryRowContext(ctx, query, sessionID).Scan(
		&p.SessionID, &p.Email, &p.PlanType, &p.BillingCycle, &p.CreatedAt, &consumedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if consumedAt.Valid {
		p.ConsumedAt = &consumedAt.Time
	}
	return &p, nil
}
