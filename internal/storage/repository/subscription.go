package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/models"
)

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var sub models.Subscription
	var providerSubID sql.NullString
	var periodStart, periodEnd, deletedAt sql.NullTime
	if err := row.Scan(&sub.ID, &sub.UserUID, &sub.PlanType, &sub.Status,
		&sub.ProviderCustomerID, &providerSubID, &periodStart, &periodEnd,
		&sub.CancelAtPeriodEnd, &sub.CreatedAt, &deletedAt); err != nil {
		return nil, err
	}
	if providerSubID.Valid {
		sub.ProviderSubscriptionID = providerSubID.String
	}
	if periodStart.Valid {
		sub.CurrentPeriodStart = periodStart.Time
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = periodEnd.Time
	}
	if deletedAt.Valid {
		sub.DeletedAt = &deletedAt.Time
	}
	return &sub, nil
}

const subscriptionColumns = `id, user_uid, plan_type, status, provider_customer_id,
			      provider_subscription_id, current_period_start, current_period_end,
			      cancel_at_period_end, created_at, deleted_at`

// CreateSubscription вставляет новую версию подписки и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, plan_type, status, provider_customer_id,
			      provider_subscription_id, current_period_start, current_period_end,
			      cancel_at_period_end)
			  VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
			  RETURNING id`
	var newID string
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserUID, sub.PlanType, sub.Status, sub.ProviderCustomerID,
		sub.ProviderSubscriptionID, sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd).Scan(&newID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// FindEffectiveByUserUID возвращает действующую подписку пользователя:
// последнюю по created_at строку без тумбстоуна.
func (s *Storage) FindEffectiveByUserUID(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.FindEffectiveByUserUID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_uid = $1 AND deleted_at IS NULL
			  ORDER BY created_at DESC
			  LIMIT 1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// FindByProviderSubscriptionID возвращает подписку по внешнему идентификатору провайдера.
func (s *Storage) FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*models.Subscription, error) {
	const op = "storage.FindByProviderSubscriptionID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE provider_subscription_id = $1`
	sub, err := scanSubscription(s.DB.QueryRowContext(ctx, query, providerSubID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errs.ErrNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// UpdateFromProviderEvent обновляет статус, границы периода и флаг отмены
// строки, найденной по внешнему идентификатору подписки. Возвращает
// количество изменённых строк; ноль означает, что подписка ещё не привязана.
func (s *Storage) UpdateFromProviderEvent(ctx context.Context, providerSubID string,
	status models.SubscriptionStatus, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) (int, error) {
	const op = "storage.UpdateFromProviderEvent"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $1, current_period_start = $2, current_period_end = $3,
			      cancel_at_period_end = $4
			  WHERE provider_subscription_id = $5`
	result, err := s.DB.ExecContext(ctx, query, status, periodStart, periodEnd,
		cancelAtPeriodEnd, providerSubID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// CancelByProviderSubscriptionID помечает подписку отменённой и переводит
// её тариф на базовый. Повторный вызов приводит к тому же состоянию.
func (s *Storage) CancelByProviderSubscriptionID(ctx context.Context, providerSubID string) (int, error) {
	const op = "storage.CancelByProviderSubscriptionID"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $1, plan_type = $2
			  WHERE provider_subscription_id = $3`
	result, err := s.DB.ExecContext(ctx, query, models.StatusCanceled, models.PlanFree, providerSubID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// SetStatusByProviderSubscriptionID обновляет только статус подписки.
func (s *Storage) SetStatusByProviderSubscriptionID(ctx context.Context, providerSubID string,
	status models.SubscriptionStatus) (int, error) {
	const op = "storage.SetStatusByProviderSubscriptionID"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $1
			  WHERE provider_subscription_id = $2`
	result, err := s.DB.ExecContext(ctx, query, status, providerSubID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// TombstoneSubscriptions помечает все действующие строки подписок пользователя
// удалёнными. Вызывается перед вставкой новой версии, физического удаления нет.
func (s *Storage) TombstoneSubscriptions(ctx context.Context, userUID string) (int, error) {
	const op = "storage.TombstoneSubscriptions"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET deleted_at = NOW()
			  WHERE user_uid = $1 AND deleted_at IS NULL`
	result, err := s.DB.ExecContext(ctx, query, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
