// Package usage отвечает за квоты и учёт метрируемых AI-операций.
// Квоты на операции считаются по календарному месяцу; в строгом режиме
// проверка и резервирование выполняются одной транзакцией, чтобы две
// конкурентные проверки не прошли мимо лимита.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/lib/month"
	"github.com/magabrotheeeer/notevault/internal/lib/sl"
	"github.com/magabrotheeeer/notevault/internal/metrics"
	"github.com/magabrotheeeer/notevault/internal/models"
)

// Repository описывает хранилище записей об использовании.
type Repository interface {
	CountOperationsSince(ctx context.Context, userUID string,
		operation models.Operation, since time.Time) (int, error)
	ReserveOperation(ctx context.Context, userUID string,
		operation models.Operation, since time.Time, limit int) (string, int, error)
	FinishUsageRecord(ctx context.Context, id string, tokensUsed int,
		cost float64, noteID string, metadata map[string]string) error
	CreateUsageRecord(ctx context.Context, rec models.UsageRecord) (string, error)
	CountActiveNotes(ctx context.Context, userUID string) (int, error)
}

// Meter проверяет квоты и фиксирует использование операций.
type Meter struct {
	repo   Repository
	strict bool
	log    *slog.Logger
	now    func() time.Time
}

// New создает счётчик использования. strict включает транзакционное
// резервирование квоты вместо отдельной проверки.
func New(repo Repository, strict bool, log *slog.Logger) *Meter {
	return &Meter{
		repo:   repo,
		strict: strict,
		log:    log,
		now:    time.Now,
	}
}

// CheckNoteQuota проверяет квоту на количество заметок.
func (m *Meter) CheckNoteQuota(ctx context.Context, userUID string,
	features models.Features) (*models.QuotaCheck, error) {
	const op = "usage.CheckNoteQuota"

	if features.NoteLimit == models.Unlimited {
		return &models.QuotaCheck{Allowed: true, Limit: models.Unlimited}, nil
	}
	count, err := m.repo.CountActiveNotes(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.QuotaCheck{
		Allowed: count < features.NoteLimit,
		Used:    count,
		Limit:   features.NoteLimit,
	}, nil
}

// CheckOperationQuota проверяет месячную квоту на операцию, не резервируя
// место. Подходит для предварительного показа остатка; перед выполнением
// операции используется Reserve.
func (m *Meter) CheckOperationQuota(ctx context.Context, userUID string,
	operation models.Operation, features models.Features) (*models.QuotaCheck, error) {
	const op = "usage.CheckOperationQuota"

	if !models.KnownOperation(operation) {
		return nil, fmt.Errorf("%s: %w: unknown operation %q", op, errs.ErrValidation, operation)
	}
	if features.MonthlyOperationLimit == models.Unlimited {
		return &models.QuotaCheck{Allowed: true, Limit: models.Unlimited}, nil
	}

	since := month.StartOf(m.now())
	count, err := m.repo.CountOperationsSince(ctx, userUID, operation, since)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.QuotaCheck{
		Allowed: count < features.MonthlyOperationLimit,
		Used:    count,
		Limit:   features.MonthlyOperationLimit,
	}, nil
}

// Reserve проверяет квоту и резервирует место под операцию. Возвращает
// идентификатор резервирования, которым Complete дописывает фактические
// токены и стоимость. Исчерпанная квота — errs.QuotaExceededError.
//
// В строгом режиме проверка и вставка выполняются одной транзакцией.
// В нестрогом счётчик читается отдельно, и конкурентные запросы могут
// превысить лимит на единицы: допустимый компромисс, когда база не
// выдерживает сериализуемые транзакции.
func (m *Meter) Reserve(ctx context.Context, userUID string,
	operation models.Operation, features models.Features) (string, error) {
	const op = "usage.Reserve"

	if !models.KnownOperation(operation) {
		return "", fmt.Errorf("%s: %w: unknown operation %q", op, errs.ErrValidation, operation)
	}

	since := month.StartOf(m.now())
	limit := features.MonthlyOperationLimit

	if limit == models.Unlimited {
		id, err := m.repo.CreateUsageRecord(ctx, models.UsageRecord{
			UserUID:   userUID,
			Operation: operation,
		})
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return id, nil
	}

	if m.strict {
		id, used, err := m.repo.ReserveOperation(ctx, userUID, operation, since, limit)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if id == "" {
			return "", fmt.Errorf("%s: %w", op, &errs.QuotaExceededError{Used: used, Limit: limit})
		}
		return id, nil
	}

	count, err := m.repo.CountOperationsSince(ctx, userUID, operation, since)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if count >= limit {
		return "", fmt.Errorf("%s: %w", op, &errs.QuotaExceededError{Used: count, Limit: limit})
	}
	id, err := m.repo.CreateUsageRecord(ctx, models.UsageRecord{
		UserUID:   userUID,
		Operation: operation,
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return id, nil
}

// Complete дописывает в резервирование фактические токены и стоимость.
// Учёт необязателен для результата операции: ошибка записи логируется
// и не возвращается вызывающему.
func (m *Meter) Complete(ctx context.Context, reservationID string, userUID string,
	operation models.Operation, tokensUsed int, noteID string, metadata map[string]string) {
	cost := EstimateCost(operation, tokensUsed)
	err := m.repo.FinishUsageRecord(ctx, reservationID, tokensUsed, cost, noteID, metadata)
	if err != nil {
		m.log.Error("failed to record usage",
			slog.String("user_uid", userUID),
			slog.String("operation", string(operation)),
			sl.Err(err))
		return
	}
	metrics.AIOperationsTotal.WithLabelValues(string(operation)).Inc()
}
