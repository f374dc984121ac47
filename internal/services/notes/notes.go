// Package notes реализует AI-дополнения заметок: проверку тарифа,
// резервирование квоты, вызов AI-провайдера и учёт использования.
package notes

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/notevault/internal/aiprovider"
	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/models"
	"github.com/magabrotheeeer/notevault/internal/services/entitlement"
)

// Entitlements разрешает тариф пользователя.
type Entitlements interface {
	ResolvePlan(ctx context.Context, userUID string) (*entitlement.Entitlement, error)
}

// Meter проверяет квоты и фиксирует использование операций.
type Meter interface {
	Reserve(ctx context.Context, userUID string, operation models.Operation,
		features models.Features) (string, error)
	Complete(ctx context.Context, reservationID string, userUID string,
		operation models.Operation, tokensUsed int, noteID string, metadata map[string]string)
}

// EnhanceResult — результат AI-дополнения заметки.
type EnhanceResult struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

// Service выполняет AI-дополнения заметок.
type Service struct {
	entitlements Entitlements
	meter        Meter
	ai           aiprovider.Completer
	model        string
	log          *slog.Logger
}

// New создает сервис AI-дополнений.
func New(entitlements Entitlements, meter Meter, ai aiprovider.Completer,
	model string, log *slog.Logger) *Service {
	return &Service{
		entitlements: entitlements,
		meter:        meter,
		ai:           ai,
		model:        model,
		log:          log,
	}
}

// promptFor собирает промпт для операции над текстом заметки.
func promptFor(operation models.Operation, text string) string {
	switch operation {
	case models.OperationTitle:
		return "Придумай короткий заголовок для заметки:\n\n" + text
	case models.OperationTags:
		return "Подбери до пяти тегов для заметки, через запятую:\n\n" + text
	case models.OperationClean:
		return "Исправь опечатки и артефакты распознавания, сохранив смысл:\n\n" + text
	case models.OperationSummarize:
		return "Кратко перескажи заметку в двух-трёх предложениях:\n\n" + text
	case models.OperationRewrite:
		return "Перепиши заметку яснее, сохранив смысл:\n\n" + text
	case models.OperationOCR:
		return "Распознай текст с изображения:\n\n" + text
	default:
		return text
	}
}

// Enhance выполняет метрируемую AI-операцию над текстом заметки.
//
// Порядок фиксированный: тариф, резервирование квоты, вызов провайдера,
// учёт. Исчерпанная квота — errs.QuotaExceededError; тариф без
// AI-возможностей — errs.ErrFeatureUnavailable.
func (s *Service) Enhance(ctx context.Context, userUID string, operation models.Operation,
	noteID, text string) (*EnhanceResult, error) {
	const op = "notes.Enhance"

	if !models.KnownOperation(operation) {
		return nil, fmt.Errorf("%s: %w: unknown operation %q", op, errs.ErrValidation, operation)
	}

	ent, err := s.entitlements.ResolvePlan(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !ent.Features.AIFeatures {
		return nil, fmt.Errorf("%s: %w", op, errs.ErrFeatureUnavailable)
	}

	reservationID, err := s.meter.Reserve(ctx, userUID, operation, ent.Features)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	result, err := s.ai.Complete(ctx, promptFor(operation, text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.meter.Complete(ctx, reservationID, userUID, operation, result.TokensUsed, noteID,
		map[string]string{"model": s.model})

	return &EnhanceResult{
		Text:       result.Text,
		TokensUsed: result.TokensUsed,
	}, nil
}
