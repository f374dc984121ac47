// Package entitlement разрешает действующий тариф пользователя и его
// возможности по состоянию подписки. Результат кешируется и сбрасывается
// при любом изменении подписки.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/lib/sl"
	"github.com/magabrotheeeer/notevault/internal/models"
)

const cacheTTL = 5 * time.Minute

// Repository описывает хранилище подписок.
type Repository interface {
	FindEffectiveByUserUID(ctx context.Context, userUID string) (*models.Subscription, error)
}

// Cache описывает кеш разрешённых тарифов.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
}

// Entitlement — разрешённый тариф пользователя. Возможности платного
// тарифа действуют только при активной подписке; просрочка и отмена
// возвращают пользователя к базовым возможностям, сама подписка при
// этом остаётся в ответе для отображения.
type Entitlement struct {
	PlanType     models.PlanType      `json:"plan_type"`
	Features     models.Features      `json:"features"`
	Subscription *models.Subscription `json:"subscription,omitempty"`
}

// Service разрешает тарифы пользователей.
type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// New создает сервис разрешения тарифов.
func New(repo Repository, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

func cacheKey(userUID string) string {
	return "entitlement:" + userUID
}

// ResolvePlan возвращает действующий тариф пользователя. Отсутствие
// подписки означает бесплатный тариф. Ошибки кеша не мешают разрешению.
func (s *Service) ResolvePlan(ctx context.Context, userUID string) (*Entitlement, error) {
	const op = "entitlement.ResolvePlan"

	var cached Entitlement
	found, err := s.cache.Get(cacheKey(userUID), &cached)
	if err != nil {
		s.log.Warn("entitlement cache read failed", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.repo.FindEffectiveByUserUID(ctx, userUID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	planType := models.PlanFree
	if sub != nil && sub.PlanType == models.PlanPro && sub.Status == models.StatusActive {
		planType = models.PlanPro
	}

	result := &Entitlement{
		PlanType:     planType,
		Features:     models.PlanFor(planType).Features,
		Subscription: sub,
	}

	if err := s.cache.Set(cacheKey(userUID), result, cacheTTL); err != nil {
		s.log.Warn("entitlement cache write failed", sl.Err(err))
	}
	return result, nil
}

// Invalidate сбрасывает кешированный тариф пользователя.
func (s *Service) Invalidate(userUID string) {
	if err := s.cache.Invalidate(cacheKey(userUID)); err != nil {
		s.log.Warn("entitlement cache invalidation failed", sl.Err(err))
	}
}
