// Package checkout создает сессии оплаты и портала управления подпиской
// и собирает данные для экрана биллинга.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/magabrotheeeer/notevault/internal/config"
	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/models"
	"github.com/magabrotheeeer/notevault/internal/paymentprovider"
)

const recentPaymentsLimit = 10

// Repository описывает хранилище, необходимое оформлению подписки.
type Repository interface {
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	UpdateUserCustomerID(ctx context.Context, userUID, customerID string) error
	CreatePendingGuestCheckout(ctx context.Context, p models.PendingGuestCheckout) error
	FindEffectiveByUserUID(ctx context.Context, userUID string) (*models.Subscription, error)
	ListRecentPayments(ctx context.Context, userUID string, limit int) ([]*models.PaymentRecord, error)
}

// Service оформляет подписки через платёжного провайдера.
type Service struct {
	repo     Repository
	provider paymentprovider.Provider
	cfg      config.Stripe
	log      *slog.Logger
}

// New создает сервис оформления подписок.
func New(repo Repository, provider paymentprovider.Provider,
	cfg config.Stripe, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		provider: provider,
		cfg:      cfg,
		log:      log,
	}
}

// priceIDFor возвращает идентификатор цены для тарифа и периодичности.
// Бесплатный тариф не оформляется через провайдера.
func (s *Service) priceIDFor(planType models.PlanType, cycle models.BillingCycle) (string, error) {
	if planType != models.PlanPro {
		return "", fmt.Errorf("%w: plan %q is not purchasable", errs.ErrValidation, planType)
	}
	switch cycle {
	case models.CycleMonthly:
		return s.cfg.PriceIDProMonthly, nil
	case models.CycleYearly:
		return s.cfg.PriceIDProYearly, nil
	default:
		return "", fmt.Errorf("%w: unknown billing cycle %q", errs.ErrValidation, cycle)
	}
}

// CreateCheckoutSession создает сессию оплаты для зарегистрированного
// пользователя. Клиент провайдера создается при первом оформлении и
// привязывается к пользователю.
func (s *Service) CreateCheckoutSession(ctx context.Context, userUID, planName string,
	cycle models.BillingCycle) (*models.CheckoutSession, error) {
	const op = "checkout.CreateCheckoutSession"

	planType, ok := models.ResolvePlanName(planName)
	if !ok {
		return nil, fmt.Errorf("%s: %w: unknown plan %q", op, errs.ErrValidation, planName)
	}
	priceID, err := s.priceIDFor(planType, cycle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	customerID := user.ProviderCustomerID
	if customerID == "" {
		customerID, err = s.provider.CreateCustomer(ctx, user.Email, user.UID)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if err := s.repo.UpdateUserCustomerID(ctx, user.UID, customerID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	session, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutParams{
		CustomerID:        customerID,
		PriceID:           priceID,
		ClientReferenceID: user.UID,
		SuccessURL:        s.cfg.SuccessURL,
		CancelURL:         s.cfg.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// CreateGuestCheckoutSession создает сессию оплаты для гостя без аккаунта.
// Сессия запоминается и привязывается к пользователю при регистрации
// с её идентификатором.
func (s *Service) CreateGuestCheckoutSession(ctx context.Context, email, planName string,
	cycle models.BillingCycle) (*models.CheckoutSession, error) {
	const op = "checkout.CreateGuestCheckoutSession"

	if email == "" {
		return nil, fmt.Errorf("%s: %w: email is required", op, errs.ErrValidation)
	}
	planType, ok := models.ResolvePlanName(planName)
	if !ok {
		return nil, fmt.Errorf("%s: %w: unknown plan %q", op, errs.ErrValidation, planName)
	}
	priceID, err := s.priceIDFor(planType, cycle)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, paymentprovider.CheckoutParams{
		CustomerEmail: email,
		PriceID:       priceID,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.repo.CreatePendingGuestCheckout(ctx, models.PendingGuestCheckout{
		SessionID:    session.ID,
		Email:        email,
		PlanType:     planType,
		BillingCycle: cycle,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &models.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession создает сессию портала управления подпиской.
// Пользователь без клиента провайдера никогда не оформлял подписку.
func (s *Service) CreatePortalSession(ctx context.Context, userUID string) (string, error) {
	const op = "checkout.CreatePortalSession"

	user, err := s.repo.GetUser(ctx, userUID)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if user.ProviderCustomerID == "" {
		return "", fmt.Errorf("%s: %w: no billing account", op, errs.ErrNotFound)
	}

	url, err := s.provider.CreatePortalSession(ctx, user.ProviderCustomerID, s.cfg.PortalReturnURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return url, nil
}

// GetBillingInfo собирает действующую подписку, тариф и последние платежи.
func (s *Service) GetBillingInfo(ctx context.Context, userUID string) (*models.BillingInfo, error) {
	const op = "checkout.GetBillingInfo"

	sub, err := s.repo.FindEffectiveByUserUID(ctx, userUID)
	if err != nil && !errors.Is(err, errs.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	planType := models.PlanFree
	if sub != nil && sub.PlanType == models.PlanPro && sub.Status == models.StatusActive {
		planType = models.PlanPro
	}

	payments, err := s.repo.ListRecentPayments(ctx, userUID, recentPaymentsLimit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &models.BillingInfo{
		Subscription: sub,
		Plan:         models.PlanFor(planType),
		Payments:     payments,
	}, nil
}
