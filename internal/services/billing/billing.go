// Package billing реализует обработку событий платёжного провайдера:
// проверку подписи, дедупликацию повторных доставок и перевод событий
// в изменения подписок, платежей и ролей пользователей.
package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v79"

	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/lib/sl"
	"github.com/magabrotheeeer/notevault/internal/metrics"
	"github.com/magabrotheeeer/notevault/internal/models"
	"github.com/magabrotheeeer/notevault/internal/paymentprovider"
)

// Repository описывает хранилище, необходимое обработке событий биллинга.
type Repository interface {
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) (string, error)
	FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*models.Subscription, error)
	UpdateFromProviderEvent(ctx context.Context, providerSubID string,
		status models.SubscriptionStatus, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) (int, error)
	CancelByProviderSubscriptionID(ctx context.Context, providerSubID string) (int, error)
	SetStatusByProviderSubscriptionID(ctx context.Context, providerSubID string,
		status models.SubscriptionStatus) (int, error)
	TombstoneSubscriptions(ctx context.Context, userUID string) (int, error)
	CreatePaymentRecord(ctx context.Context, rec models.PaymentRecord) (bool, error)
	FindPendingGuestCheckout(ctx context.Context, sessionID string) (*models.PendingGuestCheckout, error)
	ConsumePendingGuestCheckout(ctx context.Context, sessionID string) (*models.PendingGuestCheckout, error)
	UpdateUserRole(ctx context.Context, userUID, role string) error
	UpdateUserCustomerID(ctx context.Context, userUID, customerID string) error
}

// EntitlementInvalidator сбрасывает кешированный тариф пользователя
// после изменения его подписки.
type EntitlementInvalidator interface {
	Invalidate(userUID string)
}

// Notifier отправляет уведомления о событиях биллинга.
type Notifier interface {
	NotifyReceipt(userUID string, amountCents int64, currency string) error
	NotifyCanceled(userUID string) error
}

// Service обрабатывает вебхуки платёжного провайдера.
type Service struct {
	repo         Repository
	provider     paymentprovider.Provider
	entitlements EntitlementInvalidator
	notifier     Notifier
	log          *slog.Logger
}

// New создает сервис обработки событий биллинга.
func New(repo Repository, provider paymentprovider.Provider,
	entitlements EntitlementInvalidator, notifier Notifier, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		provider:     provider,
		entitlements: entitlements,
		notifier:     notifier,
		log:          log,
	}
}

// ProcessWebhook проверяет подпись события над точными байтами тела
// и применяет событие к состоянию подписок. Непроверяемая подпись —
// errs.ErrUnauthorized; неизвестные типы событий пропускаются.
//
// Отметка об обработке ставится только после успешного применения:
// если обработчик упал, событие остаётся неотмеченным и повторная
// доставка провайдера доприменяет его. Повторная доставка уже
// применённого события повторяет обработчик (все обработчики
// приводят к тому же состоянию) и фиксируется как дубликат.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	const op = "billing.ProcessWebhook"

	event, err := s.provider.VerifyWebhook(payload, signature)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	parsed, err := parseEvent(event)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, metrics.OutcomeError).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	if ignored, ok := parsed.(ignoredEvent); ok {
		s.log.Debug("skipping webhook event", slog.String("type", ignored.Type))
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, metrics.OutcomeIgnored).Inc()
		return nil
	}

	switch e := parsed.(type) {
	case checkoutCompletedEvent:
		err = s.handleCheckoutCompleted(ctx, e)
	case subscriptionChangedEvent:
		err = s.handleSubscriptionChanged(ctx, e)
	case subscriptionDeletedEvent:
		err = s.handleSubscriptionDeleted(ctx, e)
	case invoicePaidEvent:
		err = s.handleInvoicePaid(ctx, e)
	case invoiceFailedEvent:
		err = s.handleInvoiceFailed(ctx, e)
	}
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, metrics.OutcomeError).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}

	inserted, err := s.repo.MarkEventProcessed(ctx, event.ID, event.Type)
	if err != nil {
		// Эффекты уже применены; вернуть ошибку, чтобы провайдер
		// повторил доставку и отметка всё же встала.
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, metrics.OutcomeError).Inc()
		return fmt.Errorf("%s: %w", op, err)
	}
	if !inserted {
		s.log.Info("duplicate webhook event",
			slog.String("event_id", event.ID), slog.String("type", event.Type))
		metrics.WebhookEventsTotal.WithLabelValues(event.Type, metrics.OutcomeDuplicate).Inc()
		return nil
	}
	metrics.WebhookEventsTotal.WithLabelValues(event.Type, metrics.OutcomeProcessed).Inc()
	return nil
}

// handleCheckoutCompleted активирует подписку по завершённой сессии оплаты.
// Сессия гостя (без привязки к пользователю) пропускается: её привяжет
// LinkGuestCheckout при регистрации.
func (s *Service) handleCheckoutCompleted(ctx context.Context, e checkoutCompletedEvent) error {
	session := e.Session
	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid || session.Subscription == nil {
		s.log.Info("checkout session not paid or without subscription",
			slog.String("session_id", session.ID))
		return nil
	}
	userUID := session.ClientReferenceID
	if userUID == "" {
		s.log.Info("guest checkout completed, waiting for registration",
			slog.String("session_id", session.ID))
		return nil
	}

	customerID := ""
	if session.Customer != nil {
		customerID = session.Customer.ID
	}
	return s.activateSubscription(ctx, userUID, customerID, session.Subscription.ID, models.PlanPro)
}

// activateSubscription получает актуальное состояние подписки у провайдера
// и записывает новую версию: прежние строки пользователя получают тумбстоун,
// действующей становится вставленная.
func (s *Service) activateSubscription(ctx context.Context, userUID, customerID,
	providerSubID string, planType models.PlanType) error {
	providerSub, err := s.provider.GetSubscription(ctx, providerSubID)
	if err != nil {
		return fmt.Errorf("failed to fetch provider subscription: %w", err)
	}

	if customerID != "" {
		if err := s.repo.UpdateUserCustomerID(ctx, userUID, customerID); err != nil {
			return fmt.Errorf("failed to link provider customer: %w", err)
		}
	}

	if _, err := s.repo.TombstoneSubscriptions(ctx, userUID); err != nil {
		return fmt.Errorf("failed to tombstone subscriptions: %w", err)
	}

	status := statusFromProvider(providerSub.Status)
	_, err = s.repo.CreateSubscription(ctx, models.Subscription{
		UserUID:                userUID,
		PlanType:               planType,
		Status:                 status,
		ProviderCustomerID:     providerSub.CustomerID,
		ProviderSubscriptionID: providerSub.ID,
		CurrentPeriodStart:     providerSub.CurrentPeriodStart,
		CurrentPeriodEnd:       providerSub.CurrentPeriodEnd,
		CancelAtPeriodEnd:      providerSub.CancelAtPeriodEnd,
	})
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	if status == models.StatusActive {
		if err := s.repo.UpdateUserRole(ctx, userUID, models.RolePro); err != nil {
			return fmt.Errorf("failed to update user role: %w", err)
		}
	}
	s.entitlements.Invalidate(userUID)
	return nil
}

// handleSubscriptionChanged обновляет строку подписки по событию провайдера.
// Неизвестная подписка (например, оплаченная гостем и ещё не привязанная)
// пропускается без ошибки.
func (s *Service) handleSubscriptionChanged(ctx context.Context, e subscriptionChangedEvent) error {
	sub := e.Subscription
	status := statusFromProvider(string(sub.Status))
	rows, err := s.repo.UpdateFromProviderEvent(ctx, sub.ID, status,
		time.Unix(sub.CurrentPeriodStart, 0), time.Unix(sub.CurrentPeriodEnd, 0),
		sub.CancelAtPeriodEnd)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if rows == 0 {
		s.log.Info("subscription event for unknown subscription",
			slog.String("provider_subscription_id", sub.ID))
		return nil
	}

	stored, err := s.repo.FindByProviderSubscriptionID(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to find updated subscription: %w", err)
	}
	role := models.RoleUser
	if status == models.StatusActive {
		role = models.RolePro
	}
	if err := s.repo.UpdateUserRole(ctx, stored.UserUID, role); err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	s.entitlements.Invalidate(stored.UserUID)
	return nil
}

// handleSubscriptionDeleted отменяет подписку и возвращает пользователя
// на базовый тариф. Повторная доставка приводит к тому же состоянию.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, e subscriptionDeletedEvent) error {
	sub := e.Subscription
	stored, err := s.repo.FindByProviderSubscriptionID(ctx, sub.ID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.log.Info("deletion event for unknown subscription",
				slog.String("provider_subscription_id", sub.ID))
			return nil
		}
		return fmt.Errorf("failed to find subscription: %w", err)
	}

	if _, err := s.repo.CancelByProviderSubscriptionID(ctx, sub.ID); err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}
	if err := s.repo.UpdateUserRole(ctx, stored.UserUID, models.RoleUser); err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	s.entitlements.Invalidate(stored.UserUID)

	if err := s.notifier.NotifyCanceled(stored.UserUID); err != nil {
		s.log.Error("failed to notify about cancellation", sl.Err(err))
	}
	return nil
}

// handleInvoicePaid сохраняет запись о платеже. Вставка условная по
// внешнему идентификатору платежа, поэтому повторная доставка не создаёт
// дубликат и не шлёт повторное уведомление.
func (s *Service) handleInvoicePaid(ctx context.Context, e invoicePaidEvent) error {
	invoice := e.Invoice
	if invoice.Subscription == nil {
		s.log.Info("invoice without subscription", slog.String("invoice_id", invoice.ID))
		return nil
	}
	stored, err := s.repo.FindByProviderSubscriptionID(ctx, invoice.Subscription.ID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.log.Info("invoice for unknown subscription",
				slog.String("provider_subscription_id", invoice.Subscription.ID))
			return nil
		}
		return fmt.Errorf("failed to find subscription: %w", err)
	}

	inserted, err := s.repo.CreatePaymentRecord(ctx, models.PaymentRecord{
		UserUID:           stored.UserUID,
		ProviderPaymentID: invoice.ID,
		AmountCents:       invoice.AmountPaid,
		Currency:          string(invoice.Currency),
		PlanType:          stored.PlanType,
		Status:            models.PaymentSucceeded,
	})
	if err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	if !inserted {
		return nil
	}

	if err := s.notifier.NotifyReceipt(stored.UserUID, invoice.AmountPaid,
		string(invoice.Currency)); err != nil {
		s.log.Error("failed to notify about receipt", sl.Err(err))
	}
	return nil
}

// handleInvoiceFailed переводит подписку в просрочку и сохраняет запись
// о неуспешном платеже.
func (s *Service) handleInvoiceFailed(ctx context.Context, e invoiceFailedEvent) error {
	invoice := e.Invoice
	if invoice.Subscription == nil {
		return nil
	}
	stored, err := s.repo.FindByProviderSubscriptionID(ctx, invoice.Subscription.ID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to find subscription: %w", err)
	}

	if _, err := s.repo.SetStatusByProviderSubscriptionID(ctx, invoice.Subscription.ID,
		models.StatusPastDue); err != nil {
		return fmt.Errorf("failed to set past_due status: %w", err)
	}
	s.entitlements.Invalidate(stored.UserUID)

	_, err = s.repo.CreatePaymentRecord(ctx, models.PaymentRecord{
		UserUID:           stored.UserUID,
		ProviderPaymentID: invoice.ID,
		AmountCents:       invoice.AmountDue,
		Currency:          string(invoice.Currency),
		PlanType:          stored.PlanType,
		Status:            models.PaymentFailed,
	})
	if err != nil {
		return fmt.Errorf("failed to create payment record: %w", err)
	}
	return nil
}

// LinkGuestCheckout привязывает гостевую оплату к новому пользователю.
// Уже потреблённая или неизвестная сессия пропускается без ошибки,
// чтобы не блокировать регистрацию. Строка гостевой сессии потребляется
// только после успешной привязки: сбой у провайдера оставляет её на
// месте, и привязку можно повторить. Двойную активацию одной подписки
// исключает уникальность provider_subscription_id.
func (s *Service) LinkGuestCheckout(ctx context.Context, userUID, sessionID string) error {
	const op = "billing.LinkGuestCheckout"

	pending, err := s.repo.FindPendingGuestCheckout(ctx, sessionID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			s.log.Info("guest checkout session not found or already consumed",
				slog.String("session_id", sessionID))
			return nil
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	session, err := s.provider.GetCheckoutSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !session.Paid || session.SubscriptionID == "" {
		s.log.Info("guest checkout session not paid",
			slog.String("session_id", sessionID))
		return nil
	}

	if err := s.activateSubscription(ctx, userUID, session.CustomerID,
		session.SubscriptionID, pending.PlanType); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.repo.ConsumePendingGuestCheckout(ctx, sessionID); err != nil &&
		!errors.Is(err, errs.ErrNotFound) {
		s.log.Error("failed to consume guest checkout session", sl.Err(err),
			slog.String("session_id", sessionID))
	}
	return nil
}

// statusFromProvider переводит статус провайдера во внутренний.
// Промежуточные статусы (trialing, incomplete, unpaid) трактуются
// как незавершённая подписка.
func statusFromProvider(status string) models.SubscriptionStatus {
	switch status {
	case "active":
		return models.StatusActive
	case "past_due":
		return models.StatusPastDue
	case "canceled":
		return models.StatusCanceled
	default:
		return models.StatusIncomplete
	}
}
