package billing

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/models"
	"github.com/magabrotheeeer/notevault/internal/paymentprovider"
)

// MockRepository реализует интерфейс billing.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error) {
	args := m.Called(ctx, eventID, eventType)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CreateSubscription(ctx context.Context, sub models.Subscription) (string, error) {
	args := m.Called(ctx, sub)
	return args.String(0), args.Error(1)
}

func (m *MockRepository) FindByProviderSubscriptionID(ctx context.Context, providerSubID string) (*models.Subscription, error) {
	args := m.Called(ctx, providerSubID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) UpdateFromProviderEvent(ctx context.Context, providerSubID string,
	status models.SubscriptionStatus, periodStart, periodEnd time.Time, cancelAtPeriodEnd bool) (int, error) {
	args := m.Called(ctx, providerSubID, status, periodStart, periodEnd, cancelAtPeriodEnd)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) CancelByProviderSubscriptionID(ctx context.Context, providerSubID string) (int, error) {
	args := m.Called(ctx, providerSubID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) SetStatusByProviderSubscriptionID(ctx context.Context, providerSubID string,
	status models.SubscriptionStatus) (int, error) {
	args := m.Called(ctx, providerSubID, status)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) TombstoneSubscriptions(ctx context.Context, userUID string) (int, error) {
	args := m.Called(ctx, userUID)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) CreatePaymentRecord(ctx context.Context, rec models.PaymentRecord) (bool, error) {
	args := m.Called(ctx, rec)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) FindPendingGuestCheckout(ctx context.Context, sessionID string) (*models.PendingGuestCheckout, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingGuestCheckout), args.Error(1)
}

func (m *MockRepository) ConsumePendingGuestCheckout(ctx context.Context, sessionID string) (*models.PendingGuestCheckout, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PendingGuestCheckout), args.Error(1)
}

func (m *MockRepository) UpdateUserRole(ctx context.Context, userUID, role string) error {
	args := m.Called(ctx, userUID, role)
	return args.Error(0)
}

func (m *MockRepository) UpdateUserCustomerID(ctx context.Context, userUID, customerID string) error {
	args := m.Called(ctx, userUID, customerID)
	return args.Error(0)
}

// MockProvider реализует интерфейс paymentprovider.Provider
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) CreateCustomer(ctx context.Context, email, userUID string) (string, error) {
	args := m.Called(ctx, email, userUID)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params paymentprovider.CheckoutParams) (*paymentprovider.Session, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Session), args.Error(1)
}

func (m *MockProvider) GetCheckoutSession(ctx context.Context, sessionID string) (*paymentprovider.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Session), args.Error(1)
}

func (m *MockProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	args := m.Called(ctx, customerID, returnURL)
	return args.String(0), args.Error(1)
}

func (m *MockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*paymentprovider.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Subscription), args.Error(1)
}

func (m *MockProvider) VerifyWebhook(payload []byte, signature string) (*paymentprovider.Event, error) {
	args := m.Called(payload, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*paymentprovider.Event), args.Error(1)
}

// MockNotifier реализует интерфейс billing.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyReceipt(userUID string, amountCents int64, currency string) error {
	args := m.Called(userUID, amountCents, currency)
	return args.Error(0)
}

func (m *MockNotifier) NotifyCanceled(userUID string) error {
	args := m.Called(userUID)
	return args.Error(0)
}

// recordingInvalidator запоминает, чьи кеши были сброшены.
type recordingInvalidator struct {
	invalidated []string
}

func (r *recordingInvalidator) Invalidate(userUID string) {
	r.invalidated = append(r.invalidated, userUID)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestProcessWebhook(t *testing.T) {
	tests := []struct {
		name            string
		event           *paymentprovider.Event
		verifyErr       error
		setupRepo       func(*MockRepository)
		setupProvider   func(*MockProvider)
		setupNotifier   func(*MockNotifier)
		wantErr         error
		wantInvalidated []string
	}{
		{
			name:      "неверная подпись вебхука",
			verifyErr: errs.ErrUnauthorized,
			wantErr:   errs.ErrUnauthorized,
		},
		{
			name: "неизвестный тип события пропускается",
			event: &paymentprovider.Event{
				ID:   "evt_1",
				Type: "charge.refunded",
				Raw:  []byte(`{}`),
			},
		},
		{
			name: "повторная доставка приводит к тому же состоянию",
			event: &paymentprovider.Event{
				ID:   "evt_2",
				Type: "customer.subscription.deleted",
				Raw:  []byte(`{"id":"sub_1","status":"canceled"}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("FindByProviderSubscriptionID", mock.Anything, "sub_1").
					Return(&models.Subscription{UserUID: "user123", PlanType: models.PlanPro}, nil)
				m.On("CancelByProviderSubscriptionID", mock.Anything, "sub_1").
					Return(1, nil)
				m.On("UpdateUserRole", mock.Anything, "user123", models.RoleUser).
					Return(nil)
				m.On("MarkEventProcessed", mock.Anything, "evt_2", "customer.subscription.deleted").
					Return(false, nil)
			},
			setupNotifier: func(m *MockNotifier) {
				m.On("NotifyCanceled", "user123").Return(nil)
			},
			wantInvalidated: []string{"user123"},
		},
		{
			name: "удаление подписки отменяет её и понижает роль",
			event: &paymentprovider.Event{
				ID:   "evt_3",
				Type: "customer.subscription.deleted",
				Raw:  []byte(`{"id":"sub_1","status":"canceled"}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("MarkEventProcessed", mock.Anything, "evt_3", "customer.subscription.deleted").
					Return(true, nil)
				m.On("FindByProviderSubscriptionID", mock.Anything, "sub_1").
					Return(&models.Subscription{UserUID: "user123", PlanType: models.PlanPro}, nil)
				m.On("CancelByProviderSubscriptionID", mock.Anything, "sub_1").
					Return(1, nil)
				m.On("UpdateUserRole", mock.Anything, "user123", models.RoleUser).
					Return(nil)
			},
			setupNotifier: func(m *MockNotifier) {
				m.On("NotifyCanceled", "user123").Return(nil)
			},
			wantInvalidated: []string{"user123"},
		},
		{
			name: "удаление неизвестной подписки пропускается",
			event: &paymentprovider.Event{
				ID:   "evt_4",
				Type: "customer.subscription.deleted",
				Raw:  []byte(`{"id":"sub_unknown","status":"canceled"}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("MarkEventProcessed", mock.Anything, "evt_4", "customer.subscription.deleted").
					Return(true, nil)
				m.On("FindByProviderSubscriptionID", mock.Anything, "sub_unknown").
					Return(nil, errs.ErrNotFound)
			},
		},
		{
			name: "успешный платёж создаёт запись и уведомление",
			event: &paymentprovider.Event{
				ID:   "evt_5",
				Type: "invoice.payment_succeeded",
				Raw:  []byte(`{"id":"in_1","amount_paid":499,"currency":"usd","subscription":{"id":"sub_1"}}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("MarkEventProcessed", mock.Anything, "evt_5", "invoice.payment_succeeded").
					Return(true, nil)
				m.On("FindByProviderSubscriptionID", mock.Anything, "sub_1").
					Return(&models.Subscription{UserUID: "user123", PlanType: models.PlanPro}, nil)
				m.On("CreatePaymentRecord", mock.Anything, mock.MatchedBy(func(rec models.PaymentRecord) bool {
					return rec.ProviderPaymentID == "in_1" && rec.AmountCents == 499 &&
						rec.Status == models.PaymentSucceeded
				})).Return(true, nil)
			},
			setupNotifier: func(m *MockNotifier) {
				m.On("NotifyReceipt", "user123", int64(499), "usd").Return(nil)
			},
		},
		{
			name: "повторный платёж не создаёт дубликат и уведомление",
			event: &paymentprovider.Event{
				ID:   "evt_6",
				Type: "invoice.payment_succeeded",
				Raw:  []byte(`{"id":"in_1","amount_paid":499,"currency":"usd","subscription":{"id":"sub_1"}}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("MarkEventProcessed", mock.Anything, "evt_6", "invoice.payment_succeeded").
					Return(true, nil)
				m.On("FindByProviderSubscriptionID", mock.Anything, "sub_1").
					Return(&models.Subscription{UserUID: "user123", PlanType: models.PlanPro}, nil)
				m.On("CreatePaymentRecord", mock.Anything, mock.AnythingOfType("models.PaymentRecord")).
					Return(false, nil)
			},
		},
		{
			name: "неуспешный платёж переводит подписку в просрочку",
			event: &paymentprovider.Event{
				ID:   "evt_7",
				Type: "invoice.payment_failed",
				Raw:  []byte(`{"id":"in_2","amount_due":499,"currency":"usd","subscription":{"id":"sub_1"}}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("MarkEventProcessed", mock.Anything, "evt_7", "invoice.payment_failed").
					Return(true, nil)
				m.On("FindByProviderSubscriptionID", mock.Anything, "sub_1").
					Return(&models.Subscription{UserUID: "user123", PlanType: models.PlanPro}, nil)
				m.On("SetStatusByProviderSubscriptionID", mock.Anything, "sub_1", models.StatusPastDue).
					Return(1, nil)
				m.On("CreatePaymentRecord", mock.Anything, mock.MatchedBy(func(rec models.PaymentRecord) bool {
					return rec.Status == models.PaymentFailed && rec.AmountCents == 499
				})).Return(true, nil)
			},
			wantInvalidated: []string{"user123"},
		},
		{
			name: "обновление подписки активирует тариф",
			event: &paymentprovider.Event{
				ID:   "evt_8",
				Type: "customer.subscription.updated",
				Raw:  []byte(`{"id":"sub_1","status":"active","current_period_start":1756700000,"current_period_end":1759300000,"cancel_at_period_end":false}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("MarkEventProcessed", mock.Anything, "evt_8", "customer.subscription.updated").
					Return(true, nil)
				m.On("UpdateFromProviderEvent", mock.Anything, "sub_1", models.StatusActive,
					time.Unix(1756700000, 0), time.Unix(1759300000, 0), false).
					Return(1, nil)
				m.On("FindByProviderSubscriptionID", mock.Anything, "sub_1").
					Return(&models.Subscription{UserUID: "user123", PlanType: models.PlanPro}, nil)
				m.On("UpdateUserRole", mock.Anything, "user123", models.RolePro).
					Return(nil)
			},
			wantInvalidated: []string{"user123"},
		},
		{
			name: "обновление неизвестной подписки пропускается",
			event: &paymentprovider.Event{
				ID:   "evt_9",
				Type: "customer.subscription.updated",
				Raw:  []byte(`{"id":"sub_unknown","status":"active"}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("MarkEventProcessed", mock.Anything, "evt_9", "customer.subscription.updated").
					Return(true, nil)
				m.On("UpdateFromProviderEvent", mock.Anything, "sub_unknown", models.StatusActive,
					mock.Anything, mock.Anything, false).
					Return(0, nil)
			},
		},
		{
			name: "завершённая гостевая сессия ожидает регистрации",
			event: &paymentprovider.Event{
				ID:   "evt_10",
				Type: "checkout.session.completed",
				Raw:  []byte(`{"id":"cs_1","payment_status":"paid","subscription":{"id":"sub_2"}}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("MarkEventProcessed", mock.Anything, "evt_10", "checkout.session.completed").
					Return(true, nil)
			},
		},
		{
			name: "завершённая сессия пользователя активирует подписку",
			event: &paymentprovider.Event{
				ID:   "evt_11",
				Type: "checkout.session.completed",
				Raw:  []byte(`{"id":"cs_2","payment_status":"paid","client_reference_id":"user123","customer":{"id":"cus_1"},"subscription":{"id":"sub_3"}}`),
			},
			setupRepo: func(m *MockRepository) {
				m.On("MarkEventProcessed", mock.Anything, "evt_11", "checkout.session.completed").
					Return(true, nil)
				m.On("UpdateUserCustomerID", mock.Anything, "user123", "cus_1").
					Return(nil)
				m.On("TombstoneSubscriptions", mock.Anything, "user123").
					Return(1, nil)
				m.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
					return sub.UserUID == "user123" && sub.PlanType == models.PlanPro &&
						sub.Status == models.StatusActive && sub.ProviderSubscriptionID == "sub_3"
				})).Return("id-1", nil)
				m.On("UpdateUserRole", mock.Anything, "user123", models.RolePro).
					Return(nil)
			},
			setupProvider: func(m *MockProvider) {
				m.On("GetSubscription", mock.Anything, "sub_3").
					Return(&paymentprovider.Subscription{
						ID:         "sub_3",
						Status:     "active",
						CustomerID: "cus_1",
					}, nil)
			},
			wantInvalidated: []string{"user123"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			provider := new(MockProvider)
			notifier := new(MockNotifier)
			invalidator := &recordingInvalidator{}

			payload := []byte(`{}`)
			signature := "t=1,v1=sig"
			if tt.verifyErr != nil {
				provider.On("VerifyWebhook", payload, signature).Return(nil, tt.verifyErr)
			} else {
				provider.On("VerifyWebhook", payload, signature).Return(tt.event, nil)
			}
			if tt.setupRepo != nil {
				tt.setupRepo(repo)
			}
			if tt.setupProvider != nil {
				tt.setupProvider(provider)
			}
			if tt.setupNotifier != nil {
				tt.setupNotifier(notifier)
			}

			service := New(repo, provider, invalidator, notifier, newTestLogger())
			err := service.ProcessWebhook(context.Background(), payload, signature)

			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantInvalidated, invalidator.invalidated)
			repo.AssertExpectations(t)
			provider.AssertExpectations(t)
			notifier.AssertExpectations(t)
		})
	}
}

func TestProcessWebhookRetryAfterFailure(t *testing.T) {
	// Сбой обработчика на первой доставке не ставит отметку об обработке,
	// и повторная доставка того же события доприменяет его.
	repo := new(MockRepository)
	provider := new(MockProvider)
	notifier := new(MockNotifier)
	invalidator := &recordingInvalidator{}

	payload := []byte(`{}`)
	signature := "t=1,v1=sig"
	event := &paymentprovider.Event{
		ID:   "evt_retry",
		Type: "customer.subscription.deleted",
		Raw:  []byte(`{"id":"sub_1","status":"canceled"}`),
	}
	provider.On("VerifyWebhook", payload, signature).Return(event, nil)
	repo.On("FindByProviderSubscriptionID", mock.Anything, "sub_1").
		Return(&models.Subscription{UserUID: "user123", PlanType: models.PlanPro}, nil)
	repo.On("CancelByProviderSubscriptionID", mock.Anything, "sub_1").
		Return(0, errors.New("storage unavailable")).Once()
	repo.On("CancelByProviderSubscriptionID", mock.Anything, "sub_1").
		Return(1, nil).Once()
	repo.On("UpdateUserRole", mock.Anything, "user123", models.RoleUser).Return(nil)
	repo.On("MarkEventProcessed", mock.Anything, "evt_retry", "customer.subscription.deleted").
		Return(true, nil)
	notifier.On("NotifyCanceled", "user123").Return(nil)

	service := New(repo, provider, invalidator, notifier, newTestLogger())

	err := service.ProcessWebhook(context.Background(), payload, signature)
	require.Error(t, err)
	repo.AssertNotCalled(t, "MarkEventProcessed",
		mock.Anything, "evt_retry", "customer.subscription.deleted")

	err = service.ProcessWebhook(context.Background(), payload, signature)
	require.NoError(t, err)
	assert.Equal(t, []string{"user123"}, invalidator.invalidated)
	repo.AssertNumberOfCalls(t, "MarkEventProcessed", 1)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestLinkGuestCheckout(t *testing.T) {
	t.Run("привязка оплаченной гостевой сессии", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)
		notifier := new(MockNotifier)
		invalidator := &recordingInvalidator{}

		repo.On("FindPendingGuestCheckout", mock.Anything, "cs_1").
			Return(&models.PendingGuestCheckout{
				SessionID: "cs_1",
				Email:     "guest@example.com",
				PlanType:  models.PlanPro,
			}, nil)
		repo.On("ConsumePendingGuestCheckout", mock.Anything, "cs_1").
			Return(&models.PendingGuestCheckout{SessionID: "cs_1"}, nil)
		provider.On("GetCheckoutSession", mock.Anything, "cs_1").
			Return(&paymentprovider.Session{
				ID:             "cs_1",
				Paid:           true,
				CustomerID:     "cus_1",
				SubscriptionID: "sub_1",
			}, nil)
		provider.On("GetSubscription", mock.Anything, "sub_1").
			Return(&paymentprovider.Subscription{
				ID:         "sub_1",
				Status:     "active",
				CustomerID: "cus_1",
			}, nil)
		repo.On("UpdateUserCustomerID", mock.Anything, "user123", "cus_1").Return(nil)
		repo.On("TombstoneSubscriptions", mock.Anything, "user123").Return(0, nil)
		repo.On("CreateSubscription", mock.Anything, mock.MatchedBy(func(sub models.Subscription) bool {
			return sub.UserUID == "user123" && sub.Status == models.StatusActive
		})).Return("id-1", nil)
		repo.On("UpdateUserRole", mock.Anything, "user123", models.RolePro).Return(nil)

		service := New(repo, provider, invalidator, notifier, newTestLogger())
		err := service.LinkGuestCheckout(context.Background(), "user123", "cs_1")

		require.NoError(t, err)
		assert.Equal(t, []string{"user123"}, invalidator.invalidated)
		repo.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("уже потреблённая сессия пропускается", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		repo.On("FindPendingGuestCheckout", mock.Anything, "cs_consumed").
			Return(nil, errs.ErrNotFound)

		service := New(repo, provider, &recordingInvalidator{}, new(MockNotifier), newTestLogger())
		err := service.LinkGuestCheckout(context.Background(), "user123", "cs_consumed")

		require.NoError(t, err)
		repo.AssertExpectations(t)
		provider.AssertNotCalled(t, "GetCheckoutSession")
		repo.AssertNotCalled(t, "ConsumePendingGuestCheckout")
	})

	t.Run("сбой провайдера сохраняет сессию для повторной привязки", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		repo.On("FindPendingGuestCheckout", mock.Anything, "cs_1").
			Return(&models.PendingGuestCheckout{
				SessionID: "cs_1",
				Email:     "guest@example.com",
				PlanType:  models.PlanPro,
			}, nil)
		provider.On("GetCheckoutSession", mock.Anything, "cs_1").
			Return(nil, errs.ErrUpstream)

		service := New(repo, provider, &recordingInvalidator{}, new(MockNotifier), newTestLogger())
		err := service.LinkGuestCheckout(context.Background(), "user123", "cs_1")

		require.Error(t, err)
		repo.AssertNotCalled(t, "ConsumePendingGuestCheckout")
	})
}
