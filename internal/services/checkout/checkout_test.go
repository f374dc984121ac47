package checkout

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/notevault/internal/config"
	"github.com/magabrotheeeer/notevault/internal/errs"
	"github.com/magabrotheeeer/notevault/internal/models"
	"github.com/magabrotheeeer/notevault/internal/paymentprovider"
)

// MockRepository реализует интерфейс checkout.Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockRepository) UpdateUserCustomerID(ctx context.Context, userUID, customerID string) error {
	args := m.Called(ctx, userUID, customerID)
	return args.Error(0)
}

func (m *MockRepository) CreatePendingGuestCheckout(ctx context.Context, p models.PendingGuestCheckout) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockRepository) FindEffectiveByUserUID(ctx context.Context, userUID string) (*models.Subscription, error) {
	args := m.Called(ctx, userUID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockRepository) ListRecentPayments(ctx context.Context, userUID string, limit int) ([]*models.PaymentRecord, error) {
	args := m.Called(ctx, userUID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PaymentRecord), args.Error(1)
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

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testStripeConfig() config.Stripe {
	return config.Stripe{
		PriceIDProMonthly: "price_monthly",
		PriceIDProYearly:  "price_yearly",
		SuccessURL:        "https://app.example.com/success",
		CancelURL:         "https://app.example.com/cancel",
		PortalReturnURL:   "https://app.example.com/billing",
	}
}

func TestCreateCheckoutSession(t *testing.T) {
	t.Run("пользователь без клиента провайдера получает нового", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		repo.On("GetUser", mock.Anything, "user123").
			Return(&models.User{UID: "user123", Email: "user@example.com"}, nil)
		provider.On("CreateCustomer", mock.Anything, "user@example.com", "user123").
			Return("cus_1", nil)
		repo.On("UpdateUserCustomerID", mock.Anything, "user123", "cus_1").
			Return(nil)
		provider.On("CreateCheckoutSession", mock.Anything, paymentprovider.CheckoutParams{
			CustomerID:        "cus_1",
			PriceID:           "price_monthly",
			ClientReferenceID: "user123",
			SuccessURL:        "https://app.example.com/success",
			CancelURL:         "https://app.example.com/cancel",
		}).Return(&paymentprovider.Session{ID: "cs_1", URL: "https://checkout.example.com/cs_1"}, nil)

		service := New(repo, provider, testStripeConfig(), newTestLogger())
		got, err := service.CreateCheckoutSession(context.Background(), "user123", "pro", models.CycleMonthly)

		require.NoError(t, err)
		assert.Equal(t, "cs_1", got.SessionID)
		assert.Equal(t, "https://checkout.example.com/cs_1", got.URL)
		repo.AssertExpectations(t)
		provider.AssertExpectations(t)
	})

	t.Run("существующий клиент переиспользуется", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		repo.On("GetUser", mock.Anything, "user123").
			Return(&models.User{UID: "user123", Email: "user@example.com", ProviderCustomerID: "cus_1"}, nil)
		provider.On("CreateCheckoutSession", mock.Anything, mock.MatchedBy(func(p paymentprovider.CheckoutParams) bool {
			return p.CustomerID == "cus_1" && p.PriceID == "price_yearly"
		})).Return(&paymentprovider.Session{ID: "cs_2", URL: "https://checkout.example.com/cs_2"}, nil)

		service := New(repo, provider, testStripeConfig(), newTestLogger())
		_, err := service.CreateCheckoutSession(context.Background(), "user123", "pro", models.CycleYearly)

		require.NoError(t, err)
		provider.AssertNotCalled(t, "CreateCustomer")
	})

	t.Run("исторический псевдоним premium принимается", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		repo.On("GetUser", mock.Anything, "user123").
			Return(&models.User{UID: "user123", Email: "user@example.com", ProviderCustomerID: "cus_1"}, nil)
		provider.On("CreateCheckoutSession", mock.Anything, mock.Anything).
			Return(&paymentprovider.Session{ID: "cs_3", URL: "https://checkout.example.com/cs_3"}, nil)

		service := New(repo, provider, testStripeConfig(), newTestLogger())
		_, err := service.CreateCheckoutSession(context.Background(), "user123", "premium", models.CycleMonthly)

		require.NoError(t, err)
	})

	t.Run("неизвестный тариф отклоняется", func(t *testing.T) {
		service := New(new(MockRepository), new(MockProvider), testStripeConfig(), newTestLogger())
		_, err := service.CreateCheckoutSession(context.Background(), "user123", "enterprise", models.CycleMonthly)

		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrValidation))
	})

	t.Run("бесплатный тариф не оформляется", func(t *testing.T) {
		service := New(new(MockRepository), new(MockProvider), testStripeConfig(), newTestLogger())
		_, err := service.CreateCheckoutSession(context.Background(), "user123", "free", models.CycleMonthly)

		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrValidation))
	})

	t.Run("выключенный провайдер возвращает ошибку конфигурации", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetUser", mock.Anything, "user123").
			Return(&models.User{UID: "user123", Email: "user@example.com", ProviderCustomerID: "cus_1"}, nil)

		service := New(repo, paymentprovider.NewDisabled(), testStripeConfig(), newTestLogger())
		_, err := service.CreateCheckoutSession(context.Background(), "user123", "pro", models.CycleMonthly)

		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrProviderDisabled))
	})
}

func TestCreateGuestCheckoutSession(t *testing.T) {
	t.Run("гостевая сессия запоминается для привязки", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		provider.On("CreateCheckoutSession", mock.Anything, paymentprovider.CheckoutParams{
			CustomerEmail: "guest@example.com",
			PriceID:       "price_monthly",
			SuccessURL:    "https://app.example.com/success",
			CancelURL:     "https://app.example.com/cancel",
		}).Return(&paymentprovider.Session{ID: "cs_g", URL: "https://checkout.example.com/cs_g"}, nil)
		repo.On("CreatePendingGuestCheckout", mock.Anything, mock.MatchedBy(func(p models.PendingGuestCheckout) bool {
			return p.SessionID == "cs_g" && p.Email == "guest@example.com" &&
				p.PlanType == models.PlanPro && p.BillingCycle == models.CycleMonthly
		})).Return(nil)

		service := New(repo, provider, testStripeConfig(), newTestLogger())
		got, err := service.CreateGuestCheckoutSession(context.Background(), "guest@example.com", "pro", models.CycleMonthly)

		require.NoError(t, err)
		assert.Equal(t, "cs_g", got.SessionID)
		repo.AssertExpectations(t)
	})

	t.Run("пустой email отклоняется", func(t *testing.T) {
		service := New(new(MockRepository), new(MockProvider), testStripeConfig(), newTestLogger())
		_, err := service.CreateGuestCheckoutSession(context.Background(), "", "pro", models.CycleMonthly)

		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrValidation))
	})
}

func TestCreatePortalSession(t *testing.T) {
	t.Run("портал доступен клиенту провайдера", func(t *testing.T) {
		repo := new(MockRepository)
		provider := new(MockProvider)

		repo.On("GetUser", mock.Anything, "user123").
			Return(&models.User{UID: "user123", ProviderCustomerID: "cus_1"}, nil)
		provider.On("CreatePortalSession", mock.Anything, "cus_1", "https://app.example.com/billing").
			Return("https://portal.example.com/p_1", nil)

		service := New(repo, provider, testStripeConfig(), newTestLogger())
		url, err := service.CreatePortalSession(context.Background(), "user123")

		require.NoError(t, err)
		assert.Equal(t, "https://portal.example.com/p_1", url)
	})

	t.Run("пользователь без платёжного аккаунта получает not found", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("GetUser", mock.Anything, "user123").
			Return(&models.User{UID: "user123"}, nil)

		service := New(repo, new(MockProvider), testStripeConfig(), newTestLogger())
		_, err := service.CreatePortalSession(context.Background(), "user123")

		require.Error(t, err)
		assert.True(t, errors.Is(err, errs.ErrNotFound))
	})
}

func TestGetBillingInfo(t *testing.T) {
	t.Run("активная подписка с платежами", func(t *testing.T) {
		repo := new(MockRepository)
		sub := &models.Subscription{
			UserUID:  "user123",
			PlanType: models.PlanPro,
			Status:   models.StatusActive,
		}
		payments := []*models.PaymentRecord{
			{ProviderPaymentID: "in_1", AmountCents: 499, Status: models.PaymentSucceeded},
		}
		repo.On("FindEffectiveByUserUID", mock.Anything, "user123").Return(sub, nil)
		repo.On("ListRecentPayments", mock.Anything, "user123", recentPaymentsLimit).Return(payments, nil)

		service := New(repo, new(MockProvider), testStripeConfig(), newTestLogger())
		got, err := service.GetBillingInfo(context.Background(), "user123")

		require.NoError(t, err)
		assert.Equal(t, sub, got.Subscription)
		assert.Equal(t, models.PlanPro, got.Plan.Type)
		assert.Len(t, got.Payments, 1)
	})

	t.Run("пользователь без подписки видит бесплатный тариф", func(t *testing.T) {
		repo := new(MockRepository)
		repo.On("FindEffectiveByUserUID", mock.Anything, "user123").Return(nil, errs.ErrNotFound)
		repo.On("ListRecentPayments", mock.Anything, "user123", recentPaymentsLimit).
			Return([]*models.PaymentRecord{}, nil)

		service := New(repo, new(MockProvider), testStripeConfig(), newTestLogger())
		got, err := service.GetBillingInfo(context.Background(), "user123")

		require.NoError(t, err)
		assert.Nil(t, got.Subscription)
		assert.Equal(t, models.PlanFree, got.Plan.Type)
	})
}
