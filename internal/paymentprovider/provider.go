// Package paymentprovider инкапсулирует работу с платёжным провайдером (Stripe):
// клиентов, сессии оплаты, портал управления подпиской и проверку подписи вебхуков.
//
// Компоненты зависят от интерфейса Provider, а не от глобальных флагов:
// при отсутствии конфигурации подставляется реализация Disabled,
// отвечающая ошибкой errs.ErrProviderDisabled.
package paymentprovider

import (
	"context"
	"encoding/json"
	"time"
)

// Event — проверенное событие вебхука. Raw содержит полезную нагрузку
// объекта события для последующего разбора на стороне бизнес-логики.
type Event struct {
	ID   string
	Type string
	Raw  json.RawMessage
}

// CheckoutParams описывает параметры создания сессии оплаты.
type CheckoutParams struct {
	CustomerID        string // Существующий клиент провайдера, пустой для гостя
	CustomerEmail     string // Email гостя, используется без CustomerID
	PriceID           string // Идентификатор цены тарифа
	ClientReferenceID string // UID пользователя, пустой для гостевой сессии
	SuccessURL        string
	CancelURL         string
}

// Session — сессия оплаты у провайдера.
type Session struct {
	ID             string
	URL            string
	Paid           bool   // Статус оплаты "paid"
	CustomerID     string // Клиент, привязанный к сессии
	SubscriptionID string // Созданная подписка, пустая если её нет
}

// Subscription — состояние подписки у провайдера.
type Subscription struct {
	ID                 string
	Status             string // Статус в терминах провайдера: active, past_due, canceled, ...
	CustomerID         string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// Provider описывает возможности платёжного провайдера, необходимые сервису.
type Provider interface {
	// CreateCustomer создает клиента провайдера и возвращает его идентификатор.
	CreateCustomer(ctx context.Context, email, userUID string) (string, error)
	// CreateCheckoutSession создает сессию оплаты подписки.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error)
	// GetCheckoutSession возвращает сессию оплаты по идентификатору.
	GetCheckoutSession(ctx context.Context, sessionID string) (*Session, error)
	// CreatePortalSession создает сессию портала управления подпиской.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
	// GetSubscription возвращает подписку провайдера по идентификатору.
	GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error)
	// VerifyWebhook проверяет подпись вебхука над точными байтами тела
	// и возвращает событие. Несовпадение подписи — errs.ErrUnauthorized.
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
