package paymentprovider

import (
	"context"

	"github.com/magabrotheeeer/notevault/internal/errs"
)

// Disabled — реализация Provider для инсталляций без настроенного
// платёжного провайдера. Все операции отвечают errs.ErrProviderDisabled,
// что на внешней границе превращается в "service unavailable".
type Disabled struct{}

// NewDisabled возвращает отключённый провайдер.
func NewDisabled() *Disabled {
	return &Disabled{}
}

// CreateCustomer возвращает ошибку конфигурации.
func (d *Disabled) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	return "", errs.ErrProviderDisabled
}

// CreateCheckoutSession возвращает ошибку конфигурации.
func (d *Disabled) CreateCheckoutSession(_ context.Context, _ CheckoutParams) (*Session, error) {
	return nil, errs.ErrProviderDisabled
}

// GetCheckoutSession возвращает ошибку конфигурации.
func (d *Disabled) GetCheckoutSession(_ context.Context, _ string) (*Session, error) {
	return nil, errs.ErrProviderDisabled
}

// CreatePortalSession возвращает ошибку конфигурации.
func (d *Disabled) CreatePortalSession(_ context.Context, _, _ string) (string, error) {
	return "", errs.ErrProviderDisabled
}

// GetSubscription возвращает ошибку конфигурации.
func (d *Disabled) GetSubscription(_ context.Context, _ string) (*Subscription, error) {
	return nil, errs.ErrProviderDisabled
}

// VerifyWebhook возвращает ошибку конфигурации.
func (d *Disabled) VerifyWebhook(_ []byte, _ string) (*Event, error) {
	return nil, errs.ErrProviderDisabled
}
