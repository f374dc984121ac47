package models

import "time"

// BillingCycle определяет периодичность списаний.
type BillingCycle string

const (
	// CycleMonthly — ежемесячное списание.
	CycleMonthly BillingCycle = "monthly"
	// CycleYearly — ежегодное списание.
	CycleYearly BillingCycle = "yearly"
)

// CheckoutSession — ссылка на оплату, возвращаемая вызывающей стороне.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// PendingGuestCheckout связывает сессию гостевой оплаты с email и тарифом
// до появления аккаунта. Строка потребляется ровно один раз при регистрации
// с совпадающим идентификатором сессии, после чего существующие клиент и
// подписка провайдера привязываются к новому пользователю.
type PendingGuestCheckout struct {
	SessionID    string       // Идентификатор сессии оплаты у провайдера
	Email        string       // Email гостя
	PlanType     PlanType     // Выбранный тариф
	BillingCycle BillingCycle // Периодичность списаний
	CreatedAt    time.Time
	ConsumedAt   *time.Time // Момент привязки к аккаунту, nil пока не потреблена
}
