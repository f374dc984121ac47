package models

import "time"

// PaymentStatus определяет исход платежа.
type PaymentStatus string

const (
	// PaymentSucceeded — платёж прошёл.
	PaymentSucceeded PaymentStatus = "succeeded"
	// PaymentFailed — платёж не прошёл.
	PaymentFailed PaymentStatus = "failed"
)

// PaymentRecord представляет запись о платеже, созданную обработкой
// события провайдера. Запись неизменяема, строки только добавляются.
type PaymentRecord struct {
	ID                string            `json:"id"`
	UserUID           string            `json:"user_uid"`
	ProviderPaymentID string            `json:"provider_payment_id"` // Внешний идентификатор платежа, уникален
	AmountCents       int64             `json:"amount_cents"`
	Currency          string            `json:"currency"`
	PlanType          PlanType          `json:"plan_type"`
	Status            PaymentStatus     `json:"status"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}
