package models

import "time"

// SubscriptionStatus определяет состояние подписки.
type SubscriptionStatus string

const (
	// StatusActive — подписка действует.
	StatusActive SubscriptionStatus = "active"
	// StatusPastDue — последний платёж не прошёл, подписка в просрочке.
	StatusPastDue SubscriptionStatus = "past_due"
	// StatusCanceled — подписка отменена.
	StatusCanceled SubscriptionStatus = "canceled"
	// StatusIncomplete — подписка ожидает подтверждения провайдера.
	StatusIncomplete SubscriptionStatus = "incomplete"
)

// Subscription представляет версию подписки пользователя.
//
// Модель версионная: смена состояния по инициативе сервиса выражается
// тумбстоуном прежней строки (DeletedAt) и вставкой новой, а событийные
// обновления от провайдера изменяют строку, найденную по
// ProviderSubscriptionID. Действующей считается последняя по CreatedAt
// строка с DeletedAt = nil. Строки никогда не удаляются физически.
type Subscription struct {
	ID                     string             // Уникальный идентификатор строки
	UserUID                string             // Владелец подписки
	PlanType               PlanType           // Тариф подписки
	Status                 SubscriptionStatus // Текущее состояние
	ProviderCustomerID     string             // Идентификатор клиента у провайдера
	ProviderSubscriptionID string             // Идентификатор подписки у провайдера, уникален когда задан
	CurrentPeriodStart     time.Time          // Начало оплаченного периода
	CurrentPeriodEnd       time.Time          // Конец оплаченного периода
	CancelAtPeriodEnd      bool               // Отмена в конце периода вместо немедленной
	CreatedAt              time.Time          // Момент вставки строки
	DeletedAt              *time.Time         // Тумбстоун, nil для действующей строки
}

// BillingInfo агрегирует данные для экрана биллинга: действующую подписку,
// разрешённый тариф и последние платежи.
type BillingInfo struct {
	Subscription *Subscription    `json:"subscription"`
	Plan         Plan             `json:"plan"`
	Payments     []*PaymentRecord `json:"payments"`
}
