// Package notifier отправляет уведомления о событиях биллинга
// в очередь сообщений. Потребитель очереди (почтовый воркер) живёт
// отдельно от сервиса.
package notifier

import (
	"fmt"

	"github.com/magabrotheeeer/notevault/internal/lib/rabbitmq"
)

// ReceiptMessage — уведомление об успешном платеже.
type ReceiptMessage struct {
	UserUID     string `json:"user_uid"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// CanceledMessage — уведомление об отмене подписки.
type CanceledMessage struct {
	UserUID string `json:"user_uid"`
}

// Rabbit публикует уведомления в RabbitMQ.
type Rabbit struct {
	publisher *rabbitmq.Publisher
}

// NewRabbit создает уведомитель поверх подключённого издателя.
func NewRabbit(publisher *rabbitmq.Publisher) *Rabbit {
	return &Rabbit{publisher: publisher}
}

// NotifyReceipt публикует уведомление о платеже.
func (r *Rabbit) NotifyReceipt(userUID string, amountCents int64, currency string) error {
	const op = "notifier.NotifyReceipt"
	err := r.publisher.Publish(rabbitmq.RoutingKeyReceipt, ReceiptMessage{
		UserUID:     userUID,
		AmountCents: amountCents,
		Currency:    currency,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// NotifyCanceled публикует уведомление об отмене подписки.
func (r *Rabbit) NotifyCanceled(userUID string) error {
	const op = "notifier.NotifyCanceled"
	err := r.publisher.Publish(rabbitmq.RoutingKeyCanceled, CanceledMessage{
		UserUID: userUID,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Noop — уведомитель на случай, когда очередь сообщений не
// сконфигурирована. Все вызовы успешны и ничего не делают.
type Noop struct{}

// NewNoop создает пустой уведомитель.
func NewNoop() *Noop {
	return &Noop{}
}

// NotifyReceipt ничего не делает.
func (n *Noop) NotifyReceipt(_ string, _ int64, _ string) error { return nil }

// NotifyCanceled ничего не делает.
func (n *Noop) NotifyCanceled(_ string) error { return nil }
