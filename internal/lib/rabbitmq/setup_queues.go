package rabbitmq

// QueueConfig описывает очередь уведомлений и её ключ маршрутизации.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// Ключи маршрутизации уведомлений биллинга.
const (
	RoutingKeyReceipt  = "receipt"
	RoutingKeyCanceled = "canceled"
)

// NotificationQueues возвращает очереди, которые читают воркеры рассылки.
func NotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notification.receipt", RoutingKey: RoutingKeyReceipt},
		{QueueName: "notification.canceled", RoutingKey: RoutingKeyCanceled},
	}
}
