// Package metrics регистрирует счётчики Prometheus сервиса.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы обработки события вебхука для метки outcome.
const (
	OutcomeProcessed = "processed"
	OutcomeDuplicate = "duplicate"
	OutcomeIgnored   = "ignored"
	OutcomeError     = "error"
)

// WebhookEventsTotal считает обработанные события платёжного провайдера
// по типу события и исходу.
var WebhookEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "webhook_events_total",
	Help: "Processed payment provider webhook events by type and outcome.",
}, []string{"type", "outcome"})

// AIOperationsTotal считает выполненные AI-операции по типу операции.
var AIOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ai_operations_total",
	Help: "Completed AI operations by operation type.",
}, []string{"operation"})
