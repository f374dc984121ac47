package billing

import (
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v79"

	"github.com/magabrotheeeer/notevault/internal/paymentprovider"
)

// webhookEvent — закрытый набор вариантов события вебхука.
// Каждый обрабатываемый тип события провайдера выражается отдельным
// вариантом с уже разобранной полезной нагрузкой; всё остальное
// попадает в ignoredEvent и пропускается явно.
type webhookEvent interface {
	isWebhookEvent()
}

type checkoutCompletedEvent struct {
	Session *stripe.CheckoutSession
}

type subscriptionChangedEvent struct {
	Subscription *stripe.Subscription
}

type subscriptionDeletedEvent struct {
	Subscription *stripe.Subscription
}

type invoicePaidEvent struct {
	Invoice *stripe.Invoice
}

type invoiceFailedEvent struct {
	Invoice *stripe.Invoice
}

type ignoredEvent struct {
	Type string
}

func (checkoutCompletedEvent) isWebhookEvent()   {}
func (subscriptionChangedEvent) isWebhookEvent() {}
func (subscriptionDeletedEvent) isWebhookEvent() {}
func (invoicePaidEvent) isWebhookEvent()         {}
func (invoiceFailedEvent) isWebhookEvent()       {}
func (ignoredEvent) isWebhookEvent()             {}

// parseEvent разбирает проверенное событие провайдера в один из вариантов.
func parseEvent(ev *paymentprovider.Event) (webhookEvent, error) {
	const op = "billing.parseEvent"
	switch ev.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := json.Unmarshal(ev.Raw, &session); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, ev.Type, err)
		}
		return checkoutCompletedEvent{Session: &session}, nil
	case "customer.subscription.created", "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, ev.Type, err)
		}
		return subscriptionChangedEvent{Subscription: &sub}, nil
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Raw, &sub); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, ev.Type, err)
		}
		return subscriptionDeletedEvent{Subscription: &sub}, nil
	case "invoice.payment_succeeded":
		var invoice stripe.Invoice
		if err := json.Unmarshal(ev.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, ev.Type, err)
		}
		return invoicePaidEvent{Invoice: &invoice}, nil
	case "invoice.payment_failed":
		var invoice stripe.Invoice
		if err := json.Unmarshal(ev.Raw, &invoice); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", op, ev.Type, err)
		}
		return invoiceFailedEvent{Invoice: &invoice}, nil
	default:
		return ignoredEvent{Type: ev.Type}, nil
	}
}
