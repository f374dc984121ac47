package paymentprovider

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/magabrotheeeer/notevault/internal/errs"
)

// Client реализует Provider поверх Stripe API.
type Client struct {
	api           *client.API
	webhookSecret string
}

// NewClient создаёт клиент Stripe с ограниченным таймаутом исходящих вызовов.
func NewClient(secretKey, webhookSecret string, timeout time.Duration) *Client {
	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))
	return &Client{
		api:           api,
		webhookSecret: webhookSecret,
	}
}

// CreateCustomer создает клиента Stripe с привязкой к UID пользователя в метаданных.
func (c *Client) CreateCustomer(ctx context.Context, email, userUID string) (string, error) {
	const op = "paymentprovider.CreateCustomer"
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
	}
	params.Context = ctx
	if userUID != "" {
		params.AddMetadata("user_uid", userUID)
	}
	cust, err := c.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, errs.ErrUpstream, err)
	}
	return cust.ID, nil
}

// CreateCheckoutSession создает сессию оплаты подписки и возвращает её URL.
func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*Session, error) {
	const op = "paymentprovider.CreateCheckoutSession"
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(p.SuccessURL),
		CancelURL:  stripe.String(p.CancelURL),
	}
	params.Context = ctx
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(p.CustomerEmail)
	}
	if p.ClientReferenceID != "" {
		params.ClientReferenceID = stripe.String(p.ClientReferenceID)
	}

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrUpstream, err)
	}
	return sessionFromStripe(sess), nil
}

// GetCheckoutSession возвращает сессию оплаты по идентификатору.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*Session, error) {
	const op = "paymentprovider.GetCheckoutSession"
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	sess, err := c.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrUpstream, err)
	}
	return sessionFromStripe(sess), nil
}

// CreatePortalSession создает сессию портала управления подпиской.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	const op = "paymentprovider.CreatePortalSession"
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx
	sess, err := c.api.BillingPortalSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("%s: %w: %w", op, errs.ErrUpstream, err)
	}
	return sess.URL, nil
}

// GetSubscription возвращает подписку Stripe по идентификатору.
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	const op = "paymentprovider.GetSubscription"
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	sub, err := c.api.Subscriptions.Get(subscriptionID, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrUpstream, err)
	}
	return subscriptionFromStripe(sub), nil
}

// VerifyWebhook проверяет подпись события над точными байтами тела запроса.
func (c *Client) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	const op = "paymentprovider.VerifyWebhook"
	event, err := webhook.ConstructEventWithOptions(payload, signature, c.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, errs.ErrUnauthorized, err)
	}
	return &Event{
		ID:   event.ID,
		Type: string(event.Type),
		Raw:  event.Data.Raw,
	}, nil
}

func sessionFromStripe(sess *stripe.CheckoutSession) *Session {
	result := &Session{
		ID:   sess.ID,
		URL:  sess.URL,
		Paid: sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
	}
	if sess.Customer != nil {
		result.CustomerID = sess.Customer.ID
	}
	if sess.Subscription != nil {
		result.SubscriptionID = sess.Subscription.ID
	}
	return result
}

func subscriptionFromStripe(sub *stripe.Subscription) *Subscription {
	result := &Subscription{
		ID:                 sub.ID,
		Status:             string(sub.Status),
		CurrentPeriodStart: time.Unix(sub.CurrentPeriodStart, 0),
		CurrentPeriodEnd:   time.Unix(sub.CurrentPeriodEnd, 0),
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
	}
	if sub.Customer != nil {
		result.CustomerID = sub.Customer.ID
	}
	return result
}
