// Package stripeapi wraps read access to the Stripe API for the objects the
// webhook handlers need to resolve: customers, checkout sessions, line items
// and subscriptions.
package stripeapi

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	sub "github.com/stripe/stripe-go/v76/subscription"
)

// Client provides read access to Stripe objects referenced by webhook payloads.
type Client struct{}

// New configures the global Stripe key and returns a client.
func New(apiKey string) *Client {
	stripe.Key = apiKey
	return &Client{}
}

// GetCustomer retrieves a Stripe customer by id.
func (c *Client) GetCustomer(ctx context.Context, id string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	cust, err := customer.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get stripe customer %s: %w", id, err)
	}
	return cust, nil
}

// SessionsForPaymentIntent lists checkout sessions originating a payment intent.
// Stripe links at most one session to a payment intent, but the API shape is a list.
func (c *Client) SessionsForPaymentIntent(ctx context.Context, paymentIntentID string) ([]*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx

	var sessions []*stripe.CheckoutSession
	iter := session.List(params)
	for iter.Next() {
		sessions = append(sessions, iter.CheckoutSession())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list sessions for payment intent %s: %w", paymentIntentID, err)
	}
	return sessions, nil
}

// SessionLineItems lists the line items of a checkout session.
func (c *Client) SessionLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error) {
	params := &stripe.CheckoutSessionListLineItemsParams{
		Session: stripe.String(sessionID),
	}
	params.Context = ctx

	var items []*stripe.LineItem
	iter := session.ListLineItems(params)
	for iter.Next() {
		items = append(items, iter.LineItem())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list line items for session %s: %w", sessionID, err)
	}
	return items, nil
}

// GetSubscription retrieves a Stripe subscription by id.
func (c *Client) GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := sub.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("get stripe subscription %s: %w", id, err)
	}
	return s, nil
}
