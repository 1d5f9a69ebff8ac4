package webhook

import (
	"context"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"

	"github.com/creditbridge/creditbridge-api/internal/domain/customer"
	"github.com/creditbridge/creditbridge-api/internal/domain/ledger"
	"github.com/creditbridge/creditbridge-api/internal/domain/subscription"
)

// ProviderClient is the read access to Stripe objects referenced by event
// payloads. Implemented by stripeapi.Client; faked in tests.
type ProviderClient interface {
	GetCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	SessionsForPaymentIntent(ctx context.Context, paymentIntentID string) ([]*stripe.CheckoutSession, error)
	SessionLineItems(ctx context.Context, sessionID string) ([]*stripe.LineItem, error)
	GetSubscription(ctx context.Context, id string) (*stripe.Subscription, error)
}

// Directory is the customer find-or-create collaborator.
type Directory interface {
	GetOrCreate(ctx context.Context, stripeCustomerID, email, name string) (*customer.Customer, error)
}

// Ledger records transactions and applies credit grants exactly once per
// transaction id.
type Ledger interface {
	RecordTransaction(ctx context.Context, in ledger.RecordTransactionInput) (*ledger.Transaction, error)
	GrantCredits(ctx context.Context, customerID uuid.UUID, credits int, transactionID uuid.UUID, description string) (bool, error)
}

// SubscriptionTracker upserts and syncs subscription lifecycle state.
type SubscriptionTracker interface {
	Upsert(ctx context.Context, in subscription.UpsertInput) error
	UpdateStatus(ctx context.Context, stripeSubscriptionID string, update subscription.StatusUpdate) error
	Cancel(ctx context.Context, stripeSubscriptionID string) error
}
