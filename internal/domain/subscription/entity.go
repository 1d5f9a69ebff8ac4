package subscription

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status mirrors the provider's subscription status. Only the two states this
// system acts on get constants; other provider states pass through verbatim.
type Status string

const (
	StatusActive   Status = "active"
	StatusCanceled Status = "canceled"
)

// Subscription is the lifecycle record for one provider subscription.
// Rows are never deleted; cancellation is a status transition.
type Subscription struct {
	ID                   uuid.UUID    `db:"id" json:"id"`
	StripeSubscriptionID string       `db:"stripe_subscription_id" json:"stripe_subscription_id"`
	CustomerID           uuid.UUID    `db:"customer_id" json:"customer_id"`
	StripePriceID        string       `db:"stripe_price_id" json:"stripe_price_id"`
	Status               Status       `db:"status" json:"status"`
	CurrentPeriodStart   sql.NullTime `db:"current_period_start" json:"current_period_start,omitempty"`
	CurrentPeriodEnd     sql.NullTime `db:"current_period_end" json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool         `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CanceledAt           sql.NullTime `db:"canceled_at" json:"canceled_at,omitempty"`
	CreatedAt            time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at" json:"updated_at"`
}

// IsActive checks if the subscription is currently active
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}
