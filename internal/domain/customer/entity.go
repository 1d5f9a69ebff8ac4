package customer

import (
	"time"

	"github.com/google/uuid"
)

// Customer is the internal identity linked 1:1 to a Stripe customer.
// The credit balance is maintained by the ledger, never set directly.
type Customer struct {
	ID               uuid.UUID `db:"id" json:"id"`
	StripeCustomerID string    `db:"stripe_customer_id" json:"stripe_customer_id"`
	Email            string    `db:"email" json:"email"`
	Name             string    `db:"name" json:"name"`
	CreditBalance    int       `db:"credit_balance" json:"credit_balance"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}
