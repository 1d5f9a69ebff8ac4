package ledger

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ProductType classifies what a transaction paid for
type ProductType string

const (
	ProductTypeCredits      ProductType = "credits"
	ProductTypeSubscription ProductType = "subscription"
)

// StatusSucceeded is the only status webhook handlers record; other provider
// statuses pass through unmodified if they ever reach the ledger.
const StatusSucceeded = "succeeded"

// JSONRawMessage handles NULL json fields from DB
type JSONRawMessage []byte

func (j *JSONRawMessage) Scan(src any) error {
	if src == nil {
		*j = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
	case string:
		*j = []byte(v)
	default:
		return fmt.Errorf("unsupported type: %T", src)
	}
	return nil
}

func (j JSONRawMessage) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// Transaction is the immutable record of one value-affecting provider event.
// Amount is in the smallest currency unit, as Stripe reports it.
type Transaction struct {
	ID                    uuid.UUID      `db:"id" json:"id"`
	CustomerID            uuid.UUID      `db:"customer_id" json:"customer_id"`
	StripePaymentIntentID sql.NullString `db:"stripe_payment_intent_id" json:"stripe_payment_intent_id,omitempty"`
	StripeInvoiceID       sql.NullString `db:"stripe_invoice_id" json:"stripe_invoice_id,omitempty"`
	StripeChargeID        sql.NullString `db:"stripe_charge_id" json:"stripe_charge_id,omitempty"`
	Amount                int64          `db:"amount" json:"amount"`
	Currency              string         `db:"currency" json:"currency"`
	Status                string         `db:"status" json:"status"`
	ProductType           ProductType    `db:"product_type" json:"product_type"`
	CreditsPurchased      int            `db:"credits_purchased" json:"credits_purchased"`
	Metadata              JSONRawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt             time.Time      `db:"created_at" json:"created_at"`
}
