package webhook

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event kinds this system reconciles. Anything else is accepted and logged
// as a no-op.
const (
	EventPaymentIntentSucceeded  = "payment_intent.succeeded"
	EventCheckoutSessionComplete = "checkout.session.completed"
	EventSubscriptionUpdated     = "customer.subscription.updated"
	EventSubscriptionDeleted     = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded = "invoice.payment_succeeded"
)

// Outcome is what the transport layer gets back: success maps to 2xx,
// failure to 5xx so the provider redelivers.
type Outcome struct {
	Processed bool   `json:"processed"`
	Error     string `json:"error,omitempty"`
}

// EventLog is one append-only audit row per received event. Redelivered
// events produce additional rows; ledger effects are deduplicated elsewhere.
type EventLog struct {
	ID            uuid.UUID       `db:"id" json:"id"`
	StripeEventID string          `db:"stripe_event_id" json:"stripe_event_id"`
	EventType     string          `db:"event_type" json:"event_type"`
	Processed     bool            `db:"processed" json:"processed"`
	ErrorMessage  sql.NullString  `db:"error_message" json:"error_message,omitempty"`
	Payload       json.RawMessage `db:"payload" json:"payload,omitempty"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}
