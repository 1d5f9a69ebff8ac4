package webhook

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v76"
)

// Service is the event dispatcher: it routes a verified event to exactly one
// handler by kind, records one audit row per event, and reports a structured
// outcome instead of raising past its boundary. It holds no per-event state;
// idempotency lives at the ledger.
type Service struct {
	provider ProviderClient
	dir      Directory
	ledger   Ledger
	subs     SubscriptionTracker
	audit    AuditRepository
	catalog  Catalog
}

// NewService creates the event dispatcher
func NewService(provider ProviderClient, dir Directory, ledger Ledger, subs SubscriptionTracker, audit AuditRepository, catalog Catalog) *Service {
	return &Service{
		provider: provider,
		dir:      dir,
		ledger:   ledger,
		subs:     subs,
		audit:    audit,
		catalog:  catalog,
	}
}

// Process handles one verified event to completion. The transport layer maps
// the outcome to the HTTP status that drives provider-side redelivery.
func (s *Service) Process(ctx context.Context, event stripe.Event) Outcome {
	var handleErr error

	switch string(event.Type) {
	case EventPaymentIntentSucceeded:
		handleErr = s.handlePaymentIntentSucceeded(ctx, event)
	case EventCheckoutSessionComplete:
		handleErr = s.handleCheckoutSessionCompleted(ctx, event)
	case EventSubscriptionUpdated:
		handleErr = s.handleSubscriptionUpdated(ctx, event)
	case EventSubscriptionDeleted:
		handleErr = s.handleSubscriptionDeleted(ctx, event)
	case EventInvoicePaymentSucceeded:
		handleErr = s.handleInvoicePaymentSucceeded(ctx, event)
	default:
		// Unknown kinds are accepted and logged, not errors.
		log.Info().
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Msg("unhandled event type")
	}

	s.writeAudit(ctx, event, handleErr)

	if handleErr != nil {
		log.Error().
			Err(handleErr).
			Str("event_id", event.ID).
			Str("type", string(event.Type)).
			Msg("event processing failed")
		return Outcome{Processed: false, Error: handleErr.Error()}
	}
	return Outcome{Processed: true}
}

// writeAudit appends one log row per received event, success or failure.
// The write is best-effort: it never changes the outcome already determined
// by the handler, but a failure to record it is observable in the logs.
func (s *Service) writeAudit(ctx context.Context, event stripe.Event, handleErr error) {
	entry := &EventLog{
		StripeEventID: event.ID,
		EventType:     string(event.Type),
		Processed:     handleErr == nil,
	}
	if handleErr != nil {
		entry.ErrorMessage = nullString(handleErr.Error())
	}
	if event.Data != nil {
		entry.Payload = json.RawMessage(event.Data.Raw)
	}

	if err := s.audit.Insert(ctx, entry); err != nil {
		log.Error().
			Err(err).
			Str("event_id", event.ID).
			Msg("failed to write webhook audit row")
	}
}
