package subscription

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/creditbridge/creditbridge-api/internal/pkg/pgerr"
)

// UpsertInput carries the fields of a subscription-establishing event.
type UpsertInput struct {
	StripeSubscriptionID string
	CustomerID           uuid.UUID
	StripePriceID        string
	Status               Status
	CurrentPeriodStart   time.Time
	CurrentPeriodEnd     time.Time
	CancelAtPeriodEnd    bool
}

// Service handles subscription lifecycle logic
type Service struct {
	repo Repository
}

// NewService creates a new subscription service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Upsert establishes a subscription row on first sight. A duplicate-key
// conflict means a concurrent or earlier delivery already created the row;
// that is benign and swallowed. Later status events keep the row in sync.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) error {
	if strings.TrimSpace(in.StripeSubscriptionID) == "" {
		return ErrMissingID
	}

	sub := &Subscription{
		ID:                   uuid.New(),
		StripeSubscriptionID: in.StripeSubscriptionID,
		CustomerID:           in.CustomerID,
		StripePriceID:        in.StripePriceID,
		Status:               in.Status,
		CurrentPeriodStart:   nullTime(in.CurrentPeriodStart),
		CurrentPeriodEnd:     nullTime(in.CurrentPeriodEnd),
		CancelAtPeriodEnd:    in.CancelAtPeriodEnd,
	}

	err := s.repo.Create(ctx, sub)
	if err == nil {
		return nil
	}
	if pgerr.IsDuplicate(err) {
		log.Debug().
			Str("stripe_subscription_id", in.StripeSubscriptionID).
			Msg("subscription already exists, upsert is a no-op")
		return nil
	}
	return err
}

// UpdateStatus overwrites lifecycle fields from a provider status event.
// A missing row is logged and ignored: the establishing event creates the row
// and later status events converge it.
func (s *Service) UpdateStatus(ctx context.Context, stripeSubscriptionID string, update StatusUpdate) error {
	if strings.TrimSpace(stripeSubscriptionID) == "" {
		return ErrMissingID
	}

	err := s.repo.UpdateByStripeID(ctx, stripeSubscriptionID, update)
	if err == ErrNotFound {
		log.Warn().
			Str("stripe_subscription_id", stripeSubscriptionID).
			Msg("status update for unknown subscription, skipping")
		return nil
	}
	return err
}

// Cancel marks the subscription canceled. The row is retained.
func (s *Service) Cancel(ctx context.Context, stripeSubscriptionID string) error {
	if strings.TrimSpace(stripeSubscriptionID) == "" {
		return ErrMissingID
	}

	err := s.repo.MarkCanceled(ctx, stripeSubscriptionID)
	if err == ErrNotFound {
		log.Warn().
			Str("stripe_subscription_id", stripeSubscriptionID).
			Msg("cancellation for unknown subscription, skipping")
		return nil
	}
	return err
}

// ListByCustomer returns all subscriptions of a customer
func (s *Service) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Subscription, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}
