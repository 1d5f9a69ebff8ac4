package customer

import (
	"context"
	"strings"
)

// Service handles customer directory logic
type Service struct {
	repo Repository
}

// NewService creates a new customer service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetOrCreate resolves a Stripe customer id to the internal customer record,
// creating it on first sight.
func (s *Service) GetOrCreate(ctx context.Context, stripeCustomerID, email, name string) (*Customer, error) {
	stripeCustomerID = strings.TrimSpace(stripeCustomerID)
	if stripeCustomerID == "" {
		return nil, ErrMissingStripeID
	}
	return s.repo.GetOrCreate(ctx, stripeCustomerID, email, name)
}

// GetByStripeID returns the customer for a Stripe customer id, or nil if unseen.
func (s *Service) GetByStripeID(ctx context.Context, stripeCustomerID string) (*Customer, error) {
	stripeCustomerID = strings.TrimSpace(stripeCustomerID)
	if stripeCustomerID == "" {
		return nil, ErrMissingStripeID
	}
	return s.repo.GetByStripeID(ctx, stripeCustomerID)
}
