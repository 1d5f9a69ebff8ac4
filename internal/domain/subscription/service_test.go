package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type fakeRepo struct {
	byStripeID map[string]*Subscription
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{byStripeID: map[string]*Subscription{}}
}

func (f *fakeRepo) Create(ctx context.Context, s *Subscription) error {
	if _, exists := f.byStripeID[s.StripeSubscriptionID]; exists {
		return &pq.Error{Code: "23505", Constraint: "subscriptions_stripe_subscription_id_key"}
	}
	f.byStripeID[s.StripeSubscriptionID] = s
	return nil
}

func (f *fakeRepo) UpdateByStripeID(ctx context.Context, id string, update StatusUpdate) error {
	s, ok := f.byStripeID[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = update.Status
	if update.StripePriceID != "" {
		s.StripePriceID = update.StripePriceID
	}
	s.CurrentPeriodStart = nullTime(update.CurrentPeriodStart)
	s.CurrentPeriodEnd = nullTime(update.CurrentPeriodEnd)
	s.CancelAtPeriodEnd = update.CancelAtPeriodEnd
	return nil
}

func (f *fakeRepo) MarkCanceled(ctx context.Context, id string) error {
	s, ok := f.byStripeID[id]
	if !ok {
		return ErrNotFound
	}
	s.Status = StatusCanceled
	return nil
}

func (f *fakeRepo) GetByStripeID(ctx context.Context, id string) (*Subscription, error) {
	return f.byStripeID[id], nil
}

func (f *fakeRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Subscription, error) {
	return nil, nil
}

func TestUpsertSwallowsDuplicateKey(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	in := UpsertInput{
		StripeSubscriptionID: "sub_1",
		CustomerID:           uuid.New(),
		StripePriceID:        "price_pro",
		Status:               StatusActive,
		CurrentPeriodStart:   time.Now(),
	}

	if err := svc.Upsert(context.Background(), in); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Redelivered establishing event: duplicate key must be benign.
	if err := svc.Upsert(context.Background(), in); err != nil {
		t.Fatalf("duplicate upsert must be swallowed, got %v", err)
	}
	if len(repo.byStripeID) != 1 {
		t.Fatalf("expected exactly one subscription row, got %d", len(repo.byStripeID))
	}
}

func TestUpsertRequiresSubscriptionID(t *testing.T) {
	svc := NewService(newFakeRepo())
	if err := svc.Upsert(context.Background(), UpsertInput{}); err != ErrMissingID {
		t.Fatalf("expected ErrMissingID, got %v", err)
	}
}

func TestUpdateStatusOverwritesLifecycleFields(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	if err := svc.Upsert(context.Background(), UpsertInput{
		StripeSubscriptionID: "sub_1",
		CustomerID:           uuid.New(),
		Status:               StatusActive,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	end := time.Now().Add(30 * 24 * time.Hour)
	if err := svc.UpdateStatus(context.Background(), "sub_1", StatusUpdate{
		Status:            "past_due",
		CurrentPeriodEnd:  end,
		CancelAtPeriodEnd: true,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := repo.byStripeID["sub_1"]
	if s.Status != "past_due" || !s.CancelAtPeriodEnd {
		t.Fatalf("lifecycle fields not overwritten: %+v", s)
	}
}

func TestUpdateStatusUnknownSubscriptionIsNoOp(t *testing.T) {
	svc := NewService(newFakeRepo())
	if err := svc.UpdateStatus(context.Background(), "sub_missing", StatusUpdate{Status: StatusActive}); err != nil {
		t.Fatalf("unknown subscription must be a no-op, got %v", err)
	}
}

func TestCancelRetainsRowWithCanceledStatus(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	if err := svc.Upsert(context.Background(), UpsertInput{
		StripeSubscriptionID: "sub_1",
		CustomerID:           uuid.New(),
		Status:               StatusActive,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Cancel(context.Background(), "sub_1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := repo.byStripeID["sub_1"]
	if s == nil {
		t.Fatal("canceled subscription row must be retained")
	}
	if s.Status != StatusCanceled {
		t.Fatalf("expected canceled status, got %s", s.Status)
	}
}
