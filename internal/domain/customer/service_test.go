package customer

import (
	"context"
	"testing"
)

type fakeRepo struct {
	byStripeID map[string]*Customer
	creates    int
}

func (f *fakeRepo) GetOrCreate(ctx context.Context, stripeCustomerID, email, name string) (*Customer, error) {
	if c, ok := f.byStripeID[stripeCustomerID]; ok {
		return c, nil
	}
	f.creates++
	c := &Customer{StripeCustomerID: stripeCustomerID, Email: email, Name: name}
	f.byStripeID[stripeCustomerID] = c
	return c, nil
}

func (f *fakeRepo) GetByStripeID(ctx context.Context, stripeCustomerID string) (*Customer, error) {
	return f.byStripeID[stripeCustomerID], nil
}

func TestGetOrCreateRequiresStripeID(t *testing.T) {
	svc := NewService(&fakeRepo{byStripeID: map[string]*Customer{}})

	if _, err := svc.GetOrCreate(context.Background(), "  ", "a@b.test", "A"); err != ErrMissingStripeID {
		t.Fatalf("expected ErrMissingStripeID, got %v", err)
	}
}

func TestGetOrCreateConvergesOnOneCustomer(t *testing.T) {
	repo := &fakeRepo{byStripeID: map[string]*Customer{}}
	svc := NewService(repo)

	first, err := svc.GetOrCreate(context.Background(), "cus_1", "a@b.test", "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.GetOrCreate(context.Background(), "cus_1", "other@b.test", "Other")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if repo.creates != 1 {
		t.Fatalf("expected a single create, got %d", repo.creates)
	}
	// First writer wins for email and name.
	if second.Email != first.Email || second.Name != first.Name {
		t.Fatalf("expected first writer's fields to stick, got %+v", second)
	}
}
