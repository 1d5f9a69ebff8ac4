package customer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const queryTimeout = 3 * time.Second

// Repository defines customer data access
type Repository interface {
	GetOrCreate(ctx context.Context, stripeCustomerID, email, name string) (*Customer, error)
	GetByStripeID(ctx context.Context, stripeCustomerID string) (*Customer, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates customer repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// GetOrCreate inserts a customer for an unseen Stripe customer id, or returns
// the existing row. Concurrent first-sight of the same id converges on a single
// row: the insert conflicts on the unique stripe_customer_id key and the
// winning row is returned unchanged (first writer wins for email and name).
func (r *repository) GetOrCreate(ctx context.Context, stripeCustomerID, email, name string) (*Customer, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Customer
	err := r.db.GetContext(ctx2, &c, `
		INSERT INTO customers (id, stripe_customer_id, email, name, credit_balance, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
		ON CONFLICT (stripe_customer_id) DO UPDATE SET updated_at = NOW()
		RETURNING id, stripe_customer_id, email, name, credit_balance, created_at, updated_at
	`, uuid.New(), stripeCustomerID, email, name)
	if err != nil {
		return nil, fmt.Errorf("%w: get or create customer", ErrInternal)
	}

	return &c, nil
}

func (r *repository) GetByStripeID(ctx context.Context, stripeCustomerID string) (*Customer, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var c Customer
	err := r.db.GetContext(ctx2, &c, `
		SELECT id, stripe_customer_id, email, name, credit_balance, created_at, updated_at
		FROM customers
		WHERE stripe_customer_id = $1
	`, stripeCustomerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get customer", ErrInternal)
	}

	return &c, nil
}
