package subscription

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

// StatusUpdate carries the lifecycle fields synced from a provider event.
// All fields overwrite the stored row.
type StatusUpdate struct {
	Status             Status
	StripePriceID      string
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time
	CancelAtPeriodEnd  bool
}

// Repository defines subscription data access
type Repository interface {
	Create(ctx context.Context, s *Subscription) error
	UpdateByStripeID(ctx context.Context, stripeSubscriptionID string, update StatusUpdate) error
	MarkCanceled(ctx context.Context, stripeSubscriptionID string) error
	GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Subscription, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates subscription repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create inserts a subscription row. A unique violation on
// stripe_subscription_id surfaces unwrapped pq metadata so callers can
// classify it as benign.
func (r *repository) Create(ctx context.Context, s *Subscription) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO subscriptions (
			id, stripe_subscription_id, customer_id, stripe_price_id, status,
			current_period_start, current_period_end, cancel_at_period_end, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
	`,
		s.ID,
		s.StripeSubscriptionID,
		s.CustomerID,
		s.StripePriceID,
		s.Status,
		s.CurrentPeriodStart,
		s.CurrentPeriodEnd,
		s.CancelAtPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

func (r *repository) UpdateByStripeID(ctx context.Context, stripeSubscriptionID string, update StatusUpdate) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE subscriptions
		SET status = $2,
		    stripe_price_id = COALESCE(NULLIF($3, ''), stripe_price_id),
		    current_period_start = $4,
		    current_period_end = $5,
		    cancel_at_period_end = $6,
		    updated_at = NOW()
		WHERE stripe_subscription_id = $1
	`,
		stripeSubscriptionID,
		update.Status,
		update.StripePriceID,
		nullTime(update.CurrentPeriodStart),
		nullTime(update.CurrentPeriodEnd),
		update.CancelAtPeriodEnd,
	)
	if err != nil {
		return fmt.Errorf("%w: update subscription", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) MarkCanceled(ctx context.Context, stripeSubscriptionID string) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx2, `
		UPDATE subscriptions
		SET status = $2, canceled_at = NOW(), updated_at = NOW()
		WHERE stripe_subscription_id = $1
	`, stripeSubscriptionID, StatusCanceled)
	if err != nil {
		return fmt.Errorf("%w: cancel subscription", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repository) GetByStripeID(ctx context.Context, stripeSubscriptionID string) (*Subscription, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var s Subscription
	err := r.db.GetContext(ctx2, &s, `
		SELECT id, stripe_subscription_id, customer_id, stripe_price_id, status,
		       current_period_start, current_period_end, cancel_at_period_end, canceled_at,
		       created_at, updated_at
		FROM subscriptions
		WHERE stripe_subscription_id = $1
	`, stripeSubscriptionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get subscription", ErrInternal)
	}
	return &s, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]Subscription, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	subscriptions := make([]Subscription, 0)
	err := r.db.SelectContext(ctx2, &subscriptions, `
		SELECT id, stripe_subscription_id, customer_id, stripe_price_id, status,
		       current_period_start, current_period_end, cancel_at_period_end, canceled_at,
		       created_at, updated_at
		FROM subscriptions
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list subscriptions", ErrInternal)
	}
	return subscriptions, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
