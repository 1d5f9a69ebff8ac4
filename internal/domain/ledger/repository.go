package ledger

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

// Repository defines ledger data access.
//
// Relies on two uniqueness guarantees in the schema:
//   - transactions.stripe_payment_intent_id and transactions.stripe_invoice_id
//     carry unique indexes (NULLs exempt), so one real-world payment yields one
//     transaction row under at-least-once delivery;
//   - credit_grants.transaction_id is the primary key, so a credit delta is
//     applied at most once per transaction.
type Repository interface {
	Insert(ctx context.Context, t *Transaction) error
	GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Transaction, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Transaction, error)
	Grant(ctx context.Context, customerID uuid.UUID, credits int, transactionID uuid.UUID, description string) (bool, error)
	ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Transaction, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates ledger repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Insert appends a transaction row. A unique violation on the payment intent
// or invoice key surfaces unwrapped pq metadata so callers can classify it.
func (r *repository) Insert(ctx context.Context, t *Transaction) error {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx2, `
		INSERT INTO transactions (
			id, customer_id, stripe_payment_intent_id, stripe_invoice_id, stripe_charge_id,
			amount, currency, status, product_type, credits_purchased, metadata, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW())
	`,
		t.ID,
		t.CustomerID,
		t.StripePaymentIntentID,
		t.StripeInvoiceID,
		t.StripeChargeID,
		t.Amount,
		t.Currency,
		t.Status,
		t.ProductType,
		t.CreditsPurchased,
		t.Metadata,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *repository) GetByPaymentIntentID(ctx context.Context, paymentIntentID string) (*Transaction, error) {
	return r.getByUniqueKey(ctx, `stripe_payment_intent_id`, paymentIntentID)
}

func (r *repository) GetByInvoiceID(ctx context.Context, invoiceID string) (*Transaction, error) {
	return r.getByUniqueKey(ctx, `stripe_invoice_id`, invoiceID)
}

func (r *repository) getByUniqueKey(ctx context.Context, column, value string) (*Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var t Transaction
	query := fmt.Sprintf(`
		SELECT id, customer_id, stripe_payment_intent_id, stripe_invoice_id, stripe_charge_id,
		       amount, currency, status, product_type, credits_purchased, metadata, created_at
		FROM transactions
		WHERE %s = $1
	`, column)
	err := r.db.GetContext(ctx2, &t, query, value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: get transaction by %s", ErrInternal, column)
	}
	return &t, nil
}

// Grant applies a credit delta to the customer balance at most once per
// transaction id. The grant row and the balance update share one database
// transaction; a conflict on the transaction_id key means the delta already
// applied, reported as (false, nil).
func (r *repository) Grant(ctx context.Context, customerID uuid.UUID, credits int, transactionID uuid.UUID, description string) (bool, error) {
	if credits <= 0 {
		return false, ErrInvalidAmount
	}

	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx2, &sql.TxOptions{})
	if err != nil {
		return false, fmt.Errorf("%w: begin tx", ErrInternal)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx2, `
		INSERT INTO credit_grants (transaction_id, customer_id, credits, description, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (transaction_id) DO NOTHING
	`, transactionID, customerID, credits, description)
	if err != nil {
		return false, fmt.Errorf("%w: insert grant", ErrInternal)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		// Already granted for this transaction.
		return false, nil
	}

	result, err = tx.ExecContext(ctx2, `
		UPDATE customers
		SET credit_balance = credit_balance + $2, updated_at = NOW()
		WHERE id = $1
	`, customerID, credits)
	if err != nil {
		return false, fmt.Errorf("%w: update customer balance", ErrInternal)
	}

	rows, err = result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: rows affected", ErrInternal)
	}
	if rows == 0 {
		return false, ErrCustomerNotFound
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("%w: commit tx", ErrInternal)
	}

	return true, nil
}

func (r *repository) ListByCustomer(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	ctx2, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 20
	}

	transactions := make([]Transaction, 0)
	err := r.db.SelectContext(ctx2, &transactions, `
		SELECT id, customer_id, stripe_payment_intent_id, stripe_invoice_id, stripe_charge_id,
		       amount, currency, status, product_type, credits_purchased, metadata, created_at
		FROM transactions
		WHERE customer_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, customerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: list transactions", ErrInternal)
	}

	return transactions, nil
}
