package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/creditbridge/creditbridge-api/internal/pkg/pgerr"
)

// RecordTransactionInput carries the fields of a new transaction. Empty
// PaymentIntentID / InvoiceID / ChargeID are stored as NULL.
type RecordTransactionInput struct {
	CustomerID      uuid.UUID
	PaymentIntentID string
	InvoiceID       string
	ChargeID        string
	Amount          int64
	Currency        string
	Status          string
	ProductType     ProductType
	Credits         int
	Metadata        map[string]string
}

// Service handles ledger business logic
type Service struct {
	repo Repository
}

// NewService creates a new ledger service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordTransaction appends a transaction exactly once per real-world payment.
// Redelivered events conflict on the payment intent or invoice unique key, in
// which case the previously recorded transaction is returned, so the caller's
// subsequent credit grant reuses the same transaction id and dedupes itself.
func (s *Service) RecordTransaction(ctx context.Context, in RecordTransactionInput) (*Transaction, error) {
	if in.Credits < 0 {
		return nil, ErrInvalidAmount
	}
	if in.Status == "" {
		in.Status = StatusSucceeded
	}

	var metadata JSONRawMessage
	if len(in.Metadata) > 0 {
		raw, err := json.Marshal(in.Metadata)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal metadata", ErrInternal)
		}
		metadata = raw
	}

	t := &Transaction{
		ID:                    uuid.New(),
		CustomerID:            in.CustomerID,
		StripePaymentIntentID: nullString(in.PaymentIntentID),
		StripeInvoiceID:       nullString(in.InvoiceID),
		StripeChargeID:        nullString(in.ChargeID),
		Amount:                in.Amount,
		Currency:              in.Currency,
		Status:                in.Status,
		ProductType:           in.ProductType,
		CreditsPurchased:      in.Credits,
		Metadata:              metadata,
	}

	err := s.repo.Insert(ctx, t)
	if err == nil {
		return t, nil
	}
	if !pgerr.IsDuplicate(err) {
		return nil, err
	}

	// Redelivery: the payment was recorded before. Converge on the stored row.
	existing, lookupErr := s.lookupExisting(ctx, in)
	if lookupErr != nil {
		return nil, lookupErr
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: duplicate transaction not found", ErrInternal)
	}
	log.Debug().
		Str("transaction_id", existing.ID.String()).
		Str("payment_intent_id", in.PaymentIntentID).
		Str("invoice_id", in.InvoiceID).
		Msg("transaction already recorded, reusing existing row")
	return existing, nil
}

func (s *Service) lookupExisting(ctx context.Context, in RecordTransactionInput) (*Transaction, error) {
	if in.PaymentIntentID != "" {
		if t, err := s.repo.GetByPaymentIntentID(ctx, in.PaymentIntentID); err != nil || t != nil {
			return t, err
		}
	}
	if in.InvoiceID != "" {
		return s.repo.GetByInvoiceID(ctx, in.InvoiceID)
	}
	return nil, nil
}

// GrantCredits applies credits to the customer balance at most once per
// transaction id. Returns whether the delta applied; false with a nil error
// means it had already been applied by an earlier delivery.
func (s *Service) GrantCredits(ctx context.Context, customerID uuid.UUID, credits int, transactionID uuid.UUID, description string) (bool, error) {
	if credits <= 0 {
		return false, ErrInvalidAmount
	}
	return s.repo.Grant(ctx, customerID, credits, transactionID, description)
}

// ListTransactions returns paginated transaction history for a customer
func (s *Service) ListTransactions(ctx context.Context, customerID uuid.UUID, limit, offset int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListByCustomer(ctx, customerID, limit, offset)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
