package ledger

import "errors"

var (
	ErrInvalidAmount    = errors.New("credit amount must be positive")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrInternal         = errors.New("internal ledger error")
)
