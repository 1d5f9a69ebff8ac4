package customer

import "errors"

var (
	ErrMissingStripeID = errors.New("stripe customer id is required")
	ErrInternal        = errors.New("internal customer error")
)
