package subscription

import "errors"

var (
	ErrNotFound  = errors.New("subscription not found")
	ErrMissingID = errors.New("stripe subscription id is required")
	ErrInternal  = errors.New("internal subscription error")
)
