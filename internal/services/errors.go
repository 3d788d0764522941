package services

import "errors"

// Domain errors. Handlers map these onto HTTP statuses; everything else
// surfaces as a 500 with a generic message.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAlreadyResolved   = errors.New("request already resolved")
	ErrNotFound          = errors.New("not found")
	ErrAccountSuspended  = errors.New("account suspended")
)
