package models

import "time"

// Funding request directions and statuses. A request leaves pending exactly
// once; approved and rejected are terminal.
const (
	DirectionIn  = "in"
	DirectionOut = "out"

	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// FundingRequest covers deposit (direction in) and withdrawal (direction out)
// requests uniformly. Amount is cents and fixed at creation.
type FundingRequest struct {
	ID              string    `json:"id" db:"id"`
	UserID          int       `json:"user_id" db:"user_id"`
	Direction       string    `json:"direction" db:"direction"`
	Amount          int64     `json:"amount" db:"amount"`
	PaymentMethodID *string   `json:"payment_method_id,omitempty" db:"payment_method_id"`
	TransactionRef  string    `json:"transaction_ref,omitempty" db:"transaction_ref"`
	PayoutAddress   string    `json:"payout_address,omitempty" db:"payout_address"`
	BalanceType     string    `json:"balance_type" db:"balance_type"`
	Status          string    `json:"status" db:"status"`
	AdminNotes      string    `json:"admin_notes,omitempty" db:"admin_notes"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// FundingRequestView joins display fields for the admin review queue.
type FundingRequestView struct {
	FundingRequest
	UserEmail         string `json:"user_email"`
	UserFullName      string `json:"user_full_name"`
	PaymentMethodName string `json:"payment_method_name,omitempty"`
}
