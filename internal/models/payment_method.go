package models

import "time"

// PaymentMethod is admin-owned reference data telling users where to send
// funds. Settlement itself is confirmed by an administrator through the
// approval workflow, never verified on-chain.
type PaymentMethod struct {
	ID         string    `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	Identifier string    `json:"identifier" db:"identifier"`
	ImageURL   string    `json:"image_url,omitempty" db:"image_url"`
	IsActive   bool      `json:"is_active" db:"is_active"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
