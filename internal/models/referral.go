package models

import "time"

const (
	ReferralPending   = "pending"
	ReferralQualified = "qualified"
)

// Referral links a referrer to a referred account. The bonus is credited to
// the referrer's referral balance exactly once, when the referred account's
// first deposit is approved; the status flip is the idempotency guard.
type Referral struct {
	ID          string    `json:"id" db:"id"`
	ReferrerID  int       `json:"referrer_id" db:"referrer_id"`
	ReferredID  int       `json:"referred_id" db:"referred_id"`
	BonusAmount int64     `json:"bonus_amount" db:"bonus_amount"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	ReferredEmail string `json:"referred_email,omitempty" db:"-"`
}
