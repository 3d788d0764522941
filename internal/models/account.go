package models

import "time"

// User statuses. Accounts are never hard-deleted.
const (
	UserStatusActive    = "active"
	UserStatusSuspended = "suspended"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID                  int        `json:"id" example:"1"`
	Email               string     `json:"email" example:"user@example.com"`
	FullName            string     `json:"fullName" example:"John Doe"`
	Phone               string     `json:"phone,omitempty" example:"+2348012345678"`
	Country             string     `json:"country,omitempty" example:"NG"`
	Role                string     `json:"role" example:"user"`
	Status              string     `json:"status" example:"active"`
	ReferralCode        string     `json:"referralCode" example:"WB-7F3K2M"`
	ReferredBy          *int       `json:"referredBy,omitempty"`
	FailedLoginAttempts int        `json:"-"`
	LockedUntil         *time.Time `json:"-"`
	LastLogin           *time.Time `json:"lastLogin,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`
	UpdatedAt           time.Time  `json:"updatedAt"`
}

// Balance types a ledger entry or withdrawal can target.
const (
	BalanceTypeMain     = "main"
	BalanceTypeReferral = "referral"
)

// UserBalance holds an account's spendable balances and lifetime totals.
// All amounts are in cents. Mutated only through BalanceService.ApplyDeltaTx;
// version backs the optimistic lock on updates.
type UserBalance struct {
	UserID          int       `json:"user_id" db:"user_id"`
	MainBalance     int64     `json:"main_balance" db:"main_balance"`
	ReferralBalance int64     `json:"referral_balance" db:"referral_balance"`
	TotalDeposited  int64     `json:"total_deposited" db:"total_deposited"`
	TotalWithdrawn  int64     `json:"total_withdrawn" db:"total_withdrawn"`
	Version         int       `json:"-" db:"version"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

func ValidBalanceType(t string) bool {
	return t == BalanceTypeMain || t == BalanceTypeReferral
}
