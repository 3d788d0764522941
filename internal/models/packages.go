package models

import "time"

const (
	SubscriptionActive    = "active"
	SubscriptionCompleted = "completed"
)

// InvestmentPackage is a purchasable template: a fixed principal paying a
// fixed daily return for a fixed number of days. Amounts are cents.
type InvestmentPackage struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Price        int64     `json:"price" db:"price"`
	DailyReturn  int64     `json:"daily_return" db:"daily_return"`
	DurationDays int       `json:"duration_days" db:"duration_days"`
	TotalReturn  int64     `json:"total_return" db:"total_return"`
	Description  string    `json:"description,omitempty" db:"description"`
	IsActive     bool      `json:"is_active" db:"is_active"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserPackage is one account's subscription to a package template.
// AccruedDays is the persisted last-credited-day marker the accrual engine
// advances; TotalEarned never exceeds DurationDays * DailyReturn.
type UserPackage struct {
	ID          string    `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	PackageID   string    `json:"package_id" db:"package_id"`
	Amount      int64     `json:"amount" db:"amount"`
	StartDate   time.Time `json:"start_date" db:"start_date"`
	EndDate     time.Time `json:"end_date" db:"end_date"`
	AccruedDays int       `json:"accrued_days" db:"accrued_days"`
	TotalEarned int64     `json:"total_earned" db:"total_earned"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`

	// Joined template fields for display.
	PackageName string `json:"package_name,omitempty" db:"-"`
	DailyReturn int64  `json:"daily_return,omitempty" db:"-"`
}

// AccrualResult reports the outcome of one subscription's accrual pass.
type AccrualResult struct {
	SubscriptionID string `json:"subscription_id"`
	UserID         int    `json:"user_id"`
	DaysCredited   int    `json:"days_credited"`
	AmountCredited int64  `json:"amount_credited"`
	Completed      bool   `json:"completed"`
	Skipped        bool   `json:"skipped,omitempty"`
}
