package models

import "time"

// Ledger entry kinds. A single variant type with a kind discriminant replaces
// the four separate transaction queries the legacy client merged by hand.
const (
	EntryKindDeposit         = "deposit"
	EntryKindWithdrawal      = "withdrawal"
	EntryKindPackagePurchase = "package_purchase"
	EntryKindPackageAccrual  = "package_accrual"
	EntryKindReferralBonus   = "referral_bonus"
	EntryKindAdminAdjustment = "admin_adjustment"
)

// LedgerEntry is an append-only record of one balance-affecting event.
// Amount is signed cents; entries are immutable once written and their
// per-account sums are the reconciliation source of truth.
type LedgerEntry struct {
	ID          string    `json:"id" db:"id"`
	UserID      int       `json:"user_id" db:"user_id"`
	Kind        string    `json:"kind" db:"kind"`
	Amount      int64     `json:"amount" db:"amount"`
	BalanceType string    `json:"balance_type" db:"balance_type"`
	Description string    `json:"description,omitempty" db:"description"`
	ReferenceID *string   `json:"reference_id,omitempty" db:"reference_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

var entryKinds = map[string]bool{
	EntryKindDeposit:         true,
	EntryKindWithdrawal:      true,
	EntryKindPackagePurchase: true,
	EntryKindPackageAccrual:  true,
	EntryKindReferralBonus:   true,
	EntryKindAdminAdjustment: true,
}

func ValidEntryKind(kind string) bool {
	return entryKinds[kind]
}

// ReconcileReport compares ledger sums against the stored balance row.
type ReconcileReport struct {
	UserID            int   `json:"user_id"`
	LedgerMainSum     int64 `json:"ledger_main_sum"`
	LedgerReferralSum int64 `json:"ledger_referral_sum"`
	StoredMainBalance int64 `json:"stored_main_balance"`
	StoredReferralBal int64 `json:"stored_referral_balance"`
	Balanced          bool  `json:"balanced"`
}
