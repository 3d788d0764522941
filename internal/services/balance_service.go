package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/models"
)

// BalanceService is the single entry point for balance mutation. Every
// successful delta writes its paired ledger entry inside the same database
// transaction, so the reconciliation invariant (ledger sums == stored
// balances) cannot drift.
type BalanceService struct {
	db *sql.DB
}

// DeltaEntry describes the ledger entry paired with a balance delta.
type DeltaEntry struct {
	Kind        string
	Description string
	ReferenceID *string
}

func NewBalanceService(db *sql.DB) *BalanceService {
	return &BalanceService{db: db}
}

// GetBalance returns the balance row for a user, creating a zero row for
// accounts that have never transacted.
func (s *BalanceService) GetBalance(ctx context.Context, userID int) (*models.UserBalance, error) {
	bal, err := s.queryBalance(ctx, userID)
	if err == sql.ErrNoRows {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO user_balances (user_id, main_balance, referral_balance, total_deposited, total_withdrawn, version, updated_at)
			VALUES ($1, 0, 0, 0, 0, 1, NOW())
			ON CONFLICT (user_id) DO NOTHING`, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to create balance row: %w", err)
		}
		bal, err = s.queryBalance(ctx, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return bal, nil
}

// ApplyDelta runs ApplyDeltaTx in its own transaction.
func (s *BalanceService) ApplyDelta(ctx context.Context, userID int, balanceType string, delta int64, entry DeltaEntry) (*models.UserBalance, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	bal, err := s.ApplyDeltaTx(tx, userID, balanceType, delta, entry)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return bal, nil
}

// ApplyDeltaTx atomically adds delta (signed cents) to the named balance and
// appends the paired ledger entry, all inside the caller's transaction. A
// delta that would drive the balance negative fails with ErrInsufficientFunds
// and leaves the transaction usable for rollback. Lifetime totals advance
// monotonically for deposit and withdrawal kinds.
func (s *BalanceService) ApplyDeltaTx(tx *sql.Tx, userID int, balanceType string, delta int64, entry DeltaEntry) (*models.UserBalance, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount
	}
	if !models.ValidBalanceType(balanceType) {
		return nil, fmt.Errorf("%w: unknown balance type %q", ErrInvalidAmount, balanceType)
	}
	if !models.ValidEntryKind(entry.Kind) {
		return nil, fmt.Errorf("%w: unknown ledger kind %q", ErrInvalidAmount, entry.Kind)
	}

	bal, err := s.lockBalance(tx, userID)
	if err != nil {
		return nil, err
	}

	switch balanceType {
	case models.BalanceTypeMain:
		bal.MainBalance += delta
		if bal.MainBalance < 0 {
			return nil, ErrInsufficientFunds
		}
	case models.BalanceTypeReferral:
		bal.ReferralBalance += delta
		if bal.ReferralBalance < 0 {
			return nil, ErrInsufficientFunds
		}
	}

	if entry.Kind == models.EntryKindDeposit && delta > 0 {
		bal.TotalDeposited += delta
	}
	if entry.Kind == models.EntryKindWithdrawal && delta < 0 {
		bal.TotalWithdrawn += -delta
	}

	result, err := tx.Exec(`
		UPDATE user_balances
		SET main_balance = $1, referral_balance = $2, total_deposited = $3, total_withdrawn = $4, version = version + 1, updated_at = $5
		WHERE user_id = $6 AND version = $7`,
		bal.MainBalance, bal.ReferralBalance, bal.TotalDeposited, bal.TotalWithdrawn, time.Now(), userID, bal.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("optimistic lock failed for user %d", userID)
	}
	bal.Version++

	if err := s.createLedgerEntry(tx, userID, balanceType, delta, entry); err != nil {
		return nil, err
	}

	return bal, nil
}

func (s *BalanceService) lockBalance(tx *sql.Tx, userID int) (*models.UserBalance, error) {
	var bal models.UserBalance
	err := tx.QueryRow(`
		SELECT user_id, main_balance, referral_balance, total_deposited, total_withdrawn, version
		FROM user_balances
		WHERE user_id = $1
		FOR UPDATE`, userID).
		Scan(&bal.UserID, &bal.MainBalance, &bal.ReferralBalance, &bal.TotalDeposited, &bal.TotalWithdrawn, &bal.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: balance for user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to lock balance row: %w", err)
	}
	return &bal, nil
}

func (s *BalanceService) createLedgerEntry(tx *sql.Tx, userID int, balanceType string, amount int64, entry DeltaEntry) error {
	_, err := tx.Exec(`
		INSERT INTO ledger_entries (id, user_id, kind, amount, balance_type, description, reference_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.NewString(), userID, entry.Kind, amount, balanceType, entry.Description, entry.ReferenceID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}
	return nil
}

func (s *BalanceService) queryBalance(ctx context.Context, userID int) (*models.UserBalance, error) {
	var bal models.UserBalance
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, main_balance, referral_balance, total_deposited, total_withdrawn, version, updated_at
		FROM user_balances
		WHERE user_id = $1`, userID).
		Scan(&bal.UserID, &bal.MainBalance, &bal.ReferralBalance, &bal.TotalDeposited, &bal.TotalWithdrawn, &bal.Version, &bal.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &bal, nil
}

// BalanceEnquiry returns the caller's balances
// @Summary Get own balances
// @Description Returns main and referral balances plus lifetime totals
// @Tags balance
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.UserBalance
// @Failure 401 {object} ErrorResponse
// @Router /balance [get]
func (s *BalanceService) BalanceEnquiry(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	bal, err := s.GetBalance(r.Context(), userID)
	if err != nil {
		log.Printf("[BALANCE] Enquiry failed for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}

	SendJSONResponse(w, http.StatusOK, bal)
}
