package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wealthbridge/backend/internal/models"
)

// LedgerService is the read side of the ledger: listing for dashboards and
// reconciliation checks. Writes happen only through BalanceService, inside
// the same transaction as the balance mutation they describe.
type LedgerService struct {
	db *sql.DB
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{db: db}
}

const defaultPageSize = 50

// ListForUser returns a user's ledger entries newest first, optionally
// filtered by kind, with limit/offset pagination.
func (s *LedgerService) ListForUser(ctx context.Context, userID int, kind string, limit, offset int) ([]models.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	if kind != "" && !models.ValidEntryKind(kind) {
		return nil, fmt.Errorf("%w: unknown ledger kind %q", ErrInvalidAmount, kind)
	}

	query := `
		SELECT id, user_id, kind, amount, balance_type, description, reference_id, created_at
		FROM ledger_entries
		WHERE user_id = $1`
	args := []any{userID}

	if kind != "" {
		query += ` AND kind = $2`
		args = append(args, kind)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger entries: %w", err)
	}
	defer rows.Close()

	entries := []models.LedgerEntry{}
	for rows.Next() {
		var e models.LedgerEntry
		var description sql.NullString
		if err := rows.Scan(&e.ID, &e.UserID, &e.Kind, &e.Amount, &e.BalanceType, &description, &e.ReferenceID, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Description = description.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Reconcile verifies the reconciliation invariant for one account: the sum
// of ledger entries per balance type must equal the stored balance.
func (s *LedgerService) Reconcile(ctx context.Context, userID int) (*models.ReconcileReport, error) {
	report := models.ReconcileReport{UserID: userID}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(amount) FILTER (WHERE balance_type = 'main'), 0),
			COALESCE(SUM(amount) FILTER (WHERE balance_type = 'referral'), 0)
		FROM ledger_entries
		WHERE user_id = $1`, userID).
		Scan(&report.LedgerMainSum, &report.LedgerReferralSum)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger entries: %w", err)
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT main_balance, referral_balance FROM user_balances WHERE user_id = $1`, userID).
		Scan(&report.StoredMainBalance, &report.StoredReferralBal)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: balance for user %d", ErrNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stored balance: %w", err)
	}

	report.Balanced = report.LedgerMainSum == report.StoredMainBalance &&
		report.LedgerReferralSum == report.StoredReferralBal
	return &report, nil
}

// ListTransactions lists the caller's ledger history
// @Summary List own transactions
// @Description Ledger entries newest first, optional kind filter and pagination
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Param kind query string false "Filter by entry kind"
// @Param limit query int false "Page size (max 200)"
// @Param offset query int false "Offset"
// @Success 200 {array} models.LedgerEntry
// @Failure 401 {object} ErrorResponse
// @Router /transactions [get]
func (s *LedgerService) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	kind := r.URL.Query().Get("kind")

	entries, err := s.ListForUser(r.Context(), userID, kind, limit, offset)
	if err != nil {
		log.Printf("[LEDGER] List failed for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}

	SendJSONResponse(w, http.StatusOK, entries)
}

// ReconcileUser runs a reconciliation check for the caller's own account
// @Summary Reconcile own account
// @Description Compares ledger sums against stored balances
// @Tags transactions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.ReconcileReport
// @Failure 401 {object} ErrorResponse
// @Router /transactions/reconcile [get]
func (s *LedgerService) ReconcileUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	s.reconcileAndRespond(w, r, userID)
}

// ReconcileAccount runs a reconciliation check for any account
// @Summary Reconcile an account
// @Description Compares ledger sums against stored balances
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param userId path int true "User ID"
// @Success 200 {object} models.ReconcileReport
// @Failure 404 {object} ErrorResponse
// @Router /admin/reconcile/{userId} [get]
func (s *LedgerService) ReconcileAccount(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userId"))
	if err != nil {
		SendErrorResponse(w, "Invalid user id", http.StatusBadRequest, nil)
		return
	}
	s.reconcileAndRespond(w, r, userID)
}

func (s *LedgerService) reconcileAndRespond(w http.ResponseWriter, r *http.Request, userID int) {
	report, err := s.Reconcile(r.Context(), userID)
	if err != nil {
		log.Printf("[LEDGER] Reconcile failed for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}

	if !report.Balanced {
		log.Printf("[LEDGER] Reconciliation drift for user %d: ledger main=%d stored main=%d ledger referral=%d stored referral=%d",
			userID, report.LedgerMainSum, report.StoredMainBalance, report.LedgerReferralSum, report.StoredReferralBal)
	}

	SendJSONResponse(w, http.StatusOK, report)
}
