package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/wealthbridge/backend/internal/audit"
	"github.com/wealthbridge/backend/internal/models"
)

// ApprovalService is the pending -> approved/rejected state machine for
// funding requests. The status flip, the balance delta, its ledger entry and
// the referral trigger all commit in one database transaction; concurrent
// resolution attempts are serialized by a compare-and-swap on status so
// exactly one administrator wins.
type ApprovalService struct {
	db        *sql.DB
	balances  *BalanceService
	referrals *ReferralService
	audit     *audit.Logger
	validator *ValidationHelper
}

func NewApprovalService(db *sql.DB, balances *BalanceService, referrals *ReferralService) *ApprovalService {
	return &ApprovalService{
		db:        db,
		balances:  balances,
		referrals: referrals,
		audit:     audit.NewLogger(),
		validator: NewValidationHelper(),
	}
}

type resolveRequest struct {
	AdminNotes string `json:"adminNotes,omitempty" validate:"max=500"`
}

// Approve approves a pending funding request
// @Summary Approve a funding request
// @Description Applies the balance effect and ledger entry atomically with the status change
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body resolveRequest false "Optional notes"
// @Success 200 {object} models.FundingRequest
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /admin/requests/{id}/approve [post]
func (s *ApprovalService) Approve(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, models.StatusApproved)
}

// Reject rejects a pending funding request
// @Summary Reject a funding request
// @Description Terminal rejection with optional admin notes; no balance effect
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param request body resolveRequest false "Optional notes"
// @Success 200 {object} models.FundingRequest
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /admin/requests/{id}/reject [post]
func (s *ApprovalService) Reject(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, models.StatusRejected)
}

func (s *ApprovalService) resolve(w http.ResponseWriter, r *http.Request, newStatus string) {
	adminID, _ := userIDFromContext(r)
	requestID := chi.URLParam(r, "id")

	var body resolveRequest
	if r.ContentLength > 0 {
		if err := decodeJSONBody(w, r, &body); err != nil {
			SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
			return
		}
		if err := s.validator.ValidateStruct(&body); err != nil {
			SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
			return
		}
	}

	request, err := s.Resolve(r.Context(), requestID, newStatus, body.AdminNotes)
	if err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			log.Printf("[APPROVAL] Request %s approval blocked: insufficient funds, request stays pending", requestID)
		} else {
			log.Printf("[APPROVAL] Request %s -> %s failed: %v", requestID, newStatus, err)
		}
		SendDomainError(w, err)
		return
	}

	s.audit.LogApproval(request.ID, request.UserID, adminID, request.Amount, newStatus)
	log.Printf("[APPROVAL] Request %s resolved to %s by admin %d", request.ID, newStatus, adminID)
	SendJSONResponse(w, http.StatusOK, request)
}

// Resolve performs the pending -> newStatus transition. On approval the
// balance effect is applied in the same transaction; ErrInsufficientFunds
// rolls everything back and the request remains pending for retry.
func (s *ApprovalService) Resolve(ctx context.Context, requestID, newStatus, adminNotes string) (*models.FundingRequest, error) {
	if newStatus != models.StatusApproved && newStatus != models.StatusRejected {
		return nil, fmt.Errorf("invalid target status %q", newStatus)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	request, err := s.getRequestForUpdate(tx, requestID)
	if err != nil {
		return nil, err
	}
	if request.Status != models.StatusPending {
		return nil, ErrAlreadyResolved
	}

	// CAS on status: exactly one concurrent resolver can flip the row.
	result, err := tx.Exec(`
		UPDATE funding_requests
		SET status = $1, admin_notes = $2, updated_at = $3
		WHERE id = $4 AND status = 'pending'`,
		newStatus, adminNotes, time.Now(), requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to update request status: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		return nil, ErrAlreadyResolved
	}

	if newStatus == models.StatusApproved {
		if err := s.applyEffect(tx, request); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	request.Status = newStatus
	request.AdminNotes = adminNotes
	return request, nil
}

func (s *ApprovalService) applyEffect(tx *sql.Tx, request *models.FundingRequest) error {
	ref := request.ID

	switch request.Direction {
	case models.DirectionIn:
		_, err := s.balances.ApplyDeltaTx(tx, request.UserID, models.BalanceTypeMain, request.Amount, DeltaEntry{
			Kind:        models.EntryKindDeposit,
			Description: "Deposit approved",
			ReferenceID: &ref,
		})
		if err != nil {
			return err
		}
		// First approved deposit may qualify a referral; same transaction.
		return s.referrals.onDepositApprovedTx(tx, request.UserID)

	case models.DirectionOut:
		_, err := s.balances.ApplyDeltaTx(tx, request.UserID, request.BalanceType, -request.Amount, DeltaEntry{
			Kind:        models.EntryKindWithdrawal,
			Description: "Withdrawal approved",
			ReferenceID: &ref,
		})
		return err
	}

	return fmt.Errorf("unknown direction %q", request.Direction)
}

func (s *ApprovalService) getRequestForUpdate(tx *sql.Tx, requestID string) (*models.FundingRequest, error) {
	var req models.FundingRequest
	var txRef, payout, notes sql.NullString
	err := tx.QueryRow(`
		SELECT id, user_id, direction, amount, payment_method_id, transaction_ref, payout_address, balance_type, status, admin_notes, created_at, updated_at
		FROM funding_requests
		WHERE id = $1
		FOR UPDATE`, requestID).
		Scan(&req.ID, &req.UserID, &req.Direction, &req.Amount, &req.PaymentMethodID, &txRef, &payout, &req.BalanceType, &req.Status, &notes, &req.CreatedAt, &req.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: funding request %s", ErrNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load funding request: %w", err)
	}
	req.TransactionRef = txRef.String
	req.PayoutAddress = payout.String
	req.AdminNotes = notes.String
	return &req, nil
}

// ListRequests lists funding requests for admin review
// @Summary List funding requests
// @Description Review queue with optional direction and status filters
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param direction query string false "in or out"
// @Param status query string false "pending, approved or rejected"
// @Success 200 {array} models.FundingRequestView
// @Router /admin/requests [get]
func (s *ApprovalService) ListRequests(w http.ResponseWriter, r *http.Request) {
	direction := r.URL.Query().Get("direction")
	status := r.URL.Query().Get("status")

	query := `
		SELECT fr.id, fr.user_id, fr.direction, fr.amount, fr.payment_method_id, fr.transaction_ref, fr.payout_address,
		       fr.balance_type, fr.status, fr.admin_notes, fr.created_at, fr.updated_at,
		       u.email, u.full_name, COALESCE(pm.name, '')
		FROM funding_requests fr
		JOIN users u ON u.id = fr.user_id
		LEFT JOIN payment_methods pm ON pm.id = fr.payment_method_id
		WHERE 1=1`
	args := []any{}

	if direction == models.DirectionIn || direction == models.DirectionOut {
		args = append(args, direction)
		query += fmt.Sprintf(" AND fr.direction = $%d", len(args))
	}
	if status == models.StatusPending || status == models.StatusApproved || status == models.StatusRejected {
		args = append(args, status)
		query += fmt.Sprintf(" AND fr.status = $%d", len(args))
	}
	query += " ORDER BY fr.created_at DESC LIMIT 200"

	rows, err := s.db.QueryContext(r.Context(), query, args...)
	if err != nil {
		log.Printf("[APPROVAL] Queue listing failed: %v", err)
		SendErrorResponse(w, "Failed to list requests", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	requests := []models.FundingRequestView{}
	for rows.Next() {
		var v models.FundingRequestView
		var txRef, payout, notes sql.NullString
		if err := rows.Scan(&v.ID, &v.UserID, &v.Direction, &v.Amount, &v.PaymentMethodID, &txRef, &payout,
			&v.BalanceType, &v.Status, &notes, &v.CreatedAt, &v.UpdatedAt,
			&v.UserEmail, &v.UserFullName, &v.PaymentMethodName); err != nil {
			log.Printf("[APPROVAL] Queue scan failed: %v", err)
			SendErrorResponse(w, "Failed to list requests", http.StatusInternalServerError, nil)
			return
		}
		v.TransactionRef = txRef.String
		v.PayoutAddress = payout.String
		v.AdminNotes = notes.String
		requests = append(requests, v)
	}

	SendJSONResponse(w, http.StatusOK, requests)
}
