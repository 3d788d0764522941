package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/config"
	"github.com/wealthbridge/backend/internal/models"
)

// FundingService handles the user side of funding requests: deposit and
// withdrawal submissions and their history. Requests start pending and only
// an administrator resolves them (ApprovalService).
type FundingService struct {
	db        *sql.DB
	balances  *BalanceService
	validator *ValidationHelper
	cfg       *config.PlatformConfig
}

func NewFundingService(db *sql.DB, balances *BalanceService, cfg *config.PlatformConfig) *FundingService {
	return &FundingService{
		db:        db,
		balances:  balances,
		validator: NewValidationHelper(),
		cfg:       cfg,
	}
}

// DepositRequest is a user's claim of having sent funds to a payment method.
// @Description Deposit submission
type DepositRequest struct {
	Amount          int64  `json:"amount" validate:"required,gt=0" example:"5000"`
	PaymentMethodID string `json:"paymentMethodId" validate:"required,uuid4"`
	TransactionRef  string `json:"transactionRef,omitempty" validate:"max=128"`
}

// WithdrawalRequest asks to pay out part of a balance to an address.
// @Description Withdrawal submission
type WithdrawalRequest struct {
	Amount        int64  `json:"amount" validate:"required,gt=0" example:"1500"`
	PayoutAddress string `json:"payoutAddress" validate:"required,min=4,max=256"`
	BalanceType   string `json:"balanceType" validate:"required,oneof=main referral"`
}

// CreateDeposit submits a deposit request
// @Summary Submit a deposit
// @Description Creates a pending deposit request for admin review
// @Tags funding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DepositRequest true "Deposit"
// @Success 201 {object} models.FundingRequest
// @Failure 400 {object} ErrorResponse
// @Router /deposits [post]
func (s *FundingService) CreateDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req DepositRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.Amount < s.cfg.MinDepositCents {
		SendErrorResponse(w, fmt.Sprintf("Minimum deposit is %d cents", s.cfg.MinDepositCents), http.StatusBadRequest, nil)
		return
	}
	if err := s.ensureActive(r.Context(), userID); err != nil {
		SendDomainError(w, err)
		return
	}

	active, err := s.paymentMethodActive(r.Context(), req.PaymentMethodID)
	if err != nil {
		log.Printf("[FUNDING] Payment method lookup failed: %v", err)
		SendDomainError(w, err)
		return
	}
	if !active {
		SendErrorResponse(w, "Payment method is not available", http.StatusBadRequest, nil)
		return
	}

	request := models.FundingRequest{
		ID:              uuid.NewString(),
		UserID:          userID,
		Direction:       models.DirectionIn,
		Amount:          req.Amount,
		PaymentMethodID: &req.PaymentMethodID,
		TransactionRef:  req.TransactionRef,
		BalanceType:     models.BalanceTypeMain,
		Status:          models.StatusPending,
	}

	if err := s.insertRequest(r.Context(), &request); err != nil {
		log.Printf("[FUNDING] Deposit creation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create deposit request", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[FUNDING] Deposit request %s created - user %d, amount %d", request.ID, userID, req.Amount)
	SendJSONResponse(w, http.StatusCreated, request)
}

// CreateWithdrawal submits a withdrawal request
// @Summary Request a withdrawal
// @Description Creates a pending withdrawal; funds are checked authoritatively at approval
// @Tags funding
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body WithdrawalRequest true "Withdrawal"
// @Success 201 {object} models.FundingRequest
// @Failure 400 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /withdrawals [post]
func (s *FundingService) CreateWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req WithdrawalRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	if req.Amount < s.cfg.MinWithdrawalCents {
		SendErrorResponse(w, fmt.Sprintf("Minimum withdrawal is %d cents", s.cfg.MinWithdrawalCents), http.StatusBadRequest, nil)
		return
	}
	if err := s.ensureActive(r.Context(), userID); err != nil {
		SendDomainError(w, err)
		return
	}

	// Advisory check only; the approval path re-checks under lock.
	bal, err := s.balances.GetBalance(r.Context(), userID)
	if err != nil {
		log.Printf("[FUNDING] Balance lookup failed for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}
	available := bal.MainBalance
	if req.BalanceType == models.BalanceTypeReferral {
		available = bal.ReferralBalance
	}
	if req.Amount > available {
		SendDomainError(w, ErrInsufficientFunds)
		return
	}

	request := models.FundingRequest{
		ID:            uuid.NewString(),
		UserID:        userID,
		Direction:     models.DirectionOut,
		Amount:        req.Amount,
		PayoutAddress: req.PayoutAddress,
		BalanceType:   req.BalanceType,
		Status:        models.StatusPending,
	}

	if err := s.insertRequest(r.Context(), &request); err != nil {
		log.Printf("[FUNDING] Withdrawal creation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to create withdrawal request", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[FUNDING] Withdrawal request %s created - user %d, amount %d from %s", request.ID, userID, req.Amount, req.BalanceType)
	SendJSONResponse(w, http.StatusCreated, request)
}

// ListDeposits lists the caller's deposit requests
// @Summary List own deposits
// @Tags funding
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.FundingRequest
// @Router /deposits [get]
func (s *FundingService) ListDeposits(w http.ResponseWriter, r *http.Request) {
	s.listOwn(w, r, models.DirectionIn)
}

// ListWithdrawals lists the caller's withdrawal requests
// @Summary List own withdrawals
// @Tags funding
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.FundingRequest
// @Router /withdrawals [get]
func (s *FundingService) ListWithdrawals(w http.ResponseWriter, r *http.Request) {
	s.listOwn(w, r, models.DirectionOut)
}

// CancelWithdrawal cancels the caller's own pending withdrawal
// @Summary Cancel a pending withdrawal
// @Tags funding
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /withdrawals/{id} [delete]
func (s *FundingService) CancelWithdrawal(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	requestID := chi.URLParam(r, "id")

	result, err := s.db.ExecContext(r.Context(), `
		UPDATE funding_requests
		SET status = 'rejected', admin_notes = 'Cancelled by user', updated_at = $1
		WHERE id = $2 AND user_id = $3 AND direction = 'out' AND status = 'pending'`,
		time.Now(), requestID, userID)
	if err != nil {
		log.Printf("[FUNDING] Cancel failed for request %s: %v", requestID, err)
		SendErrorResponse(w, "Failed to cancel withdrawal", http.StatusInternalServerError, nil)
		return
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		// Zero rows means either the request isn't the caller's pending
		// withdrawal or it never existed; tell those apart.
		var status string
		err := s.db.QueryRowContext(r.Context(), `
			SELECT status FROM funding_requests
			WHERE id = $1 AND user_id = $2 AND direction = 'out'`, requestID, userID).Scan(&status)
		if err == sql.ErrNoRows {
			SendDomainError(w, fmt.Errorf("%w: withdrawal %s", ErrNotFound, requestID))
			return
		}
		if err != nil {
			log.Printf("[FUNDING] Cancel lookup failed for request %s: %v", requestID, err)
			SendErrorResponse(w, "Failed to cancel withdrawal", http.StatusInternalServerError, nil)
			return
		}
		SendDomainError(w, ErrAlreadyResolved)
		return
	}

	log.Printf("[FUNDING] Withdrawal %s cancelled by user %d", requestID, userID)
	SendJSONResponse(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *FundingService) listOwn(w http.ResponseWriter, r *http.Request, direction string) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	requests, err := s.listRequests(r.Context(), userID, direction)
	if err != nil {
		log.Printf("[FUNDING] List failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to list requests", http.StatusInternalServerError, nil)
		return
	}
	SendJSONResponse(w, http.StatusOK, requests)
}

func (s *FundingService) insertRequest(ctx context.Context, req *models.FundingRequest) error {
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO funding_requests (id, user_id, direction, amount, payment_method_id, transaction_ref, payout_address, balance_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.UserID, req.Direction, req.Amount, req.PaymentMethodID, req.TransactionRef, req.PayoutAddress, req.BalanceType, req.Status, req.CreatedAt, req.UpdatedAt)
	return err
}

func (s *FundingService) listRequests(ctx context.Context, userID int, direction string) ([]models.FundingRequest, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, direction, amount, payment_method_id, transaction_ref, payout_address, balance_type, status, admin_notes, created_at, updated_at
		FROM funding_requests
		WHERE user_id = $1 AND direction = $2
		ORDER BY created_at DESC`, userID, direction)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := []models.FundingRequest{}
	for rows.Next() {
		var req models.FundingRequest
		var txRef, payout, notes sql.NullString
		if err := rows.Scan(&req.ID, &req.UserID, &req.Direction, &req.Amount, &req.PaymentMethodID, &txRef, &payout, &req.BalanceType, &req.Status, &notes, &req.CreatedAt, &req.UpdatedAt); err != nil {
			return nil, err
		}
		req.TransactionRef = txRef.String
		req.PayoutAddress = payout.String
		req.AdminNotes = notes.String
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

// ensureActive blocks funding requests from suspended accounts even when a
// previously issued token is still valid.
func (s *FundingService) ensureActive(ctx context.Context, userID int) error {
	var status string
	err := s.db.QueryRowContext(ctx, `SELECT status FROM users WHERE id = $1`, userID).Scan(&status)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: user %d", ErrNotFound, userID)
	}
	if err != nil {
		return err
	}
	if status == models.UserStatusSuspended {
		return ErrAccountSuspended
	}
	return nil
}

func (s *FundingService) paymentMethodActive(ctx context.Context, id string) (bool, error) {
	var active bool
	err := s.db.QueryRowContext(ctx, `SELECT is_active FROM payment_methods WHERE id = $1`, id).Scan(&active)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: payment method %s", ErrNotFound, id)
	}
	if err != nil {
		return false, err
	}
	return active, nil
}
