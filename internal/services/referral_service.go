package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/config"
	"github.com/wealthbridge/backend/internal/models"
)

// ReferralService owns referral codes and the one-time bonus credit. The
// bonus fires when the referred account's first deposit is approved; the
// pending -> qualified status flip is the idempotency guard.
type ReferralService struct {
	db       *sql.DB
	balances *BalanceService
	cfg      *config.PlatformConfig
}

func NewReferralService(db *sql.DB, balances *BalanceService, cfg *config.PlatformConfig) *ReferralService {
	return &ReferralService{db: db, balances: balances, cfg: cfg}
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateCode produces a share code like WB-7F3K2M.
func GenerateCode() string {
	b := make([]byte, 6)
	rand.Read(b)
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return "WB-" + string(b)
}

// ResolveCode maps a referral code to its owner's user id.
func (s *ReferralService) ResolveCode(ctx context.Context, code string) (int, error) {
	var referrerID int
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE referral_code = $1`, code).Scan(&referrerID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("%w: referral code %s", ErrNotFound, code)
	}
	if err != nil {
		return 0, err
	}
	return referrerID, nil
}

// createRecordTx inserts the pending referral row at registration time.
func (s *ReferralService) createRecordTx(tx *sql.Tx, referrerID, referredID int) error {
	_, err := tx.Exec(`
		INSERT INTO referrals (id, referrer_id, referred_id, bonus_amount, status, created_at)
		VALUES ($1, $2, $3, $4, 'pending', $5)`,
		uuid.NewString(), referrerID, referredID, s.cfg.ReferralBonusCents, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create referral record: %w", err)
	}
	return nil
}

// onDepositApprovedTx credits the referrer's bonus if this approval is the
// referred account's first. The CAS on status makes the credit fire at most
// once per referred account, however many deposits follow.
func (s *ReferralService) onDepositApprovedTx(tx *sql.Tx, referredID int) error {
	var referralID string
	var referrerID int
	var bonus int64
	err := tx.QueryRow(`
		UPDATE referrals
		SET status = 'qualified'
		WHERE referred_id = $1 AND status = 'pending'
		RETURNING id, referrer_id, bonus_amount`, referredID).
		Scan(&referralID, &referrerID, &bonus)
	if err == sql.ErrNoRows {
		// Not referred, or already qualified.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to qualify referral: %w", err)
	}

	if bonus <= 0 {
		return nil
	}

	_, err = s.balances.ApplyDeltaTx(tx, referrerID, models.BalanceTypeReferral, bonus, DeltaEntry{
		Kind:        models.EntryKindReferralBonus,
		Description: "Referral bonus",
		ReferenceID: &referralID,
	})
	if err != nil {
		return fmt.Errorf("failed to credit referral bonus: %w", err)
	}

	log.Printf("[REFERRAL] Bonus %d credited to user %d for referred user %d", bonus, referrerID, referredID)
	return nil
}

// ListReferrals lists the caller's referrals
// @Summary List own referrals
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Referral
// @Router /referrals [get]
func (s *ReferralService) ListReferrals(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT rf.id, rf.referrer_id, rf.referred_id, rf.bonus_amount, rf.status, rf.created_at, u.email
		FROM referrals rf
		JOIN users u ON u.id = rf.referred_id
		WHERE rf.referrer_id = $1
		ORDER BY rf.created_at DESC`, userID)
	if err != nil {
		log.Printf("[REFERRAL] List failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to list referrals", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	referrals := []models.Referral{}
	for rows.Next() {
		var ref models.Referral
		if err := rows.Scan(&ref.ID, &ref.ReferrerID, &ref.ReferredID, &ref.BonusAmount, &ref.Status, &ref.CreatedAt, &ref.ReferredEmail); err != nil {
			log.Printf("[REFERRAL] Scan failed: %v", err)
			SendErrorResponse(w, "Failed to list referrals", http.StatusInternalServerError, nil)
			return
		}
		referrals = append(referrals, ref)
	}

	SendJSONResponse(w, http.StatusOK, referrals)
}

// GetCode returns the caller's share code
// @Summary Get own referral code
// @Tags referrals
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /referrals/code [get]
func (s *ReferralService) GetCode(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var code string
	err := s.db.QueryRowContext(r.Context(), `SELECT referral_code FROM users WHERE id = $1`, userID).Scan(&code)
	if err != nil {
		log.Printf("[REFERRAL] Code lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to get referral code", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, map[string]string{"referralCode": code})
}
