package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/models"
)

// PackageService sells investment packages: fixed-term products paying a
// fixed daily return on a committed principal. Purchase debits the main
// balance and opens a subscription in one transaction.
type PackageService struct {
	db       *sql.DB
	balances *BalanceService
}

func NewPackageService(db *sql.DB, balances *BalanceService) *PackageService {
	return &PackageService{db: db, balances: balances}
}

// ListPackages lists purchasable package templates
// @Summary List active packages
// @Tags packages
// @Produce json
// @Success 200 {array} models.InvestmentPackage
// @Router /packages [get]
func (s *PackageService) ListPackages(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.QueryContext(r.Context(), `
		SELECT id, name, price, daily_return, duration_days, total_return, description, is_active, created_at
		FROM investment_packages
		WHERE is_active = true
		ORDER BY price ASC`)
	if err != nil {
		log.Printf("[PACKAGE] Template listing failed: %v", err)
		SendErrorResponse(w, "Failed to list packages", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	packages := []models.InvestmentPackage{}
	for rows.Next() {
		var p models.InvestmentPackage
		var description sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.DailyReturn, &p.DurationDays, &p.TotalReturn, &description, &p.IsActive, &p.CreatedAt); err != nil {
			log.Printf("[PACKAGE] Template scan failed: %v", err)
			SendErrorResponse(w, "Failed to list packages", http.StatusInternalServerError, nil)
			return
		}
		p.Description = description.String
		packages = append(packages, p)
	}

	SendJSONResponse(w, http.StatusOK, packages)
}

// Purchase buys a package for the caller
// @Summary Purchase a package
// @Description Debits the package price from the main balance and opens an active subscription
// @Tags packages
// @Produce json
// @Security BearerAuth
// @Param id path string true "Package ID"
// @Success 201 {object} models.UserPackage
// @Failure 404 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /packages/{id}/purchase [post]
func (s *PackageService) Purchase(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	packageID := chi.URLParam(r, "id")

	sub, err := s.purchase(r, userID, packageID)
	if err != nil {
		log.Printf("[PACKAGE] Purchase of %s failed for user %d: %v", packageID, userID, err)
		SendDomainError(w, err)
		return
	}

	log.Printf("[PACKAGE] User %d purchased package %s (subscription %s)", userID, packageID, sub.ID)
	SendJSONResponse(w, http.StatusCreated, sub)
}

func (s *PackageService) purchase(r *http.Request, userID int, packageID string) (*models.UserPackage, error) {
	var tpl models.InvestmentPackage
	err := s.db.QueryRowContext(r.Context(), `
		SELECT id, name, price, daily_return, duration_days FROM investment_packages WHERE id = $1 AND is_active = true`, packageID).
		Scan(&tpl.ID, &tpl.Name, &tpl.Price, &tpl.DailyReturn, &tpl.DurationDays)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: package %s", ErrNotFound, packageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load package: %w", err)
	}

	tx, err := s.db.BeginTx(r.Context(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	sub := models.UserPackage{
		ID:        uuid.NewString(),
		UserID:    userID,
		PackageID: tpl.ID,
		Amount:    tpl.Price,
		StartDate: now,
		EndDate:   now.AddDate(0, 0, tpl.DurationDays),
		Status:    models.SubscriptionActive,
		CreatedAt: now,
	}

	_, err = s.balances.ApplyDeltaTx(tx, userID, models.BalanceTypeMain, -tpl.Price, DeltaEntry{
		Kind:        models.EntryKindPackagePurchase,
		Description: fmt.Sprintf("Purchase of %s", tpl.Name),
		ReferenceID: &sub.ID,
	})
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		INSERT INTO user_packages (id, user_id, package_id, amount, start_date, end_date, accrued_days, total_earned, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, $7, $8)`,
		sub.ID, sub.UserID, sub.PackageID, sub.Amount, sub.StartDate, sub.EndDate, sub.Status, sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	sub.PackageName = tpl.Name
	sub.DailyReturn = tpl.DailyReturn
	return &sub, nil
}

// ListMine lists the caller's subscriptions
// @Summary List own package subscriptions
// @Tags packages
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.UserPackage
// @Router /packages/mine [get]
func (s *PackageService) ListMine(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT up.id, up.user_id, up.package_id, up.amount, up.start_date, up.end_date, up.accrued_days, up.total_earned, up.status, up.created_at,
		       ip.name, ip.daily_return
		FROM user_packages up
		JOIN investment_packages ip ON ip.id = up.package_id
		WHERE up.user_id = $1
		ORDER BY up.created_at DESC`, userID)
	if err != nil {
		log.Printf("[PACKAGE] Subscription listing failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to list subscriptions", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	subs := []models.UserPackage{}
	for rows.Next() {
		var sub models.UserPackage
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.PackageID, &sub.Amount, &sub.StartDate, &sub.EndDate, &sub.AccruedDays, &sub.TotalEarned, &sub.Status, &sub.CreatedAt,
			&sub.PackageName, &sub.DailyReturn); err != nil {
			log.Printf("[PACKAGE] Subscription scan failed: %v", err)
			SendErrorResponse(w, "Failed to list subscriptions", http.StatusInternalServerError, nil)
			return
		}
		subs = append(subs, sub)
	}

	SendJSONResponse(w, http.StatusOK, subs)
}
