package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/wealthbridge/backend/internal/audit"
	"github.com/wealthbridge/backend/internal/models"
)

// AccrualService credits daily returns for active subscriptions. Each
// subscription is processed in its own transaction with a compare-and-swap
// on the accrued_days marker, so a concurrent or retried run cannot credit
// the same day twice; the losing run records the subscription as skipped.
// Catch-up across missed days is supported, but accrual never advances past
// the subscription's duration.
type AccrualService struct {
	db       *sql.DB
	balances *BalanceService
	audit    *audit.Logger
}

func NewAccrualService(db *sql.DB, balances *BalanceService) *AccrualService {
	return &AccrualService{db: db, balances: balances, audit: audit.NewLogger()}
}

type accrualCandidate struct {
	ID           string
	UserID       int
	StartDate    time.Time
	EndDate      time.Time
	AccruedDays  int
	DurationDays int
	DailyReturn  int64
	PackageName  string
}

// AccrueDue processes every active subscription that has at least one
// uncredited elapsed day as of now.
func (s *AccrualService) AccrueDue(ctx context.Context, now time.Time) ([]models.AccrualResult, error) {
	candidates, err := s.activeSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	results := []models.AccrualResult{}
	credited := 0
	var total int64

	for _, c := range candidates {
		result, err := s.accrueOne(ctx, c, now)
		if err != nil {
			log.Printf("[ACCRUAL] Subscription %s failed: %v", c.ID, err)
			s.audit.LogError("ACCRUAL", c.ID, err)
			continue
		}
		if result == nil {
			continue
		}
		if result.DaysCredited > 0 {
			credited++
			total += result.AmountCredited
		}
		results = append(results, *result)
	}

	s.audit.LogAccrualRun(len(candidates), credited, total)
	log.Printf("[ACCRUAL] Run complete: %d subscriptions inspected, %d credited, %d cents total", len(candidates), credited, total)
	return results, nil
}

func (s *AccrualService) accrueOne(ctx context.Context, c accrualCandidate, now time.Time) (*models.AccrualResult, error) {
	elapsed := wholeDaysBetween(c.StartDate, minTime(now, c.EndDate))
	if elapsed > c.DurationDays {
		elapsed = c.DurationDays
	}
	owed := elapsed - c.AccruedDays

	completed := c.AccruedDays+maxInt(owed, 0) >= c.DurationDays
	if owed <= 0 && !completed {
		return nil, nil
	}

	newStatus := models.SubscriptionActive
	if completed {
		newStatus = models.SubscriptionCompleted
	}
	amount := int64(owed) * c.DailyReturn

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// CAS on the last-credited-day marker: a concurrent run that already
	// advanced it makes this update a no-op, and the day is not re-credited.
	result, err := tx.Exec(`
		UPDATE user_packages
		SET accrued_days = accrued_days + $1, total_earned = total_earned + $2, status = $3
		WHERE id = $4 AND accrued_days = $5 AND status = 'active'`,
		owed, amount, newStatus, c.ID, c.AccruedDays)
	if err != nil {
		return nil, fmt.Errorf("failed to advance accrual marker: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if rowsAffected == 0 {
		// Already credited by another run; absorbed as a no-op.
		return &models.AccrualResult{SubscriptionID: c.ID, UserID: c.UserID, Skipped: true}, nil
	}

	if owed > 0 {
		ref := c.ID
		_, err = s.balances.ApplyDeltaTx(tx, c.UserID, models.BalanceTypeMain, amount, DeltaEntry{
			Kind:        models.EntryKindPackageAccrual,
			Description: fmt.Sprintf("Daily return x%d (%s)", owed, c.PackageName),
			ReferenceID: &ref,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &models.AccrualResult{
		SubscriptionID: c.ID,
		UserID:         c.UserID,
		DaysCredited:   owed,
		AmountCredited: amount,
		Completed:      completed,
	}, nil
}

func (s *AccrualService) activeSubscriptions(ctx context.Context) ([]accrualCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT up.id, up.user_id, up.start_date, up.end_date, up.accrued_days, ip.duration_days, ip.daily_return, ip.name
		FROM user_packages up
		JOIN investment_packages ip ON ip.id = up.package_id
		WHERE up.status = 'active'
		ORDER BY up.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list active subscriptions: %w", err)
	}
	defer rows.Close()

	candidates := []accrualCandidate{}
	for rows.Next() {
		var c accrualCandidate
		if err := rows.Scan(&c.ID, &c.UserID, &c.StartDate, &c.EndDate, &c.AccruedDays, &c.DurationDays, &c.DailyReturn, &c.PackageName); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// RunAccruals triggers an accrual pass on demand
// @Summary Run the accrual engine
// @Description Credits daily returns for all active subscriptions now
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.AccrualResult
// @Router /admin/accruals/run [post]
func (s *AccrualService) RunAccruals(w http.ResponseWriter, r *http.Request) {
	results, err := s.AccrueDue(r.Context(), time.Now())
	if err != nil {
		log.Printf("[ACCRUAL] Manual run failed: %v", err)
		SendErrorResponse(w, "Accrual run failed", http.StatusInternalServerError, nil)
		return
	}
	SendJSONResponse(w, http.StatusOK, results)
}

func wholeDaysBetween(from, to time.Time) int {
	if to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
