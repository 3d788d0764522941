package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/wealthbridge/backend/internal/audit"
	"github.com/wealthbridge/backend/internal/config"
	"github.com/wealthbridge/backend/internal/models"
)

// AdminService backs the admin console: user management, direct balance
// adjustments and platform stats. Adjustments go through the Balance Store
// like every other mutation, so they are ledgered and non-negativity holds.
type AdminService struct {
	db        *sql.DB
	redis     *redis.Client
	balances  *BalanceService
	audit     *audit.Logger
	validator *ValidationHelper
	cfg       *config.PlatformConfig
}

func NewAdminService(db *sql.DB, redisClient *redis.Client, balances *BalanceService, cfg *config.PlatformConfig) *AdminService {
	return &AdminService{
		db:        db,
		redis:     redisClient,
		balances:  balances,
		audit:     audit.NewLogger(),
		validator: NewValidationHelper(),
		cfg:       cfg,
	}
}

// AdminUserView joins a user with their balances for the console.
type AdminUserView struct {
	models.User
	MainBalance     int64 `json:"main_balance"`
	ReferralBalance int64 `json:"referral_balance"`
	TotalDeposited  int64 `json:"total_deposited"`
	TotalWithdrawn  int64 `json:"total_withdrawn"`
}

// PlatformStats is the admin dashboard summary.
type PlatformStats struct {
	TotalUsers         int   `json:"total_users"`
	TotalDeposited     int64 `json:"total_deposited"`
	TotalWithdrawn     int64 `json:"total_withdrawn"`
	PendingDeposits    int   `json:"pending_deposits"`
	PendingWithdrawals int   `json:"pending_withdrawals"`
	ActivePackages     int   `json:"active_packages"`
}

type adjustBalanceRequest struct {
	Amount      int64  `json:"amount" validate:"required,gt=0" example:"5000"`
	BalanceType string `json:"balanceType" validate:"required,oneof=main referral"`
	Operation   string `json:"operation" validate:"required,oneof=add subtract"`
}

type userStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended"`
}

// ListUsers lists users with balances
// @Summary List users
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} AdminUserView
// @Router /admin/users [get]
func (s *AdminService) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 200 {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(r.Context(), `
		SELECT u.id, u.email, u.full_name, u.role, u.status, u.referral_code, u.created_at,
		       COALESCE(b.main_balance, 0), COALESCE(b.referral_balance, 0), COALESCE(b.total_deposited, 0), COALESCE(b.total_withdrawn, 0)
		FROM users u
		LEFT JOIN user_balances b ON b.user_id = u.id
		ORDER BY u.created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		log.Printf("[ADMIN] User listing failed: %v", err)
		SendErrorResponse(w, "Failed to list users", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	users := []AdminUserView{}
	for rows.Next() {
		var v AdminUserView
		if err := rows.Scan(&v.ID, &v.Email, &v.FullName, &v.Role, &v.Status, &v.ReferralCode, &v.CreatedAt,
			&v.MainBalance, &v.ReferralBalance, &v.TotalDeposited, &v.TotalWithdrawn); err != nil {
			log.Printf("[ADMIN] User scan failed: %v", err)
			SendErrorResponse(w, "Failed to list users", http.StatusInternalServerError, nil)
			return
		}
		users = append(users, v)
	}

	SendJSONResponse(w, http.StatusOK, users)
}

// AdjustBalance applies a manual balance adjustment
// @Summary Adjust a user's balance
// @Description Adds or subtracts from a balance with a ledgered admin_adjustment entry
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body adjustBalanceRequest true "Adjustment"
// @Success 200 {object} models.UserBalance
// @Failure 422 {object} ErrorResponse
// @Router /admin/users/{id}/balance [post]
func (s *AdminService) AdjustBalance(w http.ResponseWriter, r *http.Request) {
	adminID, _ := userIDFromContext(r)
	userID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid user id", http.StatusBadRequest, nil)
		return
	}

	var req adjustBalanceRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	delta := req.Amount
	if req.Operation == "subtract" {
		delta = -req.Amount
	}

	bal, err := s.balances.ApplyDelta(r.Context(), userID, req.BalanceType, delta, DeltaEntry{
		Kind:        models.EntryKindAdminAdjustment,
		Description: fmt.Sprintf("Admin %s - %s balance adjustment", req.Operation, req.BalanceType),
	})
	if err != nil {
		log.Printf("[ADMIN] Balance adjustment failed for user %d: %v", userID, err)
		SendDomainError(w, err)
		return
	}

	s.audit.LogAdjustment(userID, adminID, req.BalanceType, delta)
	s.invalidateStats(r.Context())
	log.Printf("[ADMIN] Admin %d adjusted user %d %s balance by %d", adminID, userID, req.BalanceType, delta)
	SendJSONResponse(w, http.StatusOK, bal)
}

// SetUserStatus suspends or reactivates an account
// @Summary Set user status
// @Description Soft lifecycle only; accounts are never deleted
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "User ID"
// @Param request body userStatusRequest true "Status"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /admin/users/{id}/status [put]
func (s *AdminService) SetUserStatus(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		SendErrorResponse(w, "Invalid user id", http.StatusBadRequest, nil)
		return
	}

	var req userStatusRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	result, err := s.db.ExecContext(r.Context(), `UPDATE users SET status = $1, updated_at = NOW() WHERE id = $2`, req.Status, userID)
	if err != nil {
		log.Printf("[ADMIN] Status update failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to update status", http.StatusInternalServerError, nil)
		return
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		SendDomainError(w, ErrNotFound)
		return
	}

	log.Printf("[ADMIN] User %d status set to %s", userID, req.Status)
	SendJSONResponse(w, http.StatusOK, map[string]string{"status": req.Status})
}

const statsCacheKey = "admin:stats"

// GetStats returns the dashboard summary
// @Summary Platform stats
// @Description Totals and pending counts, cached briefly in redis
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} PlatformStats
// @Router /admin/stats [get]
func (s *AdminService) GetStats(w http.ResponseWriter, r *http.Request) {
	if s.redis != nil {
		if cached, err := s.redis.Get(r.Context(), statsCacheKey).Bytes(); err == nil {
			var stats PlatformStats
			if json.Unmarshal(cached, &stats) == nil {
				SendJSONResponse(w, http.StatusOK, stats)
				return
			}
		}
	}

	var stats PlatformStats
	err := s.db.QueryRowContext(r.Context(), `
		SELECT
			(SELECT COUNT(*) FROM users WHERE role = 'user'),
			(SELECT COALESCE(SUM(total_deposited), 0) FROM user_balances),
			(SELECT COALESCE(SUM(total_withdrawn), 0) FROM user_balances),
			(SELECT COUNT(*) FROM funding_requests WHERE direction = 'in' AND status = 'pending'),
			(SELECT COUNT(*) FROM funding_requests WHERE direction = 'out' AND status = 'pending'),
			(SELECT COUNT(*) FROM user_packages WHERE status = 'active')`).
		Scan(&stats.TotalUsers, &stats.TotalDeposited, &stats.TotalWithdrawn,
			&stats.PendingDeposits, &stats.PendingWithdrawals, &stats.ActivePackages)
	if err != nil {
		log.Printf("[ADMIN] Stats query failed: %v", err)
		SendErrorResponse(w, "Failed to load stats", http.StatusInternalServerError, nil)
		return
	}

	if s.redis != nil {
		if data, err := json.Marshal(stats); err == nil {
			ttl := s.cfg.StatsCacheTTL
			if ttl == 0 {
				ttl = 30 * time.Second
			}
			s.redis.Set(r.Context(), statsCacheKey, data, ttl)
		}
	}

	SendJSONResponse(w, http.StatusOK, stats)
}

func (s *AdminService) invalidateStats(ctx context.Context) {
	if s.redis != nil {
		s.redis.Del(ctx, statsCacheKey)
	}
}
