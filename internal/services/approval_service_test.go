package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/wealthbridge/backend/internal/config"
	"github.com/wealthbridge/backend/internal/models"
)

func newApprovalFixture(t *testing.T) (*ApprovalService, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	balances := NewBalanceService(db)
	referrals := NewReferralService(db, balances, config.LoadPlatformConfig())
	service := NewApprovalService(db, balances, referrals)
	return service, mock, func() { db.Close() }
}

func fundingRequestRows(id string, userID int, direction string, amount int64, balanceType, status string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "user_id", "direction", "amount", "payment_method_id", "transaction_ref", "payout_address", "balance_type", "status", "admin_notes", "created_at", "updated_at"}).
		AddRow(id, userID, direction, amount, nil, nil, nil, balanceType, status, nil, now, now)
}

func TestApprovalService_Resolve(t *testing.T) {
	t.Run("approving a deposit credits the main balance", func(t *testing.T) {
		service, mock, closeDB := newApprovalFixture(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, direction, amount").
			WithArgs("req-1").
			WillReturnRows(fundingRequestRows("req-1", 7, models.DirectionIn, 5000, models.BalanceTypeMain, models.StatusPending))
		mock.ExpectExec("UPDATE funding_requests").
			WithArgs(models.StatusApproved, "looks good", sqlmock.AnyArg(), "req-1").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT user_id, main_balance").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "main_balance", "referral_balance", "total_deposited", "total_withdrawn", "version"}).
				AddRow(7, 0, 0, 0, 0, 1))
		mock.ExpectExec("UPDATE user_balances").
			WithArgs(int64(5000), int64(0), int64(5000), int64(0), sqlmock.AnyArg(), 7, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("UPDATE referrals").
			WithArgs(7).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectCommit()

		request, err := service.Resolve(context.Background(), "req-1", models.StatusApproved, "looks good")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusApproved, request.Status)
		assert.Equal(t, "looks good", request.AdminNotes)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawal approval beyond funds rolls back and stays pending", func(t *testing.T) {
		service, mock, closeDB := newApprovalFixture(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, direction, amount").
			WithArgs("req-2").
			WillReturnRows(fundingRequestRows("req-2", 7, models.DirectionOut, 1500, models.BalanceTypeMain, models.StatusPending))
		mock.ExpectExec("UPDATE funding_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery("SELECT user_id, main_balance").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "main_balance", "referral_balance", "total_deposited", "total_withdrawn", "version"}).
				AddRow(7, 1000, 0, 1000, 0, 2))
		mock.ExpectRollback()

		_, err := service.Resolve(context.Background(), "req-2", models.StatusApproved, "")
		assert.ErrorIs(t, err, ErrInsufficientFunds)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("resolving twice fails with conflict", func(t *testing.T) {
		service, mock, closeDB := newApprovalFixture(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, direction, amount").
			WithArgs("req-3").
			WillReturnRows(fundingRequestRows("req-3", 7, models.DirectionIn, 5000, models.BalanceTypeMain, models.StatusApproved))
		mock.ExpectRollback()

		_, err := service.Resolve(context.Background(), "req-3", models.StatusRejected, "")
		assert.ErrorIs(t, err, ErrAlreadyResolved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("losing the status race fails with conflict", func(t *testing.T) {
		service, mock, closeDB := newApprovalFixture(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, direction, amount").
			WithArgs("req-4").
			WillReturnRows(fundingRequestRows("req-4", 7, models.DirectionIn, 5000, models.BalanceTypeMain, models.StatusPending))
		mock.ExpectExec("UPDATE funding_requests").
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := service.Resolve(context.Background(), "req-4", models.StatusApproved, "")
		assert.ErrorIs(t, err, ErrAlreadyResolved)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejection applies no balance effect", func(t *testing.T) {
		service, mock, closeDB := newApprovalFixture(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, direction, amount").
			WithArgs("req-5").
			WillReturnRows(fundingRequestRows("req-5", 7, models.DirectionIn, 5000, models.BalanceTypeMain, models.StatusPending))
		mock.ExpectExec("UPDATE funding_requests").
			WithArgs(models.StatusRejected, "no matching transfer", sqlmock.AnyArg(), "req-5").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		request, err := service.Resolve(context.Background(), "req-5", models.StatusRejected, "no matching transfer")
		assert.NoError(t, err)
		assert.Equal(t, models.StatusRejected, request.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown request is not found", func(t *testing.T) {
		service, mock, closeDB := newApprovalFixture(t)
		defer closeDB()

		mock.ExpectBegin()
		mock.ExpectQuery("SELECT id, user_id, direction, amount").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)
		mock.ExpectRollback()

		_, err := service.Resolve(context.Background(), "missing", models.StatusApproved, "")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
