package services

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/wealthbridge/backend/internal/config"
)

func TestGenerateCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code := GenerateCode()
		assert.True(t, strings.HasPrefix(code, "WB-"))
		assert.Len(t, code, 9)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestReferralService_OnDepositApproved(t *testing.T) {
	t.Run("first approved deposit credits the referrer once", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewReferralService(db, NewBalanceService(db), config.LoadPlatformConfig())

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE referrals").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "referrer_id", "bonus_amount"}).
				AddRow("ref-1", 3, int64(100)))
		mock.ExpectQuery("SELECT user_id, main_balance").
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "main_balance", "referral_balance", "total_deposited", "total_withdrawn", "version"}).
				AddRow(3, 0, 0, 0, 0, 1))
		mock.ExpectExec("UPDATE user_balances").
			WithArgs(int64(0), int64(100), int64(0), int64(0), sqlmock.AnyArg(), 3, 1).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)
		assert.NoError(t, service.onDepositApprovedTx(tx, 7))
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("later deposits are a no-op", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewReferralService(db, NewBalanceService(db), config.LoadPlatformConfig())

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE referrals").
			WithArgs(7).
			WillReturnError(sql.ErrNoRows)
		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)
		assert.NoError(t, service.onDepositApprovedTx(tx, 7))
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("zero bonus qualifies without a credit", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		service := NewReferralService(db, NewBalanceService(db), config.LoadPlatformConfig())

		mock.ExpectBegin()
		mock.ExpectQuery("UPDATE referrals").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"id", "referrer_id", "bonus_amount"}).
				AddRow("ref-2", 3, int64(0)))
		mock.ExpectCommit()

		tx, err := db.Begin()
		assert.NoError(t, err)
		assert.NoError(t, service.onDepositApprovedTx(tx, 7))
		assert.NoError(t, tx.Commit())
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestReferralService_ListReferrals(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewReferralService(db, NewBalanceService(db), config.LoadPlatformConfig())

	t.Run("lists referrals with referred emails", func(t *testing.T) {
		mock.ExpectQuery("SELECT rf.id, rf.referrer_id").
			WithArgs(3).
			WillReturnRows(sqlmock.NewRows([]string{"id", "referrer_id", "referred_id", "bonus_amount", "status", "created_at", "email"}).
				AddRow("ref-1", 3, 7, int64(100), "qualified", time.Now(), "friend@example.com"))

		req := httptest.NewRequest("GET", "/referrals", nil)
		req = req.WithContext(context.WithValue(req.Context(), "userID", "3"))
		w := httptest.NewRecorder()

		service.ListReferrals(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "friend@example.com")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing auth context is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/referrals", nil)
		w := httptest.NewRecorder()

		service.ListReferrals(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
