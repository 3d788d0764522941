package services

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/wealthbridge/backend/internal/config"
)

const testMethodID = "0b37e4e5-41c5-45d5-b5a7-1a3b6cf58c7e"

func authedRequest(method, target string, body []byte, userID string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewBuffer(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	return req.WithContext(context.WithValue(req.Context(), "userID", userID))
}

func TestFundingService_CreateDeposit(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewFundingService(db, NewBalanceService(db), config.LoadPlatformConfig())

	activeUserRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"status"}).AddRow("active")
	}

	t.Run("valid deposit becomes a pending request", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM users").
			WithArgs(7).
			WillReturnRows(activeUserRow())
		mock.ExpectQuery("SELECT is_active FROM payment_methods").
			WithArgs(testMethodID).
			WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(true))
		mock.ExpectExec("INSERT INTO funding_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := []byte(`{"amount": 5000, "paymentMethodId": "` + testMethodID + `", "transactionRef": "0xabc123"}`)
		w := httptest.NewRecorder()

		service.CreateDeposit(w, authedRequest("POST", "/deposits", body, "7"))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"pending"`)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("deposit below the minimum is rejected", func(t *testing.T) {
		body := []byte(`{"amount": 50, "paymentMethodId": "` + testMethodID + `"}`)
		w := httptest.NewRecorder()

		service.CreateDeposit(w, authedRequest("POST", "/deposits", body, "7"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("disabled payment method is rejected", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM users").
			WithArgs(7).
			WillReturnRows(activeUserRow())
		mock.ExpectQuery("SELECT is_active FROM payment_methods").
			WithArgs(testMethodID).
			WillReturnRows(sqlmock.NewRows([]string{"is_active"}).AddRow(false))

		body := []byte(`{"amount": 5000, "paymentMethodId": "` + testMethodID + `"}`)
		w := httptest.NewRecorder()

		service.CreateDeposit(w, authedRequest("POST", "/deposits", body, "7"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("suspended account cannot deposit", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM users").
			WithArgs(7).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("suspended"))

		body := []byte(`{"amount": 5000, "paymentMethodId": "` + testMethodID + `"}`)
		w := httptest.NewRecorder()

		service.CreateDeposit(w, authedRequest("POST", "/deposits", body, "7"))

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		body := []byte(`{"amount": 5000, "paymentMethodId": "` + testMethodID + `", "bonus": true}`)
		w := httptest.NewRecorder()

		service.CreateDeposit(w, authedRequest("POST", "/deposits", body, "7"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unauthenticated request is rejected", func(t *testing.T) {
		body := []byte(`{"amount": 5000, "paymentMethodId": "` + testMethodID + `"}`)
		req := httptest.NewRequest("POST", "/deposits", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.CreateDeposit(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestFundingService_CreateWithdrawal(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewFundingService(db, NewBalanceService(db), config.LoadPlatformConfig())

	balanceQueryRows := func(main, referral int64) *sqlmock.Rows {
		return sqlmock.NewRows([]string{"user_id", "main_balance", "referral_balance", "total_deposited", "total_withdrawn", "version", "updated_at"}).
			AddRow(7, main, referral, main, 0, 1, time.Now())
	}

	activeUserRow := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"status"}).AddRow("active")
	}

	t.Run("withdrawal within the balance becomes pending", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM users").
			WithArgs(7).
			WillReturnRows(activeUserRow())
		mock.ExpectQuery("SELECT user_id, main_balance").
			WithArgs(7).
			WillReturnRows(balanceQueryRows(10000, 0))
		mock.ExpectExec("INSERT INTO funding_requests").
			WillReturnResult(sqlmock.NewResult(0, 1))

		body := []byte(`{"amount": 1500, "payoutAddress": "TXk2...9fQ", "balanceType": "main"}`)
		w := httptest.NewRecorder()

		service.CreateWithdrawal(w, authedRequest("POST", "/withdrawals", body, "7"))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("withdrawal below the minimum is rejected", func(t *testing.T) {
		body := []byte(`{"amount": 100, "payoutAddress": "TXk2...9fQ", "balanceType": "main"}`)
		w := httptest.NewRecorder()

		service.CreateWithdrawal(w, authedRequest("POST", "/withdrawals", body, "7"))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("withdrawal beyond the advisory balance is unprocessable", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM users").
			WithArgs(7).
			WillReturnRows(activeUserRow())
		mock.ExpectQuery("SELECT user_id, main_balance").
			WithArgs(7).
			WillReturnRows(balanceQueryRows(1000, 0))

		body := []byte(`{"amount": 1500, "payoutAddress": "TXk2...9fQ", "balanceType": "main"}`)
		w := httptest.NewRecorder()

		service.CreateWithdrawal(w, authedRequest("POST", "/withdrawals", body, "7"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("referral withdrawals check the referral balance", func(t *testing.T) {
		mock.ExpectQuery("SELECT status FROM users").
			WithArgs(7).
			WillReturnRows(activeUserRow())
		mock.ExpectQuery("SELECT user_id, main_balance").
			WithArgs(7).
			WillReturnRows(balanceQueryRows(100000, 200))

		body := []byte(`{"amount": 500, "payoutAddress": "TXk2...9fQ", "balanceType": "referral"}`)
		w := httptest.NewRecorder()

		service.CreateWithdrawal(w, authedRequest("POST", "/withdrawals", body, "7"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestFundingService_CancelWithdrawal(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewFundingService(db, NewBalanceService(db), config.LoadPlatformConfig())

	router := chi.NewRouter()
	router.Delete("/withdrawals/{id}", service.CancelWithdrawal)

	t.Run("pending withdrawal cancels", func(t *testing.T) {
		mock.ExpectExec("UPDATE funding_requests").
			WithArgs(sqlmock.AnyArg(), "req-9", 7).
			WillReturnResult(sqlmock.NewResult(0, 1))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("DELETE", "/withdrawals/req-9", nil, "7"))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already resolved withdrawal conflicts", func(t *testing.T) {
		mock.ExpectExec("UPDATE funding_requests").
			WithArgs(sqlmock.AnyArg(), "req-9", 7).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM funding_requests").
			WithArgs("req-9", 7).
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("approved"))

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("DELETE", "/withdrawals/req-9", nil, "7"))

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown withdrawal is not found", func(t *testing.T) {
		mock.ExpectExec("UPDATE funding_requests").
			WithArgs(sqlmock.AnyArg(), "req-nope", 7).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectQuery("SELECT status FROM funding_requests").
			WithArgs("req-nope", 7).
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("DELETE", "/withdrawals/req-nope", nil, "7"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
