package services

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

const testPackageID = "5f0f0f2a-8a3e-4a7e-9be2-25c1f0e2d9aa"

func packageTemplateRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "price", "daily_return", "duration_days"}).
		AddRow(testPackageID, "Standard Package", int64(5000), int64(25), 30)
}

func TestPackageService_Purchase(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPackageService(db, NewBalanceService(db))
	router := chi.NewRouter()
	router.Post("/packages/{id}/purchase", service.Purchase)

	t.Run("purchase debits the price and opens a subscription", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, price, daily_return, duration_days FROM investment_packages").
			WithArgs(testPackageID).
			WillReturnRows(packageTemplateRows())
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, main_balance").
			WithArgs(7).
			WillReturnRows(balanceRows(10000, 0, 10000, 0, 2))
		mock.ExpectExec("UPDATE user_balances").
			WithArgs(int64(5000), int64(0), int64(10000), int64(0), sqlmock.AnyArg(), 7, 2).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO ledger_entries").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO user_packages").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/packages/"+testPackageID+"/purchase", nil, "7"))

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "Standard Package")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("purchase beyond the balance is unprocessable", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, price, daily_return, duration_days FROM investment_packages").
			WithArgs(testPackageID).
			WillReturnRows(packageTemplateRows())
		mock.ExpectBegin()
		mock.ExpectQuery("SELECT user_id, main_balance").
			WithArgs(7).
			WillReturnRows(balanceRows(1000, 0, 1000, 0, 2))
		mock.ExpectRollback()

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/packages/"+testPackageID+"/purchase", nil, "7"))

		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown package is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT id, name, price, daily_return, duration_days FROM investment_packages").
			WithArgs("nope").
			WillReturnError(sql.ErrNoRows)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, authedRequest("POST", "/packages/nope/purchase", nil, "7"))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unauthenticated purchase is rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("POST", "/packages/"+testPackageID+"/purchase", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestPackageService_ListPackages(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPackageService(db, NewBalanceService(db))

	mock.ExpectQuery("SELECT id, name, price, daily_return, duration_days, total_return").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "price", "daily_return", "duration_days", "total_return", "description", "is_active", "created_at"}).
			AddRow(testPackageID, "Micro Package", int64(100), int64(41), 2, int64(82), "Perfect starter package for new investors", true, time.Now()))

	req := httptest.NewRequest("GET", "/packages", nil)
	w := httptest.NewRecorder()

	service.ListPackages(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Micro Package")
	assert.NoError(t, mock.ExpectationsWereMet())
}
