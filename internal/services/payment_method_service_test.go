package services

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestPaymentMethodService_ListActive(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPaymentMethodService(db)

	mock.ExpectQuery("SELECT id, name, identifier, image_url, is_active, created_at FROM payment_methods WHERE is_active = true").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "identifier", "image_url", "is_active", "created_at"}).
			AddRow(testMethodID, "USDT (TRC20)", "TXk2...9fQ", nil, true, time.Now()))

	req := httptest.NewRequest("GET", "/payment-methods", nil)
	w := httptest.NewRecorder()

	service.ListActive(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "USDT (TRC20)")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentMethodService_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewPaymentMethodService(db)

	t.Run("creates an active method", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO payment_methods").
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

		body := []byte(`{"name": "Bitcoin", "identifier": "bc1qxyz0123"}`)
		req := httptest.NewRequest("POST", "/admin/payment-methods", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Create(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), "Bitcoin")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("name too short is rejected", func(t *testing.T) {
		body := []byte(`{"name": "B", "identifier": "bc1qxyz0123"}`)
		req := httptest.NewRequest("POST", "/admin/payment-methods", bytes.NewBuffer(body))
		w := httptest.NewRecorder()

		service.Create(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}
