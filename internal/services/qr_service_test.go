package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/wealthbridge/backend/internal/config"
)

func TestQRService_GenerateDepositCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, _ := redismock.NewClientMock()
	service := NewQRService(db, redisClient, config.LoadPlatformConfig())

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		_, _, err := service.GenerateDepositCode(context.Background(), 7, testMethodID, 0)
		assert.ErrorIs(t, err, ErrInvalidAmount)

		_, _, err = service.GenerateDepositCode(context.Background(), 7, testMethodID, -500)
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("unknown payment method is not found", func(t *testing.T) {
		mock.ExpectQuery("SELECT identifier FROM payment_methods").
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		_, _, err := service.GenerateDepositCode(context.Background(), 7, "missing", 5000)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestQRService_ConfirmDepositCode(t *testing.T) {
	db, _, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	redisClient, redisMock := redismock.NewClientMock()
	service := NewQRService(db, redisClient, config.LoadPlatformConfig())

	payload := `{"userId":7,"methodId":"` + testMethodID + `","identifier":"TXk2...9fQ","amount":5000}`

	t.Run("valid code resolves once", func(t *testing.T) {
		redisMock.ExpectGet("qr:token-1").SetVal(payload)
		redisMock.ExpectDel("qr:token-1").SetVal(1)

		result, err := service.ConfirmDepositCode(context.Background(), "token-1")
		assert.NoError(t, err)
		assert.Equal(t, float64(5000), result["amount"])
		assert.Equal(t, testMethodID, result["methodId"])
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		redisMock.ExpectGet("qr:token-2").RedisNil()

		_, err := service.ConfirmDepositCode(context.Background(), "token-2")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid or expired")
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}
