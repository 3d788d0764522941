package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/skip2/go-qrcode"
	"github.com/wealthbridge/backend/internal/config"
)

// QRService renders deposit instructions as scannable codes. The payload
// carries the payment method's receiving identifier and the intended amount;
// a copy is parked in redis so a scan can be confirmed server-side before
// the code expires.
type QRService struct {
	db    *sql.DB
	redis *redis.Client
	cfg   *config.PlatformConfig
}

func NewQRService(db *sql.DB, redisClient *redis.Client, cfg *config.PlatformConfig) *QRService {
	return &QRService{
		db:    db,
		redis: redisClient,
		cfg:   cfg,
	}
}

// GenerateDepositCode builds a QR code for paying into the given method.
// Returns the opaque token and a base64 PNG of the code.
func (s *QRService) GenerateDepositCode(ctx context.Context, userID int, methodID string, amount int64) (string, string, error) {
	if amount <= 0 {
		return "", "", fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	var identifier string
	err := s.db.QueryRowContext(ctx, `SELECT identifier FROM payment_methods WHERE id = $1 AND is_active = true`, methodID).Scan(&identifier)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("%w: payment method %s", ErrNotFound, methodID)
	}
	if err != nil {
		return "", "", err
	}

	payload := map[string]any{
		"userId":     userID,
		"methodId":   methodID,
		"identifier": identifier,
		"amount":     amount,
		"timestamp":  time.Now().Unix(),
		"nonce":      s.generateNonce(),
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", "", err
	}

	token := base64.URLEncoding.EncodeToString(jsonData)

	ttl := s.cfg.QRCodeTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	key := fmt.Sprintf("qr:%s", token)
	if err := s.redis.Set(ctx, key, jsonData, ttl).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(token, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return token, qrImage, nil
}

// ConfirmDepositCode resolves a scanned token back to its deposit
// instruction. Single-use: the parked copy is deleted on first confirm.
func (s *QRService) ConfirmDepositCode(ctx context.Context, token string) (map[string]any, error) {
	key := fmt.Sprintf("qr:%s", token)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired QR code")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return result, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
