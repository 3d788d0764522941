package config

import (
	"os"
	"strconv"
	"time"
)

// PlatformConfig holds the business knobs of the investment platform.
// Amounts are cents.
type PlatformConfig struct {
	MinDepositCents    int64
	MinWithdrawalCents int64
	ReferralBonusCents int64
	AccrualSchedule    string
	StatsCacheTTL      time.Duration
	QRCodeTTL          time.Duration
}

func LoadPlatformConfig() *PlatformConfig {
	return &PlatformConfig{
		MinDepositCents:    getEnvAsInt64("MIN_DEPOSIT_CENTS", 100),
		MinWithdrawalCents: getEnvAsInt64("MIN_WITHDRAWAL_CENTS", 150),
		ReferralBonusCents: getEnvAsInt64("REFERRAL_BONUS_CENTS", 100),
		AccrualSchedule:    getEnv("ACCRUAL_SCHEDULE", "0 0 * * *"),
		StatsCacheTTL:      getEnvAsDuration("STATS_CACHE_TTL", 30*time.Second),
		QRCodeTTL:          getEnvAsDuration("QR_CODE_TTL", 5*time.Minute),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}
