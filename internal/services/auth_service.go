package services

import (
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/viper"
	"github.com/wealthbridge/backend/internal/models"
	"golang.org/x/crypto/argon2"
)

type AuthService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *validator.Validate
	referrals *ReferralService
}

// LoginRequest represents the login request payload
// @Description Login request structure
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email" example:"user@example.com"`
	Password string `json:"password" validate:"required,min=6" example:"password123"`
}

// RegisterRequest represents the registration request payload
// @Description Registration request structure
type RegisterRequest struct {
	Email        string `json:"email" validate:"required,email" example:"user@example.com"`
	Password     string `json:"password" validate:"required,min=6" example:"password123"`
	FullName     string `json:"fullName" validate:"required,min=2" example:"John Doe"`
	Phone        string `json:"phone,omitempty" validate:"omitempty,min=6,max=20"`
	Country      string `json:"country,omitempty" validate:"omitempty,len=2"`
	ReferralCode string `json:"referralCode,omitempty" validate:"omitempty,min=4,max=16"`
}

// AuthResponse represents the authentication response
// @Description Authentication response structure
type AuthResponse struct {
	Token string      `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	User  models.User `json:"user"`
}

func NewAuthService(db *sql.DB, redisClient *redis.Client, referrals *ReferralService) *AuthService {
	return &AuthService{
		db:        db,
		redis:     redisClient,
		validator: validator.New(),
		referrals: referrals,
	}
}

// Register handles user registration
// @Summary Register a new user
// @Description Registers a user, creates a zero balance row and an optional referral record
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration request"
// @Success 200 {object} AuthResponse "Registration successful"
// @Failure 400 {object} ErrorResponse
// @Failure 409 {string} string "Email already exists"
// @Router /auth/register [post]
func (s *AuthService) Register(w http.ResponseWriter, r *http.Request) {
	log.Printf("[AUTH] Registration attempt from IP: %s", r.RemoteAddr)

	var req RegisterRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		log.Printf("[AUTH] Registration failed - invalid request: %v", err)
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		log.Printf("[AUTH] Registration validation failed: %v", err)
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var referrerID *int
	if req.ReferralCode != "" {
		id, err := s.referrals.ResolveCode(r.Context(), req.ReferralCode)
		if err != nil {
			SendErrorResponse(w, "Unknown referral code", http.StatusBadRequest, nil)
			return
		}
		referrerID = &id
	}

	hashedPassword, err := hashPassword(req.Password)
	if err != nil {
		log.Printf("[AUTH] Password hashing failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "An Internal Error Occurred", http.StatusInternalServerError, nil)
		return
	}

	tx, err := s.db.Begin()
	if err != nil {
		log.Printf("[AUTH] Transaction start failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}
	defer tx.Rollback()

	referralCode := GenerateCode()

	var userID int
	err = tx.QueryRow(`
		INSERT INTO users (email, password, full_name, phone, country, role, status, referral_code, referred_by)
		VALUES ($1, $2, $3, $4, $5, 'user', 'active', $6, $7) RETURNING id`,
		strings.ToLower(req.Email), hashedPassword, req.FullName, req.Phone, req.Country, referralCode, referrerID).Scan(&userID)
	if err != nil {
		log.Printf("[AUTH] User creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Email Already Exists", http.StatusConflict, nil)
		return
	}

	_, err = tx.Exec(`
		INSERT INTO user_balances (user_id, main_balance, referral_balance, total_deposited, total_withdrawn, version, updated_at)
		VALUES ($1, 0, 0, 0, 0, 1, NOW())`, userID)
	if err != nil {
		log.Printf("[AUTH] Balance row creation failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
		return
	}

	if referrerID != nil {
		if err := s.referrals.createRecordTx(tx, *referrerID, userID); err != nil {
			log.Printf("[AUTH] Referral record creation failed for %s: %v", req.Email, err)
			SendErrorResponse(w, "Failed to create account", http.StatusInternalServerError, nil)
			return
		}
	}

	if err = tx.Commit(); err != nil {
		log.Printf("[AUTH] Transaction commit failed for %s: %v", req.Email, err)
		SendErrorResponse(w, "Failed to create user", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] User created successfully - ID: %d, Email: %s", userID, req.Email)

	token, err := generateJWT(userID, models.RoleUser)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	SendJSONResponse(w, http.StatusOK, AuthResponse{
		Token: token,
		User: models.User{
			ID:           userID,
			Email:        strings.ToLower(req.Email),
			FullName:     req.FullName,
			Phone:        req.Phone,
			Country:      req.Country,
			Role:         models.RoleUser,
			Status:       models.UserStatusActive,
			ReferralCode: referralCode,
			ReferredBy:   referrerID,
		},
	})
}

// Login handles user login
// @Summary Log in
// @Description Authenticates by email and password with a failed-attempt lockout
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login request"
// @Success 200 {object} AuthResponse "Login successful"
// @Failure 401 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /auth/login [post]
func (s *AuthService) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.Struct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	var user models.User
	var hashedPassword string
	err := s.db.QueryRow(`
		SELECT id, email, full_name, role, status, referral_code, password, failed_login_attempts, locked_until
		FROM users WHERE email = $1`, strings.ToLower(req.Email)).
		Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &user.Status, &user.ReferralCode, &hashedPassword, &user.FailedLoginAttempts, &user.LockedUntil)
	if err != nil {
		log.Printf("[AUTH] Login failed - user not found: %s", req.Email)
		SendErrorResponse(w, "Invalid email or password", http.StatusUnauthorized, nil)
		return
	}

	if user.Status == models.UserStatusSuspended {
		SendErrorResponse(w, "Account suspended", http.StatusForbidden, nil)
		return
	}

	if user.LockedUntil != nil && user.LockedUntil.After(time.Now()) {
		SendErrorResponse(w, "Account temporarily locked, try again later", http.StatusForbidden, nil)
		return
	}

	if !verifyPassword(req.Password, hashedPassword) {
		s.recordFailedLogin(&user)
		SendErrorResponse(w, "Invalid email or password", http.StatusUnauthorized, nil)
		return
	}

	_, err = s.db.Exec(`UPDATE users SET failed_login_attempts = 0, locked_until = NULL, last_login = NOW() WHERE id = $1`, user.ID)
	if err != nil {
		log.Printf("[AUTH] Failed to reset login attempts for user %d: %v", user.ID, err)
	}

	token, err := generateJWT(user.ID, user.Role)
	if err != nil {
		log.Printf("[AUTH] JWT generation failed for user %d: %v", user.ID, err)
		SendErrorResponse(w, "Failed to generate token", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[AUTH] User %d logged in", user.ID)
	SendJSONResponse(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Logout revokes the presented token
// @Summary Log out
// @Description Blacklists the bearer token until it would have expired
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]string
// @Router /auth/logout [post]
func (s *AuthService) Logout(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		SendErrorResponse(w, "Invalid authorization header", http.StatusBadRequest, nil)
		return
	}

	if s.redis != nil {
		ttl := time.Duration(viper.GetInt("jwt.expiry_hours")) * time.Hour
		if err := s.redis.Set(r.Context(), "revoked:"+parts[1], "1", ttl).Err(); err != nil {
			log.Printf("[AUTH] Token revocation failed: %v", err)
		}
	}

	SendJSONResponse(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// GetUserAccount returns the caller's profile
// @Summary Get own account
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} ErrorResponse
// @Router /auth/account [get]
func (s *AuthService) GetUserAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var user models.User
	var phone, country sql.NullString
	err := s.db.QueryRow(`
		SELECT id, email, full_name, phone, country, role, status, referral_code, referred_by, last_login, created_at, updated_at
		FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Email, &user.FullName, &phone, &country, &user.Role, &user.Status, &user.ReferralCode, &user.ReferredBy, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		log.Printf("[AUTH] Account lookup failed for user %d: %v", userID, err)
		SendErrorResponse(w, "Account not found", http.StatusNotFound, nil)
		return
	}
	user.Phone = phone.String
	user.Country = country.String

	SendJSONResponse(w, http.StatusOK, user)
}

const maxFailedLogins = 5

func (s *AuthService) recordFailedLogin(user *models.User) {
	attempts := user.FailedLoginAttempts + 1
	if attempts >= maxFailedLogins {
		lockUntil := time.Now().Add(15 * time.Minute)
		_, err := s.db.Exec(`UPDATE users SET failed_login_attempts = $1, locked_until = $2 WHERE id = $3`, attempts, lockUntil, user.ID)
		if err != nil {
			log.Printf("[AUTH] Failed to lock account %d: %v", user.ID, err)
		}
		log.Printf("[AUTH] Account %d locked after %d failed attempts", user.ID, attempts)
		return
	}
	if _, err := s.db.Exec(`UPDATE users SET failed_login_attempts = $1 WHERE id = $2`, attempts, user.ID); err != nil {
		log.Printf("[AUTH] Failed to record login attempt for user %d: %v", user.ID, err)
	}
}

func hashPassword(password string) (string, error) {
	saltLength := viper.GetInt("argon2.salt_length")
	if saltLength == 0 {
		saltLength = 16
	}
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	timeCost := uint32(viper.GetInt("argon2.time"))
	if timeCost == 0 {
		timeCost = 1
	}
	memory := uint32(viper.GetInt("argon2.memory"))
	if memory == 0 {
		memory = 64 * 1024
	}
	threads := uint8(viper.GetInt("argon2.threads"))
	if threads == 0 {
		threads = 4
	}
	keyLength := uint32(viper.GetInt("argon2.key_length"))
	if keyLength == 0 {
		keyLength = 32
	}

	hash := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, keyLength)

	return fmt.Sprintf("%s$%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash)), nil
}

func verifyPassword(password, encoded string) bool {
	parts := strings.Split(encoded, "$")
	if len(parts) != 2 {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return false
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false
	}

	timeCost := uint32(viper.GetInt("argon2.time"))
	if timeCost == 0 {
		timeCost = 1
	}
	memory := uint32(viper.GetInt("argon2.memory"))
	if memory == 0 {
		memory = 64 * 1024
	}
	threads := uint8(viper.GetInt("argon2.threads"))
	if threads == 0 {
		threads = 4
	}

	hash := argon2.IDKey([]byte(password), salt, timeCost, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(hash, expected) == 1
}

func generateJWT(userID int, role string) (string, error) {
	expiryHours := viper.GetInt("jwt.expiry_hours")
	if expiryHours == 0 {
		expiryHours = 24
	}

	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Duration(expiryHours) * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(viper.GetString("jwt.secret_key")))
}
