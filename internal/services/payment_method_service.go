package services

import (
	"database/sql"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wealthbridge/backend/internal/models"
)

// PaymentMethodService manages the deposit channels users pick from when
// raising a funding request. Methods are soft-disabled, never deleted, so
// historical requests keep their reference.
type PaymentMethodService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewPaymentMethodService(db *sql.DB) *PaymentMethodService {
	return &PaymentMethodService{db: db, validator: NewValidationHelper()}
}

type paymentMethodRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=64" example:"USDT (TRC20)"`
	Identifier string `json:"identifier" validate:"required,min=4,max=256"`
	ImageURL   string `json:"imageUrl" validate:"omitempty,max=512"`
	IsActive   *bool  `json:"isActive"`
}

// ListActive lists methods available for deposits
// @Summary List active payment methods
// @Tags payment-methods
// @Produce json
// @Success 200 {array} models.PaymentMethod
// @Router /payment-methods [get]
func (s *PaymentMethodService) ListActive(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, true)
}

// ListAll lists every method including disabled ones
// @Summary List all payment methods
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.PaymentMethod
// @Router /admin/payment-methods [get]
func (s *PaymentMethodService) ListAll(w http.ResponseWriter, r *http.Request) {
	s.list(w, r, false)
}

func (s *PaymentMethodService) list(w http.ResponseWriter, r *http.Request, activeOnly bool) {
	query := `SELECT id, name, identifier, image_url, is_active, created_at FROM payment_methods`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.QueryContext(r.Context(), query)
	if err != nil {
		log.Printf("[PAYMETHOD] Listing failed: %v", err)
		SendErrorResponse(w, "Failed to list payment methods", http.StatusInternalServerError, nil)
		return
	}
	defer rows.Close()

	methods := []models.PaymentMethod{}
	for rows.Next() {
		var m models.PaymentMethod
		var imageURL sql.NullString
		if err := rows.Scan(&m.ID, &m.Name, &m.Identifier, &imageURL, &m.IsActive, &m.CreatedAt); err != nil {
			log.Printf("[PAYMETHOD] Scan failed: %v", err)
			SendErrorResponse(w, "Failed to list payment methods", http.StatusInternalServerError, nil)
			return
		}
		m.ImageURL = imageURL.String
		methods = append(methods, m)
	}

	SendJSONResponse(w, http.StatusOK, methods)
}

// Create adds a payment method
// @Summary Create a payment method
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body paymentMethodRequest true "Payment method"
// @Success 201 {object} models.PaymentMethod
// @Failure 400 {object} ErrorResponse
// @Router /admin/payment-methods [post]
func (s *PaymentMethodService) Create(w http.ResponseWriter, r *http.Request) {
	var req paymentMethodRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	m := models.PaymentMethod{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Identifier: req.Identifier,
		ImageURL:   req.ImageURL,
		IsActive:   active,
	}
	err := s.db.QueryRowContext(r.Context(), `
		INSERT INTO payment_methods (id, name, identifier, image_url, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING created_at`,
		m.ID, m.Name, m.Identifier, m.ImageURL, m.IsActive).Scan(&m.CreatedAt)
	if err != nil {
		log.Printf("[PAYMETHOD] Create failed: %v", err)
		SendErrorResponse(w, "Failed to create payment method", http.StatusInternalServerError, nil)
		return
	}

	log.Printf("[PAYMETHOD] Created %s (%s)", m.Name, m.ID)
	SendJSONResponse(w, http.StatusCreated, m)
}

// Update edits a payment method
// @Summary Update a payment method
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Payment method ID"
// @Param request body paymentMethodRequest true "Payment method"
// @Success 200 {object} models.PaymentMethod
// @Failure 404 {object} ErrorResponse
// @Router /admin/payment-methods/{id} [put]
func (s *PaymentMethodService) Update(w http.ResponseWriter, r *http.Request) {
	methodID := chi.URLParam(r, "id")

	var req paymentMethodRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	var m models.PaymentMethod
	var imageURL sql.NullString
	err := s.db.QueryRowContext(r.Context(), `
		UPDATE payment_methods
		SET name = $1, identifier = $2, image_url = $3, is_active = $4
		WHERE id = $5
		RETURNING id, name, identifier, image_url, is_active, created_at`,
		req.Name, req.Identifier, req.ImageURL, active, methodID).
		Scan(&m.ID, &m.Name, &m.Identifier, &imageURL, &m.IsActive, &m.CreatedAt)
	if err == sql.ErrNoRows {
		SendDomainError(w, ErrNotFound)
		return
	}
	if err != nil {
		log.Printf("[PAYMETHOD] Update of %s failed: %v", methodID, err)
		SendErrorResponse(w, "Failed to update payment method", http.StatusInternalServerError, nil)
		return
	}
	m.ImageURL = imageURL.String

	log.Printf("[PAYMETHOD] Updated %s (active=%t)", m.ID, m.IsActive)
	SendJSONResponse(w, http.StatusOK, m)
}
