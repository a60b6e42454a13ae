package handler

import (
	"time"

	"phone-rental-gateway/internal/adapter/http/dto"
	"phone-rental-gateway/internal/adapter/http/middleware"
	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"
	"phone-rental-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// RentalHandler handles the phone-rental endpoints.
type RentalHandler struct {
	rentalSvc ports.RentalService
}

// NewRentalHandler creates a new RentalHandler.
func NewRentalHandler(rentalSvc ports.RentalService) *RentalHandler {
	return &RentalHandler{rentalSvc: rentalSvc}
}

// StartRental handles POST /api/v1/phone-rental/start.
func (h *RentalHandler) StartRental(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.StartRentalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.rentalSvc.StartRental(c.Request.Context(), ports.StartRentalParams{
		UserID:  userID,
		Tier:    domain.RentalTier(req.Tier),
		Carrier: req.Carrier,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.StartRentalResponse{
		SessionID:   result.SessionID,
		PhoneNumber: result.PhoneNumber,
		ExpiresAt:   result.ExpiresAt.UTC().Format(time.RFC3339),
		Cost:        result.Cost,
	})
}

// GetOtp handles GET /api/v1/phone-rental/get-otp?sessionId=...
func (h *RentalHandler) GetOtp(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	sessionID := c.Query("sessionId")
	if sessionID == "" {
		response.Error(c, apperror.Validation("thiếu sessionId"))
		return
	}

	result, err := h.rentalSvc.GetOtp(c.Request.Context(), userID, sessionID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.OtpPollResponse{
		Status:   result.Status,
		Otp:      result.Otp,
		Message:  result.Message,
		Refunded: result.Refunded,
	})
}

// ActiveSessions handles POST /api/v1/phone-rental/active-sessions. The
// listing doubles as a reaper trigger for the caller's overdue sessions.
func (h *RentalHandler) ActiveSessions(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	sessions, err := h.rentalSvc.ActiveSessions(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"sessions": sessions})
}
