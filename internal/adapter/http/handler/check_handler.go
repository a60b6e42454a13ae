package handler

import (
	"phone-rental-gateway/internal/adapter/http/dto"
	"phone-rental-gateway/internal/adapter/http/middleware"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"
	"phone-rental-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// CheckHandler handles the rapid-shipper lookup and the free bulk checks.
type CheckHandler struct {
	rapidSvc   ports.RapidCheckService
	accountSvc ports.AccountService
}

// NewCheckHandler creates a new CheckHandler.
func NewCheckHandler(rapidSvc ports.RapidCheckService, accountSvc ports.AccountService) *CheckHandler {
	return &CheckHandler{rapidSvc: rapidSvc, accountSvc: accountSvc}
}

// RapidCheck handles POST /api/v1/cookie-rapid-check.
func (h *CheckHandler) RapidCheck(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.RapidCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.rapidSvc.Check(c.Request.Context(), userID, req.Cookie)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, result)
}

// TrackingBulk handles POST /api/v1/tracking-checks/bulk.
func (h *CheckHandler) TrackingBulk(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.BulkCookiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	entries := h.accountSvc.CheckTracking(c.Request.Context(), userID, req.Cookies)
	response.OK(c, gin.H{"entries": entries})
}

// AccountBulk handles POST /api/v1/account-check/bulk.
func (h *CheckHandler) AccountBulk(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.BulkCookiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	entries := h.accountSvc.CheckAccounts(c.Request.Context(), userID, req.Cookies)
	response.OK(c, gin.H{"entries": entries})
}
