package handler

import (
	"phone-rental-gateway/internal/adapter/http/dto"
	"phone-rental-gateway/internal/adapter/http/middleware"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"
	"phone-rental-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// VoucherHandler handles the voucher-saving endpoint.
type VoucherHandler struct {
	voucherSvc ports.VoucherService
}

// NewVoucherHandler creates a new VoucherHandler.
func NewVoucherHandler(voucherSvc ports.VoucherService) *VoucherHandler {
	return &VoucherHandler{voucherSvc: voucherSvc}
}

// SaveVouchers handles POST /api/v1/voucher-saving. Cookies pass through
// unsanitized; escaping would corrupt them.
func (h *VoucherHandler) SaveVouchers(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.VoucherSaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	results, err := h.voucherSvc.SaveVouchers(c.Request.Context(), userID, req.SessionID, req.Cookies)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"results": results})
}
