package handler

import (
	"crypto/subtle"

	"phone-rental-gateway/internal/adapter/http/dto"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"
	"phone-rental-gateway/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderWebhookToken authenticates the bank-deposit webhook caller.
const HeaderWebhookToken = "X-Webhook-Token"

// WebhookHandler handles inbound bank-deposit notifications. The bank
// transfer memo must carry the receiving username.
type WebhookHandler struct {
	walletSvc ports.WalletService
	userRepo  ports.UserRepository
	token     string
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(walletSvc ports.WalletService, userRepo ports.UserRepository, token string) *WebhookHandler {
	return &WebhookHandler{walletSvc: walletSvc, userRepo: userRepo, token: token}
}

// BankDeposit handles POST /api/v1/webhook/bank-deposit. Replays of the same
// bank transaction id return the original outcome without a second credit.
func (h *WebhookHandler) BankDeposit(c *gin.Context) {
	if h.token == "" || subtle.ConstantTimeCompare(
		[]byte(c.GetHeader(HeaderWebhookToken)), []byte(h.token)) != 1 {
		response.Error(c, apperror.ErrForbidden())
		return
	}

	var req dto.BankDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	user, err := h.userRepo.GetByUsername(c.Request.Context(), req.Description)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}
	if user == nil {
		response.Error(c, apperror.ErrNotFound("người nhận"))
		return
	}

	result, err := h.walletSvc.Deposit(c.Request.Context(), ports.DepositParams{
		UserID:      user.ID,
		Amount:      req.Amount,
		Reference:   "deposit:" + req.BankTxnID,
		Description: "Nạp tiền từ " + req.AccountNumber,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.BankDepositResponse{
		TransactionID: result.Transaction.ID.String(),
		Duplicate:     result.Duplicate,
	})
}
