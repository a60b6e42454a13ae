package handler

import (
	"context"

	"phone-rental-gateway/internal/adapter/http/dto"
	"phone-rental-gateway/internal/adapter/http/middleware"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"
	"phone-rental-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ProxyPool is the slice of the pool the admin surface needs.
type ProxyPool interface {
	CheckAll(ctx context.Context) (total, healthy int, err error)
	Usable() int
}

// ProviderSweep enumerates providers for the balance sweep.
type ProviderSweep interface {
	All() []ports.SMSProvider
}

// AdminHandler handles operator-only endpoints.
type AdminHandler struct {
	walletSvc ports.WalletService
	activity  ports.ActivityRepository
	pool      ProxyPool
	providers ProviderSweep
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	walletSvc ports.WalletService,
	activity ports.ActivityRepository,
	pool ProxyPool,
	providers ProviderSweep,
) *AdminHandler {
	return &AdminHandler{
		walletSvc: walletSvc,
		activity:  activity,
		pool:      pool,
		providers: providers,
	}
}

// AdjustBalance handles POST /api/v1/admin/users/:id/adjust-balance.
func (h *AdminHandler) AdjustBalance(c *gin.Context) {
	operatorID, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	targetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.Validation("id người dùng không hợp lệ"))
		return
	}

	var req dto.AdjustBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	result, err := h.walletSvc.AdminAdjust(c.Request.Context(), ports.AdjustParams{
		UserID:     targetID,
		Amount:     req.Amount,
		Reason:     req.Reason,
		OperatorID: operatorID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.AdjustBalanceResponse{
		TransactionID: result.Transaction.ID.String(),
		BalanceAfter:  result.BalanceAfter,
	})
}

// ProxiesHealthCheck handles POST /api/v1/admin/proxies/health-check. It
// runs the per-entry liveness sweep, which persists each verdict and reloads
// the working set.
func (h *AdminHandler) ProxiesHealthCheck(c *gin.Context) {
	total, healthy, err := h.pool.CheckAll(c.Request.Context())
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	response.OK(c, dto.ProxyHealthResponse{
		Total:   total,
		Healthy: healthy,
		Usable:  h.pool.Usable(),
	})
}

// ActivityLog handles GET /api/v1/admin/activity-log?urgent=&page=&page_size=.
func (h *AdminHandler) ActivityLog(c *gin.Context) {
	page, pageSize := paging(c)
	urgentOnly := c.Query("urgent") == "true"

	entries, total, err := h.activity.List(c.Request.Context(), urgentOnly, page, pageSize)
	if err != nil {
		response.Error(c, apperror.ErrDatabaseError(err))
		return
	}

	response.OK(c, dto.TransactionListResponse{
		Items:      entries,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	})
}

// ProviderBalances handles GET /api/v1/admin/provider-balances: a live sweep
// across every configured SMS provider.
func (h *AdminHandler) ProviderBalances(c *gin.Context) {
	providers := h.providers.All()
	entries := make([]dto.ProviderBalanceEntry, 0, len(providers))
	for _, p := range providers {
		entry := dto.ProviderBalanceEntry{Provider: p.Name()}
		balance, err := p.Balance(c.Request.Context())
		if err != nil {
			entry.Error = err.Error()
		} else {
			entry.Balance = balance
		}
		entries = append(entries, entry)
	}

	response.OK(c, gin.H{"providers": entries})
}
