package handler

import (
	"phone-rental-gateway/internal/adapter/http/middleware"
	"phone-rental-gateway/internal/antispam"
	"phone-rental-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc      ports.AuthService
	RentalSvc    ports.RentalService
	VoucherSvc   ports.VoucherService
	RapidSvc     ports.RapidCheckService
	AccountSvc   ports.AccountService
	WalletSvc    ports.WalletService
	TokenSvc     ports.TokenService
	UserRepo     ports.UserRepository
	TxRepo       ports.TransactionRepository
	ActivityRepo ports.ActivityRepository
	ProxyPool    ProxyPool
	Providers    ProviderSweep
	Limiter      *antispam.Limiter // nil = anti-spam disabled
	AuditSvc     ports.AuditService
	WebhookToken string
	Checkers     []ports.HealthChecker
	Logger       zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.Checkers...))

	// Per-service anti-spam; noop when the limiter is disabled.
	spam := func(serviceKey string) gin.HandlerFunc {
		if deps.Limiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.AntiSpam(deps.Limiter, serviceKey, deps.AuditSvc, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	v1.POST("/auth/login", authHandler.Login)

	webhookHandler := NewWebhookHandler(deps.WalletSvc, deps.UserRepo, deps.WebhookToken)
	v1.POST("/webhook/bank-deposit", webhookHandler.BankDeposit)

	// --- Authenticated routes (JWT or API key) ---
	authed := v1.Group("", middleware.Authenticate(deps.TokenSvc, deps.UserRepo, deps.Logger))

	rentalHandler := NewRentalHandler(deps.RentalSvc)
	rental := authed.Group("/phone-rental")
	{
		rental.POST("/start", spam("phone_rental"), rentalHandler.StartRental)
		rental.GET("/get-otp", rentalHandler.GetOtp)
		rental.POST("/active-sessions", rentalHandler.ActiveSessions)
	}

	voucherHandler := NewVoucherHandler(deps.VoucherSvc)
	authed.POST("/voucher-saving", spam("voucher_save"), voucherHandler.SaveVouchers)

	checkHandler := NewCheckHandler(deps.RapidSvc, deps.AccountSvc)
	authed.POST("/cookie-rapid-check", spam("rapid_check"), checkHandler.RapidCheck)
	authed.POST("/tracking-checks/bulk", spam("tracking_check"), checkHandler.TrackingBulk)
	authed.POST("/account-check/bulk", spam("account_check"), checkHandler.AccountBulk)

	walletHandler := NewWalletHandler(deps.WalletSvc, deps.TxRepo)
	wallet := authed.Group("/wallet")
	{
		wallet.GET("/balance", walletHandler.GetBalance)
		wallet.GET("/transactions", walletHandler.ListTransactions)
	}

	// --- Admin routes ---
	adminHandler := NewAdminHandler(deps.WalletSvc, deps.ActivityRepo, deps.ProxyPool, deps.Providers)
	admin := authed.Group("/admin", middleware.RequireAdmin())
	{
		admin.POST("/users/:id/adjust-balance", adminHandler.AdjustBalance)
		admin.POST("/proxies/health-check", adminHandler.ProxiesHealthCheck)
		admin.GET("/activity-log", adminHandler.ActivityLog)
		admin.GET("/provider-balances", adminHandler.ProviderBalances)
	}

	return r
}
