package ports

import (
	"context"
	"errors"
)

// Sentinel upstream conditions the orchestrator branches on.
var (
	// ErrProviderOutOfBalance aborts number acquisition immediately; the
	// provider-side account cannot pay for more numbers. Never retried.
	ErrProviderOutOfBalance = errors.New("provider balance exhausted")

	// ErrCancelNotSupported is returned by providers without a cancellation
	// endpoint; rejected numbers are simply abandoned there.
	ErrCancelNotSupported = errors.New("provider does not support cancellation")
)

// OtpState is the normalized provider-side OTP status.
type OtpState string

const (
	OtpCompleted OtpState = "completed"
	OtpWaiting   OtpState = "waiting"
	OtpExpired   OtpState = "expired"
	OtpError     OtpState = "error"
)

// NumberResult is a successful number acquisition from a provider.
type NumberResult struct {
	RequestID   string
	PhoneNumber string
	Raw         []byte // Full provider response, persisted opaquely
}

// OtpResult is one OTP poll outcome.
type OtpResult struct {
	State     OtpState
	Code      string // Set when State == OtpCompleted
	Retryable bool   // For State == OtpError: transient vs terminal
	Raw       []byte
}

// SMSProvider is one upstream rental provider. The set of implementations is
// closed; each encodes carriers differently (strings, numeric ids, bit-flags).
type SMSProvider interface {
	Name() string
	// RequestNumber asks for a fresh number for the given carrier selector.
	// Returns ErrProviderOutOfBalance when the provider account cannot pay.
	RequestNumber(ctx context.Context, carrier string) (*NumberResult, error)
	// CancelNumber releases a rejected number where the provider supports it.
	CancelNumber(ctx context.Context, requestID string) error
	// GetOtp polls the provider for the OTP of a pending request.
	GetOtp(ctx context.Context, requestID string) (*OtpResult, error)
	// Balance reports the remaining provider-side balance in VND.
	Balance(ctx context.Context) (int64, error)
}

// PlatformOrder is one row of the platform order list.
type PlatformOrder struct {
	OrderID    string `json:"order_id"`
	FinalTotal int64  `json:"final_total"`
}

// PlatformShipper is driver/vehicle data extracted from an order detail.
type PlatformShipper struct {
	DriverPhone  string `json:"driver_phone,omitempty"`
	DriverName   string `json:"driver_name,omitempty"`
	VehiclePlate string `json:"vehicle_plate,omitempty"`
}

// PlatformOrderDetail is the enriched per-order payload.
type PlatformOrderDetail struct {
	OrderID      string          `json:"order_id"`
	ShippingName string          `json:"shipping_name,omitempty"`
	Address      string          `json:"address,omitempty"`
	Shipper      PlatformShipper `json:"shipper"`
	InfoRows     []string        `json:"info_rows,omitempty"`
}

// PlatformAccount is the account-info payload.
type PlatformAccount struct {
	UserID   int64  `json:"userid"`
	Username string `json:"username"`
	Nickname string `json:"nickname"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	ShopID   int64  `json:"shopid"`
	CTime    int64  `json:"ctime"`
}

// PlatformVoucher is one catalogue entry eligible for claiming.
type PlatformVoucher struct {
	PromotionID string `json:"voucher_promotionid"`
	Code        string `json:"voucher_code"`
	Signature   string `json:"signature"`
}

// PlatformClient is the e-commerce platform surface the pipelines consume.
// Any call may fail with apperror.ErrCookieExpired (semantic, not retried).
type PlatformClient interface {
	// IsPhoneRegistered probes whether a number already has an account.
	IsPhoneRegistered(ctx context.Context, phoneNumber string) (bool, error)
	// RecentOrders lists the newest orders for a logged-in cookie.
	RecentOrders(ctx context.Context, cookie string, limit int) ([]PlatformOrder, error)
	// OrderDetail fetches shipping/driver enrichment for one order.
	OrderDetail(ctx context.Context, cookie, orderID string) (*PlatformOrderDetail, error)
	// AccountInfo returns the account payload and the refreshed SPC_F cookie.
	AccountInfo(ctx context.Context, cookie string) (*PlatformAccount, string, error)
	// VoucherCatalogue fetches the raw catalogue. withProxy routes the call
	// through the proxy pool (used on the retry pass).
	VoucherCatalogue(ctx context.Context, cookie string, withProxy bool) ([]PlatformVoucher, error)
	// SaveVoucher posts one claim; returns the platform error code (0 = saved).
	SaveVoucher(ctx context.Context, cookie string, voucher PlatformVoucher) (int, error)
}
