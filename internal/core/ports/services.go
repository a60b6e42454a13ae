package ports

import (
	"context"
	"time"

	"phone-rental-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// --- Wallet ledger (charge / refund / credit) ---

// ChargeParams describes a wallet debit. Amount is positive VND.
type ChargeParams struct {
	UserID      uuid.UUID
	Amount      int64
	Reference   string // Optional idempotency reference
	Type        domain.TransactionType
	Description string
}

// RefundParams describes a wallet credit reversing an earlier charge.
type RefundParams struct {
	UserID      uuid.UUID
	Amount      int64
	Reference   string
	Description string
	LinkedTxnID *uuid.UUID // The charge being reversed
}

// DepositParams credits a wallet from a confirmed bank transfer. Reference
// carries the bank transaction id, making replayed webhooks single-shot.
type DepositParams struct {
	UserID      uuid.UUID
	Amount      int64
	Reference   string
	Description string
}

// AdjustParams is an operator-initiated signed balance change.
type AdjustParams struct {
	UserID     uuid.UUID
	Amount     int64 // Signed; negative removes funds
	Reason     string
	OperatorID uuid.UUID
}

// WalletResult is the outcome of a wallet primitive.
type WalletResult struct {
	Transaction  *domain.Transaction
	BalanceAfter int64
	// Duplicate is true when the reference had already produced a completed
	// transaction; Transaction then holds the prior outcome and no side
	// effect occurred.
	Duplicate bool
}

// WalletService owns the ledger. All primitives are atomic with respect to
// the user row; concurrent callers serialize on the row lock.
type WalletService interface {
	Charge(ctx context.Context, p ChargeParams) (*WalletResult, error)
	Refund(ctx context.Context, p RefundParams) (*WalletResult, error)
	Deposit(ctx context.Context, p DepositParams) (*WalletResult, error)
	AdminAdjust(ctx context.Context, p AdjustParams) (*WalletResult, error)
	Balance(ctx context.Context, userID uuid.UUID) (int64, error)
}

// --- Rental orchestration ---

// StartRentalParams opens a new rental session.
type StartRentalParams struct {
	UserID  uuid.UUID
	Tier    domain.RentalTier
	Carrier string
}

// StartRentalResult is returned to the caller after allocation.
type StartRentalResult struct {
	SessionID   string
	PhoneNumber string
	ExpiresAt   time.Time
	Cost        int64
}

// OtpPollResult is one get-otp poll outcome for a session.
type OtpPollResult struct {
	Status   string // waiting | completed | expired | error
	Otp      string
	Message  string
	Refunded bool
}

// RentalService drives the session state machine.
type RentalService interface {
	StartRental(ctx context.Context, p StartRentalParams) (*StartRentalResult, error)
	GetOtp(ctx context.Context, userID uuid.UUID, sessionID string) (*OtpPollResult, error)
	// ActiveSessions lists the caller's live sessions and reaps any that
	// already expired.
	ActiveSessions(ctx context.Context, userID uuid.UUID) ([]domain.RentalSession, error)
	// ExpireSession is the reaper entry point for one session.
	ExpireSession(ctx context.Context, sessionID string) error
	// RetryRefund re-attempts the refund of an EXPIRED session whose earlier
	// refund did not commit. The deterministic reference keeps it single-shot.
	RetryRefund(ctx context.Context, sessionID string) error
}

// --- Voucher pipeline ---

// VoucherCookieResult is the per-cookie outcome of a voucher-saving run.
type VoucherCookieResult struct {
	OperationID     uuid.UUID `json:"operation_id"`
	CookiePreview   string    `json:"cookie_preview"`
	Status          string    `json:"status"`
	TotalFound      int       `json:"total_found"`
	SuccessfulSaves int       `json:"successful_saves"`
	FailedSaves     int       `json:"failed_saves"`
	Message         string    `json:"message"`
	Refunded        bool      `json:"refunded"`
}

// VoucherService runs claim attempts for each submitted cookie.
type VoucherService interface {
	SaveVouchers(ctx context.Context, userID uuid.UUID, sessionID string, cookies []string) ([]VoucherCookieResult, error)
}

// --- Rapid-shipper lookup ---

// RapidCheckResult is the response of one rapid check.
type RapidCheckResult struct {
	Status        bool                  `json:"status"`
	Message       string                `json:"message"`
	DriverPhone   *string               `json:"driver_phone,omitempty"`
	DriverName    *string               `json:"driver_name,omitempty"`
	VehiclePlate  *string               `json:"vehicle_plate,omitempty"`
	Charged       bool                  `json:"charged"`
	AmountCharged int64                 `json:"amount_charged"`
	IsFromHistory bool                  `json:"is_from_history"`
	Orders        []PlatformOrderDetail `json:"orders"`
}

// RapidCheckService performs the dedup-cached shipper lookup.
type RapidCheckService interface {
	Check(ctx context.Context, userID uuid.UUID, cookie string) (*RapidCheckResult, error)
}

// --- Bulk account / tracking checks ---

// AccountCheckEntry is one cookie's account-check outcome.
type AccountCheckEntry struct {
	CookiePreview string           `json:"cookie_preview"`
	Status        bool             `json:"status"`
	Message       string           `json:"message"`
	Account       *PlatformAccount `json:"account,omitempty"`
}

// TrackingCheckEntry is one cookie's order-tracking outcome.
type TrackingCheckEntry struct {
	CookiePreview string                `json:"cookie_preview"`
	Status        bool                  `json:"status"`
	Message       string                `json:"message"`
	Orders        []PlatformOrderDetail `json:"orders"`
}

// AccountService serves the bulk account-check and tracking-check endpoints.
type AccountService interface {
	CheckAccounts(ctx context.Context, userID uuid.UUID, cookies []string) []AccountCheckEntry
	CheckTracking(ctx context.Context, userID uuid.UUID, cookies []string) []TrackingCheckEntry
}

// --- Pricing ---

// PriceService resolves the current price of an operation kind. Prices are
// snapshotted into transactions; a lookup is immutable per request.
type PriceService interface {
	Price(ctx context.Context, serviceKey string) (int64, error)
}

// --- Auth (inbound contract; verification itself is a collaborator) ---

// AuthService authenticates users and issues tokens.
type AuthService interface {
	Login(ctx context.Context, username, password string) (string, time.Time, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(userID uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// --- Audit ---

// AuditService appends to the activity log (fire-and-forget).
type AuditService interface {
	Log(ctx context.Context, entry *domain.ActivityLog)
}

// --- Caching ---

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CatalogueCache stores the voucher catalogue blob with TTL.
type CatalogueCache interface {
	Get(ctx context.Context) ([]byte, error) // nil when absent/expired
	Set(ctx context.Context, blob []byte, ttl time.Duration) error
}

// PollThrottle enforces a minimum spacing between repeated polls of one key.
// Allow returns (false, remaining) when the key was touched within interval.
type PollThrottle interface {
	Allow(ctx context.Context, key string, interval time.Duration) (bool, time.Duration, error)
}
