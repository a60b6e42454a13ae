package ports

import (
	"context"
	"errors"
	"time"

	"phone-rental-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ErrDuplicateReference is returned by transaction and idempotency writes
// when the reference key already has a committed row.
var ErrDuplicateReference = errors.New("duplicate reference")

// UserRepository defines persistence operations for users.
// Methods accepting pgx.Tx run inside wallet-serializing transactions.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByAPIKey(ctx context.Context, apiKey string) (*domain.User, error)
	// GetByIDForUpdate locks the user row (SELECT ... FOR UPDATE). Wallet
	// primitives rely on this lock to serialize per-user balance changes.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
	UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, newBalance int64) error
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error)
}

// IdempotencyRepository defines persistence for the idempotency index.
// Writes are co-located with transaction writes in the same database tx.
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
}

// RentalSessionRepository defines persistence for rental sessions. Status
// transitions use compare-and-set so no two transitions commit concurrently.
type RentalSessionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, s *domain.RentalSession) error
	GetByID(ctx context.Context, sessionID string) (*domain.RentalSession, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.RentalSession, error)
	// ListExpired returns WAITING/ALLOCATED sessions past their deadline.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.RentalSession, error)
	// ListRefundPending returns EXPIRED/FAILED sessions whose refund
	// reference has no committed ledger entry yet.
	ListRefundPending(ctx context.Context, limit int) ([]domain.RentalSession, error)
	// MarkAllocated performs the WAITING → ALLOCATED transition. Returns
	// false when the session was not in WAITING (lost the race).
	MarkAllocated(ctx context.Context, sessionID, phoneNumber, providerRequestID string, providerResponse []byte) (bool, error)
	// MarkCompleted performs the ALLOCATED → COMPLETED transition with the OTP.
	MarkCompleted(ctx context.Context, sessionID, otpCode string) (bool, error)
	// TransitionStatus moves the session to a terminal state if its current
	// status is one of from. Returns false when no row matched.
	TransitionStatus(ctx context.Context, sessionID string, from []domain.SessionStatus, to domain.SessionStatus) (bool, error)
}

// VoucherRepository defines persistence for voucher operations.
type VoucherRepository interface {
	CreateOperation(ctx context.Context, tx pgx.Tx, op *domain.VoucherOperation) error
	GetOperation(ctx context.Context, id uuid.UUID) (*domain.VoucherOperation, error)
	UpdateOperation(ctx context.Context, op *domain.VoucherOperation) error
	CreateSaveResult(ctx context.Context, res *domain.VoucherSaveResult) error
	ListSaveResults(ctx context.Context, operationID uuid.UUID) ([]domain.VoucherSaveResult, error)
}

// RapidCheckRepository defines persistence for rapid-shipper checks.
type RapidCheckRepository interface {
	Create(ctx context.Context, tx pgx.Tx, check *domain.RapidCheck) error
	Update(ctx context.Context, check *domain.RapidCheck) error
	// FindRecentSuccess returns the newest check for (user, fingerprint)
	// with a driver phone, created after since. Nil when none.
	FindRecentSuccess(ctx context.Context, userID uuid.UUID, fingerprint string, since time.Time) (*domain.RapidCheck, error)
}

// ProxyRepository defines persistence for the proxy pool.
type ProxyRepository interface {
	Create(ctx context.Context, p *domain.ProxyEntry) error
	List(ctx context.Context) ([]domain.ProxyEntry, error)
	ListActive(ctx context.Context) ([]domain.ProxyEntry, error)
	MarkUsed(ctx context.Context, id uuid.UUID) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

// ServicePriceRepository defines persistence for operation prices.
type ServicePriceRepository interface {
	Get(ctx context.Context, serviceKey string) (*domain.ServicePrice, error)
	Upsert(ctx context.Context, p *domain.ServicePrice) error
	List(ctx context.Context) ([]domain.ServicePrice, error)
}

// ActivityRepository defines persistence for the append-only activity log.
type ActivityRepository interface {
	Create(ctx context.Context, entry *domain.ActivityLog) error
	List(ctx context.Context, urgentOnly bool, page, pageSize int) ([]domain.ActivityLog, int64, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
