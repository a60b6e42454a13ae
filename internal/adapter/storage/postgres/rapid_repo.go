package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"phone-rental-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RapidRepo implements ports.RapidCheckRepository.
type RapidRepo struct {
	pool Pool
}

// NewRapidRepo creates a new RapidRepo.
func NewRapidRepo(pool Pool) *RapidRepo {
	return &RapidRepo{pool: pool}
}

const rapidColumns = `id, user_id, cookie_preview, cookie_fingerprint, found,
	driver_phone, driver_name, vehicle_plate, orders_json, charge_txn_id, refund_txn_id, created_at`

// Create inserts a check row inside the charge transaction.
func (r *RapidRepo) Create(ctx context.Context, tx pgx.Tx, check *domain.RapidCheck) error {
	query := `INSERT INTO rapid_checks (id, user_id, cookie_preview, cookie_fingerprint, found,
		driver_phone, driver_name, vehicle_plate, orders_json, charge_txn_id, refund_txn_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		check.ID, check.UserID, check.CookiePreview, check.CookieFingerprint, check.Found,
		check.DriverPhone, check.DriverName, check.VehiclePlate, check.OrdersJSON,
		check.ChargeTxnID, check.RefundTxnID, check.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rapid check: %w", err)
	}
	return nil
}

// Update persists the lookup outcome.
func (r *RapidRepo) Update(ctx context.Context, check *domain.RapidCheck) error {
	query := `UPDATE rapid_checks
		SET found = $1, driver_phone = $2, driver_name = $3, vehicle_plate = $4,
			orders_json = $5, refund_txn_id = $6
		WHERE id = $7`

	tag, err := r.pool.Exec(ctx, query,
		check.Found, check.DriverPhone, check.DriverName, check.VehiclePlate,
		check.OrdersJSON, check.RefundTxnID, check.ID,
	)
	if err != nil {
		return fmt.Errorf("update rapid check: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rapid check not found: %s", check.ID)
	}
	return nil
}

// FindRecentSuccess returns the newest check for (user, fingerprint) with a
// driver phone, created after since. Nil when none.
func (r *RapidRepo) FindRecentSuccess(ctx context.Context, userID uuid.UUID, fingerprint string, since time.Time) (*domain.RapidCheck, error) {
	query := `SELECT ` + rapidColumns + ` FROM rapid_checks
		WHERE user_id = $1 AND cookie_fingerprint = $2 AND driver_phone IS NOT NULL AND created_at > $3
		ORDER BY created_at DESC LIMIT 1`

	check := &domain.RapidCheck{}
	err := r.pool.QueryRow(ctx, query, userID, fingerprint, since).Scan(
		&check.ID, &check.UserID, &check.CookiePreview, &check.CookieFingerprint, &check.Found,
		&check.DriverPhone, &check.DriverName, &check.VehiclePlate, &check.OrdersJSON,
		&check.ChargeTxnID, &check.RefundTxnID, &check.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find recent rapid check: %w", err)
	}
	return check, nil
}
