package postgres

import (
	"context"
	"errors"
	"fmt"

	"phone-rental-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// VoucherRepo implements ports.VoucherRepository.
type VoucherRepo struct {
	pool Pool
}

// NewVoucherRepo creates a new VoucherRepo.
func NewVoucherRepo(pool Pool) *VoucherRepo {
	return &VoucherRepo{pool: pool}
}

const voucherOpColumns = `id, user_id, session_id, cookie_preview, status,
	total_found, successful_saves, failed_saves, charge_txn_id, refund_txn_id, created_at, updated_at`

// CreateOperation inserts an operation row inside the charge transaction.
func (r *VoucherRepo) CreateOperation(ctx context.Context, tx pgx.Tx, op *domain.VoucherOperation) error {
	query := `INSERT INTO voucher_operations (id, user_id, session_id, cookie_preview, status,
		total_found, successful_saves, failed_saves, charge_txn_id, refund_txn_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		op.ID, op.UserID, op.SessionID, op.CookiePreview, op.Status,
		op.TotalFound, op.SuccessfulSaves, op.FailedSaves,
		op.ChargeTxnID, op.RefundTxnID, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert voucher operation: %w", err)
	}
	return nil
}

// GetOperation fetches an operation by id.
func (r *VoucherRepo) GetOperation(ctx context.Context, id uuid.UUID) (*domain.VoucherOperation, error) {
	query := `SELECT ` + voucherOpColumns + ` FROM voucher_operations WHERE id = $1`

	op := &domain.VoucherOperation{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&op.ID, &op.UserID, &op.SessionID, &op.CookiePreview, &op.Status,
		&op.TotalFound, &op.SuccessfulSaves, &op.FailedSaves,
		&op.ChargeTxnID, &op.RefundTxnID, &op.CreatedAt, &op.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get voucher operation: %w", err)
	}
	return op, nil
}

// UpdateOperation persists the final counters and status of a run.
func (r *VoucherRepo) UpdateOperation(ctx context.Context, op *domain.VoucherOperation) error {
	query := `UPDATE voucher_operations
		SET status = $1, total_found = $2, successful_saves = $3, failed_saves = $4,
			refund_txn_id = $5, updated_at = NOW()
		WHERE id = $6`

	tag, err := r.pool.Exec(ctx, query,
		op.Status, op.TotalFound, op.SuccessfulSaves, op.FailedSaves,
		op.RefundTxnID, op.ID,
	)
	if err != nil {
		return fmt.Errorf("update voucher operation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("voucher operation not found: %s", op.ID)
	}
	return nil
}

// CreateSaveResult appends one claim attempt.
func (r *VoucherRepo) CreateSaveResult(ctx context.Context, res *domain.VoucherSaveResult) error {
	query := `INSERT INTO voucher_save_results (id, operation_id, voucher_code, promotion_id, success, upstream_err, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		res.ID, res.OperationID, res.VoucherCode, res.PromotionID,
		res.Success, res.UpstreamErr, res.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert voucher save result: %w", err)
	}
	return nil
}

// ListSaveResults fetches the claim attempts of one operation.
func (r *VoucherRepo) ListSaveResults(ctx context.Context, operationID uuid.UUID) ([]domain.VoucherSaveResult, error) {
	query := `SELECT id, operation_id, voucher_code, promotion_id, success, upstream_err, created_at
		FROM voucher_save_results WHERE operation_id = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, operationID)
	if err != nil {
		return nil, fmt.Errorf("list voucher save results: %w", err)
	}
	defer rows.Close()

	var results []domain.VoucherSaveResult
	for rows.Next() {
		res := domain.VoucherSaveResult{}
		err := rows.Scan(
			&res.ID, &res.OperationID, &res.VoucherCode, &res.PromotionID,
			&res.Success, &res.UpstreamErr, &res.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan voucher save result: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate voucher save results: %w", err)
	}
	return results, nil
}
