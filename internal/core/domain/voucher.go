package domain

import (
	"time"

	"github.com/google/uuid"
)

// VoucherOperationStatus is the outcome of one cookie's voucher-saving run.
type VoucherOperationStatus string

const (
	VoucherPending VoucherOperationStatus = "pending"
	VoucherSuccess VoucherOperationStatus = "success"
	VoucherFailed  VoucherOperationStatus = "failed"
)

// VoucherOperation records a voucher-saving run for one platform cookie.
type VoucherOperation struct {
	ID              uuid.UUID              `json:"id"`
	UserID          uuid.UUID              `json:"user_id"`
	SessionID       string                 `json:"session_id"`
	CookiePreview   string                 `json:"cookie_preview"` // First chars only, never the full cookie
	Status          VoucherOperationStatus `json:"status"`
	TotalFound      int                    `json:"total_found"`
	SuccessfulSaves int                    `json:"successful_saves"`
	FailedSaves     int                    `json:"failed_saves"`
	ChargeTxnID     uuid.UUID              `json:"charge_txn_id"`
	RefundTxnID     *uuid.UUID             `json:"refund_txn_id,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

// VoucherSaveResult is one claim attempt inside an operation.
type VoucherSaveResult struct {
	ID          uuid.UUID `json:"id"`
	OperationID uuid.UUID `json:"operation_id"`
	VoucherCode string    `json:"voucher_code"`
	PromotionID string    `json:"promotion_id"`
	Success     bool      `json:"success"`
	UpstreamErr int       `json:"upstream_err"` // Platform error code; 0 = saved
	CreatedAt   time.Time `json:"created_at"`
}
