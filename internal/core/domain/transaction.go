package domain

import (
	"time"

	"github.com/google/uuid"
)

// TransactionType represents the kind of money movement.
type TransactionType string

const (
	TransactionTypeCharge TransactionType = "CHARGE"
	TransactionTypeRefund TransactionType = "REFUND"
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"

	// Fine-grained service subtypes recorded for reporting.
	TransactionTypeRental  TransactionType = "RENTAL_CHARGE"
	TransactionTypeVoucher TransactionType = "VOUCHER_CHARGE"
	TransactionTypeRapid   TransactionType = "RAPID_CHARGE"
	TransactionTypeDeposit TransactionType = "BANK_DEPOSIT"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is an immutable ledger entry. For every completed row,
// BalanceAfter = BalanceBefore + Amount, and BalanceBefore equals the
// BalanceAfter of the user's previous completed row.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	UserID        uuid.UUID         `json:"user_id"`
	Type          TransactionType   `json:"type"`
	Amount        int64             `json:"amount"` // Signed VND; negative for charges
	Reference     *string           `json:"reference,omitempty"`
	Status        TransactionStatus `json:"status"`
	BalanceBefore int64             `json:"balance_before"`
	BalanceAfter  int64             `json:"balance_after"`
	Description   string            `json:"description"`
	OperatorID    *uuid.UUID        `json:"operator_id,omitempty"` // Set for admin adjustments
	LinkedTxnID   *uuid.UUID        `json:"linked_txn_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// IsDebit reports whether the entry removed funds from the wallet.
func (t *Transaction) IsDebit() bool {
	return t.Amount < 0
}

// RefundReference derives the deterministic refund reference for a charge
// reference. Charging with reference R and refunding with RefundReference(R)
// makes the refund single-shot via the idempotency index.
func RefundReference(chargeReference string) string {
	return "refund:" + chargeReference
}
