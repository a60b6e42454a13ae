package domain

import (
	"time"

	"github.com/google/uuid"
)

// IdempotencyRecord maps an external reference key to a prior transaction
// outcome. Rows are written inside the same database transaction as the
// ledger entry they protect. Retention is at least 90 days.
type IdempotencyRecord struct {
	Key           string    `json:"key"`
	TransactionID uuid.UUID `json:"transaction_id"`
	ResponseJSON  []byte    `json:"response_json"` // Cached outcome to return on replay
	CreatedAt     time.Time `json:"created_at"`
}
