package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActivityAction is the type of audited event.
type ActivityAction string

const (
	ActivityLogin         ActivityAction = "LOGIN"
	ActivityBalanceChange ActivityAction = "BALANCE_CHANGE"
	ActivityAdminAdjust   ActivityAction = "ADMIN_ADJUST"
	ActivitySessionEvent  ActivityAction = "SESSION_EVENT"
	ActivityRefund        ActivityAction = "REFUND"
	ActivityRefundFailed  ActivityAction = "REFUND_FAILED"
	ActivityRateLimitTrip ActivityAction = "RATE_LIMIT_TRIP"
)

// ActivityLog is an append-only record of a user or system event.
// Urgent entries flag conditions needing operator attention, e.g. a refund
// that could not be committed.
type ActivityLog struct {
	ID           uuid.UUID      `json:"id"`
	UserID       *uuid.UUID     `json:"user_id,omitempty"`
	Action       ActivityAction `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      string         `json:"details,omitempty"` // JSON string
	Urgent       bool           `json:"urgent"`
	IPAddress    string         `json:"ip_address,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
