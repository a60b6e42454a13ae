package domain

import (
	"time"

	"github.com/google/uuid"
)

// RentalTier identifies which upstream serves a rental session. Three
// SMS-provider tiers plus the secondary platform tier. The enum is closed.
type RentalTier string

const (
	TierOne      RentalTier = "tier1"
	TierTwo      RentalTier = "tier2"
	TierThree    RentalTier = "tier3"
	TierPlatform RentalTier = "platform2"
)

// ValidTier reports whether t is one of the rentable tiers.
func ValidTier(t RentalTier) bool {
	switch t {
	case TierOne, TierTwo, TierThree, TierPlatform:
		return true
	}
	return false
}

// SessionStatus is a node in the rental state machine.
//
//	CREATED → WAITING → ALLOCATED → COMPLETED
//	              \          \
//	               \          → EXPIRED
//	                → FAILED
//
// Transitions never re-enter a previous state.
type SessionStatus string

const (
	SessionWaiting   SessionStatus = "WAITING"
	SessionAllocated SessionStatus = "ALLOCATED"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionExpired   SessionStatus = "EXPIRED"
	SessionFailed    SessionStatus = "FAILED"
)

// IsTerminal reports whether no further transition is allowed.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionExpired || s == SessionFailed
}

// CanTransitionTo enforces the state machine edges.
func (s SessionStatus) CanTransitionTo(next SessionStatus) bool {
	switch s {
	case SessionWaiting:
		return next == SessionAllocated || next == SessionExpired || next == SessionFailed
	case SessionAllocated:
		return next == SessionCompleted || next == SessionExpired
	}
	return false
}

// RentalSession is one attempt to rent a phone number for one OTP,
// bounded by a 6-minute deadline.
type RentalSession struct {
	SessionID         string        `json:"session_id"`
	UserID            uuid.UUID     `json:"user_id"`
	Tier              RentalTier    `json:"tier"`
	Carrier           string        `json:"carrier"`
	PhoneNumber       *string       `json:"phone_number,omitempty"`
	ProviderRequestID *string       `json:"provider_request_id,omitempty"`
	Status            SessionStatus `json:"status"`
	OtpCode           *string       `json:"otp_code,omitempty"`
	Cost              int64         `json:"cost"`
	ProviderResponse  []byte        `json:"-"` // Opaque provider blob
	StartAt           time.Time     `json:"start_at"`
	ExpiresAt         time.Time     `json:"expires_at"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
}

// Expired reports whether the session deadline has passed at the given instant.
func (r *RentalSession) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// ChargeReference returns the idempotency reference used when charging for
// this session. The refund side derives from it via RefundReference.
func (r *RentalSession) ChargeReference() string {
	return r.SessionID
}
