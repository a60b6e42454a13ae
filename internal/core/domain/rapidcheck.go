package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// RapidDedupWindow is how long a successful check is reused at no charge.
const RapidDedupWindow = 72 * time.Hour

// RapidCheck is one express-shipper lookup against a platform cookie.
type RapidCheck struct {
	ID                uuid.UUID  `json:"id"`
	UserID            uuid.UUID  `json:"user_id"`
	CookiePreview     string     `json:"cookie_preview"`
	CookieFingerprint string     `json:"-"` // SHA-256 of the cookie, dedup key
	Found             bool       `json:"status"`
	DriverPhone       *string    `json:"driver_phone,omitempty"`
	DriverName        *string    `json:"driver_name,omitempty"`
	VehiclePlate      *string    `json:"vehicle_plate,omitempty"`
	OrdersJSON        []byte     `json:"-"`
	ChargeTxnID       uuid.UUID  `json:"charge_txn_id"`
	RefundTxnID       *uuid.UUID `json:"refund_txn_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// CookieFingerprint hashes a cookie for the 72h dedup lookup. The raw cookie
// is never persisted.
func CookieFingerprint(cookie string) string {
	sum := sha256.Sum256([]byte(cookie))
	return hex.EncodeToString(sum[:])
}

// CookiePreview returns a short non-sensitive prefix for display.
func CookiePreview(cookie string) string {
	const n = 24
	if len(cookie) <= n {
		return cookie
	}
	return cookie[:n] + "..."
}
