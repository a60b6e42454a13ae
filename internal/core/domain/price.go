package domain

import "time"

// Service keys priced in service_prices. One per billable operation kind.
const (
	ServiceRentalTier1    = "rental_tier1"
	ServiceRentalTier2    = "rental_tier2"
	ServiceRentalTier3    = "rental_tier3"
	ServiceRentalPlatform = "rental_platform2"
	ServiceVoucherSave    = "voucher_save"
	ServiceRapidCheck     = "rapid_check"
)

// RentalServiceKey maps a tier to its price key.
func RentalServiceKey(tier RentalTier) string {
	switch tier {
	case TierOne:
		return ServiceRentalTier1
	case TierTwo:
		return ServiceRentalTier2
	case TierThree:
		return ServiceRentalTier3
	case TierPlatform:
		return ServiceRentalPlatform
	}
	return ""
}

// ServicePrice is the current price of one operation kind. The amount is
// snapshotted into the transaction at charge time; later price changes never
// affect committed rows.
type ServicePrice struct {
	ServiceKey string    `json:"service_key"`
	Price      int64     `json:"price"` // VND
	UpdatedAt  time.Time `json:"updated_at"`
}
