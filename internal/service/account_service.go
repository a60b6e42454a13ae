package service

import (
	"context"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Bulk checks inspect this many orders per cookie.
const trackingOrderLimit = 5

// AccountServiceImpl implements ports.AccountService: the bulk account-check
// and tracking-check surfaces. These endpoints are free; failures are
// reported per entry, never as a request-level error.
type AccountServiceImpl struct {
	platform ports.PlatformClient
	log      zerolog.Logger
}

// NewAccountService creates a new AccountServiceImpl.
func NewAccountService(platform ports.PlatformClient, log zerolog.Logger) *AccountServiceImpl {
	return &AccountServiceImpl{platform: platform, log: log}
}

// CheckAccounts resolves account info for each cookie.
func (s *AccountServiceImpl) CheckAccounts(ctx context.Context, userID uuid.UUID, cookies []string) []ports.AccountCheckEntry {
	out := make([]ports.AccountCheckEntry, 0, len(cookies))
	for _, cookie := range cookies {
		entry := ports.AccountCheckEntry{CookiePreview: domain.CookiePreview(cookie)}

		account, _, err := s.platform.AccountInfo(ctx, cookie)
		if err != nil {
			entry.Message = errMessage(err)
			out = append(out, entry)
			continue
		}
		entry.Status = true
		entry.Message = "Cookie còn hiệu lực"
		entry.Account = account
		out = append(out, entry)
	}
	return out
}

// CheckTracking lists recent orders with shipping enrichment for each cookie.
func (s *AccountServiceImpl) CheckTracking(ctx context.Context, userID uuid.UUID, cookies []string) []ports.TrackingCheckEntry {
	out := make([]ports.TrackingCheckEntry, 0, len(cookies))
	for _, cookie := range cookies {
		entry := ports.TrackingCheckEntry{CookiePreview: domain.CookiePreview(cookie)}

		orders, err := s.platform.RecentOrders(ctx, cookie, trackingOrderLimit)
		if err != nil {
			entry.Message = errMessage(err)
			out = append(out, entry)
			continue
		}

		details := make([]ports.PlatformOrderDetail, 0, len(orders))
		for _, o := range orders {
			d, err := s.platform.OrderDetail(ctx, cookie, o.OrderID)
			if err != nil {
				s.log.Warn().Err(err).Str("order_id", o.OrderID).Msg("tracking detail fetch failed")
				continue
			}
			details = append(details, *d)
		}

		entry.Status = true
		entry.Message = "OK"
		entry.Orders = details
		out = append(out, entry)
	}
	return out
}
