package service

import (
	"context"
	"fmt"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"

	"github.com/rs/zerolog"
)

// Fallback prices (VND) used until an operator upserts a row into
// service_prices. DB rows always win.
var defaultPrices = map[string]int64{
	domain.ServiceRentalTier1:    1000,
	domain.ServiceRentalTier2:    1200,
	domain.ServiceRentalTier3:    1500,
	domain.ServiceRentalPlatform: 2000,
	domain.ServiceVoucherSave:    500,
	domain.ServiceRapidCheck:     1000,
}

// PriceServiceImpl implements ports.PriceService. A lookup returns the price
// in effect at that instant; callers snapshot it into the transaction so
// later price changes never touch committed rows.
type PriceServiceImpl struct {
	repo ports.ServicePriceRepository
	log  zerolog.Logger
}

// NewPriceService creates a new PriceServiceImpl.
func NewPriceService(repo ports.ServicePriceRepository, log zerolog.Logger) *PriceServiceImpl {
	return &PriceServiceImpl{repo: repo, log: log}
}

// Price resolves the current price for a service key.
func (s *PriceServiceImpl) Price(ctx context.Context, serviceKey string) (int64, error) {
	p, err := s.repo.Get(ctx, serviceKey)
	if err != nil {
		return 0, apperror.ErrDatabaseError(fmt.Errorf("get price %s: %w", serviceKey, err))
	}
	if p != nil {
		return p.Price, nil
	}

	fallback, ok := defaultPrices[serviceKey]
	if !ok {
		return 0, apperror.ErrNotFound("bảng giá dịch vụ")
	}
	s.log.Debug().Str("service_key", serviceKey).Int64("price", fallback).Msg("using fallback price")
	return fallback, nil
}
