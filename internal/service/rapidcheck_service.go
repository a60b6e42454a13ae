package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// rapidOrderLimit is how many recent orders one check inspects.
const rapidOrderLimit = 5

// RapidCheckServiceImpl implements ports.RapidCheckService. A successful
// lookup is reused free of charge for the same (user, cookie) within
// domain.RapidDedupWindow.
type RapidCheckServiceImpl struct {
	checks     ports.RapidCheckRepository
	wallet     ports.WalletService
	prices     ports.PriceService
	platform   ports.PlatformClient
	transactor ports.DBTransactor
	log        zerolog.Logger
}

// NewRapidCheckService creates a new RapidCheckServiceImpl.
func NewRapidCheckService(
	checks ports.RapidCheckRepository,
	wallet ports.WalletService,
	prices ports.PriceService,
	platform ports.PlatformClient,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *RapidCheckServiceImpl {
	return &RapidCheckServiceImpl{
		checks:     checks,
		wallet:     wallet,
		prices:     prices,
		platform:   platform,
		transactor: transactor,
		log:        log,
	}
}

// Check performs one shipper lookup for a cookie.
func (s *RapidCheckServiceImpl) Check(ctx context.Context, userID uuid.UUID, cookie string) (*ports.RapidCheckResult, error) {
	if cookie == "" {
		return nil, apperror.Validation("thiếu cookie")
	}

	fingerprint := domain.CookieFingerprint(cookie)
	since := time.Now().UTC().Add(-domain.RapidDedupWindow)
	prior, err := s.checks.FindRecentSuccess(ctx, userID, fingerprint, since)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if prior != nil {
		return resultFromHistory(prior), nil
	}

	price, err := s.prices.Price(ctx, domain.ServiceRapidCheck)
	if err != nil {
		return nil, err
	}

	check := &domain.RapidCheck{
		ID:                uuid.New(),
		UserID:            userID,
		CookiePreview:     domain.CookiePreview(cookie),
		CookieFingerprint: fingerprint,
		CreatedAt:         time.Now().UTC(),
	}

	charge, err := s.wallet.Charge(ctx, ports.ChargeParams{
		UserID:      userID,
		Amount:      price,
		Reference:   "rapid:" + check.ID.String(),
		Type:        domain.TransactionTypeRapid,
		Description: fmt.Sprintf("Tra cứu shipper %s", check.CookiePreview),
	})
	if err != nil {
		return nil, err
	}
	check.ChargeTxnID = charge.Transaction.ID

	if err := s.insertCheck(ctx, check); err != nil {
		s.refundCheck(ctx, check, price)
		return nil, apperror.InternalError(fmt.Errorf("create rapid check: %w", err))
	}

	details, lookupErr := s.collectOrders(ctx, cookie)
	s.extractShipper(check, details)

	if blob, err := json.Marshal(details); err == nil {
		check.OrdersJSON = blob
	}

	refunded := false
	if check.DriverPhone == nil {
		refunded = s.refundCheck(ctx, check, price)
	}
	if err := s.checks.Update(ctx, check); err != nil {
		s.log.Error().Err(err).Str("check_id", check.ID.String()).Msg("failed to settle rapid check")
	}

	if lookupErr != nil && check.DriverPhone == nil {
		return nil, lookupErr
	}

	result := &ports.RapidCheckResult{
		Status:        check.Found,
		DriverPhone:   check.DriverPhone,
		DriverName:    check.DriverName,
		VehiclePlate:  check.VehiclePlate,
		Charged:       !refunded,
		AmountCharged: price,
		Orders:        details,
	}
	if check.Found {
		result.Message = "Đã tìm thấy thông tin shipper"
	} else {
		result.Message = "Không tìm thấy thông tin shipper, tiền đã được hoàn lại"
	}
	return result, nil
}

func (s *RapidCheckServiceImpl) insertCheck(ctx context.Context, check *domain.RapidCheck) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := s.checks.Create(ctx, tx, check); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// collectOrders lists recent orders and enriches each with its detail. A
// cookie-expired error aborts; other per-order failures are skipped.
func (s *RapidCheckServiceImpl) collectOrders(ctx context.Context, cookie string) ([]ports.PlatformOrderDetail, error) {
	orders, err := s.platform.RecentOrders(ctx, cookie, rapidOrderLimit)
	if err != nil {
		return nil, err
	}

	details := make([]ports.PlatformOrderDetail, 0, len(orders))
	for _, o := range orders {
		d, err := s.platform.OrderDetail(ctx, cookie, o.OrderID)
		if err != nil {
			if apperror.HasCode(err, "UP_002") {
				return details, err
			}
			s.log.Warn().Err(err).Str("order_id", o.OrderID).Msg("order detail fetch failed")
			continue
		}
		details = append(details, *d)
	}
	return details, nil
}

// extractShipper fills the check with the first order that carries a driver
// phone.
func (s *RapidCheckServiceImpl) extractShipper(check *domain.RapidCheck, details []ports.PlatformOrderDetail) {
	for i := range details {
		sh := details[i].Shipper
		if sh.DriverPhone == "" {
			continue
		}
		phone := sh.DriverPhone
		check.Found = true
		check.DriverPhone = &phone
		if sh.DriverName != "" {
			name := sh.DriverName
			check.DriverName = &name
		}
		if sh.VehiclePlate != "" {
			plate := sh.VehiclePlate
			check.VehiclePlate = &plate
		}
		return
	}
}

func (s *RapidCheckServiceImpl) refundCheck(ctx context.Context, check *domain.RapidCheck, price int64) bool {
	res, err := s.wallet.Refund(ctx, ports.RefundParams{
		UserID:      check.UserID,
		Amount:      price,
		Reference:   "refund:rapid:" + check.ID.String(),
		Description: fmt.Sprintf("Hoàn tiền tra cứu %s", check.CookiePreview),
		LinkedTxnID: &check.ChargeTxnID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("check_id", check.ID.String()).Msg("rapid check refund failed")
		return false
	}
	check.RefundTxnID = &res.Transaction.ID
	return true
}

func resultFromHistory(prior *domain.RapidCheck) *ports.RapidCheckResult {
	var orders []ports.PlatformOrderDetail
	if len(prior.OrdersJSON) > 0 {
		if err := json.Unmarshal(prior.OrdersJSON, &orders); err != nil {
			orders = nil
		}
	}
	return &ports.RapidCheckResult{
		Status:        true,
		Message:       "Kết quả từ lịch sử tra cứu",
		DriverPhone:   prior.DriverPhone,
		DriverName:    prior.DriverName,
		VehiclePlate:  prior.VehiclePlate,
		Charged:       false,
		IsFromHistory: true,
		Orders:        orders,
	}
}
