package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// catalogueTTL bounds how long one fetched catalogue serves all users.
	catalogueTTL = 30 * time.Minute
	// voucherAttemptCap bounds claim attempts per cookie.
	voucherAttemptCap = 7
	// primaryClaimRetries is the per-voucher retry count for primary codes.
	primaryClaimRetries = 3
	// refundRetries bounds refund attempts before raising an urgent entry.
	refundRetries = 3
)

// Voucher-code targeting. Codes outside targetCodePrefix are skipped;
// primary codes get the retry budget and decide the operation outcome.
const (
	targetCodePrefix  = "FSV"
	primaryCodePrefix = "FSV0"
)

// VoucherServiceImpl implements ports.VoucherService: per-cookie charge,
// catalogue fetch, claim loop, refund on failure.
type VoucherServiceImpl struct {
	vouchers   ports.VoucherRepository
	wallet     ports.WalletService
	prices     ports.PriceService
	platform   ports.PlatformClient
	catalogue  ports.CatalogueCache
	transactor ports.DBTransactor
	audit      ports.AuditService
	log        zerolog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewVoucherService creates a new VoucherServiceImpl.
func NewVoucherService(
	vouchers ports.VoucherRepository,
	wallet ports.WalletService,
	prices ports.PriceService,
	platform ports.PlatformClient,
	catalogue ports.CatalogueCache,
	transactor ports.DBTransactor,
	audit ports.AuditService,
	log zerolog.Logger,
) *VoucherServiceImpl {
	return &VoucherServiceImpl{
		vouchers:   vouchers,
		wallet:     wallet,
		prices:     prices,
		platform:   platform,
		catalogue:  catalogue,
		transactor: transactor,
		audit:      audit,
		log:        log,
		sleep:      ctxSleep,
	}
}

// SaveVouchers runs one claim pipeline per submitted cookie. Each cookie is
// charged independently; a cookie whose run saves no primary code is
// refunded.
func (s *VoucherServiceImpl) SaveVouchers(ctx context.Context, userID uuid.UUID, sessionID string, cookies []string) ([]ports.VoucherCookieResult, error) {
	if len(cookies) == 0 {
		return nil, apperror.Validation("danh sách cookie trống")
	}

	price, err := s.prices.Price(ctx, domain.ServiceVoucherSave)
	if err != nil {
		return nil, err
	}

	results := make([]ports.VoucherCookieResult, 0, len(cookies))
	for i, cookie := range cookies {
		results = append(results, s.runCookie(ctx, userID, sessionID, i, cookie, price))
	}
	return results, nil
}

func (s *VoucherServiceImpl) runCookie(ctx context.Context, userID uuid.UUID, sessionID string, cookieIdx int, cookie string, price int64) ports.VoucherCookieResult {
	preview := domain.CookiePreview(cookie)
	now := time.Now().UTC()
	op := &domain.VoucherOperation{
		ID:            uuid.New(),
		UserID:        userID,
		SessionID:     sessionID,
		CookiePreview: preview,
		Status:        domain.VoucherPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	reference := fmt.Sprintf("voucher:%s:%s:%d", userID, sessionID, cookieIdx)
	charge, err := s.wallet.Charge(ctx, ports.ChargeParams{
		UserID:      userID,
		Amount:      price,
		Reference:   reference,
		Type:        domain.TransactionTypeVoucher,
		Description: fmt.Sprintf("Lưu voucher cookie %s", preview),
	})
	if err != nil {
		return ports.VoucherCookieResult{
			OperationID:   op.ID,
			CookiePreview: preview,
			Status:        string(domain.VoucherFailed),
			Message:       errMessage(err),
		}
	}
	op.ChargeTxnID = charge.Transaction.ID

	if err := s.insertOperation(ctx, op); err != nil {
		s.log.Error().Err(err).Str("operation_id", op.ID.String()).Msg("failed to persist voucher operation")
		s.refundOperation(ctx, op, price)
		return ports.VoucherCookieResult{
			OperationID:   op.ID,
			CookiePreview: preview,
			Status:        string(domain.VoucherFailed),
			Message:       "Lỗi hệ thống, tiền đã được hoàn lại",
			Refunded:      true,
		}
	}

	catalogue, err := s.fetchCatalogue(ctx, cookie)
	if err != nil {
		return s.finalize(ctx, op, price, 0, 0, 0, false, errMessage(err))
	}

	candidates := filterTargets(catalogue)
	op.TotalFound = len(candidates)
	if len(candidates) == 0 {
		return s.finalize(ctx, op, price, 0, 0, 0, false, "Không tìm thấy voucher phù hợp")
	}

	saved, failed, savedPrimary := s.claimLoop(ctx, op, cookie, candidates)
	msg := fmt.Sprintf("Đã lưu %d/%d voucher", saved, len(candidates))
	return s.finalize(ctx, op, price, len(candidates), saved, failed, savedPrimary, msg)
}

func (s *VoucherServiceImpl) insertOperation(ctx context.Context, op *domain.VoucherOperation) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := s.vouchers.CreateOperation(ctx, tx, op); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// fetchCatalogue serves from the shared cache, then direct, then once more
// through the proxy pool. A cookie-expired error is surfaced as-is.
func (s *VoucherServiceImpl) fetchCatalogue(ctx context.Context, cookie string) ([]ports.PlatformVoucher, error) {
	if blob, err := s.catalogue.Get(ctx); err != nil {
		s.log.Warn().Err(err).Msg("catalogue cache read failed")
	} else if blob != nil {
		var cached []ports.PlatformVoucher
		if err := json.Unmarshal(blob, &cached); err == nil {
			return cached, nil
		}
		s.log.Warn().Msg("discarding malformed catalogue cache blob")
	}

	vouchers, err := s.platform.VoucherCatalogue(ctx, cookie, false)
	if err != nil {
		if apperror.HasCode(err, "UP_002") {
			return nil, err
		}
		s.log.Warn().Err(err).Msg("direct catalogue fetch failed, retrying via proxy")
		vouchers, err = s.platform.VoucherCatalogue(ctx, cookie, true)
		if err != nil {
			return nil, err
		}
	}

	if blob, err := json.Marshal(vouchers); err == nil {
		if err := s.catalogue.Set(ctx, blob, catalogueTTL); err != nil {
			s.log.Warn().Err(err).Msg("catalogue cache write failed")
		}
	}
	return vouchers, nil
}

// claimLoop posts claims for the candidates, stopping at the first success.
// Primary codes get primaryClaimRetries attempts, the rest one.
func (s *VoucherServiceImpl) claimLoop(ctx context.Context, op *domain.VoucherOperation, cookie string, candidates []ports.PlatformVoucher) (saved, failed int, savedPrimary bool) {
	for _, v := range candidates {
		attempts := 1
		if isPrimaryCode(v.Code) {
			attempts = primaryClaimRetries
		}

		var claimed bool
		var lastCode int
		for a := 0; a < attempts; a++ {
			code, err := s.platform.SaveVoucher(ctx, cookie, v)
			if err != nil {
				if apperror.HasCode(err, "UP_002") {
					lastCode = -1
					break
				}
				lastCode = -1
				continue
			}
			lastCode = code
			if code == 0 {
				claimed = true
				break
			}
		}

		s.recordSave(ctx, op.ID, v, claimed, lastCode)
		if claimed {
			saved++
			if isPrimaryCode(v.Code) {
				savedPrimary = true
			}
			break
		}
		failed++
	}
	return saved, failed, savedPrimary
}

func (s *VoucherServiceImpl) recordSave(ctx context.Context, opID uuid.UUID, v ports.PlatformVoucher, success bool, upstreamErr int) {
	res := &domain.VoucherSaveResult{
		ID:          uuid.New(),
		OperationID: opID,
		VoucherCode: v.Code,
		PromotionID: v.PromotionID,
		Success:     success,
		UpstreamErr: upstreamErr,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.vouchers.CreateSaveResult(ctx, res); err != nil {
		s.log.Warn().Err(err).Str("operation_id", opID.String()).Msg("failed to persist save result")
	}
}

// finalize settles the operation row and refunds unless a primary code was
// saved.
func (s *VoucherServiceImpl) finalize(ctx context.Context, op *domain.VoucherOperation, price int64, total, saved, failed int, savedPrimary bool, msg string) ports.VoucherCookieResult {
	op.TotalFound = total
	op.SuccessfulSaves = saved
	op.FailedSaves = failed
	op.UpdatedAt = time.Now().UTC()

	refunded := false
	if savedPrimary {
		op.Status = domain.VoucherSuccess
	} else {
		op.Status = domain.VoucherFailed
		refunded = s.refundOperation(ctx, op, price)
		if refunded {
			msg += ", tiền đã được hoàn lại"
		}
	}

	if err := s.vouchers.UpdateOperation(ctx, op); err != nil {
		s.log.Error().Err(err).Str("operation_id", op.ID.String()).Msg("failed to settle voucher operation")
	}

	return ports.VoucherCookieResult{
		OperationID:     op.ID,
		CookiePreview:   op.CookiePreview,
		Status:          string(op.Status),
		TotalFound:      total,
		SuccessfulSaves: saved,
		FailedSaves:     failed,
		Message:         msg,
		Refunded:        refunded,
	}
}

// refundOperation retries the refund with backoff; exhausting the budget
// raises an urgent activity entry for operator follow-up.
func (s *VoucherServiceImpl) refundOperation(ctx context.Context, op *domain.VoucherOperation, price int64) bool {
	reference := "refund:voucher:" + op.ID.String()
	var lastErr error
	for attempt := 0; attempt < refundRetries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, time.Duration(1<<(attempt-1))*time.Second); err != nil {
				break
			}
		}
		res, err := s.wallet.Refund(ctx, ports.RefundParams{
			UserID:      op.UserID,
			Amount:      price,
			Reference:   reference,
			Description: fmt.Sprintf("Hoàn tiền voucher %s", op.CookiePreview),
			LinkedTxnID: &op.ChargeTxnID,
		})
		if err == nil {
			op.RefundTxnID = &res.Transaction.ID
			return true
		}
		lastErr = err
	}

	s.log.Error().Err(lastErr).Str("operation_id", op.ID.String()).Msg("voucher refund exhausted retries")
	s.audit.Log(ctx, &domain.ActivityLog{
		ID:           uuid.New(),
		UserID:       &op.UserID,
		Action:       domain.ActivityRefundFailed,
		ResourceType: "voucher_operation",
		ResourceID:   op.ID.String(),
		Details:      fmt.Sprintf(`{"amount":%d,"error":%q}`, price, errMessage(lastErr)),
		Urgent:       true,
		CreatedAt:    time.Now().UTC(),
	})
	return false
}

func filterTargets(catalogue []ports.PlatformVoucher) []ports.PlatformVoucher {
	out := make([]ports.PlatformVoucher, 0, voucherAttemptCap)
	for _, v := range catalogue {
		if !strings.HasPrefix(v.Code, targetCodePrefix) {
			continue
		}
		out = append(out, v)
		if len(out) == voucherAttemptCap {
			break
		}
	}
	return out
}

func isPrimaryCode(code string) bool {
	return strings.HasPrefix(code, primaryCodePrefix)
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *apperror.AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}
