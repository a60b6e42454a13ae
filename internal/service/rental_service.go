package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/rentqueue"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	// allocationBudget caps upstream attempts per session.
	allocationBudget = 10
	// tierThreeNumberChecks caps attempts that actually returned a number
	// for the queued tier, accepted or not.
	tierThreeNumberChecks = 3
	// transportRetries is how many consecutive transport failures get a
	// retry; backoff runs 1s, 2s, 4s before each one. The failure after
	// the last retry aborts.
	transportRetries = 3
)

// queuedTier is the one tier admitted through the global bounded queue.
const queuedTier = domain.TierThree

// Phone prefixes never handed to users. Numbers in these ranges are
// virtual blocks the platform rejects outright.
var forbiddenPrefixes = []string{"995"}

// ProviderSource resolves the SMS provider serving a rental tier.
type ProviderSource interface {
	ForTier(tier domain.RentalTier) (ports.SMSProvider, bool)
}

// RentQueue is the admission surface of the global bounded queue.
type RentQueue interface {
	Admit(userID string) rentqueue.Admission
	Enter(userID, phoneNumber, sessionID string)
	Leave(userID, phoneNumber string)
}

// RentalServiceImpl implements ports.RentalService: the session state
// machine from charge through allocation, OTP polling and expiry.
type RentalServiceImpl struct {
	sessions   ports.RentalSessionRepository
	wallet     ports.WalletService
	prices     ports.PriceService
	providers  ProviderSource
	platform   ports.PlatformClient
	throttle   ports.PollThrottle
	queue      RentQueue
	transactor ports.DBTransactor
	audit      ports.AuditService
	log        zerolog.Logger

	sessionTTL   time.Duration
	pollInterval time.Duration

	// sleep is swapped out in tests to skip backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRentalService creates a new RentalServiceImpl.
func NewRentalService(
	sessions ports.RentalSessionRepository,
	wallet ports.WalletService,
	prices ports.PriceService,
	providers ProviderSource,
	platform ports.PlatformClient,
	throttle ports.PollThrottle,
	queue RentQueue,
	transactor ports.DBTransactor,
	audit ports.AuditService,
	sessionTTL, pollInterval time.Duration,
	log zerolog.Logger,
) *RentalServiceImpl {
	return &RentalServiceImpl{
		sessions:     sessions,
		wallet:       wallet,
		prices:       prices,
		providers:    providers,
		platform:     platform,
		throttle:     throttle,
		queue:        queue,
		transactor:   transactor,
		audit:        audit,
		log:          log,
		sessionTTL:   sessionTTL,
		pollInterval: pollInterval,
		sleep:        ctxSleep,
	}
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// StartRental opens a session: queue admission (queued tier only), wallet
// charge with the session id as idempotency reference, session row insert,
// then synchronous number allocation. Allocation failure refunds the charge.
func (s *RentalServiceImpl) StartRental(ctx context.Context, p ports.StartRentalParams) (*ports.StartRentalResult, error) {
	if !domain.ValidTier(p.Tier) {
		return nil, apperror.Validation("gói thuê không hợp lệ")
	}
	provider, ok := s.providers.ForTier(p.Tier)
	if !ok {
		return nil, apperror.Validation("gói thuê không được hỗ trợ")
	}

	if p.Tier == queuedTier {
		adm := s.queue.Admit(p.UserID.String())
		switch adm.Verdict {
		case rentqueue.DenyGlobal:
			return nil, apperror.ErrQueueFull(adm.Message())
		case rentqueue.DenyUser:
			sec := int(adm.Wait.Seconds())
			if sec < 1 {
				sec = 1
			}
			return nil, apperror.ErrRateLimited(sec)
		}
	}

	price, err := s.prices.Price(ctx, domain.RentalServiceKey(p.Tier))
	if err != nil {
		return nil, err
	}

	sessionID := "sess_" + uuid.New().String()
	now := time.Now().UTC()
	sess := &domain.RentalSession{
		SessionID: sessionID,
		UserID:    p.UserID,
		Tier:      p.Tier,
		Carrier:   p.Carrier,
		Status:    domain.SessionWaiting,
		Cost:      price,
		StartAt:   now,
		ExpiresAt: now.Add(s.sessionTTL),
	}

	charge, err := s.wallet.Charge(ctx, ports.ChargeParams{
		UserID:      p.UserID,
		Amount:      price,
		Reference:   sess.ChargeReference(),
		Type:        domain.TransactionTypeRental,
		Description: fmt.Sprintf("Thuê số %s", p.Tier),
	})
	if err != nil {
		return nil, err
	}

	if err := s.insertSession(ctx, sess); err != nil {
		s.refundSession(ctx, sess, &charge.Transaction.ID)
		return nil, apperror.InternalError(fmt.Errorf("create session: %w", err))
	}

	number, err := s.allocate(ctx, sess, provider)
	if err != nil {
		if ok, terr := s.sessions.TransitionStatus(ctx, sessionID,
			[]domain.SessionStatus{domain.SessionWaiting}, domain.SessionFailed); terr != nil {
			s.log.Error().Err(terr).Str("session_id", sessionID).Msg("failed to mark session FAILED")
		} else if ok {
			s.refundSession(ctx, sess, &charge.Transaction.ID)
		}
		return nil, err
	}

	if p.Tier == queuedTier {
		s.queue.Enter(p.UserID.String(), number, sessionID)
	}
	s.audit.Log(ctx, &domain.ActivityLog{
		ID:           uuid.New(),
		UserID:       &p.UserID,
		Action:       domain.ActivitySessionEvent,
		ResourceType: "rental_session",
		ResourceID:   sessionID,
		Details:      fmt.Sprintf(`{"event":"allocated","tier":%q}`, p.Tier),
		CreatedAt:    time.Now().UTC(),
	})

	return &ports.StartRentalResult{
		SessionID:   sessionID,
		PhoneNumber: number,
		ExpiresAt:   sess.ExpiresAt,
		Cost:        price,
	}, nil
}

func (s *RentalServiceImpl) insertSession(ctx context.Context, sess *domain.RentalSession) error {
	tx, err := s.transactor.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck
	if err := s.sessions.Create(ctx, tx, sess); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// allocate runs the acquisition loop against the tier's provider and returns
// the accepted phone number after the WAITING → ALLOCATED transition.
func (s *RentalServiceImpl) allocate(ctx context.Context, sess *domain.RentalSession, provider ports.SMSProvider) (string, error) {
	numberChecks := 0
	transportFails := 0

	for attempt := 0; attempt < allocationBudget; attempt++ {
		res, err := provider.RequestNumber(ctx, sess.Carrier)
		if err != nil {
			if errors.Is(err, ports.ErrProviderOutOfBalance) {
				s.log.Error().Str("provider", provider.Name()).Msg("provider balance exhausted, aborting allocation")
				return "", apperror.ErrProviderBalance()
			}
			transportFails++
			if transportFails > transportRetries {
				return "", apperror.ErrUpstreamUnavailable(err)
			}
			if serr := s.sleep(ctx, time.Duration(1<<(transportFails-1))*time.Second); serr != nil {
				return "", apperror.InternalError(serr)
			}
			continue
		}
		transportFails = 0

		if sess.Tier == domain.TierThree {
			numberChecks++
		}

		if hasForbiddenPrefix(res.PhoneNumber) {
			s.log.Debug().Str("phone", res.PhoneNumber).Msg("rejecting forbidden-prefix number")
			s.cancelNumber(ctx, provider, res.RequestID)
		} else if accepted := s.probeAndAccept(ctx, sess, provider, res); accepted {
			return res.PhoneNumber, nil
		}

		if sess.Tier == domain.TierThree && numberChecks >= tierThreeNumberChecks {
			break
		}
	}
	return "", apperror.ErrNoNumberAvailable()
}

// probeAndAccept checks the number against the platform and commits the
// allocation. Only a clean negative probe (no error, not registered) accepts.
func (s *RentalServiceImpl) probeAndAccept(ctx context.Context, sess *domain.RentalSession, provider ports.SMSProvider, res *ports.NumberResult) bool {
	registered, err := s.platform.IsPhoneRegistered(ctx, res.PhoneNumber)
	if err != nil || registered {
		s.log.Debug().
			Str("phone", res.PhoneNumber).
			Bool("registered", registered).
			Err(err).
			Msg("rejecting number after platform probe")
		s.cancelNumber(ctx, provider, res.RequestID)
		return false
	}

	ok, err := s.sessions.MarkAllocated(ctx, sess.SessionID, res.PhoneNumber, res.RequestID, res.Raw)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sess.SessionID).Msg("failed to persist allocation")
		s.cancelNumber(ctx, provider, res.RequestID)
		return false
	}
	if !ok {
		// The reaper expired the session mid-allocation.
		s.cancelNumber(ctx, provider, res.RequestID)
		return false
	}
	sess.Status = domain.SessionAllocated
	return true
}

func (s *RentalServiceImpl) cancelNumber(ctx context.Context, provider ports.SMSProvider, requestID string) {
	if err := provider.CancelNumber(ctx, requestID); err != nil && !errors.Is(err, ports.ErrCancelNotSupported) {
		s.log.Warn().Err(err).Str("provider", provider.Name()).Str("request_id", requestID).Msg("cancel number failed")
	}
}

// GetOtp is the client-driven OTP poll. Polls of one session are spaced by
// the throttle; a session past its deadline is expired and refunded here.
func (s *RentalServiceImpl) GetOtp(ctx context.Context, userID uuid.UUID, sessionID string) (*ports.OtpPollResult, error) {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if sess == nil {
		return nil, apperror.ErrSessionNotFound()
	}
	if sess.UserID != userID {
		return nil, apperror.ErrForbidden()
	}

	switch sess.Status {
	case domain.SessionCompleted:
		otp := ""
		if sess.OtpCode != nil {
			otp = *sess.OtpCode
		}
		return &ports.OtpPollResult{Status: "completed", Otp: otp, Message: "Đã nhận OTP"}, nil
	case domain.SessionExpired, domain.SessionFailed:
		return &ports.OtpPollResult{Status: "expired", Message: "Phiên đã kết thúc", Refunded: true}, nil
	}

	allowed, remaining, err := s.throttle.Allow(ctx, "otp:"+sessionID, s.pollInterval)
	if err != nil {
		s.log.Warn().Err(err).Str("session_id", sessionID).Msg("otp throttle check failed, allowing poll")
	} else if !allowed {
		sec := int(remaining.Seconds())
		if sec < 1 {
			sec = 1
		}
		return nil, apperror.ErrRateLimited(sec)
	}

	if sess.Expired(time.Now().UTC()) {
		refunded := s.expire(ctx, sess)
		return &ports.OtpPollResult{Status: "expired", Message: "Phiên đã hết hạn", Refunded: refunded}, nil
	}

	if sess.Status == domain.SessionWaiting || sess.ProviderRequestID == nil {
		return &ports.OtpPollResult{Status: "waiting", Message: "Đang chờ cấp số"}, nil
	}

	provider, ok := s.providers.ForTier(sess.Tier)
	if !ok {
		return nil, apperror.InternalError(fmt.Errorf("no provider for tier %s", sess.Tier))
	}

	res, err := provider.GetOtp(ctx, *sess.ProviderRequestID)
	if err != nil {
		// Transport trouble; the client polls again after the throttle window.
		return &ports.OtpPollResult{Status: "waiting", Message: "Đang chờ OTP"}, nil
	}

	switch res.State {
	case ports.OtpCompleted:
		ok, err := s.sessions.MarkCompleted(ctx, sessionID, res.Code)
		if err != nil {
			return nil, apperror.ErrDatabaseError(err)
		}
		if !ok {
			// Lost the race against the reaper; the refund already happened.
			return &ports.OtpPollResult{Status: "expired", Message: "Phiên đã hết hạn", Refunded: true}, nil
		}
		if sess.Tier == queuedTier && sess.PhoneNumber != nil {
			s.queue.Leave(sess.UserID.String(), *sess.PhoneNumber)
		}
		s.audit.Log(ctx, &domain.ActivityLog{
			ID:           uuid.New(),
			UserID:       &sess.UserID,
			Action:       domain.ActivitySessionEvent,
			ResourceType: "rental_session",
			ResourceID:   sessionID,
			Details:      `{"event":"completed"}`,
			CreatedAt:    time.Now().UTC(),
		})
		return &ports.OtpPollResult{Status: "completed", Otp: res.Code, Message: "Đã nhận OTP"}, nil

	case ports.OtpExpired:
		refunded := s.expire(ctx, sess)
		return &ports.OtpPollResult{Status: "expired", Message: "Số đã hết hạn phía nhà cung cấp", Refunded: refunded}, nil

	case ports.OtpError:
		if res.Retryable {
			return &ports.OtpPollResult{Status: "waiting", Message: "Đang chờ OTP"}, nil
		}
		refunded := s.expire(ctx, sess)
		return &ports.OtpPollResult{Status: "error", Message: "Nhà cung cấp báo lỗi", Refunded: refunded}, nil

	default:
		return &ports.OtpPollResult{Status: "waiting", Message: "Đang chờ OTP"}, nil
	}
}

// ActiveSessions lists the caller's live sessions, reaping any already past
// their deadline on the way.
func (s *RentalServiceImpl) ActiveSessions(ctx context.Context, userID uuid.UUID) ([]domain.RentalSession, error) {
	all, err := s.sessions.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	now := time.Now().UTC()
	live := make([]domain.RentalSession, 0, len(all))
	for i := range all {
		if all[i].Expired(now) {
			if err := s.ExpireSession(ctx, all[i].SessionID); err != nil {
				s.log.Warn().Err(err).Str("session_id", all[i].SessionID).Msg("opportunistic reap failed")
			}
			continue
		}
		live = append(live, all[i])
	}
	return live, nil
}

// ExpireSession finalizes one overdue session: CAS to EXPIRED, refund once,
// release the queue slot. Safe to call repeatedly; only the winning
// transition refunds.
func (s *RentalServiceImpl) ExpireSession(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if sess == nil {
		return apperror.ErrSessionNotFound()
	}
	if sess.Status.IsTerminal() {
		return nil
	}
	s.expire(ctx, sess)
	return nil
}

// expire performs the terminal EXPIRED transition and the single refund.
// Returns whether this call performed (or replayed) the refund.
func (s *RentalServiceImpl) expire(ctx context.Context, sess *domain.RentalSession) bool {
	ok, err := s.sessions.TransitionStatus(ctx, sess.SessionID,
		[]domain.SessionStatus{domain.SessionWaiting, domain.SessionAllocated},
		domain.SessionExpired)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sess.SessionID).Msg("expire transition failed")
		return false
	}
	if !ok {
		// Another writer finalized the session first.
		return false
	}

	if sess.Tier == queuedTier && sess.PhoneNumber != nil {
		s.queue.Leave(sess.UserID.String(), *sess.PhoneNumber)
	}

	s.refundSession(ctx, sess, nil)
	s.audit.Log(ctx, &domain.ActivityLog{
		ID:           uuid.New(),
		UserID:       &sess.UserID,
		Action:       domain.ActivitySessionEvent,
		ResourceType: "rental_session",
		ResourceID:   sess.SessionID,
		Details:      `{"event":"expired"}`,
		CreatedAt:    time.Now().UTC(),
	})
	return true
}

// RetryRefund re-runs the refund of an EXPIRED session. The reaper calls it
// for sessions whose refund reference has no ledger entry; the deterministic
// reference keeps a concurrent duplicate single-shot.
func (s *RentalServiceImpl) RetryRefund(ctx context.Context, sessionID string) error {
	sess, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if sess == nil {
		return apperror.ErrSessionNotFound()
	}
	if sess.Status != domain.SessionExpired && sess.Status != domain.SessionFailed {
		return nil
	}
	return s.refundSession(ctx, sess, nil)
}

// refundSession credits back the session charge. The deterministic reference
// makes repeated calls single-shot; a hard failure raises an urgent entry.
func (s *RentalServiceImpl) refundSession(ctx context.Context, sess *domain.RentalSession, linkedTxnID *uuid.UUID) error {
	_, err := s.wallet.Refund(ctx, ports.RefundParams{
		UserID:      sess.UserID,
		Amount:      sess.Cost,
		Reference:   domain.RefundReference(sess.ChargeReference()),
		Description: fmt.Sprintf("Hoàn tiền phiên thuê %s", sess.SessionID),
		LinkedTxnID: linkedTxnID,
	})
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sess.SessionID).Msg("session refund failed")
		s.audit.Log(ctx, &domain.ActivityLog{
			ID:           uuid.New(),
			UserID:       &sess.UserID,
			Action:       domain.ActivityRefundFailed,
			ResourceType: "rental_session",
			ResourceID:   sess.SessionID,
			Details:      fmt.Sprintf(`{"amount":%d,"error":%q}`, sess.Cost, err.Error()),
			Urgent:       true,
			CreatedAt:    time.Now().UTC(),
		})
		return err
	}
	return nil
}

func hasForbiddenPrefix(phone string) bool {
	normalized := strings.TrimPrefix(phone, "+84")
	normalized = strings.TrimPrefix(normalized, "84")
	normalized = strings.TrimPrefix(normalized, "0")
	for _, p := range forbiddenPrefixes {
		if strings.HasPrefix(normalized, p) {
			return true
		}
	}
	return false
}
