package service

import (
	"context"
	"time"

	"phone-rental-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// reaperBatchSize bounds one sweep; stragglers wait for the next tick.
const reaperBatchSize = 100

// Reaper periodically finalizes overdue rental sessions. Each sweep is
// idempotent: the refund reference and the status compare-and-set make
// overlapping or repeated runs safe.
type Reaper struct {
	sessions ports.RentalSessionRepository
	rentals  ports.RentalService
	interval time.Duration
	log      zerolog.Logger
}

// NewReaper creates a new Reaper.
func NewReaper(sessions ports.RentalSessionRepository, rentals ports.RentalService, interval time.Duration, log zerolog.Logger) *Reaper {
	return &Reaper{
		sessions: sessions,
		rentals:  rentals,
		interval: interval,
		log:      log,
	}
}

// Run sweeps on a ticker until ctx is canceled. Call from a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Msg("session reaper started")
	for {
		select {
		case <-ctx.Done():
			r.log.Info().Msg("session reaper stopped")
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep expires every overdue WAITING/ALLOCATED session found right now,
// then re-attempts refunds that failed on an earlier pass.
func (r *Reaper) Sweep(ctx context.Context) {
	expired, err := r.sessions.ListExpired(ctx, time.Now().UTC(), reaperBatchSize)
	if err != nil {
		r.log.Error().Err(err).Msg("reaper scan failed")
		return
	}
	if len(expired) > 0 {
		r.log.Info().Int("count", len(expired)).Msg("reaping overdue sessions")
		for i := range expired {
			if err := r.rentals.ExpireSession(ctx, expired[i].SessionID); err != nil {
				r.log.Warn().Err(err).Str("session_id", expired[i].SessionID).Msg("reap failed")
			}
		}
	}

	r.retryRefunds(ctx)
}

// retryRefunds credits back terminal sessions whose earlier refund did not
// commit. The deterministic refund reference makes a rerun single-shot even
// when a slow first attempt lands later.
func (r *Reaper) retryRefunds(ctx context.Context) {
	pending, err := r.sessions.ListRefundPending(ctx, reaperBatchSize)
	if err != nil {
		r.log.Error().Err(err).Msg("refund-pending scan failed")
		return
	}
	if len(pending) == 0 {
		return
	}

	r.log.Info().Int("count", len(pending)).Msg("retrying unsettled session refunds")
	for i := range pending {
		if err := r.rentals.RetryRefund(ctx, pending[i].SessionID); err != nil {
			r.log.Warn().Err(err).Str("session_id", pending[i].SessionID).Msg("refund retry failed")
		}
	}
}
