package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.uber.org/mock/gomock"
)

func TestReaper_Sweep_ExpiresEachOverdueSession(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sessions := mocks.NewMockRentalSessionRepository(ctrl)
	rentals := mocks.NewMockRentalService(ctrl)
	reaper := NewReaper(sessions, rentals, 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	overdue := []domain.RentalSession{
		{SessionID: "sess_a", UserID: uuid.New(), Status: domain.SessionAllocated},
		{SessionID: "sess_b", UserID: uuid.New(), Status: domain.SessionWaiting},
	}
	sessions.EXPECT().ListExpired(ctx, gomock.Any(), reaperBatchSize).Return(overdue, nil)
	rentals.EXPECT().ExpireSession(ctx, "sess_a").Return(nil)
	rentals.EXPECT().ExpireSession(ctx, "sess_b").Return(nil)
	sessions.EXPECT().ListRefundPending(ctx, reaperBatchSize).Return(nil, nil)

	reaper.Sweep(ctx)
}

func TestReaper_Sweep_ContinuesPastFailures(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sessions := mocks.NewMockRentalSessionRepository(ctrl)
	rentals := mocks.NewMockRentalService(ctrl)
	reaper := NewReaper(sessions, rentals, 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	overdue := []domain.RentalSession{
		{SessionID: "sess_a"},
		{SessionID: "sess_b"},
	}
	sessions.EXPECT().ListExpired(ctx, gomock.Any(), reaperBatchSize).Return(overdue, nil)
	rentals.EXPECT().ExpireSession(ctx, "sess_a").Return(errors.New("refund hiccup"))
	rentals.EXPECT().ExpireSession(ctx, "sess_b").Return(nil)
	sessions.EXPECT().ListRefundPending(ctx, reaperBatchSize).Return(nil, nil)

	reaper.Sweep(ctx)
}

func TestReaper_Sweep_RetriesUnsettledRefunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sessions := mocks.NewMockRentalSessionRepository(ctrl)
	rentals := mocks.NewMockRentalService(ctrl)
	reaper := NewReaper(sessions, rentals, 30*time.Second, zerolog.Nop())
	ctx := context.Background()

	// Nothing newly overdue, but two earlier expiries still owe a refund.
	pending := []domain.RentalSession{
		{SessionID: "sess_a", Status: domain.SessionExpired},
		{SessionID: "sess_b", Status: domain.SessionExpired},
	}
	sessions.EXPECT().ListExpired(ctx, gomock.Any(), reaperBatchSize).Return(nil, nil)
	sessions.EXPECT().ListRefundPending(ctx, reaperBatchSize).Return(pending, nil)
	rentals.EXPECT().RetryRefund(ctx, "sess_a").Return(errors.New("wallet write failed"))
	rentals.EXPECT().RetryRefund(ctx, "sess_b").Return(nil)

	reaper.Sweep(ctx)
}

func TestReaper_Sweep_NothingToDo(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sessions := mocks.NewMockRentalSessionRepository(ctrl)
	rentals := mocks.NewMockRentalService(ctrl)
	reaper := NewReaper(sessions, rentals, 30*time.Second, zerolog.Nop())

	sessions.EXPECT().ListExpired(gomock.Any(), gomock.Any(), reaperBatchSize).Return(nil, nil)
	sessions.EXPECT().ListRefundPending(gomock.Any(), reaperBatchSize).Return(nil, nil)

	reaper.Sweep(context.Background())
}

func TestReaper_Run_StopsOnContextCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	sessions := mocks.NewMockRentalSessionRepository(ctrl)
	rentals := mocks.NewMockRentalService(ctrl)
	sessions.EXPECT().ListExpired(gomock.Any(), gomock.Any(), reaperBatchSize).Return(nil, nil).AnyTimes()
	sessions.EXPECT().ListRefundPending(gomock.Any(), reaperBatchSize).Return(nil, nil).AnyTimes()

	reaper := NewReaper(sessions, rentals, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		reaper.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reaper did not stop after cancel")
	}
}
