package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/core/ports/mocks"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type walletTestDeps struct {
	svc        *WalletServiceImpl
	userRepo   *mocks.MockUserRepository
	txRepo     *mocks.MockTransactionRepository
	idempRepo  *mocks.MockIdempotencyRepository
	idempCache *mocks.MockIdempotencyCache
	transactor *mocks.MockDBTransactor
	audit      *mocks.MockAuditService
	ctrl       *gomock.Controller
}

func setupWalletService(t *testing.T) *walletTestDeps {
	ctrl := gomock.NewController(t)
	d := &walletTestDeps{
		userRepo:   mocks.NewMockUserRepository(ctrl),
		txRepo:     mocks.NewMockTransactionRepository(ctrl),
		idempRepo:  mocks.NewMockIdempotencyRepository(ctrl),
		idempCache: mocks.NewMockIdempotencyCache(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		audit:      mocks.NewMockAuditService(ctrl),
		ctrl:       ctrl,
	}
	d.audit.EXPECT().Log(gomock.Any(), gomock.Any()).AnyTimes()
	d.svc = NewWalletService(
		d.userRepo, d.txRepo, d.idempRepo, d.idempCache,
		d.transactor, d.audit, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func TestWalletService_Charge_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	// Redis cache miss, DB idempotency miss
	d.idempCache.EXPECT().Get(ctx, "sess_1").Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, "sess_1").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(&domain.User{
		ID: userID, Balance: 10000, Active: true,
	}, nil)
	d.userRepo.EXPECT().UpdateBalance(ctx, tx, userID, int64(8100)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "sess_1", gomock.Any(), idempotencyTTL).Return(nil)

	res, err := d.svc.Charge(ctx, ports.ChargeParams{
		UserID:    userID,
		Amount:    1900,
		Reference: "sess_1",
		Type:      domain.TransactionTypeRental,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.False(t, res.Duplicate)
	assert.Equal(t, int64(8100), res.BalanceAfter)
	assert.Equal(t, int64(-1900), res.Transaction.Amount)
	assert.Equal(t, int64(10000), res.Transaction.BalanceBefore)
	assert.Equal(t, domain.TransactionStatusCompleted, res.Transaction.Status)
}

func TestWalletService_Charge_InsufficientFunds(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, "sess_2").Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, "sess_2").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(&domain.User{
		ID: userID, Balance: 500,
	}, nil)

	_, err := d.svc.Charge(ctx, ports.ChargeParams{
		UserID:    userID,
		Amount:    1900,
		Reference: "sess_2",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, "PAY_001"))
}

func TestWalletService_Charge_InvalidAmount(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	for _, amount := range []int64{0, -100} {
		_, err := d.svc.Charge(context.Background(), ports.ChargeParams{
			UserID: uuid.New(),
			Amount: amount,
		})
		require.Error(t, err)
		assert.True(t, apperror.HasCode(err, "PAY_002"))
	}
}

func TestWalletService_Charge_DuplicateFromCache(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	prior := &domain.Transaction{
		ID:           uuid.New(),
		UserID:       userID,
		Type:         domain.TransactionTypeRental,
		Amount:       -1900,
		BalanceAfter: 8100,
		Status:       domain.TransactionStatusCompleted,
	}
	blob, err := json.Marshal(prior)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, "sess_1").Return(blob, nil)

	res, err := d.svc.Charge(ctx, ports.ChargeParams{
		UserID:    userID,
		Amount:    1900,
		Reference: "sess_1",
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, prior.ID, res.Transaction.ID)
	assert.Equal(t, int64(8100), res.BalanceAfter)
}

func TestWalletService_Charge_DuplicateFromDB(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	prior := &domain.Transaction{ID: uuid.New(), UserID: userID, Amount: -1900, BalanceAfter: 8100}
	blob, err := json.Marshal(prior)
	require.NoError(t, err)

	// Cache miss falls through to the DB index.
	d.idempCache.EXPECT().Get(ctx, "sess_1").Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, "sess_1").Return(&domain.IdempotencyRecord{
		Key:           "sess_1",
		TransactionID: prior.ID,
		ResponseJSON:  blob,
	}, nil)

	res, err := d.svc.Charge(ctx, ports.ChargeParams{
		UserID:    userID,
		Amount:    1900,
		Reference: "sess_1",
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, prior.ID, res.Transaction.ID)
}

func TestWalletService_Charge_RacingDuplicateReplaysWinner(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	winner := &domain.Transaction{
		ID: uuid.New(), UserID: userID,
		Type: domain.TransactionTypeRental, Amount: -1900, BalanceAfter: 8100,
		Status: domain.TransactionStatusCompleted,
	}
	blob, err := json.Marshal(winner)
	require.NoError(t, err)

	// The first replay check sees nothing; the race is lost at the insert.
	d.idempCache.EXPECT().Get(ctx, "sess_1").Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, "sess_1").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(&domain.User{
		ID: userID, Balance: 10000,
	}, nil)
	d.userRepo.EXPECT().UpdateBalance(ctx, tx, userID, int64(8100)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrDuplicateReference)

	// After rolling back, the loser reads the winner's committed outcome.
	d.idempCache.EXPECT().Get(ctx, "sess_1").Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, "sess_1").Return(&domain.IdempotencyRecord{
		Key:           "sess_1",
		TransactionID: winner.ID,
		ResponseJSON:  blob,
	}, nil)

	res, err := d.svc.Charge(ctx, ports.ChargeParams{
		UserID:    userID,
		Amount:    1900,
		Reference: "sess_1",
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate, "race loser must serve the winner's outcome")
	assert.Equal(t, winner.ID, res.Transaction.ID)
	assert.Equal(t, int64(8100), res.BalanceAfter)
}

func TestWalletService_Charge_RacingDuplicateWithoutRecord(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, "sess_1").Return(nil, nil).Times(2)
	d.idempRepo.EXPECT().Get(ctx, "sess_1").Return(nil, nil).Times(2)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(&domain.User{
		ID: userID, Balance: 10000,
	}, nil)
	d.userRepo.EXPECT().UpdateBalance(ctx, tx, userID, int64(8100)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(ports.ErrDuplicateReference)

	// No winner record surfaced on the re-read; the conflict is reported.
	_, err := d.svc.Charge(ctx, ports.ChargeParams{
		UserID:    userID,
		Amount:    1900,
		Reference: "sess_1",
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, "PAY_003"))
}

func TestWalletService_Refund_RequiresReference(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	_, err := d.svc.Refund(context.Background(), ports.RefundParams{
		UserID: uuid.New(),
		Amount: 1900,
	})
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, "VAL_001"))
}

func TestWalletService_Refund_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	chargeTxnID := uuid.New()
	tx := &mockTx{}
	ref := domain.RefundReference("sess_1")

	d.idempCache.EXPECT().Get(ctx, ref).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, ref).Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(&domain.User{
		ID: userID, Balance: 8100,
	}, nil)
	d.userRepo.EXPECT().UpdateBalance(ctx, tx, userID, int64(10000)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeRefund, txn.Type)
			assert.Equal(t, int64(1900), txn.Amount)
			require.NotNil(t, txn.LinkedTxnID)
			assert.Equal(t, chargeTxnID, *txn.LinkedTxnID)
			return nil
		})
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, ref, gomock.Any(), idempotencyTTL).Return(nil)

	res, err := d.svc.Refund(ctx, ports.RefundParams{
		UserID:      userID,
		Amount:      1900,
		Reference:   ref,
		LinkedTxnID: &chargeTxnID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10000), res.BalanceAfter)
}

func TestWalletService_Refund_SecondCallReplays(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	ref := domain.RefundReference("sess_1")
	prior := &domain.Transaction{ID: uuid.New(), UserID: userID, Amount: 1900, BalanceAfter: 10000}
	blob, err := json.Marshal(prior)
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, ref).Return(blob, nil)

	res, err := d.svc.Refund(ctx, ports.RefundParams{
		UserID:    userID,
		Amount:    1900,
		Reference: ref,
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate, "repeated refund must replay, not credit twice")
	assert.Equal(t, int64(10000), res.BalanceAfter)
}

func TestWalletService_AdminAdjust_Debit(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	operatorID := uuid.New()
	tx := &mockTx{}

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(&domain.User{
		ID: userID, Balance: 10000,
	}, nil)
	d.userRepo.EXPECT().UpdateBalance(ctx, tx, userID, int64(7000)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeDebit, txn.Type)
			require.NotNil(t, txn.OperatorID)
			assert.Equal(t, operatorID, *txn.OperatorID)
			return nil
		})

	res, err := d.svc.AdminAdjust(ctx, ports.AdjustParams{
		UserID:     userID,
		Amount:     -3000,
		Reason:     "khấu trừ thủ công",
		OperatorID: operatorID,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7000), res.BalanceAfter)
}

func TestWalletService_Balance(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(&domain.User{ID: userID, Balance: 4200}, nil)

	balance, err := d.svc.Balance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(4200), balance)
}

func TestWalletService_Balance_UserMissing(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	d.userRepo.EXPECT().GetByID(ctx, userID).Return(nil, nil)

	_, err := d.svc.Balance(ctx, userID)
	require.Error(t, err)
	assert.True(t, apperror.HasCode(err, "PAY_004"))
}

func TestWalletService_Charge_RedisDownFallsThrough(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	// Redis errors must not block the charge; the DB index is authoritative.
	d.idempCache.EXPECT().Get(ctx, "sess_9").Return(nil, errors.New("redis down"))
	d.idempRepo.EXPECT().Get(ctx, "sess_9").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(&domain.User{
		ID: userID, Balance: 5000,
	}, nil)
	d.userRepo.EXPECT().UpdateBalance(ctx, tx, userID, int64(4000)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "sess_9", gomock.Any(), idempotencyTTL).Return(errors.New("redis down"))

	res, err := d.svc.Charge(ctx, ports.ChargeParams{
		UserID:    userID,
		Amount:    1000,
		Reference: "sess_9",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(4000), res.BalanceAfter)
}

func TestWalletService_Deposit_Success(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, "deposit:FT001").Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, "deposit:FT001").Return(nil, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.userRepo.EXPECT().GetByIDForUpdate(ctx, tx, userID).Return(&domain.User{
		ID: userID, Balance: 1000,
	}, nil)
	d.userRepo.EXPECT().UpdateBalance(ctx, tx, userID, int64(51000)).Return(nil)
	d.txRepo.EXPECT().Create(ctx, tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			assert.Equal(t, domain.TransactionTypeDeposit, txn.Type)
			assert.Equal(t, int64(50000), txn.Amount)
			return nil
		})
	d.idempRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.idempCache.EXPECT().Set(ctx, "deposit:FT001", gomock.Any(), idempotencyTTL).Return(nil)

	res, err := d.svc.Deposit(ctx, ports.DepositParams{
		UserID:    userID,
		Amount:    50000,
		Reference: "deposit:FT001",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(51000), res.BalanceAfter)
}

func TestWalletService_Deposit_ReplayedWebhook(t *testing.T) {
	d := setupWalletService(t)
	defer d.ctrl.Finish()

	ctx := context.Background()
	userID := uuid.New()

	prior := &domain.Transaction{
		ID: uuid.New(), UserID: userID,
		Type: domain.TransactionTypeDeposit, Amount: 50000, BalanceAfter: 51000,
	}
	blob, _ := json.Marshal(prior)
	d.idempCache.EXPECT().Get(ctx, "deposit:FT001").Return(blob, nil)

	res, err := d.svc.Deposit(ctx, ports.DepositParams{
		UserID:    userID,
		Amount:    50000,
		Reference: "deposit:FT001",
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.Equal(t, int64(51000), res.BalanceAfter)
}
