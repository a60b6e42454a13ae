package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const idempotencyTTL = 24 * time.Hour

// WalletServiceImpl implements ports.WalletService. Every primitive locks
// the user row (SELECT ... FOR UPDATE) and commits the balance update, the
// ledger entry, and the idempotency record in one database transaction.
type WalletServiceImpl struct {
	userRepo   ports.UserRepository
	txRepo     ports.TransactionRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	audit      ports.AuditService
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	userRepo ports.UserRepository,
	txRepo ports.TransactionRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	audit ports.AuditService,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		userRepo:   userRepo,
		txRepo:     txRepo,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		transactor: transactor,
		audit:      audit,
		log:        log,
	}
}

// Charge debits a wallet. A reference that already produced a completed
// transaction returns the prior outcome with Duplicate set and no side
// effect.
func (s *WalletServiceImpl) Charge(ctx context.Context, p ports.ChargeParams) (*ports.WalletResult, error) {
	if p.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if p.Type == "" {
		p.Type = domain.TransactionTypeCharge
	}

	if p.Reference != "" {
		if prior, err := s.replay(ctx, p.Reference); err != nil {
			return nil, err
		} else if prior != nil {
			return prior, nil
		}
	}

	return s.apply(ctx, applyParams{
		userID:      p.UserID,
		amount:      -p.Amount,
		reference:   p.Reference,
		txnType:     p.Type,
		description: p.Description,
	})
}

// Refund credits back an earlier charge. The reference (conventionally
// domain.RefundReference of the charge reference) makes the refund
// single-shot.
func (s *WalletServiceImpl) Refund(ctx context.Context, p ports.RefundParams) (*ports.WalletResult, error) {
	if p.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if p.Reference == "" {
		return nil, apperror.Validation("thiếu mã tham chiếu hoàn tiền")
	}

	if prior, err := s.replay(ctx, p.Reference); err != nil {
		return nil, err
	} else if prior != nil {
		return prior, nil
	}

	result, err := s.apply(ctx, applyParams{
		userID:      p.UserID,
		amount:      p.Amount,
		reference:   p.Reference,
		txnType:     domain.TransactionTypeRefund,
		description: p.Description,
		linkedTxnID: p.LinkedTxnID,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, &domain.ActivityLog{
		ID:           uuid.New(),
		UserID:       &p.UserID,
		Action:       domain.ActivityRefund,
		ResourceType: "transaction",
		ResourceID:   result.Transaction.ID.String(),
		Details:      fmt.Sprintf(`{"amount":%d,"reference":%q}`, p.Amount, p.Reference),
		CreatedAt:    time.Now().UTC(),
	})
	return result, nil
}

// Deposit credits a wallet from a confirmed bank transfer. The bank
// transaction reference makes webhook replays single-shot.
func (s *WalletServiceImpl) Deposit(ctx context.Context, p ports.DepositParams) (*ports.WalletResult, error) {
	if p.Amount <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}
	if p.Reference == "" {
		return nil, apperror.Validation("thiếu mã giao dịch ngân hàng")
	}

	if prior, err := s.replay(ctx, p.Reference); err != nil {
		return nil, err
	} else if prior != nil {
		return prior, nil
	}

	result, err := s.apply(ctx, applyParams{
		userID:      p.UserID,
		amount:      p.Amount,
		reference:   p.Reference,
		txnType:     domain.TransactionTypeDeposit,
		description: p.Description,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, &domain.ActivityLog{
		ID:           uuid.New(),
		UserID:       &p.UserID,
		Action:       domain.ActivityBalanceChange,
		ResourceType: "transaction",
		ResourceID:   result.Transaction.ID.String(),
		Details:      fmt.Sprintf(`{"amount":%d,"reference":%q}`, p.Amount, p.Reference),
		CreatedAt:    time.Now().UTC(),
	})
	return result, nil
}

// AdminAdjust applies an operator-initiated signed balance change.
func (s *WalletServiceImpl) AdminAdjust(ctx context.Context, p ports.AdjustParams) (*ports.WalletResult, error) {
	if p.Amount == 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	txnType := domain.TransactionTypeCredit
	if p.Amount < 0 {
		txnType = domain.TransactionTypeDebit
	}

	result, err := s.apply(ctx, applyParams{
		userID:      p.UserID,
		amount:      p.Amount,
		txnType:     txnType,
		description: p.Reason,
		operatorID:  &p.OperatorID,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Log(ctx, &domain.ActivityLog{
		ID:           uuid.New(),
		UserID:       &p.UserID,
		Action:       domain.ActivityAdminAdjust,
		ResourceType: "transaction",
		ResourceID:   result.Transaction.ID.String(),
		Details:      fmt.Sprintf(`{"amount":%d,"operator":%q}`, p.Amount, p.OperatorID.String()),
		CreatedAt:    time.Now().UTC(),
	})
	return result, nil
}

// Balance reads the current balance without locking.
func (s *WalletServiceImpl) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return 0, apperror.ErrDatabaseError(err)
	}
	if user == nil {
		return 0, apperror.ErrNotFound("người dùng")
	}
	return user.Balance, nil
}

// replay checks the Redis fast path and then the idempotency table for a
// prior outcome of this reference.
func (s *WalletServiceImpl) replay(ctx context.Context, reference string) (*ports.WalletResult, error) {
	cached, err := s.idempCache.Get(ctx, reference)
	if err != nil {
		s.log.Warn().Err(err).Str("key", reference).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return s.unmarshalDuplicate(cached)
	}

	rec, err := s.idempRepo.Get(ctx, reference)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("db idempotency check: %w", err))
	}
	if rec != nil {
		return s.unmarshalDuplicate(rec.ResponseJSON)
	}
	return nil, nil
}

type applyParams struct {
	userID      uuid.UUID
	amount      int64 // Signed; negative debits
	reference   string
	txnType     domain.TransactionType
	description string
	operatorID  *uuid.UUID
	linkedTxnID *uuid.UUID
}

// apply runs the single wallet write path: lock row, check funds, insert
// ledger entry + idempotency record, update balance, commit.
func (s *WalletServiceImpl) apply(ctx context.Context, p applyParams) (*ports.WalletResult, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	user, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, p.userID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("lock user: %w", err))
	}
	if user == nil {
		return nil, apperror.ErrNotFound("người dùng")
	}

	newBalance := user.Balance + p.amount
	if newBalance < 0 {
		return nil, apperror.ErrInsufficientFunds()
	}

	now := time.Now().UTC()
	var ref *string
	if p.reference != "" {
		ref = &p.reference
	}
	txn := &domain.Transaction{
		ID:            uuid.New(),
		UserID:        p.userID,
		Type:          p.txnType,
		Amount:        p.amount,
		Reference:     ref,
		Status:        domain.TransactionStatusCompleted,
		BalanceBefore: user.Balance,
		BalanceAfter:  newBalance,
		Description:   p.description,
		OperatorID:    p.operatorID,
		LinkedTxnID:   p.linkedTxnID,
		CreatedAt:     now,
	}

	if err := s.userRepo.UpdateBalance(ctx, dbTx, p.userID, newBalance); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("update balance: %w", err))
	}
	if err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		if errors.Is(err, ports.ErrDuplicateReference) {
			return s.replayAfterLostRace(ctx, dbTx, p.reference)
		}
		return nil, apperror.InternalError(fmt.Errorf("create transaction: %w", err))
	}

	var respJSON []byte
	if p.reference != "" {
		respJSON, err = json.Marshal(txn)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		rec := &domain.IdempotencyRecord{
			Key:           p.reference,
			TransactionID: txn.ID,
			ResponseJSON:  respJSON,
			CreatedAt:     now,
		}
		if err := s.idempRepo.Create(ctx, dbTx, rec); err != nil {
			if errors.Is(err, ports.ErrDuplicateReference) {
				return s.replayAfterLostRace(ctx, dbTx, p.reference)
			}
			return nil, apperror.InternalError(fmt.Errorf("save idempotency record: %w", err))
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	if p.reference != "" {
		if err := s.idempCache.Set(ctx, p.reference, respJSON, idempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", p.reference).Msg("failed to cache idempotency in redis")
		}
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("user_id", p.userID.String()).
		Str("type", string(p.txnType)).
		Int64("amount", p.amount).
		Int64("balance_after", newBalance).
		Msg("wallet transaction committed")

	return &ports.WalletResult{Transaction: txn, BalanceAfter: newBalance}, nil
}

// replayAfterLostRace handles a unique-violation on the reference: the racing
// writer has already committed, so the loser rolls back and serves the
// winner's outcome. The unique index only rejects after the winner's commit,
// which makes the follow-up read hit.
func (s *WalletServiceImpl) replayAfterLostRace(ctx context.Context, dbTx pgx.Tx, reference string) (*ports.WalletResult, error) {
	if err := dbTx.Rollback(ctx); err != nil {
		s.log.Warn().Err(err).Str("key", reference).Msg("rollback after lost reference race failed")
	}
	if reference == "" {
		return nil, apperror.ErrDuplicateReference()
	}
	prior, err := s.replay(ctx, reference)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, apperror.ErrDuplicateReference()
	}
	return prior, nil
}

// unmarshalDuplicate rebuilds a WalletResult from a cached prior outcome.
func (s *WalletServiceImpl) unmarshalDuplicate(data []byte) (*ports.WalletResult, error) {
	txn := &domain.Transaction{}
	if err := json.Unmarshal(data, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached tx: %w", err))
	}
	return &ports.WalletResult{
		Transaction:  txn,
		BalanceAfter: txn.BalanceAfter,
		Duplicate:    true,
	}, nil
}
