package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"phone-rental-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RentalRepo implements ports.RentalSessionRepository. Status transitions
// are compare-and-set: the UPDATE carries the expected current status in its
// WHERE clause, so two racing transitions cannot both commit.
type RentalRepo struct {
	pool Pool
}

// NewRentalRepo creates a new RentalRepo.
func NewRentalRepo(pool Pool) *RentalRepo {
	return &RentalRepo{pool: pool}
}

const rentalColumns = `session_id, user_id, tier, carrier, phone_number, provider_request_id,
	status, otp_code, cost, provider_response, start_at, expires_at, completed_at`

// Create inserts a session row inside the same database transaction as its
// wallet charge.
func (r *RentalRepo) Create(ctx context.Context, tx pgx.Tx, s *domain.RentalSession) error {
	query := `INSERT INTO rental_sessions (session_id, user_id, tier, carrier, phone_number,
		provider_request_id, status, otp_code, cost, provider_response, start_at, expires_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		s.SessionID, s.UserID, s.Tier, s.Carrier, s.PhoneNumber,
		s.ProviderRequestID, s.Status, s.OtpCode, s.Cost, s.ProviderResponse,
		s.StartAt, s.ExpiresAt, s.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert rental session: %w", err)
	}
	return nil
}

// GetByID fetches a session by its id.
func (r *RentalRepo) GetByID(ctx context.Context, sessionID string) (*domain.RentalSession, error) {
	query := `SELECT ` + rentalColumns + ` FROM rental_sessions WHERE session_id = $1`
	return scanRentalSession(r.pool.QueryRow(ctx, query, sessionID))
}

// ListActiveByUser fetches a user's non-terminal sessions.
func (r *RentalRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]domain.RentalSession, error) {
	query := `SELECT ` + rentalColumns + ` FROM rental_sessions
		WHERE user_id = $1 AND status IN ('WAITING', 'ALLOCATED')
		ORDER BY start_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list active sessions: %w", err)
	}
	defer rows.Close()
	return collectRentalSessions(rows)
}

// ListExpired fetches non-terminal sessions whose deadline has passed.
func (r *RentalRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.RentalSession, error) {
	query := `SELECT ` + rentalColumns + ` FROM rental_sessions
		WHERE status IN ('WAITING', 'ALLOCATED') AND expires_at < $1
		ORDER BY expires_at ASC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired sessions: %w", err)
	}
	defer rows.Close()
	return collectRentalSessions(rows)
}

// ListRefundPending fetches EXPIRED/FAILED sessions whose refund reference
// never produced a ledger entry, so the reaper can re-attempt the credit.
func (r *RentalRepo) ListRefundPending(ctx context.Context, limit int) ([]domain.RentalSession, error) {
	query := `SELECT ` + rentalColumns + ` FROM rental_sessions
		WHERE status IN ('EXPIRED', 'FAILED')
		AND NOT EXISTS (
			SELECT 1 FROM transactions t WHERE t.reference = 'refund:' || rental_sessions.session_id
		)
		ORDER BY expires_at ASC LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list refund-pending sessions: %w", err)
	}
	defer rows.Close()
	return collectRentalSessions(rows)
}

// MarkAllocated performs the WAITING → ALLOCATED transition.
func (r *RentalRepo) MarkAllocated(ctx context.Context, sessionID, phoneNumber, providerRequestID string, providerResponse []byte) (bool, error) {
	query := `UPDATE rental_sessions
		SET status = 'ALLOCATED', phone_number = $1, provider_request_id = $2, provider_response = $3
		WHERE session_id = $4 AND status = 'WAITING'`

	tag, err := r.pool.Exec(ctx, query, phoneNumber, providerRequestID, providerResponse, sessionID)
	if err != nil {
		return false, fmt.Errorf("mark session allocated: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkCompleted performs the ALLOCATED → COMPLETED transition with the OTP.
func (r *RentalRepo) MarkCompleted(ctx context.Context, sessionID, otpCode string) (bool, error) {
	query := `UPDATE rental_sessions
		SET status = 'COMPLETED', otp_code = $1, completed_at = NOW()
		WHERE session_id = $2 AND status = 'ALLOCATED'`

	tag, err := r.pool.Exec(ctx, query, otpCode, sessionID)
	if err != nil {
		return false, fmt.Errorf("mark session completed: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// TransitionStatus moves the session to a terminal state if its current
// status is one of from.
func (r *RentalRepo) TransitionStatus(ctx context.Context, sessionID string, from []domain.SessionStatus, to domain.SessionStatus) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("transition requires at least one source status")
	}

	statuses := make([]string, len(from))
	for i, s := range from {
		statuses[i] = string(s)
	}

	query := `UPDATE rental_sessions SET status = $1
		WHERE session_id = $2 AND status = ANY($3)`

	tag, err := r.pool.Exec(ctx, query, to, sessionID, statuses)
	if err != nil {
		return false, fmt.Errorf("transition session status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func scanRentalSession(row pgx.Row) (*domain.RentalSession, error) {
	s := &domain.RentalSession{}
	err := row.Scan(
		&s.SessionID, &s.UserID, &s.Tier, &s.Carrier, &s.PhoneNumber,
		&s.ProviderRequestID, &s.Status, &s.OtpCode, &s.Cost, &s.ProviderResponse,
		&s.StartAt, &s.ExpiresAt, &s.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan rental session: %w", err)
	}
	return s, nil
}

func collectRentalSessions(rows pgx.Rows) ([]domain.RentalSession, error) {
	var sessions []domain.RentalSession
	for rows.Next() {
		s := domain.RentalSession{}
		err := rows.Scan(
			&s.SessionID, &s.UserID, &s.Tier, &s.Carrier, &s.PhoneNumber,
			&s.ProviderRequestID, &s.Status, &s.OtpCode, &s.Cost, &s.ProviderResponse,
			&s.StartAt, &s.ExpiresAt, &s.CompletedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan rental session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rental session rows: %w", err)
	}
	return sessions, nil
}
