package postgres

import (
	"context"
	"fmt"

	"phone-rental-gateway/internal/core/domain"
)

// ActivityRepo implements ports.ActivityRepository. The table is append-only.
type ActivityRepo struct {
	pool Pool
}

// NewActivityRepo creates a new ActivityRepo.
func NewActivityRepo(pool Pool) *ActivityRepo {
	return &ActivityRepo{pool: pool}
}

// Create appends one activity entry.
func (r *ActivityRepo) Create(ctx context.Context, entry *domain.ActivityLog) error {
	query := `INSERT INTO activity_log (id, user_id, action, resource_type, resource_id, details, urgent, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.UserID, entry.Action, entry.ResourceType,
		entry.ResourceID, entry.Details, entry.Urgent, entry.IPAddress, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert activity entry: %w", err)
	}
	return nil
}

// List fetches entries newest-first, optionally only urgent ones.
func (r *ActivityRepo) List(ctx context.Context, urgentOnly bool, page, pageSize int) ([]domain.ActivityLog, int64, error) {
	where := ""
	if urgentOnly {
		where = "WHERE urgent = true"
	}

	var total int64
	if err := r.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM activity_log %s", where),
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count activity entries: %w", err)
	}

	offset := (page - 1) * pageSize
	query := fmt.Sprintf(`SELECT id, user_id, action, resource_type, resource_id, details, urgent, ip_address, created_at
		FROM activity_log %s ORDER BY created_at DESC LIMIT $1 OFFSET $2`, where)

	rows, err := r.pool.Query(ctx, query, pageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list activity entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.ActivityLog
	for rows.Next() {
		e := domain.ActivityLog{}
		err := rows.Scan(
			&e.ID, &e.UserID, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.Details, &e.Urgent, &e.IPAddress, &e.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan activity entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate activity entries: %w", err)
	}
	return entries, total, nil
}
