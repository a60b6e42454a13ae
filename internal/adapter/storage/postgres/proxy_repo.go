package postgres

import (
	"context"
	"fmt"

	"phone-rental-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ProxyRepo implements ports.ProxyRepository.
type ProxyRepo struct {
	pool Pool
}

// NewProxyRepo creates a new ProxyRepo.
func NewProxyRepo(pool Pool) *ProxyRepo {
	return &ProxyRepo{pool: pool}
}

const proxyColumns = `id, address, username, password, active, last_used_at, usage_count, created_at`

// Create inserts a proxy entry.
func (r *ProxyRepo) Create(ctx context.Context, p *domain.ProxyEntry) error {
	query := `INSERT INTO proxies (id, address, username, password, active, last_used_at, usage_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.Address, p.Username, p.Password,
		p.Active, p.LastUsedAt, p.UsageCount, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert proxy: %w", err)
	}
	return nil
}

// List fetches all proxies.
func (r *ProxyRepo) List(ctx context.Context) ([]domain.ProxyEntry, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxies ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list proxies: %w", err)
	}
	defer rows.Close()
	return collectProxies(rows)
}

// ListActive fetches only active proxies.
func (r *ProxyRepo) ListActive(ctx context.Context) ([]domain.ProxyEntry, error) {
	query := `SELECT ` + proxyColumns + ` FROM proxies WHERE active = true ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list active proxies: %w", err)
	}
	defer rows.Close()
	return collectProxies(rows)
}

// MarkUsed bumps the usage counter and timestamp.
func (r *ProxyRepo) MarkUsed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE proxies SET usage_count = usage_count + 1, last_used_at = NOW() WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("mark proxy used: %w", err)
	}
	return nil
}

// SetActive toggles a proxy in or out of the pool.
func (r *ProxyRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	query := `UPDATE proxies SET active = $1 WHERE id = $2`
	tag, err := r.pool.Exec(ctx, query, active, id)
	if err != nil {
		return fmt.Errorf("set proxy active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proxy not found: %s", id)
	}
	return nil
}

func collectProxies(rows pgx.Rows) ([]domain.ProxyEntry, error) {
	var proxies []domain.ProxyEntry
	for rows.Next() {
		p := domain.ProxyEntry{}
		err := rows.Scan(
			&p.ID, &p.Address, &p.Username, &p.Password,
			&p.Active, &p.LastUsedAt, &p.UsageCount, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan proxy row: %w", err)
		}
		proxies = append(proxies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proxy rows: %w", err)
	}
	return proxies, nil
}
