package postgres

import (
	"context"
	"errors"
	"fmt"

	"phone-rental-gateway/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// PriceRepo implements ports.ServicePriceRepository.
type PriceRepo struct {
	pool Pool
}

// NewPriceRepo creates a new PriceRepo.
func NewPriceRepo(pool Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

// Get fetches the price of one service key. Nil when unpriced.
func (r *PriceRepo) Get(ctx context.Context, serviceKey string) (*domain.ServicePrice, error) {
	query := `SELECT service_key, price, updated_at FROM service_prices WHERE service_key = $1`

	p := &domain.ServicePrice{}
	err := r.pool.QueryRow(ctx, query, serviceKey).Scan(&p.ServiceKey, &p.Price, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get service price: %w", err)
	}
	return p, nil
}

// Upsert creates or replaces a price.
func (r *PriceRepo) Upsert(ctx context.Context, p *domain.ServicePrice) error {
	query := `INSERT INTO service_prices (service_key, price, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (service_key) DO UPDATE SET price = EXCLUDED.price, updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, p.ServiceKey, p.Price); err != nil {
		return fmt.Errorf("upsert service price: %w", err)
	}
	return nil
}

// List fetches all prices.
func (r *PriceRepo) List(ctx context.Context) ([]domain.ServicePrice, error) {
	query := `SELECT service_key, price, updated_at FROM service_prices ORDER BY service_key ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list service prices: %w", err)
	}
	defer rows.Close()

	var prices []domain.ServicePrice
	for rows.Next() {
		p := domain.ServicePrice{}
		if err := rows.Scan(&p.ServiceKey, &p.Price, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan service price: %w", err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service prices: %w", err)
	}
	return prices, nil
}
