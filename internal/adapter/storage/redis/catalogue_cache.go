package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultCatalogueTTL bounds how stale a cached voucher catalogue may be.
const DefaultCatalogueTTL = 30 * time.Minute

// CatalogueCache implements ports.CatalogueCache. The catalogue is one
// shared blob; vouchers are not user-specific.
type CatalogueCache struct {
	client *goredis.Client
	key    string
}

// NewCatalogueCache creates a new Redis-backed catalogue cache.
func NewCatalogueCache(client *goredis.Client) *CatalogueCache {
	return &CatalogueCache{
		client: client,
		key:    "voucher:catalogue",
	}
}

// Get retrieves the cached catalogue blob. Returns nil, nil when absent.
func (c *CatalogueCache) Get(ctx context.Context) ([]byte, error) {
	val, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis catalogue get: %w", err)
	}
	return val, nil
}

// Set stores the catalogue blob with TTL.
func (c *CatalogueCache) Set(ctx context.Context, blob []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultCatalogueTTL
	}
	if err := c.client.Set(ctx, c.key, blob, ttl).Err(); err != nil {
		return fmt.Errorf("redis catalogue set: %w", err)
	}
	return nil
}
