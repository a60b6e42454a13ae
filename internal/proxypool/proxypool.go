// Package proxypool maintains the in-memory working set of outbound proxies.
// The pool hands out active entries round-robin, records usage, and benches
// entries that fail until the next refresh re-admits them if the database
// still marks them active.
package proxypool

import (
	"context"
	"sync"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"
	"phone-rental-gateway/internal/upstream"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultRefreshInterval is how often the pool reloads the active set.
const DefaultRefreshInterval = 5 * time.Minute

// healthCheckTimeout bounds one per-entry liveness request.
const healthCheckTimeout = 5 * time.Second

// HealthCheckFunc issues one trivial request through the given proxy and
// returns nil when it answered.
type HealthCheckFunc func(ctx context.Context, proxy *domain.ProxyEntry) error

// Pool implements upstream.ProxySource over the proxy repository.
type Pool struct {
	repo  ports.ProxyRepository
	check HealthCheckFunc
	log   zerolog.Logger

	mu      sync.Mutex
	entries []domain.ProxyEntry
	benched map[uuid.UUID]struct{}
	cursor  int
}

var _ upstream.ProxySource = (*Pool)(nil)

// New creates an empty pool. Call Refresh (or Run) to populate it.
func New(repo ports.ProxyRepository, log zerolog.Logger) *Pool {
	return &Pool{
		repo:    repo,
		log:     log,
		benched: make(map[uuid.UUID]struct{}),
	}
}

// WithHealthCheck installs the per-entry liveness check used by CheckAll.
func (p *Pool) WithHealthCheck(fn HealthCheckFunc) *Pool {
	p.check = fn
	return p
}

// CheckAll runs the liveness check against every stored proxy, active or not,
// persists each verdict, and reloads the working set. A dead entry is
// deactivated until a later check sees it answer again.
func (p *Pool) CheckAll(ctx context.Context) (total, healthy int, err error) {
	all, err := p.repo.List(ctx)
	if err != nil {
		return 0, 0, err
	}

	if p.check != nil {
		for i := range all {
			e := all[i]
			cctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
			cerr := p.check(cctx, &e)
			cancel()

			alive := cerr == nil
			if alive {
				healthy++
			}
			if alive != e.Active {
				p.log.Info().
					Str("proxy_id", e.ID.String()).
					Str("address", e.Address).
					Bool("alive", alive).
					Msg("proxy liveness flipped")
			}
			if serr := p.repo.SetActive(ctx, e.ID, alive); serr != nil {
				p.log.Warn().Err(serr).Str("proxy_id", e.ID.String()).Msg("persisting proxy verdict failed")
			}
		}
	}

	if rerr := p.Refresh(ctx); rerr != nil {
		return len(all), healthy, rerr
	}
	return len(all), healthy, nil
}

// Refresh reloads the active proxy set from the database. Benched entries
// that are still active upstream get another chance.
func (p *Pool) Refresh(ctx context.Context) error {
	entries, err := p.repo.ListActive(ctx)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = entries
	p.benched = make(map[uuid.UUID]struct{})
	if p.cursor >= len(entries) {
		p.cursor = 0
	}
	p.log.Debug().Int("proxies", len(entries)).Msg("proxy pool refreshed")
	return nil
}

// Run refreshes the pool periodically until ctx is cancelled.
func (p *Pool) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.log.Error().Err(err).Msg("proxy pool refresh failed")
			}
		}
	}
}

// Next returns the next usable proxy round-robin, or nil when the pool has
// no usable entries.
func (p *Pool) Next() *domain.ProxyEntry {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.entries)
	for i := 0; i < n; i++ {
		e := p.entries[p.cursor%n]
		p.cursor = (p.cursor + 1) % n
		if _, down := p.benched[e.ID]; down {
			continue
		}
		out := e
		return &out
	}
	return nil
}

// MarkUsed records a successful use. Persistence is best-effort; the call
// happens on the request path and must not fail it.
func (p *Pool) MarkUsed(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.repo.MarkUsed(ctx, id); err != nil {
		p.log.Warn().Err(err).Str("proxy_id", id.String()).Msg("recording proxy usage failed")
	}
}

// MarkDown benches a proxy until the next refresh.
func (p *Pool) MarkDown(id uuid.UUID) {
	p.mu.Lock()
	p.benched[id] = struct{}{}
	remaining := len(p.entries) - len(p.benched)
	p.mu.Unlock()

	p.log.Warn().Str("proxy_id", id.String()).Int("remaining", remaining).Msg("proxy benched")
}

// Usable reports how many entries are currently eligible for Next.
func (p *Pool) Usable() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, e := range p.entries {
		if _, down := p.benched[e.ID]; !down {
			count++
		}
	}
	return count
}
