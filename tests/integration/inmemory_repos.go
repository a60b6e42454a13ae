package integration

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"phone-rental-gateway/internal/core/domain"
	"phone-rental-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// The in-memory repos mirror the PostgreSQL adapter's transactional
// behavior: serialTransactor admits one writer at a time (standing in for
// SELECT ... FOR UPDATE) and memTx journals undo callbacks, so a rollback
// really undoes the writes. This keeps the concurrency tests deterministic.

type serialTransactor struct {
	mu sync.Mutex
}

func newSerialTransactor() *serialTransactor {
	return &serialTransactor{}
}

func (t *serialTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	t.mu.Lock()
	return &memTx{unlock: &t.mu}, nil
}

// memTx is handed to the repos as pgx.Tx. Repos type-assert it to register
// undo callbacks for their writes.
type memTx struct {
	noopTx
	unlock *sync.Mutex
	once   sync.Once
	undo   []func()
}

func (t *memTx) onRollback(f func()) {
	t.undo = append(t.undo, f)
}

func (t *memTx) Commit(ctx context.Context) error {
	t.once.Do(func() {
		t.undo = nil
		t.unlock.Unlock()
	})
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.once.Do(func() {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.undo = nil
		t.unlock.Unlock()
	})
	return nil
}

// --- In-memory user repo ---

type inMemoryUserRepo struct {
	mu    sync.RWMutex
	users map[uuid.UUID]*domain.User
}

func newInMemoryUserRepo() *inMemoryUserRepo {
	return &inMemoryUserRepo{users: make(map[uuid.UUID]*domain.User)}
}

func (r *inMemoryUserRepo) Create(ctx context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Username == u.Username {
			return fmt.Errorf("username taken: %s", u.Username)
		}
	}
	cp := *u
	r.users[u.ID] = &cp
	return nil
}

func (r *inMemoryUserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (r *inMemoryUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) GetByAPIKey(ctx context.Context, apiKey string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if u.APIKey == apiKey && u.Active {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryUserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	return r.GetByID(ctx, id)
}

func (r *inMemoryUserRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, id uuid.UUID, newBalance int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user not found: %s", id)
	}
	prev := u.Balance
	if mt, ok := tx.(*memTx); ok {
		mt.onRollback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if cur, ok := r.users[id]; ok {
				cur.Balance = prev
			}
		})
	}
	u.Balance = newBalance
	u.UpdatedAt = time.Now().UTC()
	return nil
}

// --- In-memory transaction repo ---

type inMemoryTransactionRepo struct {
	mu    sync.RWMutex
	txns  map[uuid.UUID]*domain.Transaction
	byRef map[string]uuid.UUID
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{
		txns:  make(map[uuid.UUID]*domain.Transaction),
		byRef: make(map[string]uuid.UUID),
	}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t.Reference != nil {
		if _, exists := r.byRef[*t.Reference]; exists {
			return ports.ErrDuplicateReference
		}
	}
	cp := *t
	r.txns[t.ID] = &cp
	if t.Reference != nil {
		r.byRef[*t.Reference] = t.ID
	}
	id, ref := t.ID, t.Reference
	if mt, ok := tx.(*memTx); ok {
		mt.onRollback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.txns, id)
			if ref != nil {
				delete(r.byRef, *ref)
			}
		})
	}
	return nil
}

func (r *inMemoryTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.txns[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *inMemoryTransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byRef[reference]
	if !ok {
		return nil, nil
	}
	cp := *r.txns[id]
	return &cp, nil
}

func (r *inMemoryTransactionRepo) ListByUser(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []domain.Transaction
	for _, t := range r.txns {
		if t.UserID == userID {
			all = append(all, *t)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	total := int64(len(all))
	start := (page - 1) * pageSize
	if start >= len(all) {
		return []domain.Transaction{}, total, nil
	}
	end := start + pageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

// --- In-memory idempotency repo ---

type inMemoryIdempotencyRepo struct {
	mu   sync.RWMutex
	recs map[string]*domain.IdempotencyRecord
}

func newInMemoryIdempotencyRepo() *inMemoryIdempotencyRepo {
	return &inMemoryIdempotencyRepo{recs: make(map[string]*domain.IdempotencyRecord)}
}

func (r *inMemoryIdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.recs[rec.Key]; exists {
		return ports.ErrDuplicateReference
	}
	cp := *rec
	r.recs[rec.Key] = &cp
	key := rec.Key
	if mt, ok := tx.(*memTx); ok {
		mt.onRollback(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			delete(r.recs, key)
		})
	}
	return nil
}

func (r *inMemoryIdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recs[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

// --- In-memory activity repo ---

type inMemoryActivityRepo struct {
	mu      sync.RWMutex
	entries []domain.ActivityLog
}

func newInMemoryActivityRepo() *inMemoryActivityRepo {
	return &inMemoryActivityRepo{}
}

func (r *inMemoryActivityRepo) Create(ctx context.Context, entry *domain.ActivityLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

func (r *inMemoryActivityRepo) List(ctx context.Context, urgentOnly bool, page, pageSize int) ([]domain.ActivityLog, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.ActivityLog
	for _, e := range r.entries {
		if urgentOnly && !e.Urgent {
			continue
		}
		matched = append(matched, e)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return []domain.ActivityLog{}, total, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// noopTx satisfies the parts of pgx.Tx the repos never touch.
type noopTx struct{}

func (t noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, nil }
func (t noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t noopTx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }
func (t noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t noopTx) Conn() *pgx.Conn                                               { return nil }
