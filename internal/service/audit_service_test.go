package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"phone-rental-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingActivityRepo struct {
	mu      sync.Mutex
	entries []*domain.ActivityLog
	done    chan struct{}
}

func (r *recordingActivityRepo) Create(_ context.Context, entry *domain.ActivityLog) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	close(r.done)
	return nil
}

func (r *recordingActivityRepo) List(context.Context, bool, int, int) ([]domain.ActivityLog, int64, error) {
	return nil, 0, nil
}

func TestAuditService_Log_PersistsAsynchronously(t *testing.T) {
	repo := &recordingActivityRepo{done: make(chan struct{})}
	svc := NewAuditService(repo, zerolog.Nop())

	userID := uuid.New()
	svc.Log(context.Background(), &domain.ActivityLog{
		ID:           uuid.New(),
		UserID:       &userID,
		Action:       domain.ActivityLogin,
		ResourceType: "user",
		ResourceID:   userID.String(),
		CreatedAt:    time.Now().UTC(),
	})

	select {
	case <-repo.done:
	case <-time.After(time.Second):
		t.Fatal("activity entry never persisted")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	require.Len(t, repo.entries, 1)
	assert.Equal(t, domain.ActivityLogin, repo.entries[0].Action)
}

func TestAuditService_Log_NilRepoDoesNotPanic(t *testing.T) {
	svc := NewAuditService(nil, zerolog.Nop())

	svc.Log(context.Background(), &domain.ActivityLog{
		ID:     uuid.New(),
		Action: domain.ActivityRefundFailed,
		Urgent: true,
	})
	// Give the goroutine a beat to run.
	time.Sleep(20 * time.Millisecond)
}
