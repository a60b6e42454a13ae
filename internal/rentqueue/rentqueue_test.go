package rentqueue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(capacity int, gap time.Duration) (*Queue, *time.Time) {
	q := New(capacity, gap)
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := &t
	q.now = func() time.Time { return *now }
	return q, now
}

func TestQueue_AdmitWithinCapacity(t *testing.T) {
	q, _ := newTestQueue(2, 2*time.Second)

	a := q.Admit("u1")
	assert.Equal(t, Allowed, a.Verdict)
}

func TestQueue_PerUserSpacing(t *testing.T) {
	q, now := newTestQueue(15, 2*time.Second)

	require.Equal(t, Allowed, q.Admit("u1").Verdict)

	*now = now.Add(500 * time.Millisecond)
	a := q.Admit("u1")
	assert.Equal(t, DenyUser, a.Verdict)
	assert.Equal(t, 1500*time.Millisecond, a.Wait)
	assert.Contains(t, a.Message(), "1500ms")

	// Other users are unaffected.
	assert.Equal(t, Allowed, q.Admit("u2").Verdict)

	*now = now.Add(2 * time.Second)
	assert.Equal(t, Allowed, q.Admit("u1").Verdict)
}

func TestQueue_GlobalBound(t *testing.T) {
	q, now := newTestQueue(3, time.Millisecond)

	for i := 0; i < 3; i++ {
		user := fmt.Sprintf("u%d", i)
		require.Equal(t, Allowed, q.Admit(user).Verdict)
		q.Enter(user, fmt.Sprintf("09000000%02d", i), fmt.Sprintf("RENT-%d", i))
		*now = now.Add(time.Second)
	}
	assert.Equal(t, 3, q.Occupied())

	a := q.Admit("u99")
	assert.Equal(t, DenyGlobal, a.Verdict)
	assert.Equal(t, 3, a.Occupied)
	assert.Equal(t, 3, a.Capacity)
	assert.Greater(t, a.Wait, time.Duration(0))
	assert.Contains(t, a.Message(), "3/3")

	// Freeing one slot admits again.
	q.Leave("u0", "0900000000")
	assert.Equal(t, Allowed, q.Admit("u99").Verdict)
}

func TestQueue_LeaveIsIdempotentAndOwnerChecked(t *testing.T) {
	q, _ := newTestQueue(15, time.Millisecond)

	q.Enter("u1", "0912345678", "RENT-1")
	require.Equal(t, 1, q.Occupied())

	// Wrong owner: no effect.
	q.Leave("u2", "0912345678")
	assert.Equal(t, 1, q.Occupied())

	q.Leave("u1", "0912345678")
	assert.Equal(t, 0, q.Occupied())

	// Second leave is a no-op.
	q.Leave("u1", "0912345678")
	assert.Equal(t, 0, q.Occupied())
}

func TestQueue_AdmitBeforeChargeContract(t *testing.T) {
	// Occupancy only grows via Enter; a denied admit must not consume a slot.
	q, _ := newTestQueue(1, time.Millisecond)

	q.Enter("u1", "0911111111", "RENT-1")
	a := q.Admit("u2")
	require.Equal(t, DenyGlobal, a.Verdict)
	assert.Equal(t, 1, q.Occupied())
}

func TestQueue_ConcurrentEnterLeave(t *testing.T) {
	q := New(100, time.Nanosecond)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", n)
			phone := fmt.Sprintf("09%08d", n)
			q.Enter(user, phone, fmt.Sprintf("RENT-%d", n))
			q.Leave(user, phone)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, q.Occupied())
}
