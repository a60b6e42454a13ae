package antispam

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// newTestLimiter returns a limiter with a controllable clock.
func newTestLimiter(window time.Duration, threshold int, cooldown time.Duration) (*Limiter, *time.Time) {
	l := NewWithPolicy(window, threshold, cooldown)
	t := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	now := &t
	l.now = func() time.Time { return *now }
	return l, now
}

func TestLimiter_AllowsUnderThreshold(t *testing.T) {
	l, _ := newTestLimiter(60*time.Second, 15, 30*time.Second)
	defer l.Stop()

	for i := 0; i < 15; i++ {
		d := l.Check("user1", "rental_tier1")
		assert.True(t, d.Allowed, "attempt %d", i+1)
	}
}

func TestLimiter_TripsCooldownOverThreshold(t *testing.T) {
	l, now := newTestLimiter(60*time.Second, 3, 30*time.Second)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Check("u", "svc").Allowed)
	}

	d := l.Check("u", "svc")
	assert.False(t, d.Allowed)
	assert.Equal(t, 30*time.Second, d.RetryAfter)

	// Still rejected mid-cooldown, with shrinking retry-after.
	*now = now.Add(10 * time.Second)
	d = l.Check("u", "svc")
	assert.False(t, d.Allowed)
	assert.Equal(t, 20*time.Second, d.RetryAfter)

	// After the cooldown the window has also drained.
	*now = now.Add(51 * time.Second)
	assert.True(t, l.Check("u", "svc").Allowed)
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, now := newTestLimiter(60*time.Second, 3, 30*time.Second)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, l.Check("u", "svc").Allowed)
	}

	// Old attempts fall out of the window, so a later attempt is fine.
	*now = now.Add(61 * time.Second)
	assert.True(t, l.Check("u", "svc").Allowed)
}

func TestLimiter_KeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(60*time.Second, 1, 30*time.Second)
	defer l.Stop()

	assert.True(t, l.Check("u1", "voucher_save").Allowed)
	assert.False(t, l.Check("u1", "voucher_save").Allowed)

	// Different service, same user.
	assert.True(t, l.Check("u1", "rapid_check").Allowed)
	// Different user, same service.
	assert.True(t, l.Check("u2", "voucher_save").Allowed)
}

func TestLimiter_ConcurrentAccess(t *testing.T) {
	l := NewWithPolicy(time.Minute, 1000, time.Second)
	defer l.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				l.Check("same-user", "same-service")
			}
		}()
	}
	wg.Wait()

	// 500 attempts, threshold 1000: nothing tripped.
	assert.True(t, l.Check("same-user", "same-service").Allowed)
}

func TestRetryAfterMessage(t *testing.T) {
	assert.Equal(t, "vui lòng thử lại sau 30 giây", RetryAfterMessage(30*time.Second))
	assert.Equal(t, "vui lòng thử lại sau 1 giây", RetryAfterMessage(200*time.Millisecond))
}
