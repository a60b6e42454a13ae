// Package rentqueue bounds concurrent rental sessions of one tier.
// A single module-level structure under a mutex; admit/enter/leave are
// each atomic. State is process-local by design.
package rentqueue

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DefaultCapacity is the system-wide cap on concurrent waiting/allocated
	// sessions of the guarded tier.
	DefaultCapacity = 15
	// DefaultUserGap is the minimum interval between rent attempts per user.
	DefaultUserGap = 2 * time.Second
)

// Verdict is the admit decision.
type Verdict int

const (
	Allowed Verdict = iota
	DenyGlobal
	DenyUser
)

// Admission carries the verdict plus wait estimates for denials.
type Admission struct {
	Verdict Verdict
	// Wait is the suggested retry delay (user spacing remainder, or a
	// next-slot estimate for global denials).
	Wait time.Duration
	// Occupied / Capacity describe the global state for DenyGlobal.
	Occupied int
	Capacity int
}

// Message renders the denial for the client.
func (a Admission) Message() string {
	switch a.Verdict {
	case DenyGlobal:
		return fmt.Sprintf("Hệ thống đang đầy (%d/%d phiên), vui lòng thử lại sau %d giây",
			a.Occupied, a.Capacity, int(a.Wait.Seconds()))
	case DenyUser:
		ms := a.Wait.Milliseconds()
		if ms < 1 {
			ms = 1
		}
		return fmt.Sprintf("Thao tác quá nhanh, vui lòng chờ %dms", ms)
	}
	return ""
}

type occupant struct {
	userID    string
	sessionID string
	enteredAt time.Time
}

// Queue is the global bounded queue for one rental tier.
type Queue struct {
	capacity int
	userGap  time.Duration

	mu          sync.Mutex
	occupants   map[string]occupant // phoneNumber -> occupant
	lastAttempt map[string]time.Time

	now func() time.Time
}

// New creates a Queue with the given capacity and per-user spacing.
func New(capacity int, userGap time.Duration) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if userGap <= 0 {
		userGap = DefaultUserGap
	}
	return &Queue{
		capacity:    capacity,
		userGap:     userGap,
		occupants:   make(map[string]occupant),
		lastAttempt: make(map[string]time.Time),
		now:         time.Now,
	}
}

// Admit decides whether a user may start a rent attempt. It must be called
// before any wallet charge for the guarded tier. An allowed admit records
// the attempt time for the per-user spacing check.
func (q *Queue) Admit(userID string) Admission {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()

	if last, ok := q.lastAttempt[userID]; ok {
		if gap := now.Sub(last); gap < q.userGap {
			return Admission{Verdict: DenyUser, Wait: q.userGap - gap}
		}
	}

	if len(q.occupants) >= q.capacity {
		return Admission{
			Verdict:  DenyGlobal,
			Wait:     q.nextSlotEstimateLocked(now),
			Occupied: len(q.occupants),
			Capacity: q.capacity,
		}
	}

	q.lastAttempt[userID] = now
	return Admission{Verdict: Allowed}
}

// Enter records occupancy once the upstream allocation succeeded.
func (q *Queue) Enter(userID, phoneNumber, sessionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.occupants[phoneNumber] = occupant{
		userID:    userID,
		sessionID: sessionID,
		enteredAt: q.now(),
	}
}

// Leave removes occupancy on completion, expiry, or refund. Unknown numbers
// are ignored, so repeated leaves are safe.
func (q *Queue) Leave(userID, phoneNumber string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if occ, ok := q.occupants[phoneNumber]; ok && occ.userID == userID {
		delete(q.occupants, phoneNumber)
	}
}

// Occupied returns the current occupancy count.
func (q *Queue) Occupied() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.occupants)
}

// nextSlotEstimateLocked guesses when the oldest occupant's 6-minute window
// ends. Callers hold q.mu.
func (q *Queue) nextSlotEstimateLocked(now time.Time) time.Duration {
	var oldest time.Time
	for _, occ := range q.occupants {
		if oldest.IsZero() || occ.enteredAt.Before(oldest) {
			oldest = occ.enteredAt
		}
	}
	if oldest.IsZero() {
		return 5 * time.Second
	}
	remaining := oldest.Add(6 * time.Minute).Sub(now)
	if remaining < 5*time.Second {
		remaining = 5 * time.Second
	}
	return remaining
}
