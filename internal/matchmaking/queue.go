// internal/matchmaking/queue.go
// The waiting queue holds tickets partitioned by intent-mode bucket so
// matching is O(bucket) rather than O(all waiters). One mutex serializes
// join, leave and pairing for the whole queue: the pair-removal plus
// session-creation sequence must be atomic, and a leave must invalidate
// any in-flight match attempt for that ticket.

package matchmaking

import (
	"log"
	"sync"
	"time"
)

// SessionChecker answers whether a user is currently in an active session.
// Joining the queue is rejected while a session is live.
type SessionChecker interface {
	IsParticipant(userID string) bool
}

// PairHandler creates a session for a matched pair. It is invoked with
// the queue lock held, so removal of both tickets and creation of their
// session are atomic with respect to concurrent join/leave. A non-nil
// error aborts the match and the tickets are returned to their bucket.
type PairHandler interface {
	HandlePair(initiator, responder *WaitingTicket) error
}

// StatusNotifier receives queue membership updates: the total size goes
// to everyone, each waiter additionally gets its own position.
type StatusNotifier interface {
	QueueSize(size int)
	TicketStatus(userID string, position int, estimatedWait time.Duration)
}

// TicketStatus is one waiter's view of the queue used for snapshots
type TicketStatus struct {
	UserID        string
	Position      int
	EstimatedWait time.Duration
}

// Queue is the waiting queue plus the matching trigger: every mutation
// attempts to pair the two oldest mutually compatible tickets in the
// affected bucket.
type Queue struct {
	mu      sync.Mutex
	buckets map[IntentMode][]*WaitingTicket // each ordered by EnqueuedAt
	byUser  map[string]*WaitingTicket

	sessions   SessionChecker
	pairs      PairHandler
	status     StatusNotifier
	waitPerPos time.Duration
}

// NewQueue creates an empty waiting queue
func NewQueue(sessions SessionChecker, pairs PairHandler, status StatusNotifier, waitPerPos time.Duration) *Queue {
	return &Queue{
		buckets:    make(map[IntentMode][]*WaitingTicket),
		byUser:     make(map[string]*WaitingTicket),
		sessions:   sessions,
		pairs:      pairs,
		status:     status,
		waitPerPos: waitPerPos,
	}
}

// Join enqueues a ticket and immediately attempts a match in its bucket.
// It returns the ticket's position among the waiters it competes with.
// ErrAlreadyQueued is returned if the user already holds a ticket or is
// a participant of an active session.
func (q *Queue) Join(t *WaitingTicket) (int, error) {
	if !validIntent(t.IntentMode) || !validPreference(t.GenderPreference) {
		return 0, ErrInvalidPreference
	}

	q.mu.Lock()

	if _, queued := q.byUser[t.UserID]; queued {
		q.mu.Unlock()
		return 0, ErrAlreadyQueued
	}
	if q.sessions != nil && q.sessions.IsParticipant(t.UserID) {
		q.mu.Unlock()
		return 0, ErrAlreadyQueued
	}

	if t.EnqueuedAt.IsZero() {
		t.EnqueuedAt = time.Now()
	}

	q.buckets[t.IntentMode] = insertByAge(q.buckets[t.IntentMode], t)
	q.byUser[t.UserID] = t

	position := q.positionLocked(t)
	q.matchBucketLocked(t.IntentMode)

	size, statuses := q.snapshotLocked()
	q.mu.Unlock()

	q.notify(size, statuses)
	return position, nil
}

// Leave removes the user's ticket. It is idempotent: leaving without a
// ticket is a no-op, not an error. Once Leave returns, no match can be
// produced for that ticket.
func (q *Queue) Leave(userID string) bool {
	q.mu.Lock()

	t, ok := q.byUser[userID]
	if !ok {
		q.mu.Unlock()
		return false
	}
	q.removeLocked(t)

	size, statuses := q.snapshotLocked()
	q.mu.Unlock()

	q.notify(size, statuses)
	return true
}

// Size returns the total number of waiting tickets
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.byUser)
}

// Ticket returns a copy of the user's waiting ticket, if any
func (q *Queue) Ticket(userID string) (WaitingTicket, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.byUser[userID]
	if !ok {
		return WaitingTicket{}, false
	}
	return *t, true
}

// Snapshot returns the current size and per-waiter statuses, used for
// the periodic queue:status rebroadcast
func (q *Queue) Snapshot() (int, []TicketStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// matchBucketLocked pairs the two oldest mutually compatible tickets in
// the bucket, repeating until no pair remains. Called with q.mu held.
func (q *Queue) matchBucketLocked(mode IntentMode) {
	for {
		initiator, responder, ok := q.findPairLocked(mode)
		if !ok {
			return
		}

		// Both tickets are atomically removed before the session exists
		q.removeLocked(initiator)
		q.removeLocked(responder)

		if err := q.pairs.HandlePair(initiator, responder); err != nil {
			// Aborted (e.g. a participant got a session through the
			// direct-pair path): return still-free tickets to their
			// bucket unchanged
			log.Printf("Match aborted for %s/%s: %v", initiator.UserID, responder.UserID, err)
			q.restoreLocked(initiator)
			q.restoreLocked(responder)
			return
		}

		matchesTotal.Inc()
		matchWaitSeconds.Observe(time.Since(initiator.EnqueuedAt).Seconds())
	}
}

// findPairLocked returns the oldest mutually compatible pair in a bucket.
// The ticket with the earlier EnqueuedAt becomes the initiator, which
// removes any ambiguity about who sends the first offer.
func (q *Queue) findPairLocked(mode IntentMode) (initiator, responder *WaitingTicket, ok bool) {
	bucket := q.buckets[mode]
	for i := 0; i < len(bucket); i++ {
		for j := i + 1; j < len(bucket); j++ {
			if compatible(bucket[i], bucket[j]) {
				return bucket[i], bucket[j], true
			}
		}
	}
	return nil, nil, false
}

func (q *Queue) removeLocked(t *WaitingTicket) {
	bucket := q.buckets[t.IntentMode]
	for i, other := range bucket {
		if other.UserID == t.UserID {
			q.buckets[t.IntentMode] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	delete(q.byUser, t.UserID)
}

// restoreLocked puts an aborted ticket back unless its user became a
// session participant in the meantime
func (q *Queue) restoreLocked(t *WaitingTicket) {
	if q.sessions != nil && q.sessions.IsParticipant(t.UserID) {
		return
	}
	if _, queued := q.byUser[t.UserID]; queued {
		return
	}
	q.buckets[t.IntentMode] = insertByAge(q.buckets[t.IntentMode], t)
	q.byUser[t.UserID] = t
}

func (q *Queue) positionLocked(t *WaitingTicket) int {
	for i, other := range q.buckets[t.IntentMode] {
		if other.UserID == t.UserID {
			return i + 1
		}
	}
	return 0
}

func (q *Queue) snapshotLocked() (int, []TicketStatus) {
	size := len(q.byUser)
	statuses := make([]TicketStatus, 0, size)
	for _, bucket := range q.buckets {
		for i, t := range bucket {
			statuses = append(statuses, TicketStatus{
				UserID:        t.UserID,
				Position:      i + 1,
				EstimatedWait: time.Duration(i+1) * q.waitPerPos,
			})
		}
	}

	queueSizeGauge.Set(float64(size))
	return size, statuses
}

func (q *Queue) notify(size int, statuses []TicketStatus) {
	if q.status == nil {
		return
	}
	q.status.QueueSize(size)
	for _, s := range statuses {
		q.status.TicketStatus(s.UserID, s.Position, s.EstimatedWait)
	}
}

// insertByAge inserts a ticket keeping the bucket ordered by EnqueuedAt
func insertByAge(bucket []*WaitingTicket, t *WaitingTicket) []*WaitingTicket {
	i := len(bucket)
	for i > 0 && bucket[i-1].EnqueuedAt.After(t.EnqueuedAt) {
		i--
	}
	bucket = append(bucket, nil)
	copy(bucket[i+1:], bucket[i:])
	bucket[i] = t
	return bucket
}
