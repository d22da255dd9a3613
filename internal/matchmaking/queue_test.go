package matchmaking

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairFunc func(initiator, responder *WaitingTicket) error

func (f pairFunc) HandlePair(initiator, responder *WaitingTicket) error {
	return f(initiator, responder)
}

type fakeSessions struct {
	mu   sync.Mutex
	busy map[string]bool
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{busy: make(map[string]bool)}
}

func (f *fakeSessions) IsParticipant(userID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.busy[userID]
}

func (f *fakeSessions) set(userID string, inSession bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy[userID] = inSession
}

type recordedStatus struct {
	userID        string
	position      int
	estimatedWait time.Duration
}

type fakeStatus struct {
	mu       sync.Mutex
	sizes    []int
	statuses []recordedStatus
}

func (f *fakeStatus) QueueSize(size int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sizes = append(f.sizes, size)
}

func (f *fakeStatus) TicketStatus(userID string, position int, estimatedWait time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, recordedStatus{userID, position, estimatedWait})
}

func (f *fakeStatus) lastSize() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sizes) == 0 {
		return -1
	}
	return f.sizes[len(f.sizes)-1]
}

// noPair keeps tickets in the queue so membership behavior can be
// observed in isolation
var noPair = pairFunc(func(a, b *WaitingTicket) error {
	return ErrAlreadyQueued
})

func dateTicket(userID string, pref GenderPreference) *WaitingTicket {
	return &WaitingTicket{
		UserID:           userID,
		IntentMode:       IntentDate,
		GenderPreference: pref,
		WantsVideo:       true,
	}
}

func TestJoinAssignsPositions(t *testing.T) {
	q := NewQueue(newFakeSessions(), noPair, nil, 10*time.Second)

	// Incompatible prefs with unknown genders: nobody matches
	pos, err := q.Join(dateTicket("alice", PreferMale))
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	pos, err = q.Join(dateTicket("bob", PreferFemale))
	require.NoError(t, err)
	assert.Equal(t, 2, pos)

	assert.Equal(t, 2, q.Size())
}

func TestJoinRejectsDuplicateTicket(t *testing.T) {
	q := NewQueue(newFakeSessions(), noPair, nil, 10*time.Second)

	_, err := q.Join(dateTicket("alice", PreferMale))
	require.NoError(t, err)

	_, err = q.Join(dateTicket("alice", PreferMale))
	assert.ErrorIs(t, err, ErrAlreadyQueued)
	assert.Equal(t, 1, q.Size())
}

func TestJoinRejectsActiveSessionParticipant(t *testing.T) {
	sessions := newFakeSessions()
	sessions.set("alice", true)
	q := NewQueue(sessions, noPair, nil, 10*time.Second)

	_, err := q.Join(dateTicket("alice", PreferAll))
	assert.ErrorIs(t, err, ErrAlreadyQueued)
}

func TestJoinRejectsInvalidPreferences(t *testing.T) {
	q := NewQueue(newFakeSessions(), noPair, nil, 10*time.Second)

	_, err := q.Join(&WaitingTicket{UserID: "alice", IntentMode: "SPEED", GenderPreference: PreferAll})
	assert.ErrorIs(t, err, ErrInvalidPreference)

	_, err = q.Join(&WaitingTicket{UserID: "alice", IntentMode: IntentDate, GenderPreference: "nonbinary-only"})
	assert.ErrorIs(t, err, ErrInvalidPreference)

	assert.Equal(t, 0, q.Size())
}

func TestLeaveIsIdempotent(t *testing.T) {
	q := NewQueue(newFakeSessions(), noPair, nil, 10*time.Second)

	_, err := q.Join(dateTicket("alice", PreferMale))
	require.NoError(t, err)

	assert.True(t, q.Leave("alice"))
	assert.False(t, q.Leave("alice"))
	assert.False(t, q.Leave("nobody"))
	assert.Equal(t, 0, q.Size())
}

func TestLeaveRemovesExactlyOneTicketFromBroadcast(t *testing.T) {
	status := &fakeStatus{}
	q := NewQueue(newFakeSessions(), noPair, status, 10*time.Second)

	q.Join(dateTicket("alice", PreferMale))
	q.Join(dateTicket("bob", PreferFemale))
	sizeBefore := status.lastSize()

	q.Leave("alice")

	assert.Equal(t, sizeBefore-1, status.lastSize())
}

func TestStatusNotifications(t *testing.T) {
	status := &fakeStatus{}
	q := NewQueue(newFakeSessions(), noPair, status, 10*time.Second)

	q.Join(dateTicket("alice", PreferMale))
	q.Join(dateTicket("bob", PreferFemale))

	status.mu.Lock()
	defer status.mu.Unlock()

	// Every membership change broadcasts the size
	assert.Equal(t, []int{1, 2}, status.sizes)

	// After the second join each waiter got its bucket position
	last := status.statuses[len(status.statuses)-2:]
	byUser := map[string]recordedStatus{}
	for _, s := range last {
		byUser[s.userID] = s
	}
	assert.Equal(t, 1, byUser["alice"].position)
	assert.Equal(t, 2, byUser["bob"].position)
	assert.Equal(t, 20*time.Second, byUser["bob"].estimatedWait)
}

func TestBucketsArePartitionedByIntent(t *testing.T) {
	var paired [][2]string
	handler := pairFunc(func(a, b *WaitingTicket) error {
		paired = append(paired, [2]string{a.UserID, b.UserID})
		return nil
	})
	q := NewQueue(newFakeSessions(), handler, nil, 10*time.Second)

	// Same preferences but different intents never pair
	q.Join(&WaitingTicket{UserID: "alice", IntentMode: IntentDate, GenderPreference: PreferAll})
	q.Join(&WaitingTicket{UserID: "bob", IntentMode: IntentStudy, GenderPreference: PreferAll})
	assert.Empty(t, paired)

	// A same-bucket compatible ticket pairs immediately
	q.Join(&WaitingTicket{UserID: "carol", IntentMode: IntentStudy, GenderPreference: PreferAll})
	require.Len(t, paired, 1)
	assert.Equal(t, [2]string{"bob", "carol"}, paired[0])
	assert.Equal(t, 1, q.Size()) // alice still waiting
}

func TestMutualGenderCompatibility(t *testing.T) {
	var paired int
	handler := pairFunc(func(a, b *WaitingTicket) error {
		paired++
		return nil
	})
	q := NewQueue(newFakeSessions(), handler, nil, 10*time.Second)

	// alice (female, wants male) and bob (male, wants female): mutual
	q.Join(&WaitingTicket{UserID: "alice", IntentMode: IntentDate, Gender: "female", GenderPreference: PreferMale})
	assert.Equal(t, 0, paired)

	// carol (female, wants female) does not accept bob later, and alice
	// does not accept carol
	q.Join(&WaitingTicket{UserID: "carol", IntentMode: IntentDate, Gender: "female", GenderPreference: PreferFemale})
	assert.Equal(t, 0, paired)

	q.Join(&WaitingTicket{UserID: "bob", IntentMode: IntentDate, Gender: "male", GenderPreference: PreferFemale})
	assert.Equal(t, 1, paired)

	// One-sided acceptance is not enough: dave accepts everyone, but
	// carol only accepts women
	q.Join(&WaitingTicket{UserID: "dave", IntentMode: IntentDate, Gender: "male", GenderPreference: PreferAll})
	assert.Equal(t, 1, paired)
}

func TestUnknownGenderOnlyMatchesAll(t *testing.T) {
	var paired int
	handler := pairFunc(func(a, b *WaitingTicket) error {
		paired++
		return nil
	})
	q := NewQueue(newFakeSessions(), handler, nil, 10*time.Second)

	// bob wants female; alice never declared a gender
	q.Join(&WaitingTicket{UserID: "alice", IntentMode: IntentDate, GenderPreference: PreferAll})
	q.Join(&WaitingTicket{UserID: "bob", IntentMode: IntentDate, Gender: "male", GenderPreference: PreferFemale})
	assert.Equal(t, 0, paired)

	// carol accepts anyone, so the undeclared alice is fine
	q.Join(&WaitingTicket{UserID: "carol", IntentMode: IntentDate, Gender: "female", GenderPreference: PreferAll})
	assert.Equal(t, 1, paired)
}

func TestAbortedPairIsRestored(t *testing.T) {
	sessions := newFakeSessions()
	calls := 0
	handler := pairFunc(func(a, b *WaitingTicket) error {
		calls++
		// Simulate the responder having been grabbed by the
		// direct-pair path mid-flight
		sessions.set(b.UserID, true)
		return ErrAlreadyQueued
	})
	q := NewQueue(sessions, handler, nil, 10*time.Second)

	q.Join(dateTicket("alice", PreferAll))
	q.Join(dateTicket("bob", PreferAll))

	require.Equal(t, 1, calls)

	// The busy responder is gone, the free initiator is back in its
	// bucket unchanged
	_, ok := q.Ticket("bob")
	assert.False(t, ok)

	ticket, ok := q.Ticket("alice")
	require.True(t, ok)
	assert.Equal(t, PreferAll, ticket.GenderPreference)
	assert.Equal(t, 1, q.Size())
}

func TestOldestPairMatchesFirst(t *testing.T) {
	var paired [][2]string
	handler := pairFunc(func(a, b *WaitingTicket) error {
		paired = append(paired, [2]string{a.UserID, b.UserID})
		return nil
	})
	q := NewQueue(newFakeSessions(), handler, nil, 10*time.Second)

	base := time.Now()
	// carol is oldest but incompatible with everyone except dave
	q.Join(&WaitingTicket{UserID: "carol", IntentMode: IntentDate, Gender: "female", GenderPreference: PreferFemale, EnqueuedAt: base})
	q.Join(&WaitingTicket{UserID: "alice", IntentMode: IntentDate, Gender: "female", GenderPreference: PreferAll, EnqueuedAt: base.Add(time.Millisecond)})

	require.Len(t, paired, 1)
	assert.Equal(t, "carol", paired[0][0], "older ticket is the initiator")
	assert.Equal(t, "alice", paired[0][1])
}
