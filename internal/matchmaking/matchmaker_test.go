package matchmaking

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairlink/pairlink-backend/internal/session"
)

type recordingNotifier struct {
	mu      sync.Mutex
	matches map[string]Match // userID -> last match
	order   []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{matches: make(map[string]Match)}
}

func (n *recordingNotifier) MatchFound(userID string, m Match) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.matches[userID] = m
	n.order = append(n.order, userID)
}

func (n *recordingNotifier) matchFor(userID string) (Match, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	m, ok := n.matches[userID]
	return m, ok
}

func newMatchmakingStack() (*Queue, *Matchmaker, *session.Registry, *recordingNotifier) {
	registry := session.NewRegistry(nil)
	notifier := newRecordingNotifier()
	matchmaker := NewMatchmaker(registry, notifier)
	queue := NewQueue(registry, matchmaker, nil, 10*time.Second)
	return queue, matchmaker, registry, notifier
}

func TestMatchCreatesSignalingSession(t *testing.T) {
	queue, _, registry, notifier := newMatchmakingStack()

	base := time.Now()
	_, err := queue.Join(&WaitingTicket{UserID: "x", IntentMode: IntentDate, GenderPreference: PreferAll, WantsVideo: true, EnqueuedAt: base})
	require.NoError(t, err)
	_, err = queue.Join(&WaitingTicket{UserID: "y", IntentMode: IntentDate, GenderPreference: PreferAll, WantsVideo: true, EnqueuedAt: base.Add(time.Millisecond)})
	require.NoError(t, err)

	// Both users receive the same sessionId; the earlier ticket is the
	// initiator
	mx, ok := notifier.matchFor("x")
	require.True(t, ok)
	my, ok := notifier.matchFor("y")
	require.True(t, ok)

	assert.Equal(t, mx.SessionID, my.SessionID)
	assert.True(t, mx.IsInitiator)
	assert.False(t, my.IsInitiator)
	assert.Equal(t, "y", mx.PartnerID)
	assert.Equal(t, "x", my.PartnerID)

	// Tickets are gone and the session is live in SIGNALING
	assert.Equal(t, 0, queue.Size())

	s, err := registry.Get(mx.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.StateSignaling, s.State)
	assert.Equal(t, "x", s.InitiatorID)
	assert.True(t, s.WantsVideo)
}

func TestVideoRequiresBothSides(t *testing.T) {
	queue, _, registry, notifier := newMatchmakingStack()

	queue.Join(&WaitingTicket{UserID: "x", IntentMode: IntentFriend, GenderPreference: PreferAll, WantsVideo: true})
	queue.Join(&WaitingTicket{UserID: "y", IntentMode: IntentFriend, GenderPreference: PreferAll, WantsVideo: false})

	m, ok := notifier.matchFor("x")
	require.True(t, ok)

	s, err := registry.Get(m.SessionID)
	require.NoError(t, err)
	assert.False(t, s.WantsVideo, "call is video-capable only when both sides want video")
}

func TestMatchedUsersCannotRejoinWhileSessionLive(t *testing.T) {
	queue, _, registry, notifier := newMatchmakingStack()

	queue.Join(&WaitingTicket{UserID: "x", IntentMode: IntentDate, GenderPreference: PreferAll})
	queue.Join(&WaitingTicket{UserID: "y", IntentMode: IntentDate, GenderPreference: PreferAll})

	_, err := queue.Join(&WaitingTicket{UserID: "x", IntentMode: IntentDate, GenderPreference: PreferAll})
	assert.ErrorIs(t, err, ErrAlreadyQueued)

	m, _ := notifier.matchFor("x")
	registry.End(m.SessionID, session.ReasonUserEnded)

	_, err = queue.Join(&WaitingTicket{UserID: "x", IntentMode: IntentDate, GenderPreference: PreferAll})
	assert.NoError(t, err)
}

func TestPairDirect(t *testing.T) {
	queue, matchmaker, registry, notifier := newMatchmakingStack()

	// userB is waiting in the queue; the recommender pairs them anyway
	queue.Join(&WaitingTicket{UserID: "b", IntentMode: IntentDate, Gender: "female", GenderPreference: PreferFemale})

	s, err := matchmaker.PairDirect(queue, "a", "b", "DATE", true)
	require.NoError(t, err)

	assert.Equal(t, 0, queue.Size(), "direct pairing removes waiting tickets")
	assert.Equal(t, session.StateSignaling, s.State)
	assert.Equal(t, "a", s.InitiatorID)

	ma, _ := notifier.matchFor("a")
	mb, _ := notifier.matchFor("b")
	assert.Equal(t, s.ID, ma.SessionID)
	assert.Equal(t, s.ID, mb.SessionID)
	assert.True(t, ma.IsInitiator)
	assert.False(t, mb.IsInitiator)

	assert.True(t, registry.IsParticipant("a"))
	assert.True(t, registry.IsParticipant("b"))
}

func TestPairDirectRejectsBusyUsers(t *testing.T) {
	queue, matchmaker, registry, _ := newMatchmakingStack()

	_, err := registry.Create("a", "c", "a", "DATE", false)
	require.NoError(t, err)

	_, err = matchmaker.PairDirect(queue, "a", "b", "DATE", false)
	assert.ErrorIs(t, err, session.ErrParticipantBusy)

	_, err = matchmaker.PairDirect(queue, "a", "a", "DATE", false)
	assert.Error(t, err)
}
