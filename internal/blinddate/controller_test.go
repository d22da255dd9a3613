package blinddate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController() *Controller {
	return NewController(20, 4)
}

func TestStartInitialState(t *testing.T) {
	c := newTestController()

	state := c.Start("s1", "alice", "bob")

	assert.Equal(t, 1, state.TopicNumber)
	assert.Equal(t, 20, state.BlurLevelPx)
	assert.NotEmpty(t, state.CurrentTopic)
	assert.Empty(t, state.RevealRequestedBy)
	assert.False(t, state.RevealAccepted)

	// Starting again does not reset anything
	c.RequestNewTopic("s1", "alice")
	again := c.Start("s1", "alice", "bob")
	assert.Equal(t, 2, again.TopicNumber)
}

func TestTopicDecay(t *testing.T) {
	c := newTestController()
	c.Start("s1", "alice", "bob")

	// Blur starts at 20 with decrement 4: after three topic requests
	// blur is 8 and we are on topic 4
	var state State
	var err error
	for i := 0; i < 3; i++ {
		state, err = c.RequestNewTopic("s1", "alice")
		require.NoError(t, err)
	}

	assert.Equal(t, 4, state.TopicNumber)
	assert.Equal(t, 8, state.BlurLevelPx)
}

func TestBlurFloorsAtZeroAndIsMonotonic(t *testing.T) {
	c := newTestController()
	c.Start("s1", "alice", "bob")

	prev := 20
	for i := 0; i < 30; i++ {
		state, err := c.RequestNewTopic("s1", "bob")
		require.NoError(t, err)
		assert.LessOrEqual(t, state.BlurLevelPx, prev, "blur must never increase")
		assert.GreaterOrEqual(t, state.BlurLevelPx, 0)
		prev = state.BlurLevelPx
	}

	assert.Equal(t, 0, prev)
}

func TestTopicsDoNotRepeatUntilPoolExhausted(t *testing.T) {
	c := newTestController()
	first := c.Start("s1", "alice", "bob")

	seen := map[string]bool{first.CurrentTopic: true}
	for i := 1; i < len(defaultTopics); i++ {
		state, err := c.RequestNewTopic("s1", "alice")
		require.NoError(t, err)
		assert.False(t, seen[state.CurrentTopic], "topic %q repeated early", state.CurrentTopic)
		seen[state.CurrentTopic] = true
	}
}

func TestRevealConsentFlow(t *testing.T) {
	c := newTestController()
	c.Start("s1", "alice", "bob")

	notify, other, err := c.RequestReveal("s1", "alice")
	require.NoError(t, err)
	assert.True(t, notify)
	assert.Equal(t, "bob", other)

	// Request alone changes nothing: reveal is consent-gated
	state, _ := c.Get("s1")
	assert.Equal(t, 20, state.BlurLevelPx)
	assert.False(t, state.RevealAccepted)

	// A repeat request while pending is a no-op, no second notification
	notify, _, err = c.RequestReveal("s1", "bob")
	require.NoError(t, err)
	assert.False(t, notify)

	// The requester cannot accept their own request
	_, err = c.AcceptReveal("s1", "alice")
	assert.ErrorIs(t, err, ErrSelfAccept)

	state, err = c.AcceptReveal("s1", "bob")
	require.NoError(t, err)
	assert.Equal(t, 0, state.BlurLevelPx)
	assert.True(t, state.RevealAccepted)
}

func TestAcceptWithoutPendingRequest(t *testing.T) {
	c := newTestController()
	c.Start("s1", "alice", "bob")

	_, err := c.AcceptReveal("s1", "bob")
	assert.ErrorIs(t, err, ErrNoPendingRequest)

	// Declining is simply taking no action: the pending request stays,
	// the blur stays
	_, _, err = c.RequestReveal("s1", "alice")
	require.NoError(t, err)

	state, _ := c.Get("s1")
	assert.Equal(t, 20, state.BlurLevelPx)
	assert.False(t, state.RevealAccepted)
}

func TestOutsidersRejected(t *testing.T) {
	c := newTestController()
	c.Start("s1", "alice", "bob")

	_, err := c.RequestNewTopic("s1", "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, _, err = c.RequestReveal("s1", "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = c.AcceptReveal("s1", "mallory")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

func TestEndDestroysState(t *testing.T) {
	c := newTestController()
	c.Start("s1", "alice", "bob")

	c.End("s1")

	_, err := c.Get("s1")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = c.RequestNewTopic("s1", "alice")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestUnknownSession(t *testing.T) {
	c := newTestController()

	_, err := c.RequestNewTopic("nope", "alice")
	assert.ErrorIs(t, err, ErrNoSession)

	_, _, err = c.RequestReveal("nope", "alice")
	assert.ErrorIs(t, err, ErrNoSession)
}
