// internal/blinddate/controller.go
// Progressive reveal state machine for video sessions. Visual clarity
// (blur) only ever decreases: either step by step as the pair burns
// through conversation topics, or all at once by mutual consent.

package blinddate

import (
	"errors"
	"math/rand"
	"sync"
	"time"
)

var (
	// ErrNoSession is returned when no blind date state exists for the session
	ErrNoSession = errors.New("no blind date state for session")

	// ErrNoPendingRequest is returned when accepting a reveal nobody requested
	ErrNoPendingRequest = errors.New("no pending reveal request")

	// ErrSelfAccept is returned when the requester tries to accept their own request
	ErrSelfAccept = errors.New("reveal must be accepted by the other participant")

	// ErrNotParticipant is returned for users outside the session
	ErrNotParticipant = errors.New("user is not a participant of this blind date")
)

// State is the per-session blind date state. BlurLevelPx is monotonically
// non-increasing for the lifetime of the session.
type State struct {
	TopicNumber       int    `json:"topicNumber"`
	CurrentTopic      string `json:"currentTopic"`
	TopicCategory     string `json:"topicCategory"`
	BlurLevelPx       int    `json:"blurLevelPx"`
	RevealRequestedBy string `json:"revealRequestedBy,omitempty"`
	RevealAccepted    bool   `json:"revealAccepted"`
}

type blindSession struct {
	state        State
	participants [2]string
	deck         *topicDeck
}

func (b *blindSession) hasParticipant(userID string) bool {
	return userID == b.participants[0] || userID == b.participants[1]
}

// Controller tracks blind date state for all video-capable sessions
type Controller struct {
	mu       sync.Mutex
	sessions map[string]*blindSession
	rng      *rand.Rand

	blurInitial   int
	blurDecrement int
}

// NewController creates a reveal controller with the given blur constants
func NewController(blurInitialPx, blurDecrementPx int) *Controller {
	return &Controller{
		sessions:      make(map[string]*blindSession),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		blurInitial:   blurInitialPx,
		blurDecrement: blurDecrementPx,
	}
}

// Start creates blind date state for a new video session, drawing the
// first topic. Starting an already-tracked session resets nothing and
// returns the existing state.
func (c *Controller) Start(sessionID, participantA, participantB string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sessions[sessionID]; ok {
		return existing.state
	}

	deck := newTopicDeck(defaultTopics, c.rng)
	first := deck.draw()

	b := &blindSession{
		state: State{
			TopicNumber:   1,
			CurrentTopic:  first.Text,
			TopicCategory: string(first.Category),
			BlurLevelPx:   c.blurInitial,
		},
		participants: [2]string{participantA, participantB},
		deck:         deck,
	}
	c.sessions[sessionID] = b

	return b.state
}

// RequestNewTopic advances to the next topic and decays the blur by one
// step, floored at zero. Both participants should receive the returned
// state as a topic-update.
func (c *Controller) RequestNewTopic(sessionID, byUserID string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.sessions[sessionID]
	if !ok {
		return State{}, ErrNoSession
	}
	if !b.hasParticipant(byUserID) {
		return State{}, ErrNotParticipant
	}

	next := b.deck.draw()
	b.state.TopicNumber++
	b.state.CurrentTopic = next.Text
	b.state.TopicCategory = string(next.Category)

	b.state.BlurLevelPx -= c.blurDecrement
	if b.state.BlurLevelPx < 0 {
		b.state.BlurLevelPx = 0
	}

	return b.state, nil
}

// RequestReveal records a consent-gated reveal request. The blur does not
// change yet. The returned flag is true when this call created the pending
// request and the other participant should be notified; a repeat request
// while one is already pending is a no-op.
func (c *Controller) RequestReveal(sessionID, byUserID string) (notify bool, other string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.sessions[sessionID]
	if !ok {
		return false, "", ErrNoSession
	}
	if !b.hasParticipant(byUserID) {
		return false, "", ErrNotParticipant
	}

	if b.state.RevealRequestedBy != "" || b.state.RevealAccepted {
		return false, "", nil
	}

	b.state.RevealRequestedBy = byUserID

	if byUserID == b.participants[0] {
		return true, b.participants[1], nil
	}
	return true, b.participants[0], nil
}

// AcceptReveal completes the consent pair: only the participant who did
// not request may accept, and only while a request is pending. The blur
// drops to zero immediately.
func (c *Controller) AcceptReveal(sessionID, byUserID string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.sessions[sessionID]
	if !ok {
		return State{}, ErrNoSession
	}
	if !b.hasParticipant(byUserID) {
		return State{}, ErrNotParticipant
	}

	if b.state.RevealRequestedBy == "" {
		return State{}, ErrNoPendingRequest
	}
	if b.state.RevealRequestedBy == byUserID {
		return State{}, ErrSelfAccept
	}

	b.state.BlurLevelPx = 0
	b.state.RevealAccepted = true

	return b.state, nil
}

// Get returns the current state for a session
func (c *Controller) Get(sessionID string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	b, ok := c.sessions[sessionID]
	if !ok {
		return State{}, ErrNoSession
	}
	return b.state, nil
}

// End destroys the blind date state together with its session
func (c *Controller) End(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
}
