// internal/matchmaking/matchmaker.go
// Turns a compatible ticket pair into a registered session and tells
// each user about it. Also serves the direct-pair path used by the
// external recommender, which goes through the same registry so both
// paths share one source of session IDs.

package matchmaking

import (
	"fmt"

	"github.com/pairlink/pairlink-backend/internal/session"
)

// MatchNotifier delivers a match result to one user. The two recipients
// of a pairing get different payloads (partner, initiator flag), so this
// is never a broadcast.
type MatchNotifier interface {
	MatchFound(userID string, m Match)
}

// Matchmaker creates sessions for paired tickets
type Matchmaker struct {
	registry *session.Registry
	notifier MatchNotifier
}

// NewMatchmaker creates a matchmaker backed by the given registry
func NewMatchmaker(registry *session.Registry, notifier MatchNotifier) *Matchmaker {
	return &Matchmaker{
		registry: registry,
		notifier: notifier,
	}
}

// HandlePair implements PairHandler. The queue guarantees the initiator
// ticket is the one with the earlier EnqueuedAt. The session is created
// PENDING and advances to SIGNALING as soon as creation completes; the
// call is video-capable only when both sides asked for video.
func (m *Matchmaker) HandlePair(initiator, responder *WaitingTicket) error {
	wantsVideo := initiator.WantsVideo && responder.WantsVideo

	s, err := m.registry.Create(
		initiator.UserID,
		responder.UserID,
		initiator.UserID,
		string(initiator.IntentMode),
		wantsVideo,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}

	if err := m.registry.Transition(s.ID, session.StateSignaling); err != nil {
		// Creation just succeeded; only a concurrent End can get here
		return fmt.Errorf("failed to advance session to signaling: %w", err)
	}
	s.State = session.StateSignaling

	m.notifier.MatchFound(initiator.UserID, Match{
		SessionID:   s.ID,
		PartnerID:   responder.UserID,
		IsInitiator: true,
		Session:     s,
	})
	m.notifier.MatchFound(responder.UserID, Match{
		SessionID:   s.ID,
		PartnerID:   initiator.UserID,
		IsInitiator: false,
		Session:     s,
	})

	return nil
}

// PairDirect registers a session for a pre-computed pair handed over by
// the external semantic recommender, outside the normal queue path. Any
// waiting tickets the two users hold are removed first; the first user
// of the pair is the initiator. The same registry enforces the one
// active session per user invariant against the queue path.
func (m *Matchmaker) PairDirect(q *Queue, userA, userB, intentMode string, wantsVideo bool) (*session.Session, error) {
	if userA == userB {
		return nil, fmt.Errorf("cannot pair a user with themselves")
	}

	q.Leave(userA)
	q.Leave(userB)

	s, err := m.registry.Create(userA, userB, userA, intentMode, wantsVideo)
	if err != nil {
		return nil, err
	}

	if err := m.registry.Transition(s.ID, session.StateSignaling); err != nil {
		return nil, fmt.Errorf("failed to advance session to signaling: %w", err)
	}
	s.State = session.StateSignaling

	matchesTotal.Inc()

	m.notifier.MatchFound(userA, Match{
		SessionID:   s.ID,
		PartnerID:   userB,
		IsInitiator: true,
		Session:     s,
	})
	m.notifier.MatchFound(userB, Match{
		SessionID:   s.ID,
		PartnerID:   userA,
		IsInitiator: false,
		Session:     s,
	})

	return s, nil
}
