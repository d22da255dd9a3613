// internal/session/models.go

package session

import (
	"errors"
	"time"
)

// State is the lifecycle state of a session
type State string

const (
	StatePending   State = "PENDING"
	StateSignaling State = "SIGNALING"
	StateActive    State = "ACTIVE"
	StateEnded     State = "ENDED"
)

// EndReason explains why a session reached ENDED
type EndReason string

const (
	ReasonUserEnded           EndReason = "user_ended"
	ReasonNext                EndReason = "next"
	ReasonPartnerDisconnected EndReason = "partner_disconnected"
	ReasonReported            EndReason = "reported"
)

// Session is the registry's record of one matched pair and its lifecycle.
// A user participates in at most one non-ENDED session at a time; session
// IDs are unique and never reused.
type Session struct {
	ID           string     `json:"sessionId" db:"id"`
	ParticipantA string     `json:"participantA" db:"participant_a"`
	ParticipantB string     `json:"participantB" db:"participant_b"`
	InitiatorID  string     `json:"initiatorId" db:"initiator_id"`
	State        State      `json:"state" db:"state"`
	IntentMode   string     `json:"intentMode" db:"intent_mode"`
	WantsVideo   bool       `json:"wantsVideo" db:"wants_video"`
	CreatedAt    time.Time  `json:"createdAt" db:"created_at"`
	EndedAt      *time.Time `json:"endedAt,omitempty" db:"ended_at"`
	EndReason    EndReason  `json:"endReason,omitempty" db:"end_reason"`
}

// Other returns the session participant that is not userID
func (s *Session) Other(userID string) (string, bool) {
	switch userID {
	case s.ParticipantA:
		return s.ParticipantB, true
	case s.ParticipantB:
		return s.ParticipantA, true
	}
	return "", false
}

// HasParticipant reports whether userID is one of the two participants
func (s *Session) HasParticipant(userID string) bool {
	return userID == s.ParticipantA || userID == s.ParticipantB
}

// Ended reports whether the session has reached its terminal state
func (s *Session) Ended() bool {
	return s.State == StateEnded
}

// Duration returns the session lifetime, zero while still running
func (s *Session) Duration() time.Duration {
	if s.EndedAt == nil {
		return 0
	}
	return s.EndedAt.Sub(s.CreatedAt)
}

var (
	// ErrNotFound is returned when a session ID does not resolve
	ErrNotFound = errors.New("session not found")

	// ErrParticipantBusy is returned when a participant already has a
	// non-ENDED session
	ErrParticipantBusy = errors.New("participant already in an active session")

	// ErrInvalidTransition is returned for state changes outside the
	// PENDING -> SIGNALING -> ACTIVE -> ENDED table
	ErrInvalidTransition = errors.New("invalid session state transition")
)

// validTransitions is the closed transition table. Any state may move to
// ENDED; ENDED is terminal.
var validTransitions = map[State][]State{
	StatePending:   {StateSignaling, StateEnded},
	StateSignaling: {StateActive, StateEnded},
	StateActive:    {StateEnded},
	StateEnded:     {},
}

func canTransition(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
