// internal/videodating/relay.go

package videodating

import (
	"log"

	"github.com/pairlink/pairlink-backend/internal/session"
)

// Notifier delivers server events to connected clients. Implemented by
// Hub; tests substitute a recorder.
type Notifier interface {
	SendToUser(userID string, event ServerEvent)
	Broadcast(event ServerEvent)
}

// Relay forwards WebRTC signaling payloads between the two participants
// of a live session. Payloads are opaque: the relay never inspects SDP
// or ICE contents, it only checks who may talk to whom.
type Relay struct {
	registry *session.Registry
	notifier Notifier
}

func NewRelay(registry *session.Registry, notifier Notifier) *Relay {
	return &Relay{
		registry: registry,
		notifier: notifier,
	}
}

// Forward relays one signaling event from senderID to the other
// participant of the named session. Messages referencing unknown or
// ended sessions, or sent by non-participants, are dropped without a
// response to the sender; a stale signal racing a hangup is normal and
// answering it would only confuse clients.
func (r *Relay) Forward(senderID, eventType string, payload SignalPayload) {
	sess, err := r.registry.Get(payload.SessionID)
	if err != nil {
		r.drop(senderID, eventType, "unknown_session")
		return
	}

	if sess.Ended() {
		r.drop(senderID, eventType, "session_ended")
		return
	}

	if !sess.HasParticipant(senderID) {
		r.drop(senderID, eventType, "not_participant")
		return
	}

	partner, ok := sess.Other(senderID)
	if !ok {
		r.drop(senderID, eventType, "not_participant")
		return
	}

	r.notifier.SendToUser(partner, NewServerEvent(eventType, payload))
	signalsForwarded.WithLabelValues(eventType).Inc()

	// The relayed answer completes the offer/answer exchange; the session
	// is live from here on
	if eventType == EventCallAnswer && sess.State == session.StateSignaling {
		if err := r.registry.Transition(sess.ID, session.StateActive); err != nil {
			log.Printf("could not activate session %s: %v", sess.ID, err)
		}
	}
}

func (r *Relay) drop(senderID, eventType, cause string) {
	signalsDropped.WithLabelValues(cause).Inc()
	log.Printf("dropping %s from user %s: %s", eventType, senderID, cause)
}
