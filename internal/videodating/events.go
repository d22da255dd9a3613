// internal/videodating/events.go
// Closed tagged-union message types for both directions of the socket.
// Every inbound payload is decoded into a typed DTO and validated at the
// boundary; malformed or mismatched-type messages never reach business
// logic.

package videodating

import (
	"encoding/json"
	"time"

	"github.com/pairlink/pairlink-backend/internal/blinddate"
)

// Client -> server event types
const (
	EventQueueJoin      = "queue:join"
	EventQueueLeave     = "queue:leave"
	EventCallOffer      = "call:offer"
	EventCallAnswer     = "call:answer"
	EventCallICE        = "call:ice-candidate"
	EventCallNext       = "call:next"
	EventCallEnd        = "call:end"
	EventCallReport     = "call:report"
	EventBlindTopic     = "blinddate:request-topic"
	EventBlindReveal    = "blinddate:request-reveal"
	EventBlindAcceptRvl = "blinddate:accept-reveal"
)

// Server -> client event types
const (
	EventQueueStatus    = "queue:status"
	EventMatchFound     = "match:found"
	EventCallEnded      = "call:ended"
	EventBlindTopicUpd  = "blinddate:topic-update"
	EventBlindRevealReq = "blinddate:reveal-requested"
	EventBlindRevealAcc = "blinddate:reveal-accepted"
	EventErrorNotice    = "error"
)

// ClientEvent is the envelope for every inbound message
type ClientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerEvent is the envelope for every outbound message
type ServerEvent struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewServerEvent stamps an outbound event
func NewServerEvent(eventType string, data interface{}) ServerEvent {
	return ServerEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	}
}

// JoinQueuePayload is the queue:join request
type JoinQueuePayload struct {
	IntentMode       string `json:"intentMode" validate:"required,oneof=DATE STUDY FRIEND"`
	Gender           string `json:"gender" validate:"omitempty,oneof=male female"`
	GenderPreference string `json:"genderPreference" validate:"required,oneof=male female all"`
	WantsVideo       bool   `json:"wantsVideo"`
}

// SignalPayload is the shared shape of call:offer, call:answer and
// call:ice-candidate. The concrete SDP/candidate body stays opaque: the
// relay never interprets it.
type SignalPayload struct {
	SessionID string          `json:"sessionId" validate:"required,uuid4"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// ReportPayload is the call:report request
type ReportPayload struct {
	Reason string `json:"reason" validate:"required,min=3,max=500"`
}

// QueueStatusPayload is the queue:status notification. MyPosition and
// EstimatedWait are only present on the personalized copy each waiter
// receives.
type QueueStatusPayload struct {
	QueueSize        int  `json:"queueSize"`
	MyPosition       *int `json:"myPosition,omitempty"`
	EstimatedWaitSec *int `json:"estimatedWait,omitempty"`
}

// MatchFoundPayload is delivered individually to each matched user
type MatchFoundPayload struct {
	SessionID   string           `json:"sessionId"`
	PartnerID   string           `json:"partnerId"`
	IsInitiator bool             `json:"isInitiator"`
	IntentMode  string           `json:"intentMode"`
	WantsVideo  bool             `json:"wantsVideo"`
	BlindDate   *blinddate.State `json:"blindDate,omitempty"`
}

// CallEndedPayload tells a participant their session is over
type CallEndedPayload struct {
	Reason string `json:"reason"`
}

// TopicUpdatePayload carries the blind date state after a topic rotation
type TopicUpdatePayload struct {
	TopicNumber   int    `json:"topicNumber"`
	CurrentTopic  string `json:"currentTopic"`
	TopicCategory string `json:"topicCategory,omitempty"`
	BlurLevelPx   int    `json:"blurLevelPx"`
}

// RevealRequestedPayload notifies the other participant only
type RevealRequestedPayload struct {
	RequestedBy string `json:"requestedBy"`
}

// RevealAcceptedPayload goes to both participants once consent is mutual
type RevealAcceptedPayload struct {
	BlurLevelPx int `json:"blurLevelPx"`
}

// ErrorPayload is the user-visible error notice. Only queue and
// validation errors surface here; stale signaling is dropped without one.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
