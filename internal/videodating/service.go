// internal/videodating/service.go
// Service is the orchestrator behind the socket: it owns the waiting
// queue, reacts to matches, relays signaling, drives the blind date
// reveal flow and tears sessions down on every exit path.

package videodating

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/pairlink/pairlink-backend/internal/blinddate"
	"github.com/pairlink/pairlink-backend/internal/common/utils"
	"github.com/pairlink/pairlink-backend/internal/matchmaking"
	"github.com/pairlink/pairlink-backend/internal/session"
)

// ReportStore persists abuse reports. Optional: a nil store logs and
// moves on, the session still ends.
type ReportStore interface {
	SaveReport(ctx context.Context, report *Report) error
}

// Report is one abuse report filed against a call partner
type Report struct {
	ID         string    `json:"id" db:"id"`
	SessionID  string    `json:"sessionId" db:"session_id"`
	ReporterID string    `json:"reporterId" db:"reporter_id"`
	ReportedID string    `json:"reportedId" db:"reported_id"`
	Reason     string    `json:"reason" db:"reason"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

// QueueStats is the REST view of the waiting queue
type QueueStats struct {
	QueueSize      int `json:"queueSize"`
	ActiveSessions int `json:"activeSessions"`
}

type Service struct {
	registry   *session.Registry
	queue      *matchmaking.Queue
	matchmaker *matchmaking.Matchmaker
	blind      *blinddate.Controller
	relay      *Relay
	notifier   Notifier
	stats      *matchmaking.RedisStats // optional
	reports    ReportStore             // optional

	// Tickets of currently-matched users, kept so call:next can re-enqueue
	// with the same preferences
	ticketsMux  sync.Mutex
	lastTickets map[string]matchmaking.WaitingTicket

	stopStatus chan struct{}
	stopOnce   sync.Once
}

// NewService wires the full matchmaking stack around the given registry
// and notifier. stats and reports may be nil.
func NewService(
	registry *session.Registry,
	blind *blinddate.Controller,
	notifier Notifier,
	stats *matchmaking.RedisStats,
	reports ReportStore,
	waitPerPosition time.Duration,
) *Service {
	s := &Service{
		registry:    registry,
		blind:       blind,
		notifier:    notifier,
		stats:       stats,
		reports:     reports,
		lastTickets: make(map[string]matchmaking.WaitingTicket),
		stopStatus:  make(chan struct{}),
	}

	s.matchmaker = matchmaking.NewMatchmaker(registry, s)
	s.queue = matchmaking.NewQueue(registry, s.matchmaker, s, waitPerPosition)
	s.relay = NewRelay(registry, notifier)

	return s
}

// Dispatch routes one decoded client event. It runs on the sender's read
// pump goroutine, preserving per-sender ordering.
func (s *Service) Dispatch(userID string, event ClientEvent) {
	switch event.Type {
	case EventQueueJoin:
		s.handleQueueJoin(userID, event.Data)
	case EventQueueLeave:
		s.handleQueueLeave(userID)
	case EventCallOffer, EventCallAnswer, EventCallICE:
		s.handleSignal(userID, event.Type, event.Data)
	case EventCallEnd:
		s.handleCallEnd(userID)
	case EventCallNext:
		s.handleCallNext(userID)
	case EventCallReport:
		s.handleCallReport(userID, event.Data)
	case EventBlindTopic:
		s.handleTopicRequest(userID)
	case EventBlindReveal:
		s.handleRevealRequest(userID)
	case EventBlindAcceptRvl:
		s.handleRevealAccept(userID)
	default:
		log.Printf("unknown event type %q from user %s", event.Type, userID)
		s.sendError(userID, "unknown_event", "unrecognized event type")
	}
}

func (s *Service) handleQueueJoin(userID string, data json.RawMessage) {
	var payload JoinQueuePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError(userID, "invalid_payload", "malformed queue:join payload")
		return
	}
	if err := utils.ValidateStruct(payload); err != nil {
		s.sendError(userID, "invalid_payload", err.Error())
		return
	}

	ticket := matchmaking.WaitingTicket{
		UserID:           userID,
		IntentMode:       matchmaking.IntentMode(payload.IntentMode),
		Gender:           payload.Gender,
		GenderPreference: matchmaking.GenderPreference(payload.GenderPreference),
		WantsVideo:       payload.WantsVideo,
		EnqueuedAt:       time.Now(),
	}

	if _, err := s.queue.Join(&ticket); err != nil {
		switch err {
		case matchmaking.ErrAlreadyQueued:
			s.sendError(userID, "already_queued", "you are already waiting or in a call")
		case matchmaking.ErrInvalidPreference:
			s.sendError(userID, "invalid_preference", "unknown intent mode or gender preference")
		default:
			s.sendError(userID, "queue_error", "could not join the queue")
		}
		return
	}

	// Remember the accepted preferences for a later call:next re-enqueue.
	// A rejected join must not clobber them.
	s.ticketsMux.Lock()
	s.lastTickets[userID] = ticket
	s.ticketsMux.Unlock()
}

func (s *Service) handleQueueLeave(userID string) {
	// Leaving when not queued is a no-op
	s.queue.Leave(userID)
}

func (s *Service) handleSignal(userID, eventType string, data json.RawMessage) {
	var payload SignalPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		signalsDropped.WithLabelValues("malformed").Inc()
		log.Printf("dropping malformed %s from user %s: %v", eventType, userID, err)
		return
	}
	if err := utils.ValidateStruct(payload); err != nil {
		signalsDropped.WithLabelValues("malformed").Inc()
		log.Printf("dropping invalid %s from user %s: %v", eventType, userID, err)
		return
	}

	s.relay.Forward(userID, eventType, payload)
}

func (s *Service) handleCallEnd(userID string) {
	sess, ended := s.registry.EndForUser(userID, session.ReasonUserEnded)
	if !ended {
		return
	}
	s.finishSession(sess)

	s.notifier.SendToUser(userID, NewServerEvent(EventCallEnded, CallEndedPayload{Reason: string(session.ReasonUserEnded)}))
	if partner, ok := sess.Other(userID); ok {
		s.notifier.SendToUser(partner, NewServerEvent(EventCallEnded, CallEndedPayload{Reason: string(session.ReasonUserEnded)}))
	}
}

// handleCallNext ends the current session and puts the requester straight
// back in the queue with the preferences from their previous ticket. Only
// the skipped partner gets call:ended; the requester's client moves to
// searching on its own and learns about the re-enqueue via queue:status.
func (s *Service) handleCallNext(userID string) {
	sess, ended := s.registry.EndForUser(userID, session.ReasonNext)
	if !ended {
		return
	}
	s.finishSession(sess)

	if partner, ok := sess.Other(userID); ok {
		s.notifier.SendToUser(partner, NewServerEvent(EventCallEnded, CallEndedPayload{Reason: string(session.ReasonNext)}))
	}

	s.ticketsMux.Lock()
	ticket, ok := s.lastTickets[userID]
	s.ticketsMux.Unlock()
	if !ok {
		// Directly-paired users never queued; nothing to re-enqueue
		return
	}

	ticket.EnqueuedAt = time.Now()
	if _, err := s.queue.Join(&ticket); err != nil {
		log.Printf("could not re-enqueue user %s after next: %v", userID, err)
	}
}

func (s *Service) handleCallReport(userID string, data json.RawMessage) {
	var payload ReportPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		s.sendError(userID, "invalid_payload", "malformed call:report payload")
		return
	}
	if err := utils.ValidateStruct(payload); err != nil {
		s.sendError(userID, "invalid_payload", err.Error())
		return
	}

	sess, ended := s.registry.EndForUser(userID, session.ReasonReported)
	if !ended {
		s.sendError(userID, "no_active_session", "no call to report")
		return
	}
	s.finishSession(sess)

	partner, _ := sess.Other(userID)
	s.saveReport(sess, userID, partner, payload.Reason)

	// The reported user is told the partner disconnected, nothing more
	s.notifier.SendToUser(userID, NewServerEvent(EventCallEnded, CallEndedPayload{Reason: string(session.ReasonReported)}))
	s.notifier.SendToUser(partner, NewServerEvent(EventCallEnded, CallEndedPayload{Reason: string(session.ReasonPartnerDisconnected)}))
}

func (s *Service) saveReport(sess *session.Session, reporterID, reportedID, reason string) {
	report := &Report{
		SessionID:  sess.ID,
		ReporterID: reporterID,
		ReportedID: reportedID,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}

	if s.reports == nil {
		log.Printf("report against user %s in session %s (no store configured)", reportedID, sess.ID)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.reports.SaveReport(ctx, report); err != nil {
		log.Printf("failed to save report for session %s: %v", sess.ID, err)
	}
}

func (s *Service) handleTopicRequest(userID string) {
	sess, ok := s.registry.ActiveSessionFor(userID)
	if !ok {
		return
	}

	state, err := s.blind.RequestNewTopic(sess.ID, userID)
	if err != nil {
		log.Printf("topic request from user %s rejected: %v", userID, err)
		return
	}

	update := NewServerEvent(EventBlindTopicUpd, TopicUpdatePayload{
		TopicNumber:   state.TopicNumber,
		CurrentTopic:  state.CurrentTopic,
		TopicCategory: state.TopicCategory,
		BlurLevelPx:   state.BlurLevelPx,
	})
	s.notifier.SendToUser(sess.ParticipantA, update)
	s.notifier.SendToUser(sess.ParticipantB, update)
}

func (s *Service) handleRevealRequest(userID string) {
	sess, ok := s.registry.ActiveSessionFor(userID)
	if !ok {
		return
	}

	notify, other, err := s.blind.RequestReveal(sess.ID, userID)
	if err != nil {
		log.Printf("reveal request from user %s rejected: %v", userID, err)
		return
	}
	if !notify {
		return
	}

	revealRequests.Inc()
	s.notifier.SendToUser(other, NewServerEvent(EventBlindRevealReq, RevealRequestedPayload{RequestedBy: userID}))
}

func (s *Service) handleRevealAccept(userID string) {
	sess, ok := s.registry.ActiveSessionFor(userID)
	if !ok {
		return
	}

	state, err := s.blind.AcceptReveal(sess.ID, userID)
	if err != nil {
		switch err {
		case blinddate.ErrNoPendingRequest:
			s.sendError(userID, "no_pending_reveal", "nobody requested a reveal")
		case blinddate.ErrSelfAccept:
			s.sendError(userID, "self_accept", "the other participant must accept the reveal")
		default:
			log.Printf("reveal accept from user %s rejected: %v", userID, err)
		}
		return
	}

	revealAccepts.Inc()
	accepted := NewServerEvent(EventBlindRevealAcc, RevealAcceptedPayload{BlurLevelPx: state.BlurLevelPx})
	s.notifier.SendToUser(sess.ParticipantA, accepted)
	s.notifier.SendToUser(sess.ParticipantB, accepted)
}

// MatchFound implements matchmaking.MatchNotifier. For video matches the
// blind date state is created here so the first match:found already
// carries the opening topic and blur level.
func (s *Service) MatchFound(userID string, m matchmaking.Match) {
	payload := MatchFoundPayload{
		SessionID:   m.SessionID,
		PartnerID:   m.PartnerID,
		IsInitiator: m.IsInitiator,
		IntentMode:  m.Session.IntentMode,
		WantsVideo:  m.Session.WantsVideo,
	}

	if m.Session.WantsVideo {
		state := s.blind.Start(m.SessionID, m.Session.ParticipantA, m.Session.ParticipantB)
		payload.BlindDate = &state
	}

	s.notifier.SendToUser(userID, NewServerEvent(EventMatchFound, payload))
}

// QueueSize implements matchmaking.StatusNotifier
func (s *Service) QueueSize(size int) {
	s.notifier.Broadcast(NewServerEvent(EventQueueStatus, QueueStatusPayload{QueueSize: size}))
	if s.stats != nil {
		s.stats.PublishQueueSize(size)
	}
}

// TicketStatus implements matchmaking.StatusNotifier
func (s *Service) TicketStatus(userID string, position int, estimatedWait time.Duration) {
	waitSec := int(estimatedWait.Seconds())
	s.notifier.SendToUser(userID, NewServerEvent(EventQueueStatus, QueueStatusPayload{
		QueueSize:        s.queue.Size(),
		MyPosition:       &position,
		EstimatedWaitSec: &waitSec,
	}))
}

// HandleDisconnect implements DisconnectHandler: a dropped socket leaves
// the queue and ends any live session, with the surviving partner told
// the peer disconnected.
func (s *Service) HandleDisconnect(userID string) {
	s.queue.Leave(userID)

	s.ticketsMux.Lock()
	delete(s.lastTickets, userID)
	s.ticketsMux.Unlock()

	sess, ended := s.registry.EndForUser(userID, session.ReasonPartnerDisconnected)
	if !ended {
		return
	}
	s.finishSession(sess)

	if partner, ok := sess.Other(userID); ok {
		s.notifier.SendToUser(partner, NewServerEvent(EventCallEnded, CallEndedPayload{Reason: string(session.ReasonPartnerDisconnected)}))
	}
}

// finishSession records metrics and destroys companion state for a
// session that just reached ENDED
func (s *Service) finishSession(sess *session.Session) {
	s.blind.End(sess.ID)
	callsEnded.WithLabelValues(string(sess.EndReason)).Inc()
	if d := sess.Duration(); d > 0 {
		sessionDuration.Observe(d.Seconds())
	}
}

// RunStatusBroadcaster periodically rebroadcasts queue:status so idle
// waiters still see movement. Blocks until Stop is called.
func (s *Service) RunStatusBroadcaster(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			size, statuses := s.queue.Snapshot()
			s.notifier.Broadcast(NewServerEvent(EventQueueStatus, QueueStatusPayload{QueueSize: size}))
			for _, st := range statuses {
				s.TicketStatus(st.UserID, st.Position, st.EstimatedWait)
			}
		case <-s.stopStatus:
			return
		}
	}
}

// Stop shuts down the periodic broadcaster
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stopStatus) })
}

// SessionByID returns a snapshot of one session for the REST surface
func (s *Service) SessionByID(sessionID string) (*session.Session, error) {
	return s.registry.Get(sessionID)
}

// Stats returns the live queue and session counters
func (s *Service) Stats() QueueStats {
	return QueueStats{
		QueueSize:      s.queue.Size(),
		ActiveSessions: s.registry.ActiveCount(),
	}
}

// CreateDirectMatch pairs two specific users, bypassing the queue. Used
// by the recommendation endpoint; sessions created this way flow through
// the same registry and lifecycle as queue matches.
func (s *Service) CreateDirectMatch(userA, userB, intentMode string, wantsVideo bool) (*session.Session, error) {
	return s.matchmaker.PairDirect(s.queue, userA, userB, intentMode, wantsVideo)
}

func (s *Service) sendError(userID, code, message string) {
	s.notifier.SendToUser(userID, NewServerEvent(EventErrorNotice, ErrorPayload{Code: code, Message: message}))
}
