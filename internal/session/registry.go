// internal/session/registry.go
// Authoritative in-memory store of active sessions.
// Only the matchmaker, relay, reveal controller and disconnect handler
// mutate sessions; everything else reads snapshots via Get.

package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Archiver persists ended sessions. Archiving is best-effort: the
// registry stays authoritative in memory and never blocks on it.
type Archiver interface {
	Archive(ctx context.Context, s *Session) error
}

// Registry owns all active sessions and the user -> session index
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	byUser   map[string]string // userID -> active (non-ENDED) session ID

	archiver Archiver // may be nil
}

// NewRegistry creates an empty session registry
func NewRegistry(archiver Archiver) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		byUser:   make(map[string]string),
		archiver: archiver,
	}
}

// Create registers a new PENDING session for two users. It fails with
// ErrParticipantBusy if either user already has a non-ENDED session, so
// the "at most one session per user" invariant holds even when the queue
// path and the direct-pair path race.
func (r *Registry) Create(a, b, initiator, intentMode string, wantsVideo bool) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, busy := r.byUser[a]; busy {
		return nil, ErrParticipantBusy
	}
	if _, busy := r.byUser[b]; busy {
		return nil, ErrParticipantBusy
	}

	s := &Session{
		ID:           uuid.New().String(),
		ParticipantA: a,
		ParticipantB: b,
		InitiatorID:  initiator,
		State:        StatePending,
		IntentMode:   intentMode,
		WantsVideo:   wantsVideo,
		CreatedAt:    time.Now(),
	}

	r.sessions[s.ID] = s
	r.byUser[a] = s.ID
	r.byUser[b] = s.ID

	snapshot := *s
	return &snapshot, nil
}

// Get returns a snapshot of the session, or ErrNotFound
func (r *Registry) Get(sessionID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}

	snapshot := *s
	return &snapshot, nil
}

// Transition moves the session to newState, enforcing the transition
// table. Moving to ENDED must go through End so the reason is recorded.
func (r *Registry) Transition(sessionID string, newState State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}

	if newState == StateEnded || !canTransition(s.State, newState) {
		return ErrInvalidTransition
	}

	s.State = newState
	return nil
}

// End moves the session to ENDED with the given reason. It is idempotent:
// ending an already-ENDED (or unknown) session returns ok=false and does
// nothing, which matters because the voluntary-end and partner-loss paths
// can race to end the same session. The returned snapshot lets exactly one
// caller notify the other participant.
func (r *Registry) End(sessionID string, reason EndReason) (*Session, bool) {
	r.mu.Lock()

	s, ok := r.sessions[sessionID]
	if !ok || s.State == StateEnded {
		r.mu.Unlock()
		return nil, false
	}

	now := time.Now()
	s.State = StateEnded
	s.EndedAt = &now
	s.EndReason = reason

	delete(r.byUser, s.ParticipantA)
	delete(r.byUser, s.ParticipantB)
	delete(r.sessions, s.ID)

	snapshot := *s
	r.mu.Unlock()

	if r.archiver != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := r.archiver.Archive(ctx, &snapshot); err != nil {
				log.Printf("Failed to archive session %s: %v", snapshot.ID, err)
			}
		}()
	}

	return &snapshot, true
}

// EndForUser ends the active session of userID, if any
func (r *Registry) EndForUser(userID string, reason EndReason) (*Session, bool) {
	r.mu.RLock()
	sessionID, ok := r.byUser[userID]
	r.mu.RUnlock()

	if !ok {
		return nil, false
	}
	return r.End(sessionID, reason)
}

// IsParticipant reports whether userID currently has a non-ENDED session
func (r *Registry) IsParticipant(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byUser[userID]
	return ok
}

// ActiveSessionFor returns a snapshot of the user's current session
func (r *Registry) ActiveSessionFor(userID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, false
	}

	snapshot := *s
	return &snapshot, true
}

// ActiveCount returns the number of non-ENDED sessions
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
