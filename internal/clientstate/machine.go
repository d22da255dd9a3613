// internal/clientstate/machine.go
// Explicit client-side session state machine. Servers and clients share
// the same vocabulary of states, so neither side can silently diverge.
// Each client runs one Machine and drives it from user gestures and
// server events; local media is acquired synchronously with the joining
// gesture because browsers tie permission prompts to user activation.

package clientstate

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the client's view of the call lifecycle
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateSearching  State = "searching"
	StateMatched    State = "matched"
	StateConnected  State = "connected"
	StateEnded      State = "ended"
)

type trigger string

const (
	triggerConnect     trigger = "connect"
	triggerSocketReady trigger = "socket-ready"
	triggerJoinQueue   trigger = "join-queue"
	triggerLeaveQueue  trigger = "leave-queue"
	triggerMatchFound  trigger = "match-found"
	triggerRemoteTrack trigger = "remote-track"
	triggerCallEnded   trigger = "call-ended"
	triggerEndCall     trigger = "end-call"
	triggerNextPartner trigger = "next-partner"
)

// transitions is the exhaustive transition table. call-ended is accepted
// from every state because teardown can race anything.
var transitions = map[State]map[trigger]State{
	StateIdle: {
		triggerConnect:   StateConnecting,
		triggerJoinQueue: StateSearching,
		triggerCallEnded: StateEnded,
	},
	StateConnecting: {
		triggerSocketReady: StateIdle,
		triggerCallEnded:   StateEnded,
	},
	StateSearching: {
		triggerLeaveQueue: StateIdle,
		triggerMatchFound: StateMatched,
		triggerCallEnded:  StateEnded,
	},
	StateMatched: {
		triggerRemoteTrack: StateConnected,
		triggerEndCall:     StateEnded,
		triggerNextPartner: StateSearching,
		triggerCallEnded:   StateEnded,
	},
	StateConnected: {
		triggerEndCall:     StateEnded,
		triggerNextPartner: StateSearching,
		triggerCallEnded:   StateEnded,
	},
	StateEnded: {
		triggerNextPartner: StateSearching,
		triggerCallEnded:   StateEnded,
	},
}

var (
	// ErrInvalidTransition is returned for events that are not legal in
	// the current state
	ErrInvalidTransition = errors.New("invalid client state transition")

	// ErrMediaUnavailable is returned when neither video nor the
	// audio-only fallback could be acquired
	ErrMediaUnavailable = errors.New("could not acquire local media")
)

// MediaStream is an acquired local media stream
type MediaStream interface {
	Stop()
	AudioOnly() bool
}

// MediaProvider acquires local media (camera/microphone). Implemented by
// the platform layer; tests use fakes.
type MediaProvider interface {
	Acquire(ctx context.Context, video bool) (MediaStream, error)
}

// Machine is one client's session state machine
type Machine struct {
	mu     sync.Mutex
	state  State
	media  MediaProvider
	stream MediaStream
}

// NewMachine creates a machine in the idle state
func NewMachine(media MediaProvider) *Machine {
	return &Machine{
		state: StateIdle,
		media: media,
	}
}

// State returns the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Stream returns the live local media stream, if any
func (m *Machine) Stream() MediaStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stream
}

// Connect starts opening the signaling socket
func (m *Machine) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(triggerConnect)
}

// SocketReady reports the socket finished connecting
func (m *Machine) SocketReady() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(triggerSocketReady)
}

// JoinQueue acquires local media and enters searching. Acquisition
// happens exactly once per searching entry: a video failure falls back
// to audio-only before giving up, and a total failure leaves the machine
// in idle with ErrMediaUnavailable.
func (m *Machine) JoinQueue(ctx context.Context, wantsVideo bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := transitions[m.state][triggerJoinQueue]; !ok {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, triggerJoinQueue, m.state)
	}

	if m.stream == nil {
		stream, err := m.media.Acquire(ctx, wantsVideo)
		if err != nil && wantsVideo {
			// MediaError policy: retry audio-only before failing
			stream, err = m.media.Acquire(ctx, false)
		}
		if err != nil {
			return ErrMediaUnavailable
		}
		m.stream = stream
	}

	return m.applyLocked(triggerJoinQueue)
}

// LeaveQueue abandons the search and releases local media
func (m *Machine) LeaveQueue() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.applyLocked(triggerLeaveQueue); err != nil {
		return err
	}
	m.stopStreamLocked()
	return nil
}

// MatchFound handles the server's match:found event
func (m *Machine) MatchFound() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(triggerMatchFound)
}

// RemoteTrack handles the first remote media track arriving
func (m *Machine) RemoteTrack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(triggerRemoteTrack)
}

// CallEnded handles the server's call:ended event. The local stream
// stays live so searching again needs no new permission prompt.
func (m *Machine) CallEnded() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(triggerCallEnded)
}

// EndCall is the user's own hang-up: local media stops for this client only
func (m *Machine) EndCall() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.applyLocked(triggerEndCall); err != nil {
		return err
	}
	m.stopStreamLocked()
	return nil
}

// NextPartner tears down the peer connection but keeps the local stream,
// re-entering searching without a new permission prompt
func (m *Machine) NextPartner() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(triggerNextPartner)
}

// Reset stops media and returns to idle, used on socket loss
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopStreamLocked()
	m.state = StateIdle
}

func (m *Machine) applyLocked(tr trigger) error {
	next, ok := transitions[m.state][tr]
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrInvalidTransition, tr, m.state)
	}
	m.state = next
	return nil
}

func (m *Machine) stopStreamLocked() {
	if m.stream != nil {
		m.stream.Stop()
		m.stream = nil
	}
}
