package clientstate

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	audioOnly bool
	stopped   bool
}

func (s *fakeStream) Stop()           { s.stopped = true }
func (s *fakeStream) AudioOnly() bool { return s.audioOnly }

type fakeMedia struct {
	acquisitions int
	failVideo    bool
	failAll      bool
	streams      []*fakeStream
}

func (f *fakeMedia) Acquire(ctx context.Context, video bool) (MediaStream, error) {
	f.acquisitions++
	if f.failAll {
		return nil, errors.New("permission denied")
	}
	if video && f.failVideo {
		return nil, errors.New("camera permission denied")
	}
	s := &fakeStream{audioOnly: !video}
	f.streams = append(f.streams, s)
	return s, nil
}

func TestHappyPath(t *testing.T) {
	media := &fakeMedia{}
	m := NewMachine(media)

	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.Connect())
	assert.Equal(t, StateConnecting, m.State())

	require.NoError(t, m.SocketReady())
	assert.Equal(t, StateIdle, m.State())

	require.NoError(t, m.JoinQueue(context.Background(), true))
	assert.Equal(t, StateSearching, m.State())
	assert.Equal(t, 1, media.acquisitions)

	require.NoError(t, m.MatchFound())
	assert.Equal(t, StateMatched, m.State())

	require.NoError(t, m.RemoteTrack())
	assert.Equal(t, StateConnected, m.State())

	require.NoError(t, m.CallEnded())
	assert.Equal(t, StateEnded, m.State())
}

func TestInvalidTransitionsRejected(t *testing.T) {
	m := NewMachine(&fakeMedia{})

	assert.ErrorIs(t, m.MatchFound(), ErrInvalidTransition)
	assert.ErrorIs(t, m.RemoteTrack(), ErrInvalidTransition)
	assert.ErrorIs(t, m.SocketReady(), ErrInvalidTransition)

	require.NoError(t, m.Connect())
	assert.ErrorIs(t, m.JoinQueue(context.Background(), true), ErrInvalidTransition)
}

func TestMediaAcquiredOncePerSearchingEntry(t *testing.T) {
	media := &fakeMedia{}
	m := NewMachine(media)

	require.NoError(t, m.JoinQueue(context.Background(), true))
	assert.Equal(t, 1, media.acquisitions)

	// Leaving stops the stream; a fresh join acquires again
	require.NoError(t, m.LeaveQueue())
	assert.True(t, media.streams[0].stopped)

	require.NoError(t, m.JoinQueue(context.Background(), true))
	assert.Equal(t, 2, media.acquisitions)
}

func TestVideoFallsBackToAudioOnly(t *testing.T) {
	media := &fakeMedia{failVideo: true}
	m := NewMachine(media)

	require.NoError(t, m.JoinQueue(context.Background(), true))

	assert.Equal(t, StateSearching, m.State())
	assert.Equal(t, 2, media.acquisitions, "one video attempt, one audio fallback")
	assert.True(t, m.Stream().AudioOnly())
}

func TestMediaFailureStaysIdle(t *testing.T) {
	media := &fakeMedia{failAll: true}
	m := NewMachine(media)

	err := m.JoinQueue(context.Background(), true)
	assert.ErrorIs(t, err, ErrMediaUnavailable)
	assert.Equal(t, StateIdle, m.State())
	assert.Nil(t, m.Stream())
}

func TestNextPartnerPreservesStream(t *testing.T) {
	media := &fakeMedia{}
	m := NewMachine(media)

	require.NoError(t, m.JoinQueue(context.Background(), true))
	require.NoError(t, m.MatchFound())
	require.NoError(t, m.RemoteTrack())

	// Next tears down only the peer connection: same stream, no new
	// permission prompt
	require.NoError(t, m.NextPartner())
	assert.Equal(t, StateSearching, m.State())
	assert.Equal(t, 1, media.acquisitions)
	assert.False(t, media.streams[0].stopped)

	// The preserved stream is reused on the rematch as well
	require.NoError(t, m.MatchFound())
	assert.Equal(t, 1, media.acquisitions)
}

func TestPartnerLossKeepsLocalMediaLive(t *testing.T) {
	media := &fakeMedia{}
	m := NewMachine(media)

	require.NoError(t, m.JoinQueue(context.Background(), true))
	require.NoError(t, m.MatchFound())
	require.NoError(t, m.RemoteTrack())

	// Server-driven end (partner dropped): stream stays live so the
	// survivor can search again instantly
	require.NoError(t, m.CallEnded())
	assert.Equal(t, StateEnded, m.State())
	assert.False(t, media.streams[0].stopped)

	require.NoError(t, m.NextPartner())
	assert.Equal(t, StateSearching, m.State())
	assert.Equal(t, 1, media.acquisitions)
}

func TestVoluntaryEndStopsLocalMedia(t *testing.T) {
	media := &fakeMedia{}
	m := NewMachine(media)

	require.NoError(t, m.JoinQueue(context.Background(), true))
	require.NoError(t, m.MatchFound())
	require.NoError(t, m.RemoteTrack())

	require.NoError(t, m.EndCall())
	assert.Equal(t, StateEnded, m.State())
	assert.True(t, media.streams[0].stopped)
}

func TestEndedToSearchingViaFindNewPartner(t *testing.T) {
	media := &fakeMedia{}
	m := NewMachine(media)

	require.NoError(t, m.JoinQueue(context.Background(), true))
	require.NoError(t, m.MatchFound())
	require.NoError(t, m.CallEnded())

	require.NoError(t, m.NextPartner())
	assert.Equal(t, StateSearching, m.State())
}

func TestCallEndedAcceptedFromAnyState(t *testing.T) {
	for _, setup := range []func(m *Machine){
		func(m *Machine) {},
		func(m *Machine) { m.Connect() },
		func(m *Machine) { m.JoinQueue(context.Background(), false) },
		func(m *Machine) { m.JoinQueue(context.Background(), false); m.MatchFound() },
	} {
		m := NewMachine(&fakeMedia{})
		setup(m)
		assert.NoError(t, m.CallEnded())
		assert.Equal(t, StateEnded, m.State())
	}
}
