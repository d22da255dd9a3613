// internal/matchmaking/models.go

package matchmaking

import (
	"errors"
	"time"

	"github.com/pairlink/pairlink-backend/internal/session"
)

// IntentMode is what the user is queueing for
type IntentMode string

const (
	IntentDate   IntentMode = "DATE"
	IntentStudy  IntentMode = "STUDY"
	IntentFriend IntentMode = "FRIEND"
)

// GenderPreference is who the user wants to be paired with
type GenderPreference string

const (
	PreferMale   GenderPreference = "male"
	PreferFemale GenderPreference = "female"
	PreferAll    GenderPreference = "all"
)

// WaitingTicket is a user's standing request to be matched. It is owned
// exclusively by the queue while waiting and removed the instant it is
// matched or the user leaves. A user holds at most one ticket at a time.
type WaitingTicket struct {
	UserID           string           `json:"userId"`
	IntentMode       IntentMode       `json:"intentMode"`
	Gender           string           `json:"gender,omitempty"` // "male", "female" or "" (unknown)
	GenderPreference GenderPreference `json:"genderPreference"`
	WantsVideo       bool             `json:"wantsVideo"`
	EnqueuedAt       time.Time        `json:"enqueuedAt"`
}

// Match is the per-recipient result of a successful pairing. The payload
// differs for the two users, so it is always delivered individually.
type Match struct {
	SessionID   string
	PartnerID   string
	IsInitiator bool
	Session     *session.Session
}

var (
	// ErrAlreadyQueued is returned when the user already holds a ticket
	// or is already a session participant
	ErrAlreadyQueued = errors.New("user is already queued or in an active session")

	// ErrInvalidPreference is returned for an unknown intent mode or
	// gender preference combination
	ErrInvalidPreference = errors.New("invalid intent mode or gender preference")
)

// validIntent reports whether the intent mode is one of the closed set
func validIntent(m IntentMode) bool {
	switch m {
	case IntentDate, IntentStudy, IntentFriend:
		return true
	}
	return false
}

// validPreference reports whether the gender preference is one of the closed set
func validPreference(p GenderPreference) bool {
	switch p {
	case PreferMale, PreferFemale, PreferAll:
		return true
	}
	return false
}

// accepts reports whether a preference accepts a gender. An unknown
// gender is only ever accepted by "all".
func accepts(pref GenderPreference, gender string) bool {
	if pref == PreferAll {
		return true
	}
	return gender != "" && string(pref) == gender
}

// compatible reports mutual compatibility inside one intent bucket:
// each ticket must accept the other's gender
func compatible(a, b *WaitingTicket) bool {
	return accepts(a.GenderPreference, b.Gender) && accepts(b.GenderPreference, a.Gender)
}
