package calls

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no session exists for the call id.
	ErrNotFound = errors.New("calls: session not found")
	// ErrSessionClosed indicates a mutation was attempted after the session
	// reached a terminal status. Terminal sessions are immutable.
	ErrSessionClosed = errors.New("calls: session already terminal")
)

// Session statuses. Active is the only non-terminal state; the rest mirror
// the provider's lifecycle callback values, plus failed for reaped sessions.
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusBusy      = "busy"
	StatusFailed    = "failed"
	StatusNoAnswer  = "no-answer"
)

// TerminalStatus reports whether s ends a call's lifecycle.
func TerminalStatus(s string) bool {
	switch s {
	case StatusCompleted, StatusBusy, StatusFailed, StatusNoAnswer:
		return true
	}
	return false
}

// Speakers for transcript turns.
const (
	SpeakerCaller    = "caller"
	SpeakerAssistant = "assistant"
)

// Turn is one utterance in a call transcript.
type Turn struct {
	Speaker   string    `json:"speaker"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the record of one telephone call: lifecycle, transcript, and
// whether the call produced a booking. The call id is the sole correlation
// key between a session and any appointment created from it.
type Session struct {
	ID                string     `json:"id"`
	CallID            string     `json:"callId"`
	FromNumber        string     `json:"fromNumber"`
	ToNumber          string     `json:"toNumber"`
	Status            string     `json:"status"`
	Transcript        []Turn     `json:"transcript"`
	AppointmentBooked bool       `json:"appointmentBooked"`
	StartTime         time.Time  `json:"startTime"`
	EndTime           *time.Time `json:"endTime,omitempty"`
	DurationSeconds   int        `json:"duration"`
	CreatedAt         time.Time  `json:"createdAt"`
	UpdatedAt         time.Time  `json:"updatedAt"`
}
