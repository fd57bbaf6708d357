package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallType represents the media type of a call
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// Valid reports whether the call type is one of the known values
func (t CallType) Valid() bool {
	return t == CallTypeAudio || t == CallTypeVideo
}

// CallStatus represents the lifecycle state of a call
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing" // display-only, never produced by a transition
	CallStatusAccepted  CallStatus = "accepted"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusEnded     CallStatus = "ended"
	CallStatusMissed    CallStatus = "missed"
)

// Terminal reports whether the status permits no further transitions
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusRejected, CallStatusEnded, CallStatusMissed:
		return true
	}
	return false
}

// CanTransitionTo reports whether the state machine allows moving to next.
// initiated -> accepted | rejected | missed | ended (caller hang-up before answer)
// accepted  -> ended
// Terminal states permit nothing.
func (s CallStatus) CanTransitionTo(next CallStatus) bool {
	switch s {
	case CallStatusInitiated, CallStatusRinging:
		return next == CallStatusAccepted || next == CallStatusRejected ||
			next == CallStatusMissed || next == CallStatusEnded
	case CallStatusAccepted:
		return next == CallStatusEnded
	}
	return false
}

// Call is the durable record of one audio/video connection attempt between
// two identities. Identity resolution is owned by the auth collaborator, so
// caller and receiver are opaque strings here.
type Call struct {
	ID         uuid.UUID  `json:"call_id"`
	CallerID   string     `json:"caller_id"`
	ReceiverID string     `json:"receiver_id"`
	Type       CallType   `json:"call_type"`
	Status     CallStatus `json:"status"`
	// SessionID is the rendezvous token shared with both participants and
	// used as the signaling relay's room key. Immutable once assigned.
	SessionID string     `json:"session_id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}
