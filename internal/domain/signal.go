package domain

import (
	"encoding/json"
	"time"
)

// SignalKind tags a signaling message. Payload contents (SDP, ICE candidates)
// stay opaque to the relay; only the kind and routing fields are interpreted.
type SignalKind string

const (
	SignalJoinRoom SignalKind = "join-room"
	SignalOffer    SignalKind = "offer"
	SignalAnswer   SignalKind = "answer"
	SignalICE      SignalKind = "ice-candidate"
	SignalLeave    SignalKind = "leave"
)

// Valid reports whether the kind is one a client may submit
func (k SignalKind) Valid() bool {
	switch k {
	case SignalJoinRoom, SignalOffer, SignalAnswer, SignalICE, SignalLeave:
		return true
	}
	return false
}

// Signal is the typed envelope for one signaling message, decoded once at the
// transport boundary. SDP and Candidate are passed through verbatim.
type Signal struct {
	Kind      SignalKind      `json:"type"`
	RoomID    string          `json:"room_id,omitempty"`
	SenderID  string          `json:"sender_id,omitempty"`
	TargetID  string          `json:"target_id,omitempty"`
	Role      string          `json:"role,omitempty"` // join-room only: patient or doctor
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// RoomSignals is the result of draining a room's pending pull-transport
// entries. Offer and Answer are at-most-one each; candidates are additive and
// returned in submission order.
type RoomSignals struct {
	Offer      *Signal   `json:"offer,omitempty"`
	Answer     *Signal   `json:"answer,omitempty"`
	Candidates []*Signal `json:"candidates,omitempty"`
}
