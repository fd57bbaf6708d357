// Package webrtc exposes the pull signaling transport over HTTP: peers
// deposit SDP payloads and ICE candidates, and poll for what their
// counterpart left behind.
package webrtc

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"telecare-backend/internal/domain"
	"telecare-backend/internal/relay"
	"telecare-backend/pkg/response"
)

// Handler handles pull-transport signaling HTTP requests
type Handler struct {
	mailbox *relay.Mailbox
}

// NewHandler creates a new webrtc signaling handler
func NewHandler(mailbox *relay.Mailbox) *Handler {
	return &Handler{
		mailbox: mailbox,
	}
}

// SignalRequest represents a direct signal deposit
type SignalRequest struct {
	Type      string          `json:"type" binding:"required,oneof=offer answer ice-candidate"`
	TargetID  string          `json:"target_id" binding:"required"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// RoomSignalRequest represents a room-scoped signal deposit
type RoomSignalRequest struct {
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// JoinRoomRequest carries the caller's declared role
type JoinRoomRequest struct {
	Role string `json:"role" binding:"omitempty,oneof=patient doctor"`
}

// PutSignal deposits a signal for a target peer, superseding any pending one
// POST /v1/webrtc/signal
func (h *Handler) PutSignal(c *gin.Context) {
	var req SignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	senderID, ok := currentUserID(c)
	if !ok {
		return
	}

	h.mailbox.Put(req.TargetID, &domain.Signal{
		Kind:      domain.SignalKind(req.Type),
		SenderID:  senderID,
		TargetID:  req.TargetID,
		SDP:       req.SDP,
		Candidate: req.Candidate,
		Timestamp: time.Now(),
	})

	response.Success(c, http.StatusAccepted, gin.H{"delivered_to": req.TargetID})
}

// TakeSignal retrieves and consumes the pending signal addressed to the
// authenticated user; the signal field is null when the mailbox is empty
// GET /v1/webrtc/signal
func (h *Handler) TakeSignal(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	signal, found := h.mailbox.Take(userID)
	if !found {
		response.Success(c, http.StatusOK, gin.H{"signal": nil})
		return
	}

	response.Success(c, http.StatusOK, gin.H{"signal": signal})
}

// JoinRoom acknowledges room membership for pull-transport clients. Deposits
// address the room directly, so the mailbox keeps no membership; only the
// push transport records who is in a room.
// POST /v1/webrtc/rooms/:roomID/join
func (h *Handler) JoinRoom(c *gin.Context) {
	roomID := c.Param("roomID")
	if roomID == "" {
		response.ValidationError(c, "Missing room ID")
		return
	}

	var req JoinRoomRequest
	// body is optional; role defaults to empty
	_ = c.ShouldBindJSON(&req)

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"room_id": roomID,
		"user_id": userID,
		"role":    req.Role,
		"joined":  true,
	})
}

// PutOffer deposits the room's offer
// POST /v1/webrtc/rooms/:roomID/offer
func (h *Handler) PutOffer(c *gin.Context) {
	h.putRoomSignal(c, domain.SignalOffer)
}

// PutAnswer deposits the room's answer
// POST /v1/webrtc/rooms/:roomID/answer
func (h *Handler) PutAnswer(c *gin.Context) {
	h.putRoomSignal(c, domain.SignalAnswer)
}

// PutCandidate appends an ICE candidate to the room
// POST /v1/webrtc/rooms/:roomID/ice-candidate
func (h *Handler) PutCandidate(c *gin.Context) {
	h.putRoomSignal(c, domain.SignalICE)
}

// DrainRoom consumes everything pending for a room: the offer, the answer,
// and all ICE candidates in deposit order
// GET /v1/webrtc/rooms/:roomID/signals
func (h *Handler) DrainRoom(c *gin.Context) {
	roomID := c.Param("roomID")
	if roomID == "" {
		response.ValidationError(c, "Missing room ID")
		return
	}

	if _, ok := currentUserID(c); !ok {
		return
	}

	response.Success(c, http.StatusOK, h.mailbox.DrainRoom(roomID))
}

func (h *Handler) putRoomSignal(c *gin.Context, kind domain.SignalKind) {
	roomID := c.Param("roomID")
	if roomID == "" {
		response.ValidationError(c, "Missing room ID")
		return
	}

	var req RoomSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	senderID, ok := currentUserID(c)
	if !ok {
		return
	}

	signal := &domain.Signal{
		Kind:      kind,
		RoomID:    roomID,
		SenderID:  senderID,
		SDP:       req.SDP,
		Candidate: req.Candidate,
		Timestamp: time.Now(),
	}

	switch kind {
	case domain.SignalOffer:
		if len(req.SDP) == 0 {
			response.ValidationError(c, "Missing sdp")
			return
		}
		h.mailbox.PutOffer(roomID, signal)
	case domain.SignalAnswer:
		if len(req.SDP) == 0 {
			response.ValidationError(c, "Missing sdp")
			return
		}
		h.mailbox.PutAnswer(roomID, signal)
	case domain.SignalICE:
		if len(req.Candidate) == 0 {
			response.ValidationError(c, "Missing candidate")
			return
		}
		h.mailbox.PutCandidate(roomID, signal)
	}

	response.Success(c, http.StatusAccepted, gin.H{"room_id": roomID, "type": string(kind)})
}

func currentUserID(c *gin.Context) (string, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return "", false
	}

	userID, ok := userIDVal.(string)
	if !ok || userID == "" {
		response.InternalError(c, "Invalid user ID")
		return "", false
	}
	return userID, true
}
