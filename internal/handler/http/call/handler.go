// Package call exposes the call session lifecycle over HTTP.
package call

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"telecare-backend/internal/domain"
	"telecare-backend/internal/service/call"
	"telecare-backend/pkg/response"
)

// Handler handles call session HTTP requests
type Handler struct {
	callService *call.Service
}

// NewHandler creates a new call handler
func NewHandler(callService *call.Service) *Handler {
	return &Handler{
		callService: callService,
	}
}

// InitiateCallRequest represents call initiation request
type InitiateCallRequest struct {
	ReceiverID string `json:"receiver_id" binding:"required"`
	CallType   string `json:"call_type" binding:"required,oneof=audio video"`
}

// InitiateCall starts a new call session
// POST /v1/calls/initiate
func (h *Handler) InitiateCall(c *gin.Context) {
	var req InitiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	callerID, ok := currentUserID(c)
	if !ok {
		return
	}

	session, err := h.callService.InitiateCall(c.Request.Context(), callerID, req.ReceiverID, domain.CallType(req.CallType))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, session)
}

// AcceptCall answers a ringing call
// POST /v1/calls/:id/accept
func (h *Handler) AcceptCall(c *gin.Context) {
	h.transition(c, h.callService.AcceptCall)
}

// RejectCall declines a ringing call
// POST /v1/calls/:id/reject
func (h *Handler) RejectCall(c *gin.Context) {
	h.transition(c, h.callService.RejectCall)
}

// EndCall hangs up a call
// POST /v1/calls/:id/end
func (h *Handler) EndCall(c *gin.Context) {
	h.transition(c, h.callService.EndCall)
}

// GetCall retrieves a call session
// GET /v1/calls/:id
func (h *Handler) GetCall(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	session, err := h.callService.GetCall(c.Request.Context(), callID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// GetUserCalls returns the authenticated user's call history, newest first
// GET /v1/calls
func (h *Handler) GetUserCalls(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	calls, err := h.callService.GetUserCalls(c.Request.Context(), userID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"calls": calls})
}

// GetIncomingCalls returns calls currently ringing for the authenticated user
// GET /v1/calls/incoming
func (h *Handler) GetIncomingCalls(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	calls, err := h.callService.GetIncomingCalls(c.Request.Context(), userID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"calls": calls})
}

// transition applies one lifecycle transition addressed by path id
func (h *Handler) transition(c *gin.Context, apply func(ctx context.Context, callID uuid.UUID) (*domain.Call, error)) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	if _, ok := currentUserID(c); !ok {
		return
	}

	session, err := apply(c.Request.Context(), callID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// currentUserID extracts the authenticated identity set by the auth
// middleware; writes the error response itself on failure
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
