// Package presence exposes the presence registry over HTTP.
package presence

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telecare-backend/internal/presence"
	"telecare-backend/pkg/response"
)

// Handler handles presence HTTP requests
type Handler struct {
	registry presence.Registry
}

// NewHandler creates a new presence handler
func NewHandler(registry presence.Registry) *Handler {
	return &Handler{
		registry: registry,
	}
}

// AnnounceRequest represents a presence announcement
type AnnounceRequest struct {
	Online *bool `json:"online" binding:"required"`
}

// Announce marks the authenticated user online or offline. Repeating an
// announcement is a no-op.
// POST /v1/presence/announce
func (h *Handler) Announce(c *gin.Context) {
	var req AnnounceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.registry.SetOnline(c.Request.Context(), userID, *req.Online); err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user_id": userID,
		"online":  *req.Online,
	})
}

// GetStatus reports whether a participant is online
// GET /v1/presence/:id
func (h *Handler) GetStatus(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		response.ValidationError(c, "Missing user ID")
		return
	}

	online, err := h.registry.IsOnline(c.Request.Context(), userID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"user_id": userID,
		"online":  online,
	})
}

// ListAvailable returns all participants currently online
// GET /v1/presence
func (h *Handler) ListAvailable(c *gin.Context) {
	available, err := h.registry.ListAvailable(c.Request.Context())
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"available": available})
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
