// Package consult exposes the consultation handshake over HTTP.
package consult

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telecare-backend/internal/consult"
	"telecare-backend/pkg/response"
)

// Handler handles consultation HTTP requests
type Handler struct {
	matcher *consult.Matcher
}

// NewHandler creates a new consultation handler
func NewHandler(matcher *consult.Matcher) *Handler {
	return &Handler{
		matcher: matcher,
	}
}

// RequestConsultationRequest represents a consultation solicitation
type RequestConsultationRequest struct {
	DoctorID string `json:"doctor_id" binding:"required"`
}

// RejectConsultationRequest carries the optional rejection reason
type RejectConsultationRequest struct {
	Reason string `json:"reason"`
}

// Request solicits a consultation with a doctor. The patient identity comes
// from the authenticated session.
// POST /v1/consultations/request
func (h *Handler) Request(c *gin.Context) {
	var req RequestConsultationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	patientID, ok := currentUserID(c)
	if !ok {
		return
	}

	consultation, err := h.matcher.Request(c.Request.Context(), patientID, req.DoctorID)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, consultation)
}

// Accept accepts a pending consultation and returns the assigned room id
// POST /v1/consultations/:id/accept
func (h *Handler) Accept(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	consultation, err := h.matcher.Accept(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, consultation)
}

// Reject declines a pending consultation
// POST /v1/consultations/:id/reject
func (h *Handler) Reject(c *gin.Context) {
	var req RejectConsultationRequest
	// body is optional; a bare reject uses the default reason
	_ = c.ShouldBindJSON(&req)

	if _, ok := currentUserID(c); !ok {
		return
	}

	consultation, err := h.matcher.Reject(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, consultation)
}

// Get retrieves the current state of a consultation
// GET /v1/consultations/:id
func (h *Handler) Get(c *gin.Context) {
	consultation, err := h.matcher.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.AppError(c, err)
		return
	}

	response.Success(c, http.StatusOK, consultation)
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
