// Package push delivers out-of-band notifications for call and consultation
// events through FCM or APNs.
package push

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"telecare-backend/pkg/logger"
)

// Provider defines interface for sending push notifications
type Provider interface {
	Send(ctx context.Context, notification *Notification, tokens []string) (*SendResult, error)
}

// SendResult contains the result of a push notification send operation
type SendResult struct {
	SuccessCount  int
	FailureCount  int
	InvalidTokens []string
	Errors        []error
}

// Notification represents a push notification
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"` // high, normal, low
	Sound    string            `json:"sound,omitempty"`
	Category string            `json:"category,omitempty"`
}

// CallNotificationData contains data for call-related notifications
type CallNotificationData struct {
	CallID     string `json:"call_id"`
	CallerID   string `json:"caller_id"`
	CallType   string `json:"call_type"`
	CallStatus string `json:"call_status"`
	SessionID  string `json:"session_id"`
	Timestamp  int64  `json:"timestamp"`
}

// ConsultationNotificationData contains data for consultation notifications
type ConsultationNotificationData struct {
	ConsultationID string `json:"consultation_id"`
	PatientID      string `json:"patient_id"`
	RoomID         string `json:"room_id,omitempty"`
	Status         string `json:"status,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// TokenType represents the type of push notification token
type TokenType string

const (
	TokenTypeFCM  TokenType = "fcm"  // Firebase Cloud Messaging
	TokenTypeAPNs TokenType = "apns" // Apple Push Notification Service
)

// Token represents a push notification token for a user
type Token struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	Type      TokenType `json:"type"`
	Platform  string    `json:"platform,omitempty"` // ios, android
	CreatedAt time.Time `json:"created_at"`
}

// TokenRepository defines interface for storing and retrieving push tokens
type TokenRepository interface {
	Store(ctx context.Context, token *Token) error
	GetByUserID(ctx context.Context, userID string) ([]*Token, error)
	Delete(ctx context.Context, userID, tokenValue string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// Service handles push notification operations
type Service struct {
	provider Provider
	repo     TokenRepository
}

// NewService creates a new push notification service
func NewService(provider Provider, repo TokenRepository) *Service {
	return &Service{
		provider: provider,
		repo:     repo,
	}
}

// RegisterToken registers a push notification token for a user. Re-registering
// the same token value overwrites the prior entry.
func (s *Service) RegisterToken(ctx context.Context, token *Token) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	return s.repo.Store(ctx, token)
}

// UnregisterToken removes one of the user's push tokens
func (s *Service) UnregisterToken(ctx context.Context, userID, tokenValue string) error {
	return s.repo.Delete(ctx, userID, tokenValue)
}

// UnregisterAllTokens removes all tokens for a user
func (s *Service) UnregisterAllTokens(ctx context.Context, userID string) error {
	return s.repo.DeleteByUserID(ctx, userID)
}

// SendIncomingCallNotification alerts the receiver that a call is ringing
func (s *Service) SendIncomingCallNotification(ctx context.Context, data *CallNotificationData, receiverID string) error {
	notification := &Notification{
		Title:    "Incoming Call",
		Body:     fmt.Sprintf("Incoming %s call", data.CallType),
		Priority: "high",
		Sound:    "default",
		Category: "INCOMING_CALL",
		Data: map[string]string{
			"type":        "call",
			"call_id":     data.CallID,
			"caller_id":   data.CallerID,
			"call_type":   data.CallType,
			"call_status": data.CallStatus,
			"session_id":  data.SessionID,
			"timestamp":   fmt.Sprintf("%d", data.Timestamp),
		},
	}

	return s.sendToUsers(ctx, notification, []string{receiverID})
}

// SendMissedCallNotification tells the receiver a ringing call timed out
func (s *Service) SendMissedCallNotification(ctx context.Context, data *CallNotificationData, receiverID string) error {
	notification := &Notification{
		Title:    "Missed Call",
		Body:     "You missed a call",
		Priority: "normal",
		Sound:    "default",
		Data: map[string]string{
			"type":      "missed_call",
			"call_id":   data.CallID,
			"caller_id": data.CallerID,
			"call_type": data.CallType,
		},
	}

	return s.sendToUsers(ctx, notification, []string{receiverID})
}

// SendConsultationRequest alerts a doctor that a patient wants a consultation
func (s *Service) SendConsultationRequest(ctx context.Context, data *ConsultationNotificationData, doctorID string) error {
	notification := &Notification{
		Title:    "Consultation Request",
		Body:     "A patient is requesting a consultation",
		Priority: "high",
		Sound:    "default",
		Category: "CONSULTATION_REQUEST",
		Data: map[string]string{
			"type":            "consultation_request",
			"consultation_id": data.ConsultationID,
			"patient_id":      data.PatientID,
		},
	}

	return s.sendToUsers(ctx, notification, []string{doctorID})
}

// SendConsultationAnswer tells the patient the doctor accepted or rejected
// their consultation request
func (s *Service) SendConsultationAnswer(ctx context.Context, data *ConsultationNotificationData, patientID string) error {
	title := "Consultation Accepted"
	body := "Your consultation request was accepted"
	if data.Status == "rejected" {
		title = "Consultation Rejected"
		body = data.Reason
	}

	notification := &Notification{
		Title:    title,
		Body:     body,
		Priority: "high",
		Sound:    "default",
		Category: "CONSULTATION_ANSWER",
		Data: map[string]string{
			"type":            "consultation_answer",
			"consultation_id": data.ConsultationID,
			"status":          data.Status,
			"room_id":         data.RoomID,
			"reason":          data.Reason,
		},
	}

	return s.sendToUsers(ctx, notification, []string{patientID})
}

// sendToUsers resolves tokens and dispatches through the provider
func (s *Service) sendToUsers(ctx context.Context, notification *Notification, userIDs []string) error {
	var allTokens []string
	for _, userID := range userIDs {
		tokens, err := s.repo.GetByUserID(ctx, userID)
		if err != nil {
			logger.Warn("Failed to get push tokens for user",
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}
		for _, token := range tokens {
			allTokens = append(allTokens, token.Token)
		}
	}

	if len(allTokens) == 0 {
		logger.Debug("No push tokens registered for recipients",
			zap.Int("user_count", len(userIDs)))
		return nil
	}

	result, err := s.provider.Send(ctx, notification, allTokens)
	if err != nil {
		logger.Error("Failed to send push notification",
			zap.String("category", notification.Category),
			zap.Int("token_count", len(allTokens)),
			zap.Error(err))
		return fmt.Errorf("failed to send push notification: %w", err)
	}

	logger.Info("Push notification sent",
		zap.String("title", notification.Title),
		zap.Int("success_count", result.SuccessCount),
		zap.Int("failure_count", result.FailureCount),
		zap.Int("invalid_tokens", len(result.InvalidTokens)))

	if len(result.InvalidTokens) > 0 {
		s.dropInvalidTokens(ctx, userIDs, result.InvalidTokens)
	}

	return nil
}

// dropInvalidTokens removes tokens the provider reported as dead
func (s *Service) dropInvalidTokens(ctx context.Context, userIDs []string, invalidTokens []string) {
	invalid := make(map[string]bool, len(invalidTokens))
	for _, t := range invalidTokens {
		invalid[t] = true
	}

	for _, userID := range userIDs {
		tokens, err := s.repo.GetByUserID(ctx, userID)
		if err != nil {
			continue
		}
		for _, token := range tokens {
			if invalid[token.Token] {
				if err := s.repo.Delete(ctx, userID, token.Token); err != nil {
					logger.Warn("Failed to drop invalid push token",
						zap.String("user_id", userID),
						zap.Error(err))
				}
			}
		}
	}
}

// MockProvider is a mock implementation for development/testing
type MockProvider struct {
	NotificationsSent int
}

// Send implements Provider interface
func (m *MockProvider) Send(_ context.Context, notification *Notification, tokens []string) (*SendResult, error) {
	m.NotificationsSent++

	logger.Debug("MockProvider: Sending notification",
		zap.String("title", notification.Title),
		zap.String("body", notification.Body),
		zap.Int("token_count", len(tokens)))

	return &SendResult{
		SuccessCount: len(tokens),
	}, nil
}
