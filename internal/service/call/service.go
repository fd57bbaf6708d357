// Package call implements the call session lifecycle: initiation, the
// accept/reject/end transitions, and the ring timeout that converts an
// unanswered call to missed.
package call

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telecare-backend/internal/domain"
	"telecare-backend/pkg/constants"
	apperrors "telecare-backend/pkg/errors"
	"telecare-backend/pkg/logger"
	"telecare-backend/pkg/metrics"
)

// Store persists call records
type Store interface {
	Create(ctx context.Context, call *domain.Call) error
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error)
	UpdateStatus(ctx context.Context, callID uuid.UUID, status domain.CallStatus, endTime *time.Time) error
	GetUserCalls(ctx context.Context, userID string) ([]*domain.Call, error)
	GetIncomingCalls(ctx context.Context, userID string) ([]*domain.Call, error)
}

// Notifier delivers call events to participants out of band (push
// notification, websocket broadcast). Implementations must not block.
type Notifier interface {
	IncomingCall(ctx context.Context, call *domain.Call)
	CallStatusChanged(ctx context.Context, call *domain.Call)
}

// Service coordinates call sessions. One ring timer is armed per initiated
// call and disarmed on the first transition, so timeout and an explicit
// answer race safely through the state machine check.
type Service struct {
	store       Store
	notifier    Notifier
	metrics     *metrics.Metrics
	ringTimeout time.Duration

	mu     sync.Mutex
	timers map[uuid.UUID]*time.Timer
}

// Option configures optional Service collaborators
type Option func(*Service)

// WithNotifier attaches an out-of-band event notifier
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics attaches call metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithRingTimeout overrides the default ring timeout
func WithRingTimeout(d time.Duration) Option {
	return func(s *Service) { s.ringTimeout = d }
}

// NewService creates a call service backed by the given store
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		ringTimeout: constants.CallRingTimeout,
		timers:      make(map[uuid.UUID]*time.Timer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitiateCall creates a new call session in the initiated state and arms
// the ring timer. The session id is minted here and shared with both
// participants as the signaling room key.
func (s *Service) InitiateCall(ctx context.Context, callerID, receiverID string, callType domain.CallType) (*domain.Call, error) {
	if callerID == "" {
		return nil, apperrors.MissingFieldError("caller_id")
	}
	if receiverID == "" {
		return nil, apperrors.MissingFieldError("receiver_id")
	}
	if callerID == receiverID {
		return nil, apperrors.InvalidInputError("Caller and receiver must differ")
	}
	if !callType.Valid() {
		return nil, apperrors.InvalidInputError(fmt.Sprintf("Unknown call type: %s", callType))
	}

	call := &domain.Call{
		ID:         uuid.New(),
		CallerID:   callerID,
		ReceiverID: receiverID,
		Type:       callType,
		Status:     domain.CallStatusInitiated,
		SessionID:  uuid.NewString(),
		StartTime:  time.Now(),
	}

	if err := s.store.Create(ctx, call); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	s.armRingTimer(call.ID)

	if s.metrics != nil {
		s.metrics.RecordCallInitiated(string(call.Type))
	}
	logger.Info("Call initiated",
		zap.String("call_id", call.ID.String()),
		zap.String("caller_id", callerID),
		zap.String("receiver_id", receiverID),
		zap.String("call_type", string(callType)))

	if s.notifier != nil {
		s.notifier.IncomingCall(ctx, call)
	}

	return call, nil
}

// AcceptCall moves an initiated call to accepted
func (s *Service) AcceptCall(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	return s.transition(ctx, callID, domain.CallStatusAccepted)
}

// RejectCall moves an initiated call to rejected and stamps the end time
func (s *Service) RejectCall(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	return s.transition(ctx, callID, domain.CallStatusRejected)
}

// EndCall moves an initiated or accepted call to ended and stamps the end
// time. A caller may hang up before the receiver answers.
func (s *Service) EndCall(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	return s.transition(ctx, callID, domain.CallStatusEnded)
}

// GetCall retrieves a call by id
func (s *Service) GetCall(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	return s.store.GetByID(ctx, callID)
}

// GetUserCalls returns the user's call history, newest first
func (s *Service) GetUserCalls(ctx context.Context, userID string) ([]*domain.Call, error) {
	if userID == "" {
		return nil, apperrors.MissingFieldError("user_id")
	}
	return s.store.GetUserCalls(ctx, userID)
}

// GetIncomingCalls returns calls currently ringing for the user
func (s *Service) GetIncomingCalls(ctx context.Context, userID string) ([]*domain.Call, error) {
	if userID == "" {
		return nil, apperrors.MissingFieldError("user_id")
	}
	return s.store.GetIncomingCalls(ctx, userID)
}

// transition applies the state machine and persists the result. Rejected and
// ended stamp the end time; missed deliberately does not, so an unanswered
// call is distinguishable from one that connected or was declined.
func (s *Service) transition(ctx context.Context, callID uuid.UUID, next domain.CallStatus) (*domain.Call, error) {
	call, err := s.store.GetByID(ctx, callID)
	if err != nil {
		return nil, err
	}

	if !call.Status.CanTransitionTo(next) {
		return nil, apperrors.InvalidStateError(
			fmt.Sprintf("Cannot transition call from %s to %s", call.Status, next))
	}

	var endTime *time.Time
	if next == domain.CallStatusRejected || next == domain.CallStatusEnded {
		now := time.Now()
		endTime = &now
	}

	if err := s.store.UpdateStatus(ctx, callID, next, endTime); err != nil {
		return nil, err
	}

	s.disarmRingTimer(callID)

	prev := call.Status
	call.Status = next
	call.EndTime = endTime

	if s.metrics != nil {
		var ringDuration time.Duration
		if prev == domain.CallStatusInitiated {
			ringDuration = time.Since(call.StartTime)
		}
		s.metrics.RecordCallTransition(string(next), next.Terminal(), ringDuration)
	}
	logger.Info("Call transitioned",
		zap.String("call_id", callID.String()),
		zap.String("from", string(prev)),
		zap.String("to", string(next)))

	if s.notifier != nil {
		s.notifier.CallStatusChanged(ctx, call)
	}

	return call, nil
}

// armRingTimer schedules the missed transition for an unanswered call
func (s *Service) armRingTimer(callID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.timers[callID] = time.AfterFunc(s.ringTimeout, func() {
		s.expireCall(callID)
	})
}

// disarmRingTimer cancels the pending missed transition, if any
func (s *Service) disarmRingTimer(callID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if timer, ok := s.timers[callID]; ok {
		timer.Stop()
		delete(s.timers, callID)
	}
}

// expireCall marks a still-initiated call as missed. Losing the race against
// an explicit transition is fine: the state machine check rejects the stale
// side.
func (s *Service) expireCall(callID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.DefaultTimeout)
	defer cancel()

	if _, err := s.transition(ctx, callID, domain.CallStatusMissed); err != nil {
		if !apperrors.IsCode(err, apperrors.ErrCodeInvalidState) && !apperrors.IsCode(err, apperrors.ErrCodeCallNotFound) {
			logger.Error("Ring timeout transition failed",
				zap.String("call_id", callID.String()),
				zap.Error(err))
		}
		return
	}

	logger.Info("Call missed after ring timeout", zap.String("call_id", callID.String()))
}
