// Package consult implements the patient-to-doctor consultation handshake.
// A consultation request is ephemeral and distinct from the durable Call
// record; its only durable outcome is a room id both sides can rendezvous on.
package consult

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"telecare-backend/internal/domain"
	"telecare-backend/pkg/cache"
	"telecare-backend/pkg/constants"
	apperrors "telecare-backend/pkg/errors"
	"telecare-backend/pkg/logger"
)

// Notifier surfaces consultation events to the doctor/patient out of band
// (push notification, broadcast channel). Implementations must not block.
type Notifier interface {
	ConsultationRequested(ctx context.Context, consultation *domain.Consultation)
	// ConsultationAnswered fires on both accept and reject; the consultation
	// status tells them apart
	ConsultationAnswered(ctx context.Context, consultation *domain.Consultation)
}

// Matcher owns pending consultation requests. Requests are evicted after
// constants.ConsultationTTL so unanswered solicitations cannot accumulate.
type Matcher struct {
	mu       sync.Mutex
	requests *cache.MemoryCache
	notifier Notifier
}

// NewMatcher creates a consultation matcher. notifier may be nil.
func NewMatcher(notifier Notifier) *Matcher {
	return &Matcher{
		requests: cache.NewMemoryCache(constants.ConsultationTTL, 0),
		notifier: notifier,
	}
}

// StartJanitor begins periodic eviction of expired requests
func (m *Matcher) StartJanitor(ctx context.Context) {
	m.requests.StartJanitor(ctx, constants.SweepInterval)
}

// Request registers a pending consultation and returns it immediately; the
// doctor's response arrives through Accept or Reject. Fire-and-forget: the
// notifier is responsible for surfacing the request to the doctor.
func (m *Matcher) Request(ctx context.Context, patientID, doctorID string) (*domain.Consultation, error) {
	if patientID == "" {
		return nil, apperrors.MissingFieldError("patient_id")
	}
	if doctorID == "" {
		return nil, apperrors.MissingFieldError("doctor_id")
	}

	consultation := &domain.Consultation{
		ID:        uuid.New().String(),
		PatientID: patientID,
		DoctorID:  doctorID,
		Status:    domain.ConsultationRequested,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.requests.Set(consultation.ID, consultation, 0)
	m.mu.Unlock()

	logger.Info("Consultation requested",
		zap.String("consultation_id", consultation.ID),
		zap.String("patient_id", patientID),
		zap.String("doctor_id", doctorID))

	if m.notifier != nil {
		m.notifier.ConsultationRequested(ctx, consultation)
	}

	return consultation, nil
}

// Accept marks the request accepted and assigns the room id. The id is
// derived deterministically from the consultation id so either side can
// reconstruct the relay room key on its own.
func (m *Matcher) Accept(ctx context.Context, consultationID string) (*domain.Consultation, error) {
	m.mu.Lock()
	consultation, err := m.get(consultationID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	consultation.Status = domain.ConsultationAccepted
	consultation.RoomID = RoomID(consultationID)
	m.mu.Unlock()

	logger.Info("Consultation accepted",
		zap.String("consultation_id", consultationID),
		zap.String("room_id", consultation.RoomID))

	if m.notifier != nil {
		m.notifier.ConsultationAnswered(ctx, consultation)
	}

	return consultation, nil
}

// Reject marks the request rejected and records the reason. An unknown id
// fails loudly, matching Accept.
func (m *Matcher) Reject(ctx context.Context, consultationID, reason string) (*domain.Consultation, error) {
	m.mu.Lock()
	consultation, err := m.get(consultationID)
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}

	if reason == "" {
		reason = "Doctor unavailable"
	}
	consultation.Status = domain.ConsultationRejected
	consultation.Reason = reason
	m.mu.Unlock()

	logger.Info("Consultation rejected",
		zap.String("consultation_id", consultationID),
		zap.String("reason", reason))

	if m.notifier != nil {
		m.notifier.ConsultationAnswered(ctx, consultation)
	}

	return consultation, nil
}

// Get returns the current state of a consultation request
func (m *Matcher) Get(_ context.Context, consultationID string) (*domain.Consultation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(consultationID)
}

// get looks up a live request; caller holds the lock
func (m *Matcher) get(consultationID string) (*domain.Consultation, error) {
	value, ok := m.requests.Get(consultationID)
	if !ok {
		return nil, apperrors.ConsultationNotFoundError()
	}
	return value.(*domain.Consultation), nil
}

// RoomID derives the relay room key for a consultation
func RoomID(consultationID string) string {
	return "room_" + consultationID
}
