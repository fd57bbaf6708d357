package consult

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare-backend/internal/domain"
	apperrors "telecare-backend/pkg/errors"
)

func TestRequestAndAccept(t *testing.T) {
	m := NewMatcher(nil)
	ctx := context.Background()

	consultation, err := m.Request(ctx, "p1", "d1")
	require.NoError(t, err)
	require.NotEmpty(t, consultation.ID)
	assert.Equal(t, domain.ConsultationRequested, consultation.Status)
	assert.Empty(t, consultation.RoomID)

	accepted, err := m.Accept(ctx, consultation.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationAccepted, accepted.Status)
	assert.Equal(t, "room_"+consultation.ID, accepted.RoomID)
}

func TestRequestValidation(t *testing.T) {
	m := NewMatcher(nil)
	ctx := context.Background()

	_, err := m.Request(ctx, "", "d1")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMissingField))

	_, err = m.Request(ctx, "p1", "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMissingField))
}

func TestAcceptUnknownFails(t *testing.T) {
	m := NewMatcher(nil)

	_, err := m.Accept(context.Background(), "unknown-id")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConsultationNotFound))
}

// Reject of an unknown id fails loudly, matching Accept. A silent success
// here would leave the patient waiting on a request that no longer exists.
func TestRejectUnknownFails(t *testing.T) {
	m := NewMatcher(nil)

	_, err := m.Reject(context.Background(), "unknown-id", "busy")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeConsultationNotFound))
}

func TestRejectRecordsReason(t *testing.T) {
	m := NewMatcher(nil)
	ctx := context.Background()

	consultation, err := m.Request(ctx, "p1", "d1")
	require.NoError(t, err)

	rejected, err := m.Reject(ctx, consultation.ID, "busy")
	require.NoError(t, err)
	assert.Equal(t, domain.ConsultationRejected, rejected.Status)
	assert.Equal(t, "busy", rejected.Reason)
}

func TestRejectDefaultReason(t *testing.T) {
	m := NewMatcher(nil)
	ctx := context.Background()

	consultation, err := m.Request(ctx, "p1", "d1")
	require.NoError(t, err)

	rejected, err := m.Reject(ctx, consultation.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "Doctor unavailable", rejected.Reason)
}

type captureNotifier struct {
	requested []*domain.Consultation
	answered  []*domain.Consultation
}

func (n *captureNotifier) ConsultationRequested(_ context.Context, c *domain.Consultation) {
	n.requested = append(n.requested, c)
}

func (n *captureNotifier) ConsultationAnswered(_ context.Context, c *domain.Consultation) {
	n.answered = append(n.answered, c)
}

func TestRequestNotifies(t *testing.T) {
	notifier := &captureNotifier{}
	m := NewMatcher(notifier)

	consultation, err := m.Request(context.Background(), "p1", "d1")
	require.NoError(t, err)

	require.Len(t, notifier.requested, 1)
	assert.Equal(t, consultation.ID, notifier.requested[0].ID)
}

func TestAnswerNotifies(t *testing.T) {
	notifier := &captureNotifier{}
	m := NewMatcher(notifier)
	ctx := context.Background()

	first, err := m.Request(ctx, "p1", "d1")
	require.NoError(t, err)
	second, err := m.Request(ctx, "p2", "d1")
	require.NoError(t, err)

	_, err = m.Accept(ctx, first.ID)
	require.NoError(t, err)
	_, err = m.Reject(ctx, second.ID, "busy")
	require.NoError(t, err)

	require.Len(t, notifier.answered, 2)
	assert.Equal(t, domain.ConsultationAccepted, notifier.answered[0].Status)
	assert.Equal(t, "room_"+first.ID, notifier.answered[0].RoomID)
	assert.Equal(t, domain.ConsultationRejected, notifier.answered[1].Status)
	assert.Equal(t, "busy", notifier.answered[1].Reason)
}
