// Package notify bridges domain events to push notifications. It satisfies
// the notifier interfaces of the call service and the consultation matcher
// without either of them knowing about the push stack.
package notify

import (
	"context"

	"go.uber.org/zap"

	"telecare-backend/internal/domain"
	"telecare-backend/pkg/logger"
	"telecare-backend/pkg/push"
)

// PushNotifier sends push notifications for call and consultation events.
// Delivery is fire-and-forget: a push failure never fails the operation
// that triggered it.
type PushNotifier struct {
	pushService *push.Service
}

// NewPushNotifier creates a push-backed notifier
func NewPushNotifier(pushService *push.Service) *PushNotifier {
	return &PushNotifier{pushService: pushService}
}

// IncomingCall alerts the receiver that a call is ringing
func (n *PushNotifier) IncomingCall(ctx context.Context, call *domain.Call) {
	go func() {
		data := &push.CallNotificationData{
			CallID:     call.ID.String(),
			CallerID:   call.CallerID,
			CallType:   string(call.Type),
			CallStatus: string(call.Status),
			SessionID:  call.SessionID,
			Timestamp:  call.StartTime.Unix(),
		}
		if err := n.pushService.SendIncomingCallNotification(context.WithoutCancel(ctx), data, call.ReceiverID); err != nil {
			logger.Warn("Incoming call push failed",
				zap.String("call_id", call.ID.String()),
				zap.Error(err))
		}
	}()
}

// CallStatusChanged notifies on transitions worth surfacing; today that is
// only the missed state
func (n *PushNotifier) CallStatusChanged(ctx context.Context, call *domain.Call) {
	if call.Status != domain.CallStatusMissed {
		return
	}

	go func() {
		data := &push.CallNotificationData{
			CallID:   call.ID.String(),
			CallerID: call.CallerID,
			CallType: string(call.Type),
		}
		if err := n.pushService.SendMissedCallNotification(context.WithoutCancel(ctx), data, call.ReceiverID); err != nil {
			logger.Warn("Missed call push failed",
				zap.String("call_id", call.ID.String()),
				zap.Error(err))
		}
	}()
}

// ConsultationAnswered tells the patient how the doctor responded; acceptance
// carries the room id both sides rendezvous on
func (n *PushNotifier) ConsultationAnswered(ctx context.Context, consultation *domain.Consultation) {
	go func() {
		data := &push.ConsultationNotificationData{
			ConsultationID: consultation.ID,
			PatientID:      consultation.PatientID,
			RoomID:         consultation.RoomID,
			Status:         string(consultation.Status),
			Reason:         consultation.Reason,
		}
		if err := n.pushService.SendConsultationAnswer(context.WithoutCancel(ctx), data, consultation.PatientID); err != nil {
			logger.Warn("Consultation answer push failed",
				zap.String("consultation_id", consultation.ID),
				zap.Error(err))
		}
	}()
}

// ConsultationRequested alerts the doctor that a patient wants a consultation
func (n *PushNotifier) ConsultationRequested(ctx context.Context, consultation *domain.Consultation) {
	go func() {
		data := &push.ConsultationNotificationData{
			ConsultationID: consultation.ID,
			PatientID:      consultation.PatientID,
		}
		if err := n.pushService.SendConsultationRequest(context.WithoutCancel(ctx), data, consultation.DoctorID); err != nil {
			logger.Warn("Consultation request push failed",
				zap.String("consultation_id", consultation.ID),
				zap.Error(err))
		}
	}()
}
