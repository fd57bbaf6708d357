package domain

import "time"

// ConsultationStatus represents the state of a consultation request
type ConsultationStatus string

const (
	ConsultationRequested ConsultationStatus = "requested"
	ConsultationAccepted  ConsultationStatus = "accepted"
	ConsultationRejected  ConsultationStatus = "rejected"
)

// Consultation is an ephemeral patient-to-doctor call solicitation, distinct
// from the durable Call record. It lives only in process memory and is
// evicted after a TTL.
type Consultation struct {
	ID        string             `json:"consultation_id"`
	PatientID string             `json:"patient_id"`
	DoctorID  string             `json:"doctor_id"`
	Status    ConsultationStatus `json:"status"`
	// RoomID is assigned deterministically on acceptance so both sides can
	// reconstruct the relay room key from the consultation id alone.
	RoomID    string    `json:"room_id,omitempty"`
	Reason    string    `json:"reason,omitempty"` // set only on rejection
	CreatedAt time.Time `json:"created_at"`
}
