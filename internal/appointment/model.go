package appointment

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCompleted AppointmentStatus = "completed"
	StatusCanceled  AppointmentStatus = "canceled"
)

// Active reports whether an appointment in this status occupies its doctor and capacity.
func (s AppointmentStatus) Active() bool {
	return s != StatusCanceled
}

type Visit string

const (
	VisitFirst    Visit = "first"
	VisitFollowup Visit = "followup"
)

type Patient struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Appointment struct {
	ID          uuid.UUID         `json:"id"`
	PatientID   uuid.UUID         `json:"patient_id"`
	DoctorID    uuid.UUID         `json:"doctor_id"`
	TreatmentID uuid.UUID         `json:"treatment_id"`
	StartAt     time.Time         `json:"start_at"`
	EndAt       time.Time         `json:"end_at"`
	Status      AppointmentStatus `json:"status"`
	Visit       Visit             `json:"visit"`
	Memo        string            `json:"memo"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

// CreateRequest is the input of the booking pipeline.
type CreateRequest struct {
	PatientName  string
	PatientPhone string
	DoctorID     uuid.UUID
	TreatmentID  uuid.UUID
	StartAt      time.Time
	Memo         string
}

// Filter narrows appointment listings. Zero values are ignored.
type Filter struct {
	DoctorID    uuid.UUID
	PatientID   uuid.UUID
	TreatmentID uuid.UUID
	From        time.Time
	To          time.Time
	Status      AppointmentStatus
	Limit       int
	Offset      int
}

// NormalizePhone strips the punctuation people type into phone numbers.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '.', '(', ')', '\t':
			return -1
		}
		return r
	}, strings.TrimSpace(phone))
}
