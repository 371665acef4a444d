package api

import (
	"time"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/catalog"
)

type CreateAppointmentRequest struct {
	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone"`
	DoctorID     string `json:"doctor_id"`
	TreatmentID  string `json:"treatment_id"`
	StartAt      string `json:"start_at"` // RFC3339
	Memo         string `json:"memo"`
}

type CreateAppointmentResponse struct {
	Appointment  *appointment.Appointment `json:"appointment"`
	SessionToken string                   `json:"session_token,omitempty"`
}

type AppointmentListResponse struct {
	Appointments []appointment.Appointment `json:"appointments"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type AvailabilityResponse struct {
	Date        string   `json:"date"`
	DoctorID    string   `json:"doctor_id"`
	TreatmentID string   `json:"treatment_id"`
	Times       []string `json:"times"`
}

type PatientLoginRequest struct {
	PatientPhone string `json:"patient_phone"`
	PatientName  string `json:"patient_name"`
}

type AdminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

type DoctorRequest struct {
	Name       string `json:"name"`
	Department string `json:"department"`
}

type TreatmentRequest struct {
	Name            string `json:"name"`
	DurationMinutes int    `json:"duration_minutes"`
	Price           int64  `json:"price"`
	Description     string `json:"description"`
}

type CapacitySlotRequest struct {
	StartTime   catalog.TimeOfDay `json:"start_time"`
	EndTime     catalog.TimeOfDay `json:"end_time"`
	MaxCapacity int               `json:"max_capacity"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
