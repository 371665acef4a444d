package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/logging"
	"github.com/hackgods/clinic-booking/internal/metrics"
	redisclient "github.com/hackgods/clinic-booking/internal/redis"
)

const (
	EventAppointmentCreated       = "APPOINTMENT_CREATED"
	EventAppointmentStatusChanged = "APPOINTMENT_STATUS_CHANGED"
)

var (
	ErrInvalidPatient           = errors.New("patient name and phone are required")
	ErrInvalidGrid              = errors.New("start time must fall on a 15 minute boundary")
	ErrInvalidTreatmentDuration = errors.New("treatment duration must be a multiple of 30 minutes")
	ErrOutsideOperatingHours    = errors.New("appointment falls outside operating hours")
	ErrDoctorConflict           = errors.New("doctor already has an appointment at that time")
	ErrCapacityExceeded         = errors.New("clinic capacity is full at that time")
	ErrSlotBeingBooked          = errors.New("time is currently being booked, please retry")
	ErrInvalidStatusTransition  = errors.New("invalid status transition")
	ErrCapacityUnconfigured     = errors.New("no capacity slots configured, capacity is unconstrained")
	errStatusRace               = errors.New("appointment status kept changing")
)

// maxTransitionAttempts covers the longest chain of concurrent status changes (pending -> confirmed -> terminal).
const maxTransitionAttempts = 4

type Service struct {
	repo    Repository
	catalog Catalog
	locker  redisclient.Locker
	policy  Policy
	metrics *metrics.BookingMetrics
}

// NewService wires the scheduling engine. locker and m may be nil: without a locker
// bookings are serialized by the repository's transaction locks alone.
func NewService(repo Repository, cat Catalog, locker redisclient.Locker, policy Policy, m *metrics.BookingMetrics) *Service {
	return &Service{
		repo:    repo,
		catalog: cat,
		locker:  locker,
		policy:  policy,
		metrics: m,
	}
}

func (s *Service) Policy() Policy {
	return s.policy
}

// CreateAppointment validates a booking request and stores it as pending.
// Checks run in a fixed order and the first failure is returned; nothing is written unless all pass.
func (s *Service) CreateAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	appt, err := s.createAppointment(ctx, req)
	outcome := createOutcome(err)
	s.metrics.ObserveCreate(outcome)

	logger := logging.FromContext(ctx)
	if err != nil {
		logger.Info().
			Str("doctor_id", req.DoctorID.String()).
			Str("treatment_id", req.TreatmentID.String()).
			Time("start_at", req.StartAt).
			Str("outcome", outcome).
			Err(err).
			Msg("appointment rejected")
		return nil, err
	}

	logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Time("start_at", appt.StartAt).
		Str("visit", string(appt.Visit)).
		Msg("appointment created")
	return appt, nil
}

func (s *Service) createAppointment(ctx context.Context, req CreateRequest) (*Appointment, error) {
	name := strings.TrimSpace(req.PatientName)
	phone := NormalizePhone(req.PatientPhone)

	if !s.policy.OnGrid(req.StartAt) {
		return nil, ErrInvalidGrid
	}

	if _, err := s.catalog.GetDoctorByID(ctx, req.DoctorID); err != nil {
		if errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load doctor: %w", err)
	}

	treatment, err := s.catalog.GetTreatmentByID(ctx, req.TreatmentID)
	if err != nil {
		if errors.Is(err, ErrTreatmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load treatment: %w", err)
	}
	if !validDuration(treatment) {
		return nil, ErrInvalidTreatmentDuration
	}

	start := req.StartAt
	end := start.Add(treatment.Duration())
	if !s.policy.InOperatingHours(start, end) {
		return nil, ErrOutsideOperatingHours
	}

	slots, err := s.catalog.ListCapacitySlots(ctx)
	if err != nil {
		return nil, fmt.Errorf("load capacity slots: %w", err)
	}

	keys := bookingLockKeys(s.policy, req.DoctorID, start, end, slots)
	dayStart, dayEnd := s.policy.dayBounds(start)

	var created *Appointment
	err = s.withLocks(ctx, keys, func(lockCtx context.Context) error {
		return s.repo.InTx(lockCtx, func(tx Repository) error {
			if err := tx.LockKeys(lockCtx, keys); err != nil {
				return err
			}

			// Re-read inside the critical section so the checks see every committed booking.
			existing, err := tx.ListActiveAppointments(lockCtx, dayStart, dayEnd)
			if err != nil {
				return fmt.Errorf("load appointments: %w", err)
			}
			if doctorConflict(existing, req.DoctorID, start, end) {
				return ErrDoctorConflict
			}
			if !capacityAvailable(slots, existing, start, end, s.policy.loc()) {
				return ErrCapacityExceeded
			}

			if name == "" || phone == "" {
				return ErrInvalidPatient
			}
			patient, err := tx.FindOrCreatePatient(lockCtx, name, phone)
			if err != nil {
				return fmt.Errorf("resolve patient: %w", err)
			}

			prior, err := tx.CountActivePatientAppointments(lockCtx, patient.ID)
			if err != nil {
				return err
			}

			appt, err := tx.CreateAppointment(lockCtx, Appointment{
				PatientID:   patient.ID,
				DoctorID:    req.DoctorID,
				TreatmentID: req.TreatmentID,
				StartAt:     start,
				EndAt:       end,
				Status:      StatusPending,
				Visit:       classifyVisit(prior),
				Memo:        req.Memo,
			})
			if err != nil {
				if errors.Is(err, ErrDoctorConflict) {
					return err
				}
				return fmt.Errorf("create appointment: %w", err)
			}
			created = appt

			return logEvent(lockCtx, tx, appt.ID, EventAppointmentCreated, map[string]any{
				"patient_id":   patient.ID.String(),
				"doctor_id":    req.DoctorID.String(),
				"treatment_id": req.TreatmentID.String(),
				"start_at":     start,
				"end_at":       end,
				"visit":        appt.Visit,
			})
		})
	})
	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, s.lockTimeoutReason(ctx, req.DoctorID, start, end, slots)
		}
		return nil, err
	}

	return created, nil
}

// withLocks takes the Redis locks when a locker is configured. When Redis cannot be reached
// fn runs anyway; the advisory locks taken inside the transaction still serialize it.
func (s *Service) withLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	if s.locker == nil {
		return fn(ctx)
	}
	err := s.locker.WithLocks(ctx, keys, fn)
	if errors.Is(err, redisclient.ErrLockUnavailable) {
		logging.FromContext(ctx).Warn().Err(err).Msg("redis locks unavailable, booking under database locks only")
		s.metrics.ObserveLockFallback()
		return fn(ctx)
	}
	return err
}

// lockTimeoutReason re-reads committed bookings after a lock wait ran out, so a request that
// lost to a concurrent booking gets the same error a sequential one would.
func (s *Service) lockTimeoutReason(ctx context.Context, doctorID uuid.UUID, start, end time.Time, slots []catalog.CapacitySlot) error {
	dayStart, dayEnd := s.policy.dayBounds(start)
	existing, err := s.repo.ListActiveAppointments(ctx, dayStart, dayEnd)
	if err != nil {
		return ErrSlotBeingBooked
	}
	if doctorConflict(existing, doctorID, start, end) {
		return ErrDoctorConflict
	}
	if !capacityAvailable(slots, existing, start, end, s.policy.loc()) {
		return ErrCapacityExceeded
	}
	return ErrSlotBeingBooked
}

func validDuration(t *catalog.Treatment) bool {
	return t.DurationMinutes > 0 && t.DurationMinutes%catalog.SlotGranularity == 0
}

// DoctorHasConflict reports whether the doctor has a non-canceled appointment overlapping [start, end).
func (s *Service) DoctorHasConflict(ctx context.Context, doctorID uuid.UUID, start, end time.Time) (bool, error) {
	existing, err := s.repo.ListActiveAppointments(ctx, start, end)
	if err != nil {
		return false, fmt.Errorf("load appointments: %w", err)
	}
	return doctorConflict(existing, doctorID, start, end), nil
}

// CapacityAvailable reports whether every capacity slot overlapping [start, end) has headroom.
func (s *Service) CapacityAvailable(ctx context.Context, start, end time.Time) (bool, error) {
	slots, err := s.catalog.ListCapacitySlots(ctx)
	if err != nil {
		return false, fmt.Errorf("load capacity slots: %w", err)
	}
	if len(slots) == 0 {
		return true, nil
	}
	dayStart, dayEnd := s.policy.dayBounds(start)
	existing, err := s.repo.ListActiveAppointments(ctx, dayStart, dayEnd)
	if err != nil {
		return false, fmt.Errorf("load appointments: %w", err)
	}
	return capacityAvailable(slots, existing, start, end, s.policy.loc()), nil
}

// CheckCapacityConfigured fails when no capacity slot exists, which leaves capacity unlimited.
func (s *Service) CheckCapacityConfigured(ctx context.Context) error {
	slots, err := s.catalog.ListCapacitySlots(ctx)
	if err != nil {
		return fmt.Errorf("load capacity slots: %w", err)
	}
	if len(slots) == 0 {
		return ErrCapacityUnconfigured
	}
	return nil
}

// ClassifyVisit is followup once the patient holds any non-canceled appointment.
func (s *Service) ClassifyVisit(ctx context.Context, patientID uuid.UUID) (Visit, error) {
	n, err := s.repo.CountActivePatientAppointments(ctx, patientID)
	if err != nil {
		return "", err
	}
	return classifyVisit(n), nil
}

func classifyVisit(priorActive int) Visit {
	if priorActive > 0 {
		return VisitFollowup
	}
	return VisitFirst
}

// UpdateStatus applies an administrative status change.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, target AppointmentStatus) (*Appointment, error) {
	return s.transition(ctx, id, target, nil)
}

// CancelByPatient cancels an appointment the patient owns. Another patient's appointment
// is reported as not found.
func (s *Service) CancelByPatient(ctx context.Context, id, patientID uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCanceled, func(a *Appointment) error {
		if a.PatientID != patientID {
			return ErrAppointmentNotFound
		}
		return nil
	})
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, target AppointmentStatus, authorize func(*Appointment) error) (*Appointment, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		current, err := s.repo.GetAppointmentByID(ctx, id)
		if err != nil {
			if errors.Is(err, ErrAppointmentNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("load appointment: %w", err)
		}
		if authorize != nil {
			if err := authorize(current); err != nil {
				return nil, err
			}
		}

		next, changed, err := Transition(current.Status, target)
		if err != nil {
			return nil, err
		}
		if !changed {
			return current, nil
		}

		var updated *Appointment
		err = s.repo.InTx(ctx, func(tx Repository) error {
			u, err := tx.UpdateAppointmentStatus(ctx, id, current.Status, next)
			if err != nil {
				return err
			}
			updated = u
			return logEvent(ctx, tx, id, EventAppointmentStatusChanged, map[string]any{
				"from": current.Status,
				"to":   next,
			})
		})
		if errors.Is(err, ErrAppointmentNotFound) {
			// status moved between the read and the conditional update
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update appointment status: %w", err)
		}

		s.metrics.ObserveTransition(string(current.Status), string(next))
		logging.FromContext(ctx).Info().
			Str("appointment_id", id.String()).
			Str("from", string(current.Status)).
			Str("to", string(next)).
			Msg("appointment status changed")
		return updated, nil
	}
	return nil, errStatusRace
}

// GetAppointment retrieves an appointment by ID
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

// ListAppointments retrieves appointments matching the filter
func (s *Service) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	if f.Limit <= 0 {
		f.Limit = 20 // default
	}
	if f.Limit > 100 {
		f.Limit = 100 // max
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	appointments, err := s.repo.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

// AuthenticatePatient finds the patient registered under phone whose stored name matches.
func (s *Service) AuthenticatePatient(ctx context.Context, phone, name string) (*Patient, error) {
	p, err := s.repo.GetPatientByPhone(ctx, NormalizePhone(phone))
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

func logEvent(ctx context.Context, repo Repository, appointmentID uuid.UUID, eventType string, payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Str("event_type", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID
	return repo.InsertEvent(ctx, EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	})
}

func createOutcome(err error) string {
	switch {
	case err == nil:
		return "created"
	case errors.Is(err, ErrInvalidPatient):
		return "invalid_patient"
	case errors.Is(err, ErrInvalidGrid):
		return "invalid_grid"
	case errors.Is(err, ErrDoctorNotFound):
		return "doctor_not_found"
	case errors.Is(err, ErrTreatmentNotFound):
		return "treatment_not_found"
	case errors.Is(err, ErrInvalidTreatmentDuration):
		return "invalid_treatment_duration"
	case errors.Is(err, ErrOutsideOperatingHours):
		return "outside_operating_hours"
	case errors.Is(err, ErrDoctorConflict):
		return "doctor_conflict"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, ErrSlotBeingBooked):
		return "slot_being_booked"
	default:
		return "error"
	}
}
