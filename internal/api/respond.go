package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/catalog"
	"github.com/hackgods/clinic-booking/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	return true
}

func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps domain errors to HTTP responses. Unknown errors are logged and
// reported without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrInvalidPatient):
		writeError(w, http.StatusUnprocessableEntity, "invalid_patient", err.Error())
	case errors.Is(err, appointment.ErrInvalidGrid):
		writeError(w, http.StatusUnprocessableEntity, "invalid_grid", err.Error())
	case errors.Is(err, appointment.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, appointment.ErrTreatmentNotFound):
		writeError(w, http.StatusNotFound, "treatment_not_found", err.Error())
	case errors.Is(err, appointment.ErrInvalidTreatmentDuration):
		writeError(w, http.StatusUnprocessableEntity, "invalid_treatment_duration", err.Error())
	case errors.Is(err, appointment.ErrOutsideOperatingHours):
		writeError(w, http.StatusUnprocessableEntity, "outside_operating_hours", err.Error())
	case errors.Is(err, appointment.ErrDoctorConflict):
		writeError(w, http.StatusConflict, "doctor_conflict", err.Error())
	case errors.Is(err, appointment.ErrCapacityExceeded):
		writeError(w, http.StatusConflict, "capacity_exceeded", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, catalog.ErrSlotNotFound):
		writeError(w, http.StatusNotFound, "capacity_slot_not_found", err.Error())
	case errors.Is(err, catalog.ErrDoctorInUse):
		writeError(w, http.StatusConflict, "doctor_in_use", err.Error())
	case errors.Is(err, catalog.ErrTreatmentInUse):
		writeError(w, http.StatusConflict, "treatment_in_use", err.Error())
	case errors.Is(err, catalog.ErrDuplicateSlot):
		writeError(w, http.StatusConflict, "duplicate_capacity_slot", err.Error())
	case errors.Is(err, catalog.ErrInvalidDoctor):
		writeError(w, http.StatusUnprocessableEntity, "invalid_doctor", err.Error())
	case errors.Is(err, catalog.ErrInvalidTreatment):
		writeError(w, http.StatusUnprocessableEntity, "invalid_treatment", err.Error())
	case errors.Is(err, catalog.ErrInvalidSlot):
		writeError(w, http.StatusUnprocessableEntity, "invalid_capacity_slot", err.Error())
	case errors.Is(err, auth.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
	default:
		logging.FromContext(r.Context()).Error().Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("request failed")
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
