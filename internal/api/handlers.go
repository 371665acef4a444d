package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/auth"
	"github.com/hackgods/clinic-booking/internal/logging"
)

func createAppointmentHandler(svc BookingService, sessions SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		treatmentID, err := uuid.Parse(req.TreatmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_treatment_id", "treatment_id must be a valid UUID")
			return
		}

		startAt, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_start_at", "start_at must be an RFC3339 timestamp")
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateRequest{
			PatientName:  req.PatientName,
			PatientPhone: req.PatientPhone,
			DoctorID:     doctorID,
			TreatmentID:  treatmentID,
			StartAt:      startAt,
			Memo:         req.Memo,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		// The booking is committed; a session failure only costs the patient a login.
		token, err := sessions.Issue(r.Context(), appt.PatientID)
		if err != nil {
			logging.FromContext(r.Context()).Warn().Err(err).
				Str("appointment_id", appt.ID.String()).
				Msg("could not issue session after booking")
			token = ""
		}

		writeJSON(w, http.StatusCreated, CreateAppointmentResponse{
			Appointment:  appt,
			SessionToken: token,
		})
	}
}

func availabilityHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		doctorID, err := uuid.Parse(q.Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}

		treatmentID, err := uuid.Parse(q.Get("treatment_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_treatment_id", "treatment_id must be a valid UUID")
			return
		}

		date, err := svc.Policy().ParseDate(q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		times, err := svc.AvailableStartTimes(r.Context(), doctorID, treatmentID, date)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Date:        q.Get("date"),
			DoctorID:    doctorID.String(),
			TreatmentID: treatmentID.String(),
			Times:       times,
		})
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var f appointment.Filter

		for _, p := range []struct {
			name string
			dst  *uuid.UUID
		}{{"doctor_id", &f.DoctorID}, {"patient_id", &f.PatientID}, {"treatment_id", &f.TreatmentID}} {
			v := q.Get(p.name)
			if v == "" {
				continue
			}
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_"+p.name, p.name+" must be a valid UUID")
				return
			}
			*p.dst = id
		}

		// date selects one day; date_from and date_to bound an inclusive range.
		policy := svc.Policy()
		for _, p := range []struct {
			name string
			from bool
			to   bool
		}{{"date", true, true}, {"date_from", true, false}, {"date_to", false, true}} {
			v := q.Get(p.name)
			if v == "" {
				continue
			}
			day, err := policy.ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_"+p.name, p.name+" must be YYYY-MM-DD")
				return
			}
			if p.from {
				f.From = day
			}
			if p.to {
				f.To = day.AddDate(0, 0, 1)
			}
		}

		if v := q.Get("status"); v != "" {
			status, ok := appointment.ParseStatus(v)
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+strconv.Quote(v))
				return
			}
			f.Status = status
		}

		var ok bool
		if f.Limit, ok = intQuery(w, q.Get("limit"), "limit"); !ok {
			return
		}
		if f.Offset, ok = intQuery(w, q.Get("offset"), "offset"); !ok {
			return
		}

		appts, err := svc.ListAppointments(r.Context(), f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: nonNil(appts)})
	}
}

func intQuery(w http.ResponseWriter, v, name string) (int, bool) {
	if v == "" {
		return 0, true
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "invalid_"+name, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func updateStatusHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}

		var req UpdateStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		status, ok := appointment.ParseStatus(req.Status)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_status", "unknown status "+strconv.Quote(req.Status))
			return
		}

		appt, err := svc.UpdateStatus(r.Context(), id, status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func myAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, _ := auth.PatientFromContext(r.Context())

		appts, err := svc.ListAppointments(r.Context(), appointment.Filter{PatientID: patientID, Limit: 100})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{Appointments: nonNil(appts)})
	}
}

func cancelMyAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id")
		if !ok {
			return
		}
		patientID, _ := auth.PatientFromContext(r.Context())

		appt, err := svc.CancelByPatient(r.Context(), id, patientID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, appt)
	}
}

func patientLoginHandler(svc BookingService, sessions SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PatientLoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		patient, err := svc.AuthenticatePatient(r.Context(), req.PatientPhone, req.PatientName)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		token, err := sessions.Issue(r.Context(), patient.ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, TokenResponse{Token: token})
	}
}

func patientLogoutHandler(sessions SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, _ := auth.BearerToken(r)
		if err := sessions.Revoke(r.Context(), token); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func adminLoginHandler(admins AdminAuthenticator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AdminLoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		token, expires, err := admins.Login(req.Username, req.Password)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, TokenResponse{Token: token, ExpiresAt: &expires})
	}
}

func statsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		var from, to time.Time

		for _, p := range []struct {
			name string
			dst  *time.Time
		}{{"date_from", &from}, {"date_to", &to}} {
			v := q.Get(p.name)
			if v == "" {
				continue
			}
			d, err := svc.Policy().ParseDate(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_"+p.name, p.name+" must be YYYY-MM-DD")
				return
			}
			*p.dst = d
		}

		stats, err := svc.Stats(r.Context(), from, to)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, stats)
	}
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
